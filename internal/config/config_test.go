package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.StoreMode != "auto" {
		t.Fatalf("StoreMode = %q, want %q", cfg.StoreMode, "auto")
	}
	if cfg.MaxTurns != 6 || cfg.MinTurns != 6 {
		t.Fatalf("turn policy = max %d / min %d, want 6/6", cfg.MaxTurns, cfg.MinTurns)
	}
	if cfg.MinFollowups != 2 || cfg.MaxFollowups != 3 {
		t.Fatalf("followup policy = min %d / max %d, want 2/3", cfg.MinFollowups, cfg.MaxFollowups)
	}
	if cfg.TranscribeMaxAttempts != 4 {
		t.Fatalf("TranscribeMaxAttempts = %d, want 4", cfg.TranscribeMaxAttempts)
	}
	if cfg.TranscribeBackoffBase != time.Second {
		t.Fatalf("TranscribeBackoffBase = %v, want 1s", cfg.TranscribeBackoffBase)
	}
	if cfg.AbandonAfter != 0 {
		t.Fatalf("AbandonAfter = %v, want disabled (0)", cfg.AbandonAfter)
	}
}

func TestLoadExplicitValues(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9191")
	t.Setenv("APP_INTERVIEW_MAX_TURNS", "10")
	t.Setenv("APP_INTERVIEW_MAX_FOLLOWUPS", "4")
	t.Setenv("APP_TRANSCRIBE_BACKOFF_BASE", "500ms")
	t.Setenv("APP_SESSION_ABANDON_AFTER", "5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9191" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":9191")
	}
	if cfg.MaxTurns != 10 {
		t.Fatalf("MaxTurns = %d, want 10", cfg.MaxTurns)
	}
	if cfg.MaxFollowups != 4 {
		t.Fatalf("MaxFollowups = %d, want 4", cfg.MaxFollowups)
	}
	if cfg.TranscribeBackoffBase != 500*time.Millisecond {
		t.Fatalf("TranscribeBackoffBase = %v, want 500ms", cfg.TranscribeBackoffBase)
	}
	if cfg.AbandonAfter != 5*time.Minute {
		t.Fatalf("AbandonAfter = %v, want 5m", cfg.AbandonAfter)
	}
}

func TestLoadRejectsInvalidPolicy(t *testing.T) {
	for _, tc := range []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"cap below minimum", "APP_INTERVIEW_MAX_TURNS", "3", "APP_INTERVIEW_MAX_TURNS"},
		{"followups outgrow turns", "APP_INTERVIEW_MIN_FOLLOWUPS", "6", "APP_INTERVIEW_MIN_FOLLOWUPS"},
		{"budget below minimum", "APP_INTERVIEW_MAX_FOLLOWUPS", "1", "APP_INTERVIEW_MAX_FOLLOWUPS"},
		{"unknown store mode", "APP_STORE_MODE", "etcd", "APP_STORE_MODE"},
		{"unknown eval mode", "APP_EVAL_MODE", "gpt", "APP_EVAL_MODE"},
		{"zero attempts", "APP_TRANSCRIBE_MAX_ATTEMPTS", "0", "APP_TRANSCRIBE_MAX_ATTEMPTS"},
		{"short abandon window", "APP_SESSION_ABANDON_AFTER", "5s", "APP_SESSION_ABANDON_AFTER"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			setCoreEnvEmpty(t)
			t.Setenv(tc.key, tc.val)
			_, err := Load()
			if err == nil {
				t.Fatalf("Load() error = nil, want failure mentioning %s", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Load() error = %v, want mention of %s", err, tc.want)
			}
		})
	}
}

func TestLoadRequiresCredentialsForExplicitModes(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_TRANSCRIBE_MODE", "http")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want missing APP_TRANSCRIBE_API_KEY failure")
	}

	setCoreEnvEmpty(t)
	t.Setenv("APP_EVAL_MODE", "gemini")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want missing APP_GEMINI_API_KEY failure")
	}

	setCoreEnvEmpty(t)
	t.Setenv("APP_STORE_MODE", "postgres")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want missing APP_DATABASE_URL failure")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"APP_LOG_FORMAT",
		"APP_LOG_LEVEL",
		"APP_STORE_MODE",
		"APP_DATABASE_URL",
		"APP_SQLITE_PATH",
		"APP_CATALOG_PATH",
		"APP_INTERVIEW_MAX_TURNS",
		"APP_INTERVIEW_MIN_TURNS",
		"APP_INTERVIEW_MIN_FOLLOWUPS",
		"APP_INTERVIEW_MAX_FOLLOWUPS",
		"APP_INTERVIEW_SHORT_ANSWER_WORDS",
		"APP_SESSION_ABANDON_AFTER",
		"APP_SESSION_SWEEP_INTERVAL",
		"APP_TRANSCRIBE_MODE",
		"APP_TRANSCRIBE_API_KEY",
		"APP_TRANSCRIBE_BASE_URL",
		"APP_TRANSCRIBE_MODEL",
		"APP_TRANSCRIBE_FALLBACK",
		"APP_TRANSCRIBE_MAX_AUDIO_MB",
		"APP_TRANSCRIBE_MAX_ATTEMPTS",
		"APP_TRANSCRIBE_BACKOFF_BASE",
		"APP_TRANSCRIBE_BACKOFF_CAP",
		"APP_TRANSCRIBE_TIMEOUT",
		"APP_EVAL_MODE",
		"APP_GEMINI_API_KEY",
		"APP_EVAL_MODEL",
		"APP_EVAL_TIMEOUT",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
