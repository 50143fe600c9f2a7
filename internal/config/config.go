package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the interview service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	AllowAnyOrigin   bool

	LogFormat string
	LogLevel  string

	StoreMode   string
	DatabaseURL string
	SQLitePath  string

	CatalogPath string

	MaxTurns         int
	MinTurns         int
	MinFollowups     int
	MaxFollowups     int
	ShortAnswerWords int

	AbandonAfter  time.Duration
	SweepInterval time.Duration

	TranscribeMode        string
	TranscribeAPIKey      string
	TranscribeBaseURL     string
	TranscribeModel       string
	TranscribeFallback    string
	TranscribeMaxAudioMB  int
	TranscribeMaxAttempts int
	TranscribeBackoffBase time.Duration
	TranscribeBackoffCap  time.Duration
	TranscribeTimeout     time.Duration

	EvalMode     string
	GeminiAPIKey string
	EvalModel    string
	EvalTimeout  time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:          envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:  envOrDefault("APP_METRICS_NAMESPACE", "vera"),
		AllowAnyOrigin:    false,
		LogFormat:         envOrDefault("APP_LOG_FORMAT", "json"),
		LogLevel:          envOrDefault("APP_LOG_LEVEL", "info"),
		StoreMode:         envOrDefault("APP_STORE_MODE", "auto"),
		DatabaseURL:       envTrimmed("APP_DATABASE_URL"),
		SQLitePath:        envTrimmed("APP_SQLITE_PATH"),
		CatalogPath:       envTrimmed("APP_CATALOG_PATH"),
		TranscribeMode:    envOrDefault("APP_TRANSCRIBE_MODE", "auto"),
		TranscribeAPIKey:  envTrimmed("APP_TRANSCRIBE_API_KEY"),
		TranscribeBaseURL: envOrDefault("APP_TRANSCRIBE_BASE_URL", "https://api.openai.com/v1"),
		TranscribeModel:   envOrDefault("APP_TRANSCRIBE_MODEL", "whisper-1"),
		// "mock" keeps transcription usable with no upstream account.
		TranscribeFallback: envOrDefault("APP_TRANSCRIBE_FALLBACK", "none"),
		EvalMode:           envOrDefault("APP_EVAL_MODE", "auto"),
		GeminiAPIKey:       envTrimmed("APP_GEMINI_API_KEY"),
		EvalModel:          envOrDefault("APP_EVAL_MODEL", "gemini-2.5-flash"),

		ShutdownTimeout: 15 * time.Second,

		// Interview policy defaults keep the completion criteria satisfiable:
		// the cap equals the minimum turn count and follow-ups are forced in
		// before the cap when the trigger heuristics never fire.
		MaxTurns:         6,
		MinTurns:         6,
		MinFollowups:     2,
		MaxFollowups:     3,
		ShortAnswerWords: 12,

		AbandonAfter:  0,
		SweepInterval: time.Minute,

		TranscribeMaxAudioMB:  25,
		TranscribeMaxAttempts: 4,
		TranscribeBackoffBase: time.Second,
		TranscribeBackoffCap:  30 * time.Second,
		TranscribeTimeout:     60 * time.Second,

		EvalTimeout: 30 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	cfg.MaxTurns, err = intFromEnv("APP_INTERVIEW_MAX_TURNS", cfg.MaxTurns)
	if err != nil {
		return Config{}, err
	}
	cfg.MinTurns, err = intFromEnv("APP_INTERVIEW_MIN_TURNS", cfg.MinTurns)
	if err != nil {
		return Config{}, err
	}
	cfg.MinFollowups, err = intFromEnv("APP_INTERVIEW_MIN_FOLLOWUPS", cfg.MinFollowups)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxFollowups, err = intFromEnv("APP_INTERVIEW_MAX_FOLLOWUPS", cfg.MaxFollowups)
	if err != nil {
		return Config{}, err
	}
	cfg.ShortAnswerWords, err = intFromEnv("APP_INTERVIEW_SHORT_ANSWER_WORDS", cfg.ShortAnswerWords)
	if err != nil {
		return Config{}, err
	}

	cfg.AbandonAfter, err = durationFromEnv("APP_SESSION_ABANDON_AFTER", cfg.AbandonAfter)
	if err != nil {
		return Config{}, err
	}
	cfg.SweepInterval, err = durationFromEnv("APP_SESSION_SWEEP_INTERVAL", cfg.SweepInterval)
	if err != nil {
		return Config{}, err
	}

	cfg.TranscribeMaxAudioMB, err = intFromEnv("APP_TRANSCRIBE_MAX_AUDIO_MB", cfg.TranscribeMaxAudioMB)
	if err != nil {
		return Config{}, err
	}
	cfg.TranscribeMaxAttempts, err = intFromEnv("APP_TRANSCRIBE_MAX_ATTEMPTS", cfg.TranscribeMaxAttempts)
	if err != nil {
		return Config{}, err
	}
	cfg.TranscribeBackoffBase, err = durationFromEnv("APP_TRANSCRIBE_BACKOFF_BASE", cfg.TranscribeBackoffBase)
	if err != nil {
		return Config{}, err
	}
	cfg.TranscribeBackoffCap, err = durationFromEnv("APP_TRANSCRIBE_BACKOFF_CAP", cfg.TranscribeBackoffCap)
	if err != nil {
		return Config{}, err
	}
	cfg.TranscribeTimeout, err = durationFromEnv("APP_TRANSCRIBE_TIMEOUT", cfg.TranscribeTimeout)
	if err != nil {
		return Config{}, err
	}

	cfg.EvalTimeout, err = durationFromEnv("APP_EVAL_TIMEOUT", cfg.EvalTimeout)
	if err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	if err := oneOf("APP_STORE_MODE", cfg.StoreMode, "auto", "memory", "sqlite", "postgres"); err != nil {
		return err
	}
	if err := oneOf("APP_TRANSCRIBE_MODE", cfg.TranscribeMode, "auto", "http", "mock"); err != nil {
		return err
	}
	if err := oneOf("APP_TRANSCRIBE_FALLBACK", cfg.TranscribeFallback, "none", "mock"); err != nil {
		return err
	}
	if err := oneOf("APP_EVAL_MODE", cfg.EvalMode, "auto", "heuristic", "gemini"); err != nil {
		return err
	}
	if cfg.StoreMode == "postgres" && cfg.DatabaseURL == "" {
		return fmt.Errorf("APP_DATABASE_URL is required when APP_STORE_MODE=postgres")
	}
	if cfg.TranscribeMode == "http" && cfg.TranscribeAPIKey == "" {
		return fmt.Errorf("APP_TRANSCRIBE_API_KEY is required when APP_TRANSCRIBE_MODE=http")
	}
	if cfg.EvalMode == "gemini" && cfg.GeminiAPIKey == "" {
		return fmt.Errorf("APP_GEMINI_API_KEY is required when APP_EVAL_MODE=gemini")
	}

	if cfg.MinTurns < 1 {
		return fmt.Errorf("APP_INTERVIEW_MIN_TURNS must be positive")
	}
	if cfg.MaxTurns < cfg.MinTurns {
		return fmt.Errorf("APP_INTERVIEW_MAX_TURNS must be >= APP_INTERVIEW_MIN_TURNS")
	}
	if cfg.MinFollowups < 0 {
		return fmt.Errorf("APP_INTERVIEW_MIN_FOLLOWUPS must be >= 0")
	}
	if cfg.MinFollowups >= cfg.MinTurns {
		return fmt.Errorf("APP_INTERVIEW_MIN_FOLLOWUPS must be below APP_INTERVIEW_MIN_TURNS")
	}
	if cfg.MaxFollowups < cfg.MinFollowups {
		return fmt.Errorf("APP_INTERVIEW_MAX_FOLLOWUPS must be >= APP_INTERVIEW_MIN_FOLLOWUPS")
	}
	if cfg.ShortAnswerWords < 1 {
		return fmt.Errorf("APP_INTERVIEW_SHORT_ANSWER_WORDS must be positive")
	}

	if cfg.AbandonAfter < 0 {
		return fmt.Errorf("APP_SESSION_ABANDON_AFTER must be >= 0")
	}
	if cfg.AbandonAfter > 0 && cfg.AbandonAfter < 30*time.Second {
		return fmt.Errorf("APP_SESSION_ABANDON_AFTER must be at least 30s when enabled")
	}
	if cfg.SweepInterval < time.Second {
		return fmt.Errorf("APP_SESSION_SWEEP_INTERVAL must be at least 1s")
	}

	if cfg.TranscribeMaxAudioMB < 1 {
		return fmt.Errorf("APP_TRANSCRIBE_MAX_AUDIO_MB must be positive")
	}
	if cfg.TranscribeMaxAttempts < 1 {
		return fmt.Errorf("APP_TRANSCRIBE_MAX_ATTEMPTS must be positive")
	}
	if cfg.TranscribeBackoffBase <= 0 {
		return fmt.Errorf("APP_TRANSCRIBE_BACKOFF_BASE must be positive")
	}
	if cfg.TranscribeBackoffCap < cfg.TranscribeBackoffBase {
		return fmt.Errorf("APP_TRANSCRIBE_BACKOFF_CAP must be >= APP_TRANSCRIBE_BACKOFF_BASE")
	}
	if cfg.TranscribeTimeout < time.Second {
		return fmt.Errorf("APP_TRANSCRIBE_TIMEOUT must be at least 1s")
	}
	if cfg.EvalTimeout < time.Second {
		return fmt.Errorf("APP_EVAL_TIMEOUT must be at least 1s")
	}
	return nil
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s", key, strings.Join(allowed, ", "))
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
