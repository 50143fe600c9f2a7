package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/antoniostano/vera/internal/catalog"
	"github.com/antoniostano/vera/internal/config"
	"github.com/antoniostano/vera/internal/evaluation"
	"github.com/antoniostano/vera/internal/httpapi"
	"github.com/antoniostano/vera/internal/interview"
	"github.com/antoniostano/vera/internal/observability"
	"github.com/antoniostano/vera/internal/store"
	"github.com/antoniostano/vera/internal/transcribe"
)

type BuildResult struct {
	Config      config.Config
	API         *httpapi.Server
	Interviews  *interview.Manager
	Metrics     *observability.Metrics
	StoreMode   string
	Transcriber string
	Assessor    string

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*BuildResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	sessionStore, storeMode, err := store.Open(ctx, cfg.StoreMode, cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("session store init failed: %w", err)
	}

	cat, err := resolveCatalog(cfg)
	if err != nil {
		_ = sessionStore.Close()
		return nil, err
	}

	provider, providerName, err := resolveTranscriber(cfg)
	if err != nil {
		_ = sessionStore.Close()
		return nil, err
	}
	transcriber := transcribe.NewController(transcribe.ControllerConfig{
		MaxAttempts: cfg.TranscribeMaxAttempts,
		BackoffBase: cfg.TranscribeBackoffBase,
		BackoffCap:  cfg.TranscribeBackoffCap,
	}, provider, logger.Named("transcribe"), metrics)

	assessor, err := resolveAssessor(ctx, cfg, logger)
	if err != nil {
		_ = sessionStore.Close()
		return nil, err
	}

	interviews := interview.NewManager(interview.ManagerConfig{
		Policy: interview.Policy{
			MaxTurns:         cfg.MaxTurns,
			MinTurns:         cfg.MinTurns,
			MinFollowups:     cfg.MinFollowups,
			MaxFollowups:     cfg.MaxFollowups,
			ShortAnswerWords: cfg.ShortAnswerWords,
		},
		EvalTimeout:  cfg.EvalTimeout,
		AbandonAfter: cfg.AbandonAfter,
	}, cat, sessionStore, assessor, logger.Named("interview"), metrics)

	api := httpapi.New(cfg, interviews, cat, transcriber, sessionStore, storeMode, metrics, logger.Named("httpapi"))

	cleanup := func() error {
		var errs []string
		if err := sessionStore.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:      cfg,
		API:         api,
		Interviews:  interviews,
		Metrics:     metrics,
		StoreMode:   storeMode,
		Transcriber: providerName,
		Assessor:    assessor.Name(),
		Cleanup:     cleanup,
	}, nil
}

func resolveCatalog(cfg config.Config) (catalog.Catalog, error) {
	if cfg.CatalogPath == "" {
		return catalog.Builtin(), nil
	}
	cat, err := catalog.LoadFile(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("catalog init failed: %w", err)
	}
	return cat, nil
}

func resolveTranscriber(cfg config.Config) (transcribe.Provider, string, error) {
	mode := cfg.TranscribeMode
	if mode == "auto" {
		if cfg.TranscribeAPIKey != "" {
			mode = "http"
		} else {
			mode = "mock"
		}
	}

	var primary transcribe.Provider
	switch mode {
	case "http":
		primary = transcribe.NewHTTPProvider(transcribe.HTTPConfig{
			APIKey:  cfg.TranscribeAPIKey,
			BaseURL: cfg.TranscribeBaseURL,
			Model:   cfg.TranscribeModel,
			Timeout: cfg.TranscribeTimeout,
		})
	case "mock":
		primary = transcribe.NewMockProvider()
	default:
		return nil, "", fmt.Errorf("unknown transcribe mode %q", mode)
	}

	if cfg.TranscribeFallback == "mock" && mode != "mock" {
		return transcribe.NewFailover(primary, transcribe.NewMockProvider()), mode + "+mock", nil
	}
	return primary, mode, nil
}

func resolveAssessor(ctx context.Context, cfg config.Config, logger *zap.Logger) (interview.Assessor, error) {
	mode := cfg.EvalMode
	if mode == "auto" {
		if cfg.GeminiAPIKey != "" {
			mode = "gemini"
		} else {
			mode = "heuristic"
		}
	}

	switch mode {
	case "heuristic":
		return evaluation.NewHeuristic(cfg.ShortAnswerWords), nil
	case "gemini":
		assessor, err := evaluation.NewGemini(ctx, cfg.GeminiAPIKey, cfg.EvalModel, logger.Named("gemini"))
		if err != nil {
			return nil, fmt.Errorf("gemini assessor init failed: %w", err)
		}
		return assessor, nil
	default:
		return nil, fmt.Errorf("unknown eval mode %q", mode)
	}
}
