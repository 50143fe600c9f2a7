package transcribe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/antoniostano/vera/internal/observability"
	"github.com/antoniostano/vera/internal/reliability"
)

// State is the controller's observable lifecycle: idle -> processing ->
// retrying -> processing -> ... -> submitting on success, or error when a
// fatal failure occurs or the retry budget runs out.
type State string

const (
	StateIdle       State = "idle"
	StateProcessing State = "processing"
	StateRetrying   State = "retrying"
	StateSubmitting State = "submitting"
	StateError      State = "error"
)

// Transition is delivered to the observer on every state change so a caller
// can render progress.
type Transition struct {
	State   State
	Attempt int
	RetryIn time.Duration
	Err     error
}

type Observer func(Transition)

type ControllerConfig struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// Controller wraps a provider call with bounded exponential-backoff retry for
// transient failures only. Backoff sleeps abort promptly on context
// cancellation.
type Controller struct {
	cfg      ControllerConfig
	provider Provider
	log      *zap.Logger
	metrics  *observability.Metrics
}

func NewController(cfg ControllerConfig, provider Provider, logger *zap.Logger, metrics *observability.Metrics) *Controller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 4
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffCap < cfg.BackoffBase {
		cfg.BackoffCap = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{cfg: cfg, provider: provider, log: logger, metrics: metrics}
}

type Result struct {
	Text     string
	Attempts int
}

// Transcribe runs the call with retries. obs may be nil.
func (c *Controller) Transcribe(ctx context.Context, req Request, obs Observer) (Result, error) {
	emit := func(t Transition) {
		if obs != nil {
			obs(t)
		}
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		emit(Transition{State: StateProcessing, Attempt: attempt})

		start := time.Now()
		text, err := c.provider.Transcribe(ctx, req)
		elapsed := time.Since(start)

		if err == nil {
			c.observe("ok", elapsed)
			emit(Transition{State: StateSubmitting, Attempt: attempt})
			return Result{Text: text, Attempts: attempt}, nil
		}

		if ctx.Err() != nil {
			c.observe("cancelled", elapsed)
			emit(Transition{State: StateError, Attempt: attempt, Err: ctx.Err()})
			return Result{Attempts: attempt}, ctx.Err()
		}

		var pe *ProviderError
		retryable := errors.As(err, &pe) && pe.Kind == KindTransient
		if !retryable {
			c.observe("fatal", elapsed)
			c.log.Warn("transcription failed",
				zap.String("provider", c.provider.Name()),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			emit(Transition{State: StateError, Attempt: attempt, Err: err})
			if c.metrics != nil {
				c.metrics.Transcriptions.WithLabelValues("fatal").Inc()
			}
			return Result{Attempts: attempt}, err
		}

		c.observe("transient", elapsed)
		lastErr = err
		if attempt >= c.cfg.MaxAttempts {
			err := fmt.Errorf("%w after %d attempts: %v", ErrUnavailable, attempt, lastErr)
			emit(Transition{State: StateError, Attempt: attempt, Err: err})
			if c.metrics != nil {
				c.metrics.Transcriptions.WithLabelValues("unavailable").Inc()
			}
			return Result{Attempts: attempt}, err
		}

		delay := reliability.ExponentialBackoff(attempt-1, c.cfg.BackoffBase, c.cfg.BackoffCap)
		c.log.Debug("transcription attempt failed, retrying",
			zap.String("provider", c.provider.Name()),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(err),
		)
		emit(Transition{State: StateRetrying, Attempt: attempt, RetryIn: delay, Err: err})
		if err := reliability.Wait(ctx, delay); err != nil {
			emit(Transition{State: StateError, Attempt: attempt, Err: err})
			return Result{Attempts: attempt}, err
		}
	}
}

func (c *Controller) observe(outcome string, d time.Duration) {
	if c.metrics != nil {
		c.metrics.ObserveAttempt(outcome, d)
		if outcome == "ok" {
			c.metrics.Transcriptions.WithLabelValues("ok").Inc()
		}
	}
}
