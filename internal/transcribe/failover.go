package transcribe

import (
	"context"
	"fmt"
	"sync/atomic"
)

// NewFailover builds a provider that prefers primary and switches to fallback
// when primary fails. Once fallback succeeds it stays active until fallback
// fails; then primary is retried.
func NewFailover(primary, fallback Provider) Provider {
	return &failoverProvider{primary: primary, fallback: fallback}
}

type failoverProvider struct {
	fallbackActive atomic.Bool
	primary        Provider
	fallback       Provider
}

func (p *failoverProvider) Name() string {
	if p.fallbackActive.Load() {
		return p.fallback.Name() + "(fallback)"
	}
	return p.primary.Name()
}

func (p *failoverProvider) Transcribe(ctx context.Context, req Request) (string, error) {
	if p.fallbackActive.Load() {
		text, fbErr := p.fallback.Transcribe(ctx, req)
		if fbErr == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		// Fallback failed after being active; try primary again.
		text, prErr := p.primary.Transcribe(ctx, req)
		if prErr == nil {
			p.fallbackActive.Store(false)
			return text, nil
		}
		return "", fmt.Errorf("transcribe fallback failed: %v; primary failed: %w", fbErr, prErr)
	}

	text, prErr := p.primary.Transcribe(ctx, req)
	if prErr == nil {
		return text, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	text, fbErr := p.fallback.Transcribe(ctx, req)
	if fbErr != nil {
		return "", fmt.Errorf("transcribe primary failed: %v; fallback failed: %w", prErr, fbErr)
	}
	p.fallbackActive.Store(true)
	return text, nil
}
