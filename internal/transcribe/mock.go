package transcribe

import (
	"context"
	"sync"
)

// MockProvider is the local fallback provider used when no upstream account
// is configured. Deterministic: the transcript depends only on the call
// sequence, and scripted failures (for tests and drills) are consumed first.
type MockProvider struct {
	mu     sync.Mutex
	calls  int
	script []error
	texts  []string
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		texts: []string{
			"I built a payment service in Go handling ten thousand requests per second.",
			"I usually start by writing down the failure modes before any code.",
			"My last team shipped weekly and I ran the release rotation.",
		},
	}
}

func (p *MockProvider) Name() string { return "mock" }

// Fail queues errors to be returned by the next calls, in order.
func (p *MockProvider) Fail(errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.script = append(p.script, errs...)
}

func (p *MockProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *MockProvider) Transcribe(_ context.Context, _ Request) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.script) > 0 {
		err := p.script[0]
		p.script = p.script[1:]
		if err != nil {
			return "", err
		}
	}
	return p.texts[(p.calls-1)%len(p.texts)], nil
}
