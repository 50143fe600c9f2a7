package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/antoniostano/vera/internal/interview"
)

// Memory is the in-process session store, used for tests and zero-config
// runs. Everything in and out is cloned so callers never share state with
// the store.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*interview.Session
}

func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]*interview.Session)}
}

func (m *Memory) Save(_ context.Context, s *interview.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *Memory) Load(_ context.Context, sessionID string) (*interview.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interview.ErrStoreNotFound, sessionID)
	}
	return s.Clone(), nil
}

func (m *Memory) List(_ context.Context) ([]*interview.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*interview.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) Ping(_ context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
