package interview

import (
	"context"
	"errors"
)

var ErrStoreNotFound = errors.New("session not found in store")

// Store is the durability contract for sessions. Every committed mutation is
// written through before it is acknowledged to the caller.
type Store interface {
	Save(ctx context.Context, s *Session) error
	Load(ctx context.Context, sessionID string) (*Session, error)
	List(ctx context.Context) ([]*Session, error)
	Ping(ctx context.Context) error
	Close() error
}
