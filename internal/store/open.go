package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/antoniostano/vera/internal/interview"
)

// Open selects a store implementation by mode. "auto" prefers postgres when a
// DSN is set, then sqlite when a path is set, then memory. Returns the
// resolved mode alongside the store so startup can log it.
func Open(ctx context.Context, mode, databaseURL, sqlitePath string) (interview.Store, string, error) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	databaseURL = strings.TrimSpace(databaseURL)
	sqlitePath = strings.TrimSpace(sqlitePath)

	switch mode {
	case "postgres":
		s, err := NewPostgres(ctx, databaseURL)
		return s, "postgres", err
	case "sqlite":
		s, err := NewSQLite(ctx, sqlitePath)
		return s, "sqlite", err
	case "memory":
		return NewMemory(), "memory", nil
	case "", "auto":
		if databaseURL != "" {
			s, err := NewPostgres(ctx, databaseURL)
			return s, "postgres", err
		}
		if sqlitePath != "" {
			s, err := NewSQLite(ctx, sqlitePath)
			return s, "sqlite", err
		}
		return NewMemory(), "memory", nil
	default:
		return nil, "", fmt.Errorf("unknown store mode %q", mode)
	}
}
