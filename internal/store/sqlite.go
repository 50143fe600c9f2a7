package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/antoniostano/vera/internal/interview"
)

// SQLite persists sessions in a single-file database, the default durable
// store when no Postgres DSN is configured.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single writer keeps upserts serialized; sqlite locks the whole file
	// anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS sessions (
		session_id      TEXT PRIMARY KEY,
		role_id         TEXT NOT NULL,
		role_title      TEXT NOT NULL DEFAULT '',
		role_department TEXT NOT NULL DEFAULT '',
		status          TEXT NOT NULL,
		incomplete      INTEGER NOT NULL DEFAULT 0,
		turns           TEXT NOT NULL,
		evaluation      TEXT NULL,
		created_at      TIMESTAMP NOT NULL,
		updated_at      TIMESTAMP NOT NULL,
		completed_at    TIMESTAMP NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Save(ctx context.Context, sess *interview.Session) error {
	turns, err := json.Marshal(sess.Turns)
	if err != nil {
		return fmt.Errorf("encode turns: %w", err)
	}
	var evaluation any
	if sess.Evaluation != nil {
		raw, err := json.Marshal(sess.Evaluation)
		if err != nil {
			return fmt.Errorf("encode evaluation: %w", err)
		}
		evaluation = string(raw)
	}

	// created_at is preserved on conflict so re-saves keep the original
	// insertion time.
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (
			session_id, role_id, role_title, role_department, status, incomplete,
			turns, evaluation, created_at, updated_at, completed_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(session_id) DO UPDATE SET
			role_id=excluded.role_id,
			role_title=excluded.role_title,
			role_department=excluded.role_department,
			status=excluded.status,
			incomplete=excluded.incomplete,
			turns=excluded.turns,
			evaluation=excluded.evaluation,
			updated_at=excluded.updated_at,
			completed_at=excluded.completed_at`,
		sess.ID,
		sess.RoleID,
		sess.RoleTitle,
		sess.RoleDepartment,
		string(sess.Status),
		sess.Incomplete,
		string(turns),
		evaluation,
		sess.CreatedAt,
		sess.UpdatedAt,
		sess.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (s *SQLite) Load(ctx context.Context, sessionID string) (*interview.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, role_id, role_title, role_department, status, incomplete,
		        turns, evaluation, created_at, updated_at, completed_at
		   FROM sessions WHERE session_id=?`, sessionID)
	sess, err := scanSessionRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", interview.ErrStoreNotFound, sessionID)
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return sess, nil
}

func (s *SQLite) List(ctx context.Context) ([]*interview.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, role_id, role_title, role_department, status, incomplete,
		        turns, evaluation, created_at, updated_at, completed_at
		   FROM sessions ORDER BY created_at DESC, session_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*interview.Session
	for rows.Next() {
		sess, err := scanSessionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	return out, nil
}

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSessionRow(row rowScanner) (*interview.Session, error) {
	var (
		sess          interview.Session
		status        string
		turnsRaw      string
		evaluationRaw sql.NullString
		completedAt   sql.NullTime
	)
	if err := row.Scan(
		&sess.ID,
		&sess.RoleID,
		&sess.RoleTitle,
		&sess.RoleDepartment,
		&status,
		&sess.Incomplete,
		&turnsRaw,
		&evaluationRaw,
		&sess.CreatedAt,
		&sess.UpdatedAt,
		&completedAt,
	); err != nil {
		return nil, err
	}
	sess.Status = interview.Status(status)
	if err := json.Unmarshal([]byte(turnsRaw), &sess.Turns); err != nil {
		return nil, fmt.Errorf("decode turns: %w", err)
	}
	if evaluationRaw.Valid && evaluationRaw.String != "" {
		var eval interview.Evaluation
		if err := json.Unmarshal([]byte(evaluationRaw.String), &eval); err != nil {
			return nil, fmt.Errorf("decode evaluation: %w", err)
		}
		sess.Evaluation = &eval
	}
	if completedAt.Valid {
		at := completedAt.Time.UTC()
		sess.CompletedAt = &at
	}
	sess.CreatedAt = sess.CreatedAt.UTC()
	sess.UpdatedAt = sess.UpdatedAt.UTC()
	return &sess, nil
}
