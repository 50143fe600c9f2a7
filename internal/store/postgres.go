package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/antoniostano/vera/internal/interview"
)

// Postgres persists sessions normalized: a sessions parent row plus one
// session_turns row per turn, written in a single transaction.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initSessionSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{pool: pool}, nil
}

func initSessionSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id      TEXT PRIMARY KEY,
			role_id         TEXT NOT NULL,
			role_title      TEXT NOT NULL DEFAULT '',
			role_department TEXT NOT NULL DEFAULT '',
			status          TEXT NOT NULL,
			incomplete      BOOLEAN NOT NULL DEFAULT FALSE,
			evaluation      JSONB NULL,
			created_at      TIMESTAMPTZ NOT NULL,
			updated_at      TIMESTAMPTZ NOT NULL,
			completed_at    TIMESTAMPTZ NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions (created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS session_turns (
			session_id  TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
			idx         INTEGER NOT NULL,
			question    TEXT NOT NULL,
			kind        TEXT NOT NULL,
			trigger_ref TEXT NOT NULL DEFAULT '',
			answer      TEXT NOT NULL DEFAULT '',
			asked_at    TIMESTAMPTZ NOT NULL,
			answered_at TIMESTAMPTZ NULL,
			PRIMARY KEY (session_id, idx)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init session schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *Postgres) Save(ctx context.Context, sess *interview.Session) error {
	var evaluation any
	if sess.Evaluation != nil {
		raw, err := json.Marshal(sess.Evaluation)
		if err != nil {
			return fmt.Errorf("encode evaluation: %w", err)
		}
		evaluation = raw
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO sessions (
			session_id, role_id, role_title, role_department, status, incomplete,
			evaluation, created_at, updated_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (session_id) DO UPDATE SET
			role_id=EXCLUDED.role_id,
			role_title=EXCLUDED.role_title,
			role_department=EXCLUDED.role_department,
			status=EXCLUDED.status,
			incomplete=EXCLUDED.incomplete,
			evaluation=EXCLUDED.evaluation,
			updated_at=EXCLUDED.updated_at,
			completed_at=EXCLUDED.completed_at`,
		sess.ID,
		sess.RoleID,
		sess.RoleTitle,
		sess.RoleDepartment,
		string(sess.Status),
		sess.Incomplete,
		evaluation,
		sess.CreatedAt,
		sess.UpdatedAt,
		sess.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM session_turns WHERE session_id=$1`, sess.ID); err != nil {
		return fmt.Errorf("delete prior turns: %w", err)
	}
	for _, t := range sess.Turns {
		_, err := tx.Exec(ctx,
			`INSERT INTO session_turns (
				session_id, idx, question, kind, trigger_ref, answer, asked_at, answered_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			sess.ID, t.Index, t.Question, string(t.Kind), t.TriggerRef, t.Answer, t.AskedAt, t.AnsweredAt,
		)
		if err != nil {
			return fmt.Errorf("insert turn %d: %w", t.Index, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Postgres) Load(ctx context.Context, sessionID string) (*interview.Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT session_id, role_id, role_title, role_department, status, incomplete,
		        evaluation, created_at, updated_at, completed_at
		   FROM sessions WHERE session_id=$1`, sessionID)
	sess, err := scanPGSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", interview.ErrStoreNotFound, sessionID)
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	sess.Turns, err = s.loadTurns(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Postgres) List(ctx context.Context) ([]*interview.Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT session_id, role_id, role_title, role_department, status, incomplete,
		        evaluation, created_at, updated_at, completed_at
		   FROM sessions ORDER BY created_at DESC, session_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*interview.Session
	for rows.Next() {
		sess, err := scanPGSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	for _, sess := range out {
		sess.Turns, err = s.loadTurns(ctx, sess.ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Postgres) loadTurns(ctx context.Context, sessionID string) ([]interview.Turn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT idx, question, kind, trigger_ref, answer, asked_at, answered_at
		   FROM session_turns WHERE session_id=$1 ORDER BY idx ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	turns := make([]interview.Turn, 0, 8)
	for rows.Next() {
		var (
			t          interview.Turn
			kind       string
			answeredAt *time.Time
		)
		if err := rows.Scan(&t.Index, &t.Question, &kind, &t.TriggerRef, &t.Answer, &t.AskedAt, &answeredAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.Kind = interview.QuestionKind(kind)
		t.AnsweredAt = answeredAt
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn rows: %w", err)
	}
	return turns, nil
}

func scanPGSession(row pgx.Row) (*interview.Session, error) {
	var (
		sess          interview.Session
		status        string
		evaluationRaw []byte
		completedAt   *time.Time
	)
	if err := row.Scan(
		&sess.ID,
		&sess.RoleID,
		&sess.RoleTitle,
		&sess.RoleDepartment,
		&status,
		&sess.Incomplete,
		&evaluationRaw,
		&sess.CreatedAt,
		&sess.UpdatedAt,
		&completedAt,
	); err != nil {
		return nil, err
	}
	sess.Status = interview.Status(status)
	sess.CompletedAt = completedAt
	if len(evaluationRaw) > 0 {
		var eval interview.Evaluation
		if err := json.Unmarshal(evaluationRaw, &eval); err != nil {
			return nil, fmt.Errorf("decode evaluation: %w", err)
		}
		sess.Evaluation = &eval
	}
	return &sess, nil
}

func (s *Postgres) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}
