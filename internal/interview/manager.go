package interview

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/antoniostano/vera/internal/catalog"
	"github.com/antoniostano/vera/internal/logging"
	"github.com/antoniostano/vera/internal/observability"
)

// Assessor produces the post-interview evaluation from a finalized
// transcript. It only reads; it never mutates the session.
type Assessor interface {
	Assess(ctx context.Context, role catalog.Role, turns []Turn) (*Evaluation, error)
	Name() string
}

type StartResult struct {
	SessionID      string       `json:"session_id"`
	Question       string       `json:"question"`
	QuestionNumber int          `json:"question_number"`
	Kind           QuestionKind `json:"question_kind"`
}

type AnswerResult struct {
	Question          string       `json:"question,omitempty"`
	QuestionNumber    int          `json:"question_number,omitempty"`
	Kind              QuestionKind `json:"question_kind,omitempty"`
	InterviewComplete bool         `json:"interview_complete"`
}

type EndResult struct {
	Session    *Session
	Evaluation *Evaluation
}

type ManagerConfig struct {
	Policy       Policy
	EvalTimeout  time.Duration
	AbandonAfter time.Duration
}

// Manager owns session mutation. It keeps a write-through in-memory map over
// the store: every mutation is applied to a clone, persisted, and only then
// swapped in, so a store failure leaves both views at the previous committed
// state. A per-session mutex serializes mutations against the same id.
type Manager struct {
	cfg      ManagerConfig
	catalog  catalog.Catalog
	store    Store
	engine   *Engine
	assessor Assessor
	log      *zap.Logger
	metrics  *observability.Metrics

	mu       sync.RWMutex
	sessions map[string]*Session
	locks    map[string]*sync.Mutex
}

func NewManager(cfg ManagerConfig, cat catalog.Catalog, store Store, assessor Assessor, logger *zap.Logger, metrics *observability.Metrics) *Manager {
	if cfg.EvalTimeout <= 0 {
		cfg.EvalTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:      cfg,
		catalog:  cat,
		store:    store,
		engine:   NewEngine(cfg.Policy),
		assessor: assessor,
		log:      logger,
		metrics:  metrics,
		sessions: make(map[string]*Session),
		locks:    make(map[string]*sync.Mutex),
	}
}

// Start creates a session for roleID and asks the engine for question #1.
func (m *Manager) Start(ctx context.Context, roleID string) (*StartResult, error) {
	role, err := m.catalog.Resolve(roleID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	s := &Session{
		ID:             uuid.NewString(),
		RoleID:         role.ID,
		RoleTitle:      role.Title,
		RoleDepartment: role.Department,
		Status:         StatusInProgress,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	decision := m.engine.Next(role, nil, 1)
	if decision.Kind != DecisionInitial {
		return nil, fmt.Errorf("engine produced %s for turn 1 of role %s", decision.Kind, role.ID)
	}
	s.Turns = append(s.Turns, Turn{
		Index:    1,
		Question: decision.Text,
		Kind:     KindInitial,
		AskedAt:  now,
	})

	if err := m.persist(ctx, s); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.InterviewsStarted.Inc()
		m.metrics.Questions.WithLabelValues(string(KindInitial)).Inc()
		m.metrics.ActiveSessions.Inc()
	}
	m.log.Info("interview started",
		zap.String("session_id", s.ID),
		zap.String("role_id", role.ID),
	)

	return &StartResult{
		SessionID:      s.ID,
		Question:       decision.Text,
		QuestionNumber: 1,
		Kind:           KindInitial,
	}, nil
}

// SubmitAnswer records the answer on the open turn and returns the next
// question, or signals completion when the turn cap is reached.
func (m *Manager) SubmitAnswer(ctx context.Context, sessionID, answer string) (*AnswerResult, error) {
	lock := m.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	s, err := m.locate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Status != StatusInProgress {
		return nil, fmt.Errorf("%w: session %s is %s", ErrInvalidState, sessionID, s.Status)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, fmt.Errorf("%w: session %s", ErrEmptyAnswer, sessionID)
	}

	role, err := m.roleFor(s)
	if err != nil {
		return nil, err
	}

	c := s.Clone()
	open := c.openTurn()
	if open == nil {
		return nil, fmt.Errorf("%w: session %s has no open question", ErrInvalidState, sessionID)
	}
	now := time.Now().UTC()
	open.Answer = answer
	open.AnsweredAt = &now
	c.UpdatedAt = now

	decision := m.engine.Next(role, c.Turns, len(c.Turns)+1)
	result := &AnswerResult{}
	switch decision.Kind {
	case DecisionInitial, DecisionFollowup:
		kind := KindInitial
		if decision.Kind == DecisionFollowup {
			kind = KindFollowup
		}
		c.Turns = append(c.Turns, Turn{
			Index:      len(c.Turns) + 1,
			Question:   decision.Text,
			Kind:       kind,
			TriggerRef: decision.TriggerRef,
			AskedAt:    now,
		})
		result.Question = decision.Text
		result.QuestionNumber = len(c.Turns)
		result.Kind = kind
	case DecisionNoMore:
		c.Status = StatusCompleted
		c.CompletedAt = &now
		c.Incomplete = !c.meetsCriteria(m.cfg.Policy)
		result.InterviewComplete = true
	default:
		return nil, fmt.Errorf("unhandled engine decision %q for session %s", decision.Kind, sessionID)
	}

	if err := m.persist(ctx, c); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sessions[sessionID] = c
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.Answers.Inc()
		if result.InterviewComplete {
			m.metrics.InterviewsCompleted.WithLabelValues("cap").Inc()
			m.metrics.ActiveSessions.Dec()
		} else {
			m.metrics.Questions.WithLabelValues(string(result.Kind)).Inc()
		}
	}
	m.log.Debug("answer recorded",
		zap.String("session_id", sessionID),
		zap.Int("turn", open.Index),
		zap.String("answer_preview", logging.Preview(answer, 80)),
		zap.Bool("complete", result.InterviewComplete),
	)
	return result, nil
}

// End finalizes the session and generates its evaluation. Valid exactly once:
// on an in-progress session (early end, marked incomplete) or on a
// cap-completed session not yet evaluated. A second End fails ErrInvalidState.
func (m *Manager) End(ctx context.Context, sessionID string) (*EndResult, error) {
	return m.end(ctx, sessionID, "ended")
}

func (m *Manager) end(ctx context.Context, sessionID, reason string) (*EndResult, error) {
	lock := m.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	s, err := m.locate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Status == StatusNotStarted {
		return nil, fmt.Errorf("%w: session %s is %s", ErrInvalidState, sessionID, s.Status)
	}
	if s.Evaluation != nil {
		return nil, fmt.Errorf("%w: session %s already evaluated", ErrInvalidState, sessionID)
	}

	role, err := m.roleFor(s)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	c := s.Clone()
	endedEarly := c.Status == StatusInProgress
	if endedEarly {
		c.Status = StatusCompleted
		c.CompletedAt = &now
		c.Incomplete = !c.meetsCriteria(m.cfg.Policy)
	}
	c.UpdatedAt = now

	evalCtx, cancel := context.WithTimeout(ctx, m.cfg.EvalTimeout)
	defer cancel()
	eval, err := m.assessor.Assess(evalCtx, role, c.Turns)
	if err != nil {
		if m.metrics != nil {
			m.metrics.Evaluations.WithLabelValues(m.assessor.Name(), "error").Inc()
		}
		// The session stays un-ended so the caller can retry End.
		return nil, fmt.Errorf("evaluate session %s: %w", sessionID, err)
	}
	eval.SessionID = sessionID
	eval.CreatedAt = now
	if eval.Provider == "" {
		eval.Provider = m.assessor.Name()
	}
	c.Evaluation = eval

	if err := m.persist(ctx, c); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sessions[sessionID] = c
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.Evaluations.WithLabelValues(eval.Provider, "ok").Inc()
		if endedEarly {
			if c.Incomplete && reason == "ended" {
				reason = "ended_early"
			}
			m.metrics.InterviewsCompleted.WithLabelValues(reason).Inc()
			m.metrics.ActiveSessions.Dec()
		}
	}
	m.log.Info("interview ended",
		zap.String("session_id", sessionID),
		zap.String("reason", reason),
		zap.Bool("incomplete", c.Incomplete),
		zap.Float64("score", eval.Score),
	)
	return &EndResult{Session: c.Clone(), Evaluation: eval.Clone()}, nil
}

// Get returns a clone of the session.
func (m *Manager) Get(ctx context.Context, sessionID string) (*Session, error) {
	lock := m.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()
	s, err := m.locate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

// List returns clones of all known sessions, newest first.
func (m *Manager) List(ctx context.Context) ([]*Session, error) {
	persisted, err := m.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	m.mu.RLock()
	merged := make(map[string]*Session, len(persisted)+len(m.sessions))
	for _, s := range persisted {
		merged[s.ID] = s
	}
	for id, s := range m.sessions {
		merged[id] = s.Clone()
	}
	m.mu.RUnlock()

	out := make([]*Session, 0, len(merged))
	for _, s := range merged {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// EvaluationFor returns the evaluation once End has produced it.
func (m *Manager) EvaluationFor(ctx context.Context, sessionID string) (*Evaluation, error) {
	s, err := m.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Evaluation == nil {
		return nil, fmt.Errorf("%w: session %s", ErrNoEvaluation, sessionID)
	}
	return s.Evaluation, nil
}

// StartJanitor ends sessions idle longer than the configured abandon cutoff.
// No-op when the cutoff is zero.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if m.cfg.AbandonAfter <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweepAbandoned(ctx)
			}
		}
	}()
}

func (m *Manager) sweepAbandoned(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-m.cfg.AbandonAfter)

	m.mu.RLock()
	var stale []string
	for id, s := range m.sessions {
		if s.Status == StatusInProgress && s.UpdatedAt.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range stale {
		sweepCtx, cancel := context.WithTimeout(ctx, m.cfg.EvalTimeout)
		if _, err := m.end(sweepCtx, id, "abandoned"); err != nil && !errors.Is(err, ErrInvalidState) {
			m.log.Warn("abandon sweep failed", zap.String("session_id", id), zap.Error(err))
		}
		cancel()
	}
}

// locate returns the live session from memory, hydrating from the store on a
// miss so a restarted process can keep serving persisted sessions.
func (m *Manager) locate(ctx context.Context, sessionID string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if ok {
		return s, nil
	}

	persisted, err := m.store.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrStoreNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cached, ok := m.sessions[sessionID]; ok {
		return cached, nil
	}
	m.sessions[sessionID] = persisted
	return persisted, nil
}

func (m *Manager) roleFor(s *Session) (catalog.Role, error) {
	role, err := m.catalog.Resolve(s.RoleID)
	if err != nil {
		if errors.Is(err, catalog.ErrRoleNotFound) {
			return catalog.Role{}, fmt.Errorf("%w: role %s for session %s", ErrRoleGone, s.RoleID, s.ID)
		}
		return catalog.Role{}, err
	}
	return role, nil
}

func (m *Manager) persist(ctx context.Context, s *Session) error {
	err := m.store.Save(ctx, s.Clone())
	if m.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		m.metrics.StoreWrites.WithLabelValues(outcome).Inc()
	}
	if err != nil {
		return fmt.Errorf("persist session %s: %w", s.ID, err)
	}
	return nil
}

func (m *Manager) sessionLock(sessionID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[sessionID] = l
	}
	return l
}
