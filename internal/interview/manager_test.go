package interview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/antoniostano/vera/internal/catalog"
)

// stubStore is an in-memory Store with a switchable write failure, for
// exercising the write-through rollback path.
type stubStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	failSave bool
}

func newStubStore() *stubStore {
	return &stubStore{sessions: make(map[string]*Session)}
}

func (s *stubStore) Save(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave {
		return errors.New("disk on fire")
	}
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

func (s *stubStore) Load(_ context.Context, sessionID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStoreNotFound, sessionID)
	}
	return sess.Clone(), nil
}

func (s *stubStore) List(_ context.Context) ([]*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.Clone())
	}
	return out, nil
}

func (s *stubStore) Ping(context.Context) error { return nil }
func (s *stubStore) Close() error               { return nil }

// stubAssessor returns a canned evaluation, or an error when scripted to.
type stubAssessor struct {
	err   error
	calls int
}

func (a *stubAssessor) Assess(_ context.Context, _ catalog.Role, turns []Turn) (*Evaluation, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return &Evaluation{
		Strengths: []string{"clear communication"},
		Concerns:  []string{fmt.Sprintf("only %d turns reviewed", len(turns))},
		Score:     61,
	}, nil
}

func (a *stubAssessor) Name() string { return "stub" }

// mutableCatalog allows removing a role mid-session.
type mutableCatalog struct {
	mu    sync.Mutex
	inner catalog.Catalog
	gone  map[string]bool
}

func newMutableCatalog() *mutableCatalog {
	return &mutableCatalog{inner: catalog.Builtin(), gone: make(map[string]bool)}
}

func (c *mutableCatalog) Resolve(id string) (catalog.Role, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gone[id] {
		return catalog.Role{}, fmt.Errorf("%w: %s", catalog.ErrRoleNotFound, id)
	}
	return c.inner.Resolve(id)
}

func (c *mutableCatalog) List() []catalog.Role { return c.inner.List() }

func (c *mutableCatalog) remove(id string) {
	c.mu.Lock()
	c.gone[id] = true
	c.mu.Unlock()
}

func newTestManager(t *testing.T, store Store, assessor Assessor) *Manager {
	t.Helper()
	if store == nil {
		store = newStubStore()
	}
	if assessor == nil {
		assessor = &stubAssessor{}
	}
	return NewManager(ManagerConfig{
		Policy:      testPolicy(),
		EvalTimeout: 5 * time.Second,
	}, catalog.Builtin(), store, assessor, nil, nil)
}

func TestManagerFullInterviewToCap(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil, nil)

	started, err := m.Start(ctx, "job_1")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if started.QuestionNumber != 1 || started.Kind != KindInitial {
		t.Fatalf("unexpected first question: %+v", started)
	}

	answers := 0
	for {
		res, err := m.SubmitAnswer(ctx, started.SessionID, neutralAnswer)
		if err != nil {
			t.Fatalf("SubmitAnswer() #%d error = %v", answers+1, err)
		}
		answers++
		if res.InterviewComplete {
			break
		}
		if answers > 20 {
			t.Fatalf("interview never completed")
		}
	}
	if answers != testPolicy().MaxTurns {
		t.Fatalf("answers = %d, want %d", answers, testPolicy().MaxTurns)
	}

	sess, err := m.Get(ctx, started.SessionID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if sess.Status != StatusCompleted {
		t.Fatalf("status = %s, want %s", sess.Status, StatusCompleted)
	}
	if sess.Incomplete {
		t.Fatalf("cap-completed session marked incomplete (followups=%d)", sess.FollowupCount())
	}
	if got := sess.FollowupCount(); got < testPolicy().MinFollowups {
		t.Fatalf("followups = %d, want >= %d", got, testPolicy().MinFollowups)
	}
	if sess.CompletedAt == nil {
		t.Fatalf("CompletedAt not set")
	}
}

func TestManagerEndAfterCapProducesEvaluationOnce(t *testing.T) {
	ctx := context.Background()
	assessor := &stubAssessor{}
	m := newTestManager(t, nil, assessor)

	started, _ := m.Start(ctx, "job_1")
	for {
		res, err := m.SubmitAnswer(ctx, started.SessionID, neutralAnswer)
		if err != nil {
			t.Fatalf("SubmitAnswer() error = %v", err)
		}
		if res.InterviewComplete {
			break
		}
	}

	result, err := m.End(ctx, started.SessionID)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if result.Evaluation == nil || result.Evaluation.SessionID != started.SessionID {
		t.Fatalf("unexpected evaluation: %+v", result.Evaluation)
	}
	if result.Evaluation.Provider != "stub" {
		t.Fatalf("provider = %q, want %q", result.Evaluation.Provider, "stub")
	}

	if _, err := m.End(ctx, started.SessionID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second End() error = %v, want ErrInvalidState", err)
	}
	if assessor.calls != 1 {
		t.Fatalf("assessor called %d times, want 1", assessor.calls)
	}

	eval, err := m.EvaluationFor(ctx, started.SessionID)
	if err != nil {
		t.Fatalf("EvaluationFor() error = %v", err)
	}
	if eval.Score != 61 {
		t.Fatalf("score = %v, want 61", eval.Score)
	}
}

func TestManagerEarlyEndMarksIncomplete(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil, nil)

	started, _ := m.Start(ctx, "job_1")
	if _, err := m.SubmitAnswer(ctx, started.SessionID, neutralAnswer); err != nil {
		t.Fatalf("SubmitAnswer() error = %v", err)
	}

	result, err := m.End(ctx, started.SessionID)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if !result.Session.Incomplete {
		t.Fatalf("early-ended session not marked incomplete")
	}
	if result.Session.Status != StatusCompleted {
		t.Fatalf("status = %s, want %s", result.Session.Status, StatusCompleted)
	}

	if _, err := m.SubmitAnswer(ctx, started.SessionID, neutralAnswer); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("SubmitAnswer() after End error = %v, want ErrInvalidState", err)
	}
}

func TestManagerEvaluationFailureLeavesSessionOpen(t *testing.T) {
	ctx := context.Background()
	assessor := &stubAssessor{err: errors.New("model offline")}
	m := newTestManager(t, nil, assessor)

	started, _ := m.Start(ctx, "job_1")
	if _, err := m.End(ctx, started.SessionID); err == nil {
		t.Fatalf("End() succeeded despite assessor failure")
	}

	sess, err := m.Get(ctx, started.SessionID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if sess.Status != StatusInProgress || sess.Evaluation != nil {
		t.Fatalf("session mutated by failed End: status=%s eval=%v", sess.Status, sess.Evaluation)
	}

	// A retry after the provider recovers succeeds.
	assessor.err = nil
	if _, err := m.End(ctx, started.SessionID); err != nil {
		t.Fatalf("End() retry error = %v", err)
	}
}

func TestManagerRejectsBlankAnswer(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil, nil)
	started, _ := m.Start(ctx, "job_1")

	for _, blank := range []string{"", "   ", "\n\t"} {
		if _, err := m.SubmitAnswer(ctx, started.SessionID, blank); !errors.Is(err, ErrEmptyAnswer) {
			t.Fatalf("SubmitAnswer(%q) error = %v, want ErrEmptyAnswer", blank, err)
		}
	}

	sess, _ := m.Get(ctx, started.SessionID)
	if sess.AnsweredCount() != 0 {
		t.Fatalf("blank answers were recorded: %d", sess.AnsweredCount())
	}
}

func TestManagerUnknownSession(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil, nil)

	if _, err := m.Get(ctx, "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get() error = %v, want ErrSessionNotFound", err)
	}
	if _, err := m.SubmitAnswer(ctx, "nope", "hello"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("SubmitAnswer() error = %v, want ErrSessionNotFound", err)
	}
	if _, err := m.End(ctx, "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("End() error = %v, want ErrSessionNotFound", err)
	}
}

func TestManagerUnknownRole(t *testing.T) {
	m := newTestManager(t, nil, nil)
	if _, err := m.Start(context.Background(), "job_404"); !errors.Is(err, catalog.ErrRoleNotFound) {
		t.Fatalf("Start() error = %v, want ErrRoleNotFound", err)
	}
}

func TestManagerEndNotStartedSession(t *testing.T) {
	ctx := context.Background()
	store := newStubStore()
	m := newTestManager(t, store, nil)

	// Seed a persisted record that never left not_started.
	seeded := &Session{
		ID:        "seeded",
		RoleID:    "job_1",
		Status:    StatusNotStarted,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := store.Save(ctx, seeded); err != nil {
		t.Fatalf("seed Save() error = %v", err)
	}

	if _, err := m.End(ctx, "seeded"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("End() error = %v, want ErrInvalidState", err)
	}
}

func TestManagerStoreFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	store := newStubStore()
	m := newTestManager(t, store, nil)

	started, err := m.Start(ctx, "job_1")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	store.failSave = true
	if _, err := m.SubmitAnswer(ctx, started.SessionID, neutralAnswer); err == nil {
		t.Fatalf("SubmitAnswer() succeeded despite store failure")
	}

	store.failSave = false
	sess, err := m.Get(ctx, started.SessionID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if sess.AnsweredCount() != 0 || len(sess.Turns) != 1 {
		t.Fatalf("session mutated despite failed write: answered=%d turns=%d", sess.AnsweredCount(), len(sess.Turns))
	}

	// The same answer goes through once the store recovers.
	if _, err := m.SubmitAnswer(ctx, started.SessionID, neutralAnswer); err != nil {
		t.Fatalf("SubmitAnswer() retry error = %v", err)
	}
}

func TestManagerHydratesFromStoreAfterRestart(t *testing.T) {
	ctx := context.Background()
	store := newStubStore()

	first := newTestManager(t, store, nil)
	started, err := first.Start(ctx, "job_1")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := first.SubmitAnswer(ctx, started.SessionID, neutralAnswer); err != nil {
		t.Fatalf("SubmitAnswer() error = %v", err)
	}

	// A fresh manager over the same store stands in for a restarted process.
	second := newTestManager(t, store, nil)
	sess, err := second.Get(ctx, started.SessionID)
	if err != nil {
		t.Fatalf("Get() after restart error = %v", err)
	}
	if sess.AnsweredCount() != 1 || len(sess.Turns) != 2 {
		t.Fatalf("hydrated session lost state: answered=%d turns=%d", sess.AnsweredCount(), len(sess.Turns))
	}

	if _, err := second.SubmitAnswer(ctx, started.SessionID, neutralAnswer); err != nil {
		t.Fatalf("SubmitAnswer() after restart error = %v", err)
	}
}

func TestManagerRoleGoneMidSession(t *testing.T) {
	ctx := context.Background()
	cat := newMutableCatalog()
	m := NewManager(ManagerConfig{
		Policy:      testPolicy(),
		EvalTimeout: 5 * time.Second,
	}, cat, newStubStore(), &stubAssessor{}, nil, nil)

	started, err := m.Start(ctx, "job_1")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	cat.remove("job_1")
	if _, err := m.SubmitAnswer(ctx, started.SessionID, neutralAnswer); !errors.Is(err, ErrRoleGone) {
		t.Fatalf("SubmitAnswer() error = %v, want ErrRoleGone", err)
	}
	if _, err := m.End(ctx, started.SessionID); !errors.Is(err, ErrRoleGone) {
		t.Fatalf("End() error = %v, want ErrRoleGone", err)
	}
}

func TestManagerListNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil, nil)

	a, _ := m.Start(ctx, "job_1")
	time.Sleep(5 * time.Millisecond)
	b, _ := m.Start(ctx, "job_2")

	sessions, err := m.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("List() returned %d sessions, want 2", len(sessions))
	}
	if sessions[0].ID != b.SessionID || sessions[1].ID != a.SessionID {
		t.Fatalf("List() order = [%s %s], want newest first", sessions[0].ID, sessions[1].ID)
	}
}

func TestManagerEvaluationForBeforeEnd(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil, nil)
	started, _ := m.Start(ctx, "job_1")

	if _, err := m.EvaluationFor(ctx, started.SessionID); !errors.Is(err, ErrNoEvaluation) {
		t.Fatalf("EvaluationFor() error = %v, want ErrNoEvaluation", err)
	}
}

func TestManagerClonesOut(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil, nil)
	started, _ := m.Start(ctx, "job_1")

	sess, _ := m.Get(ctx, started.SessionID)
	sess.Turns[0].Question = "tampered"
	sess.Status = StatusCompleted

	again, _ := m.Get(ctx, started.SessionID)
	if again.Turns[0].Question == "tampered" || again.Status != StatusInProgress {
		t.Fatalf("Get() exposed internal state")
	}
}
