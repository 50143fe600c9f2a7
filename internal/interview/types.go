package interview

import (
	"errors"
	"time"
)

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

type QuestionKind string

const (
	KindInitial  QuestionKind = "initial"
	KindFollowup QuestionKind = "followup"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidState    = errors.New("invalid session state")
	ErrEmptyAnswer     = errors.New("answer must not be empty")
	ErrNoEvaluation    = errors.New("evaluation not generated yet")
	ErrRoleGone        = errors.New("role no longer in catalog")
)

// Turn is one question/answer exchange. Turns are append-only and immutable
// once the answer is recorded.
type Turn struct {
	Index      int          `json:"index"`
	Question   string       `json:"question"`
	Kind       QuestionKind `json:"kind"`
	TriggerRef string       `json:"trigger_ref,omitempty"`
	Answer     string       `json:"answer,omitempty"`
	AskedAt    time.Time    `json:"asked_at"`
	AnsweredAt *time.Time   `json:"answered_at,omitempty"`
}

// Evaluation is the structured post-interview assessment, produced exactly
// once per session by a successful End.
type Evaluation struct {
	SessionID string    `json:"session_id"`
	Strengths []string  `json:"strengths"`
	Concerns  []string  `json:"concerns"`
	Score     float64   `json:"overall_score"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`
}

func (e *Evaluation) Clone() *Evaluation {
	if e == nil {
		return nil
	}
	c := *e
	c.Strengths = append([]string(nil), e.Strengths...)
	c.Concerns = append([]string(nil), e.Concerns...)
	return &c
}

// Session is the aggregate root for one interview. The Manager exclusively
// owns mutation; everything handed out is a clone.
type Session struct {
	ID             string     `json:"session_id"`
	RoleID         string     `json:"role_id"`
	RoleTitle      string     `json:"role_title"`
	RoleDepartment string     `json:"role_department"`
	Status         Status     `json:"status"`
	Turns          []Turn     `json:"turns"`
	// Incomplete marks sessions ended before the completion criteria were
	// met, so transcripts and evaluations are never presented as a full
	// interview when they are not.
	Incomplete  bool        `json:"incomplete"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Evaluation  *Evaluation `json:"evaluation,omitempty"`
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Turns = make([]Turn, len(s.Turns))
	copy(c.Turns, s.Turns)
	for i := range c.Turns {
		if s.Turns[i].AnsweredAt != nil {
			at := *s.Turns[i].AnsweredAt
			c.Turns[i].AnsweredAt = &at
		}
	}
	if s.CompletedAt != nil {
		at := *s.CompletedAt
		c.CompletedAt = &at
	}
	c.Evaluation = s.Evaluation.Clone()
	return &c
}

// FollowupCount counts follow-up turns, answered or not.
func (s *Session) FollowupCount() int {
	n := 0
	for _, t := range s.Turns {
		if t.Kind == KindFollowup {
			n++
		}
	}
	return n
}

// AnsweredCount counts turns with a recorded answer.
func (s *Session) AnsweredCount() int {
	n := 0
	for _, t := range s.Turns {
		if t.AnsweredAt != nil {
			n++
		}
	}
	return n
}

// openTurn returns the last turn when it still awaits an answer.
func (s *Session) openTurn() *Turn {
	if len(s.Turns) == 0 {
		return nil
	}
	last := &s.Turns[len(s.Turns)-1]
	if last.AnsweredAt != nil {
		return nil
	}
	return last
}

func (s *Session) meetsCriteria(p Policy) bool {
	return len(s.Turns) >= p.MinTurns && s.FollowupCount() >= p.MinFollowups
}
