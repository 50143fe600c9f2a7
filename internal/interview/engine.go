package interview

import (
	"fmt"
	"strings"

	"github.com/antoniostano/vera/internal/catalog"
)

// Policy holds the interview tuning knobs. Defaults live in config; the
// engine and manager only ever see a validated policy.
type Policy struct {
	MaxTurns         int
	MinTurns         int
	MinFollowups     int
	MaxFollowups     int
	ShortAnswerWords int
}

type DecisionKind string

const (
	DecisionInitial  DecisionKind = "initial"
	DecisionFollowup DecisionKind = "followup"
	DecisionNoMore   DecisionKind = "no_more_questions"
)

// Decision is the engine's tagged result, consumed exhaustively by the
// manager: an initial question, a follow-up probing TriggerRef, or a signal
// that the turn cap is reached.
type Decision struct {
	Kind       DecisionKind
	Text       string
	TriggerRef string
}

// Engine selects the next question. It is a pure function of the role, the
// turn history, and the turn index: no randomness, no clock, no I/O.
type Engine struct {
	policy Policy
}

func NewEngine(policy Policy) *Engine {
	return &Engine{policy: policy}
}

// Next decides the question for turn index given the answered history in
// turns. Identical inputs always yield the identical decision.
func (e *Engine) Next(role catalog.Role, turns []Turn, index int) Decision {
	if index > e.policy.MaxTurns {
		return Decision{Kind: DecisionNoMore}
	}
	if index == 1 || len(turns) == 0 {
		return Decision{Kind: DecisionInitial, Text: e.initialText(role, 0)}
	}

	last := turns[len(turns)-1]
	followups := 0
	initials := 0
	for _, t := range turns {
		if t.Kind == KindFollowup {
			followups++
		} else {
			initials++
		}
	}

	ref, hasClaim := FirstClaim(last.Answer)
	short := WordCount(last.Answer) < e.policy.ShortAnswerWords

	// Force a follow-up when the remaining slots before the cap are no more
	// than the follow-ups still needed, so a cap-completed session always
	// satisfies the follow-up criterion.
	needed := e.policy.MinFollowups - followups
	remaining := e.policy.MaxTurns - index + 1
	forced := needed > 0 && remaining <= needed

	if followups < e.policy.MaxFollowups && (forced || hasClaim || short) {
		switch {
		case hasClaim:
			return Decision{
				Kind:       DecisionFollowup,
				TriggerRef: ref,
				Text:       fmt.Sprintf("You mentioned %q. Can you go deeper on that: what was your specific contribution, and what trade-offs did you run into?", ref),
			}
		case short:
			return Decision{
				Kind: DecisionFollowup,
				Text: "That was brief. Could you expand with a concrete example, including what you did and what the outcome was?",
			}
		default:
			return Decision{
				Kind: DecisionFollowup,
				Text: "I'd like to dig deeper into your last answer. What specifically was your part, and what would you do differently today?",
			}
		}
	}

	return Decision{Kind: DecisionInitial, Text: e.initialText(role, initials)}
}

// initialText returns the nth initial question for the role. The rotation is
// fixed: intro, behavioral, motivational, then one question per requirement,
// wrapping to a generic probe once exhausted.
func (e *Engine) initialText(role catalog.Role, nth int) string {
	dept := strings.TrimSpace(role.Department)
	if dept == "" {
		dept = "our team"
	}
	switch nth {
	case 0:
		return fmt.Sprintf("To start, tell me about your background and what drew you to the %s role in %s.", role.Title, dept)
	case 1:
		return "Walk me through a recent project you're proud of. What part of it did you own?"
	case 2:
		return fmt.Sprintf("What about working in %s motivates you, and what would a great first year in this role look like?", dept)
	}
	if i := nth - 3; i < len(role.Requirements) {
		return fmt.Sprintf("This role leans on %s. Tell me about your hands-on experience with that.", role.Requirements[i])
	}
	return "What else should we know about how you work that we haven't covered yet?"
}
