package evaluation

import (
	"context"
	"fmt"
	"strings"

	"github.com/antoniostano/vera/internal/catalog"
	"github.com/antoniostano/vera/internal/interview"
)

// Heuristic is the default assessor: a deterministic rubric over the
// transcript. Same transcript and role always produce the same evaluation,
// and it never fails.
type Heuristic struct {
	shortWords int
}

func NewHeuristic(shortAnswerWords int) *Heuristic {
	if shortAnswerWords <= 0 {
		shortAnswerWords = 12
	}
	return &Heuristic{shortWords: shortAnswerWords}
}

func (h *Heuristic) Name() string { return "heuristic" }

func (h *Heuristic) Assess(_ context.Context, role catalog.Role, turns []interview.Turn) (*interview.Evaluation, error) {
	score := 50.0
	var strengths, concerns []string

	answered := 0
	detailed := 0
	brief := 0
	var refs []string
	seen := map[string]bool{}
	for _, t := range turns {
		if t.AnsweredAt == nil {
			continue
		}
		answered++
		words := interview.WordCount(t.Answer)
		switch {
		case words >= 2*h.shortWords:
			detailed++
		case words < h.shortWords:
			brief++
		}
		if ref, ok := interview.FirstClaim(t.Answer); ok && !seen[strings.ToLower(ref)] {
			seen[strings.ToLower(ref)] = true
			refs = append(refs, ref)
		}
	}

	if detailed > 0 && detailed*2 >= answered {
		strengths = append(strengths, "Answers were consistently detailed and substantive.")
		score += 10
	}
	if len(refs) > 0 {
		strengths = append(strengths, fmt.Sprintf("Backed claims with specifics: %s.", strings.Join(refs, ", ")))
		score += capAt(4*float64(len(refs)), 12)
	}

	covered, missing := requirementCoverage(role, turns)
	if len(covered) > 0 {
		strengths = append(strengths, fmt.Sprintf("Spoke to %d of %d listed requirements (%s).", len(covered), len(role.Requirements), strings.Join(covered, "; ")))
		score += capAt(3*float64(len(covered)), 12)
	}
	if len(missing) > 0 {
		concerns = append(concerns, fmt.Sprintf("Did not address: %s.", strings.Join(missing, "; ")))
		score -= capAt(3*float64(len(missing)), 12)
	}
	if brief > 0 {
		concerns = append(concerns, fmt.Sprintf("%d answer(s) were too brief to assess depth.", brief))
		score -= capAt(5*float64(brief), 15)
	}
	if unanswered := len(turns) - answered; unanswered > 0 {
		concerns = append(concerns, fmt.Sprintf("%d question(s) went unanswered.", unanswered))
		score -= capAt(5*float64(unanswered), 15)
	}

	if len(strengths) == 0 {
		if answered > 0 {
			strengths = append(strengths, "Engaged with every question asked.")
		} else {
			strengths = append(strengths, "Started the interview process.")
		}
	}
	if len(concerns) == 0 {
		concerns = append(concerns, "No significant concerns surfaced from the transcript.")
	}

	return &interview.Evaluation{
		Strengths: strengths,
		Concerns:  concerns,
		Score:     clampScore(score),
		Provider:  h.Name(),
	}, nil
}

// requirementCoverage checks which role requirements the candidate touched,
// by token overlap between the requirement and the answers.
func requirementCoverage(role catalog.Role, turns []interview.Turn) (covered, missing []string) {
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(strings.ToLower(t.Answer))
		b.WriteByte(' ')
	}
	transcript := b.String()

	for _, req := range role.Requirements {
		hit := false
		for _, word := range strings.Fields(strings.ToLower(req)) {
			word = strings.Trim(word, ".,;:()")
			if len(word) < 3 {
				continue
			}
			if strings.Contains(transcript, word) {
				hit = true
				break
			}
		}
		if hit {
			covered = append(covered, req)
		} else {
			missing = append(missing, req)
		}
	}
	return covered, missing
}

func capAt(v, cap float64) float64 {
	if v > cap {
		return cap
	}
	return v
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
