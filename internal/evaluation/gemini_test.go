package evaluation

import (
	"context"
	"errors"
	"testing"
)

func TestParseEvaluationPlainJSON(t *testing.T) {
	raw := `{"strengths":["clear ownership"],"concerns":["thin on databases"],"overall_score":72}`
	eval, err := parseEvaluation(raw)
	if err != nil {
		t.Fatalf("parseEvaluation() error = %v", err)
	}
	if len(eval.Strengths) != 1 || eval.Strengths[0] != "clear ownership" {
		t.Fatalf("strengths = %v", eval.Strengths)
	}
	if eval.Score != 72 {
		t.Fatalf("score = %v, want 72", eval.Score)
	}
}

func TestParseEvaluationFencedJSON(t *testing.T) {
	raw := "```json\n{\"strengths\": [\"specifics\"], \"concerns\": [], \"overall_score\": \"64\"}\n```"
	eval, err := parseEvaluation(raw)
	if err != nil {
		t.Fatalf("parseEvaluation() error = %v", err)
	}
	if eval.Score != 64 {
		t.Fatalf("score = %v, want 64 coerced from string", eval.Score)
	}
}

func TestParseEvaluationClampsScore(t *testing.T) {
	eval, err := parseEvaluation(`{"strengths":["x"],"concerns":["y"],"overall_score":140}`)
	if err != nil {
		t.Fatalf("parseEvaluation() error = %v", err)
	}
	if eval.Score != 100 {
		t.Fatalf("score = %v, want clamped 100", eval.Score)
	}
}

func TestParseEvaluationCoercesScalarLists(t *testing.T) {
	eval, err := parseEvaluation(`{"strengths":"just one string","concerns":[],"overall_score":55}`)
	if err != nil {
		t.Fatalf("parseEvaluation() error = %v", err)
	}
	if len(eval.Strengths) != 1 {
		t.Fatalf("strengths = %v, want single coerced entry", eval.Strengths)
	}
}

func TestParseEvaluationRejectsEmptyAssessment(t *testing.T) {
	if _, err := parseEvaluation(`{"strengths":[],"concerns":[],"overall_score":50}`); err == nil {
		t.Fatalf("parseEvaluation() accepted an assessment with no content")
	}
}

func TestParseEvaluationRejectsNonJSON(t *testing.T) {
	if _, err := parseEvaluation("the candidate seemed nice"); err == nil {
		t.Fatalf("parseEvaluation() accepted prose")
	}
}

func TestClassifyTransient(t *testing.T) {
	cases := []error{
		context.DeadlineExceeded,
		errors.New("model is overloaded, please try again later"),
	}
	for _, in := range cases {
		var pe *ProviderError
		if err := classify(in); !errors.As(err, &pe) || !pe.Transient {
			t.Fatalf("classify(%v) = %v, want transient", in, err)
		}
	}
}

func TestClassifyFatal(t *testing.T) {
	var pe *ProviderError
	err := classify(errors.New("invalid api key"))
	if !errors.As(err, &pe) || pe.Transient {
		t.Fatalf("classify() = %v, want fatal", err)
	}
}
