package interview

import (
	"regexp"
	"strings"
)

var (
	// Numbers carrying a unit or magnitude read as quantified claims worth
	// probing ("10k req/s", "40%", "3 years").
	quantifiedClaimRe = regexp.MustCompile(`(?i)\b\d+(?:[.,]\d+)?\s*(?:k|m|b)?\s*(?:%|percent|req/s|rps|qps|tps|ms|seconds?|minutes?|hours?|days?|weeks?|months?|years?|users?|customers?|requests?|records?|nodes?|servers?|services?|engineers?|people|x)\b`)

	wordRe = regexp.MustCompile(`[A-Za-z][A-Za-z0-9+#.]*`)
)

// techLexicon lists technology names a candidate is likely to drop in an
// answer. Matching is case-insensitive except for entries in ambiguousTech,
// which are also ordinary English words and only count when capitalized.
var techLexicon = map[string]bool{
	"go": true, "golang": true, "rust": true, "python": true, "java": true,
	"kotlin": true, "typescript": true, "javascript": true, "ruby": true,
	"scala": true, "elixir": true, "sql": true, "nosql": true,
	"postgres": true, "postgresql": true, "mysql": true, "sqlite": true,
	"mongodb": true, "redis": true, "kafka": true, "rabbitmq": true,
	"kubernetes": true, "docker": true, "terraform": true, "ansible": true,
	"aws": true, "gcp": true, "azure": true, "grpc": true, "graphql": true,
	"react": true, "vue": true, "django": true, "rails": true,
	"spark": true, "airflow": true, "grafana": true, "prometheus": true,
	"linux": true, "nginx": true, "git": true,
}

var ambiguousTech = map[string]bool{
	"go": true, "rust": true, "git": true,
}

// projectStoplist keeps common capitalized sentence words from being read as
// product or project names.
var projectStoplist = map[string]bool{
	"i": true, "the": true, "a": true, "an": true, "my": true, "our": true,
	"we": true, "it": true, "this": true, "that": true, "then": true,
	"and": true, "but": true, "also": true, "when": true, "after": true,
	"before": true, "because": true, "during": true, "first": true,
	"last": true, "most": true, "english": true, "monday": true,
	"tuesday": true, "wednesday": true, "thursday": true, "friday": true,
	"january": true, "february": true, "march": true, "april": true,
	"may": true, "june": true, "july": true, "august": true,
	"september": true, "october": true, "november": true, "december": true,
}

// FirstClaim scans an answer for follow-up triggers and returns the earliest
// quantified claim, technology name, or capitalized project-ish token, as
// written in the answer. Deterministic: same answer, same result.
func FirstClaim(answer string) (string, bool) {
	best := -1
	ref := ""

	if loc := quantifiedClaimRe.FindStringIndex(answer); loc != nil {
		best = loc[0]
		ref = strings.TrimSpace(answer[loc[0]:loc[1]])
	}

	for _, loc := range wordRe.FindAllStringIndex(answer, -1) {
		if best >= 0 && loc[0] >= best {
			break
		}
		tok := answer[loc[0]:loc[1]]
		if isTechToken(tok) || isProjectToken(answer, tok, loc[0]) {
			best = loc[0]
			ref = tok
			break
		}
	}

	if best < 0 {
		return "", false
	}
	return ref, true
}

func isTechToken(tok string) bool {
	lower := strings.ToLower(tok)
	if !techLexicon[lower] {
		return false
	}
	if ambiguousTech[lower] && (tok[0] < 'A' || tok[0] > 'Z') {
		return false
	}
	return true
}

// isProjectToken treats a capitalized token as a named project or product
// when it is not sentence-initial and not a common word.
func isProjectToken(answer, tok string, offset int) bool {
	if len(tok) < 3 || tok[0] < 'A' || tok[0] > 'Z' {
		return false
	}
	if projectStoplist[strings.ToLower(tok)] {
		return false
	}
	for i := offset - 1; i >= 0; i-- {
		c := answer[i]
		if c == ' ' || c == '\n' || c == '\t' || c == '\r' || c == '"' || c == '\'' || c == '(' {
			continue
		}
		if c == '.' || c == '!' || c == '?' {
			return false
		}
		return true
	}
	return false
}

// WordCount counts whitespace-separated words; the short-answer trigger and
// the evaluation heuristic both key off it.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
