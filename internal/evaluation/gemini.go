package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/antoniostano/vera/internal/catalog"
	"github.com/antoniostano/vera/internal/interview"
	"github.com/antoniostano/vera/internal/logging"
	"github.com/antoniostano/vera/internal/reliability"
)

const defaultGeminiModel = "gemini-2.5-flash"

// Gemini assesses the transcript with a single GenerateContent call. Errors
// are classified on the provider taxonomy and surfaced, never swallowed into
// a default evaluation.
type Gemini struct {
	client *genai.Client
	model  string
	log    *zap.Logger
}

func NewGemini(ctx context.Context, apiKey, model string, logger *zap.Logger) (*Gemini, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if model = strings.TrimSpace(model); model == "" {
		model = defaultGeminiModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gemini{client: client, model: model, log: logger}, nil
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Assess(ctx context.Context, role catalog.Role, turns []interview.Turn) (*interview.Evaluation, error) {
	prompt := buildPrompt(role, turns)
	g.log.Debug("gemini evaluation request",
		zap.String("model", g.model),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
	)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return nil, classify(err)
	}

	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(text)
		}
	}
	raw := strings.TrimSpace(b.String())
	if raw == "" {
		return nil, &ProviderError{Transient: true, Err: errors.New("gemini returned an empty response")}
	}
	g.log.Debug("gemini evaluation response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logging.Truncate(raw, 200)),
	)

	eval, err := parseEvaluation(raw)
	if err != nil {
		return nil, &ProviderError{Transient: false, Err: err}
	}
	eval.Provider = g.Name()
	return eval, nil
}

func buildPrompt(role catalog.Role, turns []interview.Turn) string {
	roleJSON, err := json.MarshalIndent(role, "", "  ")
	if err != nil {
		roleJSON = []byte(fmt.Sprintf("%q (%s)", role.Title, role.Department))
	}
	return fmt.Sprintf(`You are an experienced hiring panelist. Assess the interview transcript below for the given role.

Role:
%s

Transcript:
%s

Respond with a single JSON object and nothing else:
{"strengths": ["..."], "concerns": ["..."], "overall_score": 0-100}

strengths and concerns must each contain at least one specific, transcript-grounded item.`,
		string(roleJSON), SerializeTranscript(turns))
}

func parseEvaluation(raw string) (*interview.Evaluation, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	eval := &interview.Evaluation{
		Strengths: coerceStrings(data["strengths"]),
		Concerns:  coerceStrings(data["concerns"]),
		Score:     clampScore(coerceFloat(data["overall_score"])),
	}
	if len(eval.Strengths) == 0 && len(eval.Concerns) == 0 {
		return nil, fmt.Errorf("gemini response carried no strengths or concerns: %s", logging.Truncate(cleaned, 120))
	}
	return eval, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	return strings.TrimSpace(strings.Trim(raw, "`"))
}

func coerceStrings(v any) []string {
	var out []string
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			if s := strings.TrimSpace(coerceString(item)); s != "" {
				out = append(out, s)
			}
		}
	case string:
		if s := strings.TrimSpace(val); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		if v == nil {
			return ""
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(raw)
	}
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &ProviderError{Transient: true, Err: err}
	}
	if reliability.IsRetryableMessage(err.Error()) {
		return &ProviderError{Transient: true, Err: err}
	}
	return &ProviderError{Transient: false, Err: err}
}
