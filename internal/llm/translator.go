package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrTranslationUnavailable means no usable translation was produced.
// Callers fall back to treating the input as a literal command line.
var ErrTranslationUnavailable = errors.New("translation unavailable")

// DefaultMinConfidence is the floor below which a translation is
// discarded rather than offered for execution.
const DefaultMinConfidence = 0.7

// Translation is a natural language query rendered as a command line.
type Translation struct {
	Command     string  `json:"command"`
	Explanation string  `json:"explanation"`
	Confidence  float64 `json:"confidence"`
}

// translationSystemPrompt instructs the model to answer with bare JSON.
const translationSystemPrompt = `You are a shell command translator. Your job is to convert a natural language request into a single executable command for the named shell.

Rules:
1. Produce exactly one command line, nothing else
2. Use only the target shell's syntax and built-ins
3. Prefer read-only forms when the request is ambiguous
4. Never invent destructive commands the user did not ask for

Respond in JSON format:
{
  "command": "the shell command",
  "explanation": "brief explanation of what it does",
  "confidence": 0.95
}

Set confidence between 0.0 and 1.0, lower when you are unsure the command matches the request. Only respond with the JSON, no other text.`

// Translator turns natural language queries into shell commands via a
// provider. Results under the confidence floor are rejected, never
// silently executed.
type Translator struct {
	provider      Provider
	minConfidence float64
}

// TranslatorOption configures a Translator.
type TranslatorOption func(*Translator)

// WithMinConfidence overrides the confidence floor.
func WithMinConfidence(min float64) TranslatorOption {
	return func(t *Translator) {
		t.minConfidence = min
	}
}

// NewTranslator creates a Translator backed by the given provider.
func NewTranslator(provider Provider, opts ...TranslatorOption) *Translator {
	t := &Translator{
		provider:      provider,
		minConfidence: DefaultMinConfidence,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate converts query into a command for the named platform shell.
// It returns ErrTranslationUnavailable when the provider is missing or
// unreachable, the reply carries no command, or confidence is below the
// floor. Context cancellation is reported as the context's own error.
func (t *Translator) Translate(ctx context.Context, query, platformName string) (*Translation, error) {
	if t.provider == nil || !t.provider.Available() {
		return nil, fmt.Errorf("no provider: %w", ErrTranslationUnavailable)
	}

	req := &ChatRequest{
		SystemPrompt: translationSystemPrompt,
		Messages: []Message{
			{Role: "user", Content: fmt.Sprintf("Translate this request into a %s command:\n\n%s", platformName, query)},
		},
	}

	resp, err := t.provider.Chat(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s: %v: %w", t.provider.Name(), err, ErrTranslationUnavailable)
	}

	jsonStr := extractJSON(resp.Content)
	if jsonStr == "" {
		return nil, fmt.Errorf("no JSON in reply: %w", ErrTranslationUnavailable)
	}

	var out Translation
	if err := json.Unmarshal([]byte(jsonStr), &out); err != nil {
		return nil, fmt.Errorf("parse reply: %v: %w", err, ErrTranslationUnavailable)
	}

	out.Command = strings.TrimSpace(out.Command)
	if out.Command == "" {
		return nil, fmt.Errorf("empty command in reply: %w", ErrTranslationUnavailable)
	}
	if out.Confidence < t.minConfidence {
		return nil, fmt.Errorf("low confidence %.2f (floor %.2f): %w", out.Confidence, t.minConfidence, ErrTranslationUnavailable)
	}

	log.Debug().
		Str("provider", t.provider.Name()).
		Str("platform", platformName).
		Float64("confidence", out.Confidence).
		Msg("query translated")

	return &out, nil
}

// extractJSON finds the JSON object in a reply that may wrap it in
// markdown fences or surrounding prose.
func extractJSON(reply string) string {
	// ```json fenced block
	if idx := strings.Index(strings.ToLower(reply), "```json"); idx != -1 {
		start := idx + len("```json")
		if end := strings.Index(reply[start:], "```"); end != -1 {
			return strings.TrimSpace(reply[start : start+end])
		}
	}

	// bare ``` fenced block that opens with an object
	if idx := strings.Index(reply, "```"); idx != -1 {
		start := idx + 3
		if end := strings.Index(reply[start:], "```"); end != -1 {
			content := strings.TrimSpace(reply[start : start+end])
			if strings.HasPrefix(content, "{") {
				return content
			}
		}
	}

	// raw JSON by brace matching
	depth := 0
	start := -1
	for i, c := range reply {
		switch c {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 && start != -1 {
				return reply[start : i+1]
			}
		}
	}
	return ""
}
