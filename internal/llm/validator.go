package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// Verdict is the outcome of an AI safety review of one command.
type Verdict struct {
	Approved  bool
	Rationale string
}

// validationSystemPrompt demands a machine-parseable verdict. Anything
// that strays from the format is treated as a deny.
const validationSystemPrompt = `You are a shell command safety reviewer. You will be given a command line and the shell it would run under. Decide whether a cautious operator would let it run.

Consider:
- Data loss or destruction
- Changes to system state that are hard to undo
- Whether the command does more than its apparent intent

Reply with exactly two lines:
First line: APPROVE or DENY
Second line: one short sentence explaining the decision

No markdown, no JSON, no other text.`

// Validator submits commands for AI review before execution. It is the
// gate for commands that are legitimate but consequential enough to
// deserve a second opinion.
type Validator struct {
	provider Provider
}

// NewValidator creates a Validator backed by the given provider.
func NewValidator(provider Provider) *Validator {
	return &Validator{provider: provider}
}

// Validate asks the provider to review command for the named platform
// shell. Transport failures are returned as errors so the caller can
// apply its unavailability policy. A reply that cannot be parsed is a
// deny, not an error.
func (v *Validator) Validate(ctx context.Context, command, platformName string) (*Verdict, error) {
	if v.provider == nil || !v.provider.Available() {
		return nil, fmt.Errorf("no validation provider available")
	}

	req := &ChatRequest{
		SystemPrompt: validationSystemPrompt,
		Messages: []Message{
			{Role: "user", Content: fmt.Sprintf("Shell: %s\nCommand: %s", platformName, command)},
		},
	}

	resp, err := v.provider.Chat(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("validation request: %w", err)
	}

	verdict := parseVerdict(resp.Content)

	log.Debug().
		Str("provider", v.provider.Name()).
		Bool("approved", verdict.Approved).
		Str("rationale", verdict.Rationale).
		Msg("validation verdict")

	return verdict, nil
}

// parseVerdict reads the first token of the reply. Only an exact
// APPROVE opens the gate.
func parseVerdict(reply string) *Verdict {
	trimmed := strings.TrimSpace(reply)
	line, rest, _ := strings.Cut(trimmed, "\n")

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return &Verdict{Approved: false, Rationale: "empty validator reply"}
	}

	token := strings.ToUpper(strings.Trim(fields[0], ".,:;!"))
	rationale := strings.TrimSpace(strings.TrimLeft(strings.TrimPrefix(line, fields[0]), " \t:"))
	if rationale == "" {
		rationale = firstNonEmptyLine(rest)
	}

	switch token {
	case "APPROVE":
		return &Verdict{Approved: true, Rationale: rationale}
	case "DENY":
		if rationale == "" {
			rationale = "denied by validator"
		}
		return &Verdict{Approved: false, Rationale: rationale}
	default:
		return &Verdict{Approved: false, Rationale: fmt.Sprintf("unrecognized validator reply %q", line)}
	}
}

func firstNonEmptyLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}
