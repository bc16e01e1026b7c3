package safety

import (
	"fmt"
	"strings"
)

// Decision is the outcome of classifying one command.
type Decision struct {
	// Tier is the final classification after overrides and floors.
	Tier Tier
	// Verb is the lowercased lookup token, privilege prefixes skipped.
	Verb string
	// Unknown marks a verb with no table entry. Unknown verbs classify
	// as tier 3, which is advisory state, not an error.
	Unknown bool
	// RequiresConfirmation means the caller must obtain an explicit
	// affirmative before dispatch. Non-interactive callers deny.
	RequiresConfirmation bool
	// RequiresValidation means an external verdict must approve the
	// command before confirmation even starts.
	RequiresValidation bool
	// Pattern names the override that governs the tier, if one does.
	Pattern string
	// Suggestion is the nearest known verb for an unknown one. Advisory.
	Suggestion string
	// CorrectedCommand is the input with the verb swapped for Suggestion.
	CorrectedCommand string
	// Warning is human-readable advisory text for the caller to surface.
	Warning string
}

// Blocked reports whether the decision forbids execution outright.
func (d Decision) Blocked() bool {
	return d.Tier == TierLockdown
}

// Validator assigns tiers. It never performs I/O and never fails: the
// worst answer is a lockdown or an unknown-verb tier 3.
type Validator struct {
	table     *Table
	patterns  []Pattern
	corrector *Corrector
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithCorrector enables advisory typo suggestions for unknown verbs.
func WithCorrector(c *Corrector) ValidatorOption {
	return func(v *Validator) {
		v.corrector = c
	}
}

// WithExtraPatterns appends raise-only overrides after the built-ins.
func WithExtraPatterns(patterns ...Pattern) ValidatorOption {
	return func(v *Validator) {
		v.patterns = append(v.patterns, patterns...)
	}
}

// NewValidator builds a validator over a tier table with the built-in
// pattern overrides compiled in.
func NewValidator(table *Table, opts ...ValidatorOption) *Validator {
	v := &Validator{
		table:    table,
		patterns: builtinPatterns(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Table returns the underlying tier table.
func (v *Validator) Table() *Table {
	return v.table
}

// Validate classifies one command. The command should already be in its
// translated, dispatch-ready form.
func (v *Validator) Validate(command string) Decision {
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return Decision{
			Tier:                 TierValidate,
			Unknown:              true,
			RequiresConfirmation: true,
			RequiresValidation:   true,
			Warning:              "empty command",
		}
	}

	tokens := strings.Fields(trimmed)

	// Privilege prefixes are skipped for lookup but raise the floor:
	// nothing run through sudo is ever below tier 3.
	floor := Tier(0)
	verbTok := tokens[0]
	for len(tokens) > 1 && isPrivilegePrefix(tokens[0]) {
		floor = TierValidate
		tokens = tokens[1:]
		verbTok = tokens[0]
	}

	// Pattern overrides see the full original text, prefixes included.
	patternTier := Tier(0)
	patternName := ""
	for _, p := range v.patterns {
		if p.Tier > patternTier && p.Matches(trimmed) {
			patternTier = p.Tier
			patternName = p.Name
		}
	}
	if patternTier > floor {
		floor = patternTier
	}

	verb := strings.ToLower(verbTok)
	d := Decision{Verb: verb}

	tier, known := v.table.Lookup(verb)
	if !known {
		tier = TierValidate
		d.Unknown = true
		d.Warning = fmt.Sprintf("unknown command %q", verb)
		if v.corrector != nil {
			if sugg, ok := v.corrector.Suggest(verb); ok {
				d.Suggestion = sugg
				d.CorrectedCommand = strings.Replace(trimmed, verbTok, sugg, 1)
				d.Warning = fmt.Sprintf("unknown command %q, did you mean %q?", verb, sugg)
			}
		}
	}

	if floor > tier {
		tier = floor
		if patternTier >= floor {
			d.Pattern = patternName
		}
	}

	d.Tier = tier
	d.RequiresConfirmation = tier == TierConfirm || tier == TierValidate
	d.RequiresValidation = tier == TierValidate
	return d
}

func isPrivilegePrefix(tok string) bool {
	switch strings.ToLower(tok) {
	case "sudo", "doas":
		return true
	}
	return false
}
