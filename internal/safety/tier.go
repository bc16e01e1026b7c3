// Package safety classifies commands into safety tiers and decides what
// scrutiny each one needs before it may run. The tier table and the pattern
// overrides are process-wide read-mostly state; reloads are serialized
// against lookups.
package safety

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tier is a safety classification. Values are stored in tenths so the 2.5
// confirmation tier stays an exact integer and ordering comparisons work
// directly on the underlying value.
type Tier int

const (
	// TierInstant commands run immediately.
	TierInstant Tier = 10
	// TierAutoCorrect commands run immediately after an advisory
	// typo-correction pass.
	TierAutoCorrect Tier = 20
	// TierConfirm commands wait for explicit interactive confirmation.
	// Non-interactive callers must treat this as a denial.
	TierConfirm Tier = 25
	// TierValidate commands need an external validation verdict plus
	// confirmation before running.
	TierValidate Tier = 30
	// TierLockdown commands never run. Nothing overrides this tier.
	TierLockdown Tier = 40
)

// Valid reports whether t is one of the five defined tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierInstant, TierAutoCorrect, TierConfirm, TierValidate, TierLockdown:
		return true
	}
	return false
}

// String renders the user-facing tier number: "1", "2", "2.5", "3", "4".
func (t Tier) String() string {
	if t%10 == 0 {
		return fmt.Sprintf("%d", int(t)/10)
	}
	return fmt.Sprintf("%d.%d", int(t)/10, int(t)%10)
}

// Label names the tier's behavior for listings and logs.
func (t Tier) Label() string {
	switch t {
	case TierInstant:
		return "instant"
	case TierAutoCorrect:
		return "auto-correct"
	case TierConfirm:
		return "confirm"
	case TierValidate:
		return "validate"
	case TierLockdown:
		return "lockdown"
	default:
		return "unknown"
	}
}

// Float returns the tier as its user-facing number, 2.5 included.
func (t Tier) Float() float64 {
	return float64(t) / 10
}

// ParseTier converts a user-facing tier number to a Tier.
func ParseTier(s string) (Tier, error) {
	switch strings.TrimSpace(s) {
	case "1":
		return TierInstant, nil
	case "2":
		return TierAutoCorrect, nil
	case "2.5":
		return TierConfirm, nil
	case "3":
		return TierValidate, nil
	case "4":
		return TierLockdown, nil
	}
	return 0, fmt.Errorf("invalid tier %q (valid tiers: 1, 2, 2.5, 3, 4)", s)
}

// UnmarshalYAML accepts a tier as a YAML number (2.5) or string ("2.5").
func (t *Tier) UnmarshalYAML(value *yaml.Node) error {
	var f float64
	if err := value.Decode(&f); err == nil {
		parsed := Tier(f * 10)
		if !parsed.Valid() {
			return fmt.Errorf("line %d: invalid tier %v (valid tiers: 1, 2, 2.5, 3, 4)", value.Line, f)
		}
		*t = parsed
		return nil
	}

	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("line %d: tier must be a number or string", value.Line)
	}
	parsed, err := ParseTier(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*t = parsed
	return nil
}

// MarshalYAML writes the tier as its user-facing number.
func (t Tier) MarshalYAML() (interface{}, error) {
	return t.Float(), nil
}
