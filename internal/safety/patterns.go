package safety

import "regexp"

// Pattern raises the tier of any command whose full text matches. Patterns
// run before the verb lookup and can only raise the answer, never lower
// it, so a re-tiered verb still cannot slip a dangerous argument form past
// the table.
type Pattern struct {
	Name string
	Tier Tier
	re   *regexp.Regexp
}

// NewPattern compiles a raise-only override. The expression must compile;
// this is meant for wiring extra patterns at startup, not user input.
func NewPattern(name string, tier Tier, expr string) Pattern {
	return Pattern{Name: name, Tier: tier, re: regexp.MustCompile(expr)}
}

// Matches reports whether the command's full text trips this pattern.
func (p Pattern) Matches(command string) bool {
	return p.re.MatchString(command)
}

// builtinPatterns are the argument-form overrides that ship compiled in.
// Verbs like rm and dd are already lockdown by table; these catch the
// dangerous forms reachable through other verbs or re-tiered ones.
func builtinPatterns() []Pattern {
	return []Pattern{
		NewPattern("recursive force delete", TierLockdown,
			`(?i)\brm\b.*\s-{1,2}[a-z]*(r[a-z]*f|f[a-z]*r)`),
		NewPattern("recursive force delete", TierLockdown,
			`(?i)\brm\b.*\s-[a-z]*r\b.*\s-[a-z]*f\b`),
		NewPattern("recursive force delete", TierLockdown,
			`(?i)\brm\b.*--recursive\b.*--force\b|\brm\b.*--force\b.*--recursive\b`),
		NewPattern("recursive force delete", TierLockdown,
			`(?i)\bremove-item\b.*-recurse\b.*-force\b|\bremove-item\b.*-force\b.*-recurse\b`),
		NewPattern("raw disk overwrite", TierLockdown,
			`(?i)\bdd\b.*\bof=/dev/(sd|hd|vd|nvme|mmcblk|disk)`),
		NewPattern("filesystem format", TierLockdown,
			`(?i)\b(mkfs(\.[a-z0-9]+)?|format-volume|clear-disk)\b`),
		NewPattern("fork bomb", TierLockdown,
			`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`),
		NewPattern("piped remote script", TierLockdown,
			`(?i)\b(curl|wget|invoke-webrequest|iwr)\b.*\|\s*(sudo\s+)?(sh|bash|zsh|pwsh|powershell|iex|invoke-expression)\b`),
		NewPattern("bulk find delete", TierValidate,
			`(?i)\bfind\b.*\s-delete\b`),
		NewPattern("permission wipe", TierValidate,
			`(?i)\bchmod\b.*\s-[a-z]*r[a-z]*\b.*\s(777|000)\b`),
	}
}
