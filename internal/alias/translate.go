package alias

import (
	"regexp"
	"strings"

	"github.com/normanking/safeshell/internal/platform"
)

// numericFlagRe matches count shorthands like -5 or -20 that head/tail
// style commands accept in place of -n 5.
var numericFlagRe = regexp.MustCompile(`^-(\d+)$`)

// Translator rewrites single pipeline segments for a target shell family.
// Translate is a pure function of (segment, table, family): it performs no
// I/O, never fails, and translating already-native text is a pass-through
// because native verbs miss the source table.
type Translator struct {
	table   *Table
	family  platform.Family
	enabled bool
}

// TranslatorOption configures a Translator.
type TranslatorOption func(*Translator)

// WithEnabled toggles translation. A disabled translator passes everything
// through unchanged.
func WithEnabled(enabled bool) TranslatorOption {
	return func(tr *Translator) {
		tr.enabled = enabled
	}
}

// NewTranslator creates a translator bound to one shell family.
func NewTranslator(table *Table, family platform.Family, opts ...TranslatorOption) *Translator {
	tr := &Translator{
		table:   table,
		family:  family,
		enabled: true,
	}
	for _, opt := range opts {
		opt(tr)
	}
	return tr
}

// Family returns the target family this translator rewrites into.
func (tr *Translator) Family() platform.Family {
	return tr.family
}

// Known reports whether the verb has an alias entry for the active
// family. The input classifier consults this alongside the tier table
// when deciding shell text from prose.
func (tr *Translator) Known(verb string) bool {
	_, ok := tr.table.Lookup(tr.family, verb)
	return ok
}

// Translate rewrites one pipeline segment for the target family. The worst
// case is always pass-through of the original segment; safety decisions
// belong to the tier validator, never here.
func (tr *Translator) Translate(segment string) string {
	if !tr.enabled {
		return segment
	}

	trimmed := strings.TrimSpace(segment)
	if trimmed == "" {
		return segment
	}

	verb, tail := splitVerb(trimmed)

	entry, ok := tr.table.Lookup(tr.family, verb)
	if !ok {
		return segment
	}

	// Bare verb: straight substitution.
	if tail == "" {
		return entry.Target
	}

	// No argument map: keep the raw tail verbatim so quoting survives.
	if len(entry.Args) == 0 {
		return entry.Target + " " + tail
	}

	tokens := strings.Fields(tail)

	if base, pipe, twoStage := strings.Cut(entry.Target, " | "); twoStage {
		return translateTwoStage(entry, base, pipe, tokens)
	}
	return translateMapped(entry, tokens)
}

// Describe returns the table description for a segment's verb, if any. The
// REPL uses it when echoing a translation.
func (tr *Translator) Describe(segment string) string {
	verb, _ := splitVerb(strings.TrimSpace(segment))
	if entry, ok := tr.table.Lookup(tr.family, verb); ok {
		return entry.Description
	}
	return ""
}

// splitVerb splits on the first whitespace run only. The tail keeps its
// original text for verbatim reinsertion.
func splitVerb(s string) (verb, tail string) {
	i := strings.IndexFunc(s, func(r rune) bool { return r == ' ' || r == '\t' })
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeft(s[i:], " \t")
}

// translateMapped applies an argument map to a single-stage target. Mapped
// fragments and pass-through positionals keep the input's relative order;
// pipe suffixes collect at the end and are appended once each.
func translateMapped(entry *Entry, tokens []string) string {
	var out []string
	var pipeSuffixes []string
	seenSuffix := make(map[string]bool)

	addSuffix := func(to string) {
		suffix := strings.TrimPrefix(to, "| ")
		if !seenSuffix[suffix] {
			seenSuffix[suffix] = true
			pipeSuffixes = append(pipeSuffixes, suffix)
		}
	}

	def, hasDef := entry.DefaultMapping()

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]

		// Combined short flags (-la) decompose into their constituents
		// before mapping. Constituents never consume values.
		if constituents := decomposeCombined(entry, tok); constituents != nil {
			for _, flag := range constituents {
				m, _ := entry.mapping(flag)
				if strings.HasPrefix(m.To, "| ") {
					addSuffix(m.To)
				} else {
					out = append(out, m.To)
				}
			}
			continue
		}

		if m, ok := entry.mapping(tok); ok {
			if strings.HasPrefix(m.To, "| ") {
				addSuffix(m.To)
				continue
			}
			out = append(out, m.To)
			if m.TakesValue && i+1 < len(tokens) && !strings.HasPrefix(tokens[i+1], "-") {
				i++
				out = append(out, tokens[i])
			}
			continue
		}

		// Positional argument: apply the reserved default mapping when the
		// table declares one, else pass through verbatim.
		if hasDef && !strings.HasPrefix(tok, "-") {
			out = append(out, applyDefault(def.To, tok))
			continue
		}
		out = append(out, tok)
	}

	result := entry.Target
	if len(out) > 0 {
		result += " " + strings.Join(out, " ")
	}
	for _, suffix := range pipeSuffixes {
		result += " | " + suffix
	}
	return result
}

// translateTwoStage handles targets that are themselves piped expressions
// (head/tail/wc idioms). File arguments bind to the first stage, flags and
// counts to the second, so "head -5 f" becomes
// "Get-Content f | Select-Object -First 5" rather than positional text.
func translateTwoStage(entry *Entry, base, pipe string, tokens []string) string {
	var flagArgs []string
	var fileArgs []string

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]

		// -5 is shorthand for -n 5.
		if m := numericFlagRe.FindStringSubmatch(tok); m != nil {
			if count, ok := entry.mapping("-n"); ok {
				flagArgs = append(flagArgs, count.To, m[1])
				continue
			}
		}

		if strings.HasPrefix(tok, "-") {
			if m, ok := entry.mapping(tok); ok {
				flagArgs = append(flagArgs, m.To)
				if m.TakesValue && i+1 < len(tokens) && !strings.HasPrefix(tokens[i+1], "-") {
					i++
					flagArgs = append(flagArgs, tokens[i])
				}
			}
			// Unknown flags have no two-stage equivalent and are dropped.
			continue
		}

		fileArgs = append(fileArgs, tok)
	}

	left := base
	if len(fileArgs) > 0 {
		left += " " + strings.Join(fileArgs, " ")
	}
	right := pipe
	if len(flagArgs) > 0 {
		right += " " + strings.Join(flagArgs, " ")
	}
	return left + " | " + right
}

// decomposeCombined splits -la into [-l, -a] when every constituent
// single-letter flag is a known mapping. Anything else returns nil.
func decomposeCombined(entry *Entry, tok string) []string {
	if len(tok) < 3 || !strings.HasPrefix(tok, "-") {
		return nil
	}
	body := tok[1:]
	constituents := make([]string, 0, len(body))
	for _, r := range body {
		if r < 'a' || r > 'z' {
			return nil
		}
		flag := "-" + string(r)
		if _, ok := entry.mapping(flag); !ok {
			return nil
		}
		constituents = append(constituents, flag)
	}
	return constituents
}

// applyDefault substitutes a positional value into the default mapping.
func applyDefault(to, value string) string {
	if strings.Contains(to, "{}") {
		return strings.ReplaceAll(to, "{}", value)
	}
	return to + " " + value
}
