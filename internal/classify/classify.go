// Package classify decides what one line of interactive input is: a meta
// command, a shell pipeline, natural language for the translator, or
// nothing. It never rejects input; ambiguous text classifies as a pipeline
// and the tier validator deals with unknown verbs.
package classify

import "strings"

// Kind is the classification of one input line.
type Kind int

const (
	// KindEmpty is whitespace-only input. A no-op, not an error.
	KindEmpty Kind = iota
	// KindMeta is a slash command handled by the session itself.
	KindMeta
	// KindPipeline is shell text, one or more pipe-separated segments.
	KindPipeline
	// KindNaturalLanguage is prose for the AI translator.
	KindNaturalLanguage
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindMeta:
		return "meta"
	case KindPipeline:
		return "pipeline"
	case KindNaturalLanguage:
		return "natural-language"
	default:
		return "unknown"
	}
}

// Meta is a parsed slash command.
type Meta struct {
	Name string
	Args []string
}

// Classification is the result of classifying one input line. Exactly the
// fields for the Kind are populated.
type Classification struct {
	Kind     Kind
	Meta     Meta
	Segments []string
	Text     string
	// ForceRequested is set by the /f and /force prefixes. Force only
	// suppresses interactive confirmation for tiers at or below 3; the
	// lockdown gate ignores it.
	ForceRequested bool
}

// KnownFunc reports whether a verb is a known command. The session wires
// in the alias sources and the tier table on top of the builtin set.
type KnownFunc func(verb string) bool

// Classifier turns raw input lines into classifications.
type Classifier struct {
	known []KnownFunc
}

// NewClassifier builds a classifier. Extra known-verb sets broaden the
// shell-vs-prose heuristic; the builtin verb list is always consulted.
func NewClassifier(known ...KnownFunc) *Classifier {
	return &Classifier{known: known}
}

// Classify classifies one line of input.
func (c *Classifier) Classify(input string) Classification {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return Classification{Kind: KindEmpty}
	}

	if strings.HasPrefix(trimmed, "/") {
		return c.classifyMeta(trimmed)
	}

	return c.classifyText(trimmed, false)
}

// classifyMeta parses a slash command. The force prefixes re-classify
// their remainder so "/f rm x" is a forced pipeline, not a meta command.
// The remainder keeps its original spacing so quoted arguments survive.
func (c *Classifier) classifyMeta(trimmed string) Classification {
	body := strings.TrimSpace(strings.TrimPrefix(trimmed, "/"))
	if body == "" {
		return Classification{Kind: KindEmpty}
	}

	name, rest := body, ""
	if i := strings.IndexAny(body, " \t"); i >= 0 {
		name, rest = body[:i], strings.TrimSpace(body[i:])
	}
	name = strings.ToLower(name)

	if name == "f" || name == "force" {
		if rest == "" {
			return Classification{Kind: KindMeta, Meta: Meta{Name: name}}
		}
		var cl Classification
		if strings.HasPrefix(rest, "/") {
			cl = c.classifyMeta(rest)
		} else {
			cl = c.classifyText(rest, true)
		}
		cl.ForceRequested = true
		return cl
	}

	return Classification{
		Kind: KindMeta,
		Meta: Meta{Name: name, Args: strings.Fields(rest)},
	}
}

// classifyText applies the shell-vs-prose heuristic to non-meta input.
func (c *Classifier) classifyText(trimmed string, forced bool) Classification {
	segments := SplitPipeline(trimmed)
	if len(segments) == 0 {
		return Classification{Kind: KindEmpty}
	}

	// An unquoted pipe is already shell syntax.
	if len(segments) > 1 {
		return Classification{Kind: KindPipeline, Segments: segments, ForceRequested: forced}
	}

	verb, _, _ := strings.Cut(segments[0], " ")
	if c.isKnownVerb(verb) {
		return Classification{Kind: KindPipeline, Segments: segments, ForceRequested: forced}
	}

	if hasShellMetachars(trimmed) {
		return Classification{Kind: KindPipeline, Segments: segments, ForceRequested: forced}
	}

	if readsAsProse(trimmed) {
		return Classification{Kind: KindNaturalLanguage, Text: trimmed, ForceRequested: forced}
	}

	// Conservative fallback: treat it as shell and let the tier
	// validator classify the unknown verb.
	return Classification{Kind: KindPipeline, Segments: segments, ForceRequested: forced}
}

func (c *Classifier) isKnownVerb(verb string) bool {
	verb = strings.ToLower(verb)
	if builtinVerbs[verb] {
		return true
	}
	for _, fn := range c.known {
		if fn(verb) {
			return true
		}
	}
	return false
}

// hasShellMetachars reports unquoted shell syntax: redirection, globs,
// variables, command separators, or a path-shaped token.
func hasShellMetachars(s string) bool {
	if strings.ContainsAny(s, "><&;$`*~") {
		return true
	}
	for _, tok := range strings.Fields(s) {
		if strings.HasPrefix(tok, "/") || strings.HasPrefix(tok, "./") ||
			strings.HasPrefix(tok, "../") || strings.HasPrefix(tok, "~") {
			return true
		}
		if strings.Contains(tok, "/") && !strings.HasPrefix(tok, "-") {
			return true
		}
	}
	return false
}

// readsAsProse reports sentence-shaped input: several words, or a
// trailing question mark.
func readsAsProse(s string) bool {
	if strings.HasSuffix(s, "?") {
		return true
	}
	return len(strings.Fields(s)) >= 3
}

// SplitPipeline splits shell text on unquoted pipes. Single and double
// quotes guard their contents; a backslash escapes the next character
// except inside single quotes. Segments are trimmed and empties dropped,
// so a trailing pipe yields no phantom segment.
func SplitPipeline(s string) []string {
	var segments []string
	var current strings.Builder

	inSingle := false
	inDouble := false
	escaped := false

	for _, r := range s {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == '\\' && !inSingle:
			current.WriteRune(r)
			escaped = true
		case r == '\'' && !inDouble:
			inSingle = !inSingle
			current.WriteRune(r)
		case r == '"' && !inSingle:
			inDouble = !inDouble
			current.WriteRune(r)
		case r == '|' && !inSingle && !inDouble:
			segments = append(segments, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	segments = append(segments, current.String())

	out := segments[:0]
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg != "" {
			out = append(out, seg)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// builtinVerbs are common shell verbs recognized even before the alias
// and tier tables are consulted. Deliberately excludes exit and quit:
// those fall through as shell text and the session hints at /exit.
var builtinVerbs = map[string]bool{
	"cd": true, "ls": true, "pwd": true, "echo": true, "cat": true,
	"grep": true, "find": true, "head": true, "tail": true, "sort": true,
	"uniq": true, "wc": true, "cp": true, "mv": true, "rm": true,
	"mkdir": true, "rmdir": true, "touch": true, "chmod": true, "chown": true,
	"ps": true, "kill": true, "which": true, "man": true, "clear": true,
	"date": true, "env": true, "df": true, "du": true, "ln": true,
	"tar": true, "gzip": true, "gunzip": true, "zip": true, "unzip": true,
	"ssh": true, "scp": true, "curl": true, "wget": true, "ping": true,
	"git": true, "make": true, "docker": true, "kubectl": true,
	"go": true, "python": true, "python3": true, "node": true, "npm": true,
	"pip": true, "cargo": true, "vim": true, "nano": true, "sed": true,
	"awk": true, "xargs": true, "tee": true, "diff": true, "history": true,
	"sudo": true, "doas": true, "dir": true, "type": true, "cls": true,
	"del": true, "copy": true, "move": true, "tasklist": true, "taskkill": true,
	"findstr": true,
}
