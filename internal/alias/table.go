// Package alias implements cross-platform command translation. A Table maps
// POSIX-style verbs to their native equivalents for the active target shell
// family; a Translator rewrites one pipeline segment at a time.
package alias

import (
	"embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/normanking/safeshell/internal/platform"
)

//go:embed defaults_powershell.yaml defaults_cmd.yaml
var defaultsFS embed.FS

// builtinFiles maps a shell family to its embedded default table.
var builtinFiles = map[platform.Family]string{
	platform.FamilyPowerShell: "defaults_powershell.yaml",
	platform.FamilyCmd:        "defaults_cmd.yaml",
}

// ArgMapping maps one source flag to a destination fragment. Order matters:
// mappings are applied in the order the table declares them.
type ArgMapping struct {
	// Flag is the source token, e.g. "-a". The reserved flag "default"
	// applies to bare positional arguments; its To may carry a "{}"
	// placeholder for the argument value.
	Flag string `yaml:"flag"`
	// To is the destination fragment. A "| " prefix marks a pipe suffix
	// that is appended once to the end of the translated segment.
	To string `yaml:"to"`
	// TakesValue consumes the following token as the flag's value.
	TakesValue bool `yaml:"takes_value,omitempty"`
}

// Example is a source/target pair shown by the aliases listing.
type Example struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// Entry is one alias: a source verb and its destination template.
type Entry struct {
	Source      string       `yaml:"source"`
	Target      string       `yaml:"target"`
	Args        []ArgMapping `yaml:"args,omitempty"`
	Description string       `yaml:"description,omitempty"`
	Examples    []Example    `yaml:"examples,omitempty"`
}

// DefaultMapping returns the reserved positional mapping, if declared.
func (e *Entry) DefaultMapping() (ArgMapping, bool) {
	for _, m := range e.Args {
		if m.Flag == "default" {
			return m, true
		}
	}
	return ArgMapping{}, false
}

// mapping looks up a flag mapping, excluding the reserved default.
func (e *Entry) mapping(flag string) (ArgMapping, bool) {
	for _, m := range e.Args {
		if m.Flag != "default" && m.Flag == flag {
			return m, true
		}
	}
	return ArgMapping{}, false
}

// tableFile is the YAML shape of one embedded default table.
type tableFile struct {
	Aliases []*Entry `yaml:"aliases"`
}

// userFile is the YAML shape of the user override file, keyed by family.
type userFile struct {
	PowerShell []*Entry `yaml:"powershell,omitempty"`
	Cmd        []*Entry `yaml:"cmd,omitempty"`
}

// Table holds the loaded alias entries for every family. It is process-wide,
// read-mostly state; Reload is serialized against lookups with a
// reader-writer lock so no lookup ever observes a partially-updated table.
type Table struct {
	mu       sync.RWMutex
	entries  map[platform.Family]map[string]*Entry
	userPath string
}

// TableOption configures a Table.
type TableOption func(*Table)

// WithUserPath merges a user YAML file over the built-in tables. User
// entries win on source-verb collision. A missing file is not an error.
func WithUserPath(path string) TableOption {
	return func(t *Table) {
		t.userPath = path
	}
}

// NewTable loads the built-in tables plus any user overrides.
func NewTable(opts ...TableOption) (*Table, error) {
	t := &Table{}
	for _, opt := range opts {
		opt(t)
	}
	if err := t.load(); err != nil {
		return nil, err
	}
	return t, nil
}

// load parses the embedded defaults and the user file into a fresh entry
// set, then swaps it in under the write lock.
func (t *Table) load() error {
	entries := make(map[platform.Family]map[string]*Entry, len(builtinFiles))

	for family, name := range builtinFiles {
		data, err := defaultsFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read builtin alias table %s: %w", name, err)
		}

		var f tableFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("parse builtin alias table %s: %w", name, err)
		}

		byVerb := make(map[string]*Entry, len(f.Aliases))
		for _, e := range f.Aliases {
			source := strings.ToLower(strings.TrimSpace(e.Source))
			if source == "" || e.Target == "" {
				return fmt.Errorf("builtin alias table %s: entry with empty source or target", name)
			}
			if _, dup := byVerb[source]; dup {
				return fmt.Errorf("builtin alias table %s: duplicate source %q", name, source)
			}
			e.Source = source
			byVerb[source] = e
		}
		entries[family] = byVerb
	}

	userCount, err := mergeUserFile(entries, t.userPath)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.entries = entries
	t.mu.Unlock()

	log.Debug().
		Int("powershell", len(entries[platform.FamilyPowerShell])).
		Int("cmd", len(entries[platform.FamilyCmd])).
		Int("user", userCount).
		Msg("alias table loaded")

	return nil
}

// mergeUserFile overlays user entries onto the built-in set. Returns how
// many user entries were merged.
func mergeUserFile(entries map[platform.Family]map[string]*Entry, path string) (int, error) {
	if path == "" {
		return 0, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read user alias table: %w", err)
	}

	var f userFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return 0, fmt.Errorf("parse user alias table %s: %w", path, err)
	}

	count := 0
	merge := func(family platform.Family, userEntries []*Entry) error {
		for _, e := range userEntries {
			source := strings.ToLower(strings.TrimSpace(e.Source))
			if source == "" || e.Target == "" {
				return fmt.Errorf("user alias table %s: entry with empty source or target", path)
			}
			e.Source = source
			if entries[family] == nil {
				entries[family] = make(map[string]*Entry)
			}
			entries[family][source] = e
			count++
		}
		return nil
	}

	if err := merge(platform.FamilyPowerShell, f.PowerShell); err != nil {
		return 0, err
	}
	if err := merge(platform.FamilyCmd, f.Cmd); err != nil {
		return 0, err
	}

	return count, nil
}

// Reload re-reads the built-in tables and the user file. In-flight lookups
// finish against the old table; the swap is atomic under the write lock.
func (t *Table) Reload() error {
	return t.load()
}

// Lookup finds the alias entry for a verb. Lookup is case-insensitive and
// keys only on the verb, never the argument tail. The POSIX family has no
// table: POSIX input on a POSIX shell passes through untranslated.
func (t *Table) Lookup(family platform.Family, verb string) (*Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	byVerb, ok := t.entries[family]
	if !ok {
		return nil, false
	}
	e, ok := byVerb[strings.ToLower(verb)]
	return e, ok
}

// Sources returns every source verb for a family, sorted. The classifier
// and the corrector use this as part of their known-verb sets.
func (t *Table) Sources(family platform.Family) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	byVerb := t.entries[family]
	sources := make([]string, 0, len(byVerb))
	for source := range byVerb {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	return sources
}

// Entries returns a sorted snapshot of a family's entries for listing.
func (t *Table) Entries(family platform.Family) []*Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	byVerb := t.entries[family]
	out := make([]*Entry, 0, len(byVerb))
	for _, e := range byVerb {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

// Len reports how many entries a family carries.
func (t *Table) Len(family platform.Family) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries[family])
}
