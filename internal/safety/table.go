package safety

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

//go:embed defaults_tiers.yaml
var defaultTiers []byte

// tierFile is the YAML shape of the built-in tier table: tier number to
// verb list.
type tierFile struct {
	Tiers map[string][]string `yaml:"tiers"`
}

// userTierFile is the YAML shape of the user override file: verb to tier.
type userTierFile struct {
	Commands map[string]Tier `yaml:"commands"`
}

// TierEntry is one verb classification, for listings.
type TierEntry struct {
	Verb        string
	Tier        Tier
	UserDefined bool
}

// Table maps command verbs to safety tiers. Lookups take a read lock;
// Reload swaps the whole table under the write lock so no lookup observes
// a half-merged state.
type Table struct {
	mu       sync.RWMutex
	tiers    map[string]Tier
	defaults map[string]Tier
	user     map[string]bool
	userPath string
}

// TableOption configures a Table.
type TableOption func(*Table)

// WithUserPath overlays a user YAML file of per-verb tiers. A missing file
// is not an error. An override may never lower a built-in tier 4 verb.
func WithUserPath(path string) TableOption {
	return func(t *Table) {
		t.userPath = path
	}
}

// NewTable loads the built-in tier table plus any user overrides.
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

func (t *Table) load() error {
	var f tierFile
	if err := yaml.Unmarshal(defaultTiers, &f); err != nil {
		return fmt.Errorf("parse builtin tier table: %w", err)
	}

	defaults := make(map[string]Tier)
	for tierStr, verbs := range f.Tiers {
		tier, err := ParseTier(tierStr)
		if err != nil {
			return fmt.Errorf("builtin tier table: %w", err)
		}
		for _, verb := range verbs {
			verb = strings.ToLower(strings.TrimSpace(verb))
			if verb == "" {
				return fmt.Errorf("builtin tier table: empty verb under tier %s", tierStr)
			}
			if prev, dup := defaults[verb]; dup {
				return fmt.Errorf("builtin tier table: %q listed under both tier %s and tier %s", verb, prev, tier)
			}
			defaults[verb] = tier
		}
	}

	tiers := make(map[string]Tier, len(defaults))
	for verb, tier := range defaults {
		tiers[verb] = tier
	}

	user := make(map[string]bool)
	userCount, err := mergeUserTiers(tiers, defaults, user, t.userPath)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.tiers = tiers
	t.defaults = defaults
	t.user = user
	t.mu.Unlock()

	log.Debug().
		Int("builtin", len(defaults)).
		Int("user", userCount).
		Msg("tier table loaded")

	return nil
}

// mergeUserTiers overlays user classifications. Lowering a built-in
// lockdown verb is a load error, never applied.
func mergeUserTiers(tiers, defaults map[string]Tier, user map[string]bool, path string) (int, error) {
	if path == "" {
		return 0, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read user tier table: %w", err)
	}

	var f userTierFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return 0, fmt.Errorf("parse user tier table %s: %w", path, err)
	}

	count := 0
	for verb, tier := range f.Commands {
		verb = strings.ToLower(strings.TrimSpace(verb))
		if verb == "" {
			return 0, fmt.Errorf("user tier table %s: empty verb", path)
		}
		if !tier.Valid() {
			return 0, fmt.Errorf("user tier table %s: invalid tier for %q", path, verb)
		}
		if defaults[verb] == TierLockdown && tier < TierLockdown {
			return 0, fmt.Errorf("user tier table %s: %q is tier 4 and cannot be lowered", path, verb)
		}
		tiers[verb] = tier
		user[verb] = true
		count++
	}

	return count, nil
}

// Reload re-reads the built-in table and the user file. In-flight lookups
// finish against the old table.
func (t *Table) Reload() error {
	return t.load()
}

// Lookup returns the tier for a verb. The match is case-insensitive and
// keys only on the verb.
func (t *Table) Lookup(verb string) (Tier, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tier, ok := t.tiers[strings.ToLower(verb)]
	return tier, ok
}

// Known reports whether the verb has a classification.
func (t *Table) Known(verb string) bool {
	_, ok := t.Lookup(verb)
	return ok
}

// Verbs returns every classified verb, sorted. The corrector and the
// classifier use this as part of their known-verb sets.
func (t *Table) Verbs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	verbs := make([]string, 0, len(t.tiers))
	for verb := range t.tiers {
		verbs = append(verbs, verb)
	}
	sort.Strings(verbs)
	return verbs
}

// Entries returns a sorted snapshot of every classification for listing.
func (t *Table) Entries() []TierEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]TierEntry, 0, len(t.tiers))
	for verb, tier := range t.tiers {
		out = append(out, TierEntry{Verb: verb, Tier: tier, UserDefined: t.user[verb]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Verb < out[j].Verb })
	return out
}

// Len reports how many verbs are classified.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.tiers)
}
