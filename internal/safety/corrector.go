package safety

import (
	"sort"
	"strings"
)

// maxEditDistance bounds the corrector's search. Anything further than two
// edits from a known verb is not a typo worth suggesting.
const maxEditDistance = 2

// Corrector suggests the nearest known verb for an unrecognized one. It is
// advisory: the caller may surface the suggestion, never auto-apply it.
type Corrector struct {
	known []string
}

// NewCorrector builds a corrector over a known-verb set. Verbs are
// lowercased and deduplicated; ties in distance resolve to the
// lexicographically first verb so suggestions are deterministic.
func NewCorrector(verbs []string) *Corrector {
	seen := make(map[string]bool, len(verbs))
	known := make([]string, 0, len(verbs))
	for _, v := range verbs {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		known = append(known, v)
	}
	sort.Strings(known)
	return &Corrector{known: known}
}

// Suggest returns the closest known verb within the edit bound. A verb
// that is already known needs no correction.
func (c *Corrector) Suggest(verb string) (string, bool) {
	verb = strings.ToLower(verb)
	if verb == "" {
		return "", false
	}

	best := ""
	bestDist := maxEditDistance + 1
	for _, candidate := range c.known {
		if candidate == verb {
			return "", false
		}
		d := boundedDistance(verb, candidate, maxEditDistance)
		if d < bestDist {
			bestDist = d
			best = candidate
		}
	}
	return best, best != ""
}

// boundedDistance is Levenshtein distance with an early exit: once every
// cell in a row exceeds max, the answer is reported as max+1. Verbs are
// ASCII, so bytes are fine.
func boundedDistance(a, b string, max int) int {
	if a == b {
		return 0
	}
	diff := len(a) - len(b)
	if diff < 0 {
		diff = -diff
	}
	if diff > max {
		return max + 1
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		rowMin := curr[0]
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
			if curr[j] < rowMin {
				rowMin = curr[j]
			}
		}
		if rowMin > max {
			return max + 1
		}
		prev, curr = curr, prev
	}

	if prev[len(b)] > max {
		return max + 1
	}
	return prev[len(b)]
}
