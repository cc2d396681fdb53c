package dedupe

import (
	"strings"

	"github.com/agext/levenshtein"
)

var params = levenshtein.NewParams()

// Matcher resolves near-duplicate entity names with normalized Levenshtein
// similarity. Deterministic on purpose: merge must never depend on a
// generative step.
type Matcher struct {
	// Threshold is the minimum similarity in [0,1] at which two names are
	// considered the same entity.
	Threshold float64
}

func NewMatcher(threshold float64) *Matcher {
	return &Matcher{Threshold: threshold}
}

// Normalize collapses the variation that should never distinguish two
// entities: surrounding space, repeated space, case.
func Normalize(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Similarity is the normalized Levenshtein similarity of the two names
// after normalization.
func (m *Matcher) Similarity(a, b string) float64 {
	return levenshtein.Similarity(Normalize(a), Normalize(b), params)
}

// BestMatch returns the canonical name in existing most similar to name,
// if any clears the threshold.
func (m *Matcher) BestMatch(name string, existing []string) (string, bool) {
	best := ""
	bestScore := 0.0
	for _, candidate := range existing {
		score := m.Similarity(name, candidate)
		if score >= m.Threshold && score > bestScore {
			best = candidate
			bestScore = score
		}
	}
	return best, best != ""
}

// Dedupe reduces names to unique canonical entities, preserving first-seen
// order and casing. The alias map sends every input name (and every
// existing name, identically) to its canonical form.
func (m *Matcher) Dedupe(names []string, existing []string) (unique []string, aliases map[string]string) {
	aliases = make(map[string]string, len(names)+len(existing))
	for _, e := range existing {
		aliases[e] = e
	}

	canonical := append([]string(nil), existing...)
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		if match, ok := m.BestMatch(name, canonical); ok {
			aliases[name] = match
			continue
		}
		canonical = append(canonical, name)
		unique = append(unique, name)
		aliases[name] = name
	}
	return unique, aliases
}
