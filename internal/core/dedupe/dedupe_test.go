package dedupe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "vitamin d", Normalize("  Vitamin   D "))
	assert.Equal(t, "crispr", Normalize("CRISPR"))
}

func TestSimilarity(t *testing.T) {
	m := NewMatcher(0.85)

	// Case and spacing never distinguish entities.
	assert.InDelta(t, 1.0, m.Similarity("Vitamin D", "vitamin  d"), 1e-9)

	// One edit over ten characters.
	assert.InDelta(t, 0.9, m.Similarity("Vitamin D3", "Vitamin D"), 1e-9)

	assert.Less(t, m.Similarity("Vitamin D", "Magnesium"), 0.5)
}

func TestBestMatch(t *testing.T) {
	m := NewMatcher(0.85)
	existing := []string{"Vitamin D", "Magnesium", "Omega-3"}

	match, ok := m.BestMatch("vitamin d3", existing)
	assert.True(t, ok)
	assert.Equal(t, "Vitamin D", match)

	_, ok = m.BestMatch("Creatine", existing)
	assert.False(t, ok)
}

func TestDedupe(t *testing.T) {
	// Scenario: extraction emits near-duplicates of each other and of an
	// entity the graph already holds.
	m := NewMatcher(0.85)

	unique, aliases := m.Dedupe(
		[]string{"vitamin d", "Vitamin D3", "Magnesium", " Magnesium ", ""},
		[]string{"Vitamin D"},
	)

	// Only Magnesium is genuinely new; first-seen casing is kept.
	assert.Equal(t, []string{"Magnesium"}, unique)
	assert.Equal(t, "Vitamin D", aliases["vitamin d"])
	assert.Equal(t, "Vitamin D", aliases["Vitamin D3"])
	assert.Equal(t, "Magnesium", aliases["Magnesium"])
	assert.Equal(t, "Vitamin D", aliases["Vitamin D"])
}
