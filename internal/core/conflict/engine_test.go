package conflict

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agenthands/cartographer/internal/core/model"
)

func newTestEngine() *Engine {
	return NewEngine(0.2, zap.NewNop())
}

func TestDetectOpposingPolarities(t *testing.T) {
	// Same entity pair, one claim positive and one negative.
	e := newTestEngine()
	g := model.KnowledgeGraph{
		Entities: []string{"Coffee", "Heart Disease"},
		Relationships: []model.Relationship{
			{Source: "Coffee", Relation: "increases", Target: "Heart Disease", Citation: "https://a.com", Credibility: 0.9},
			{Source: "Coffee", Relation: "reduces", Target: "Heart Disease", Citation: "https://b.com", Credibility: 0.4},
		},
	}

	conflicts := e.Detect(g)

	require.Len(t, conflicts, 1)
	c := conflicts[0]
	assert.Equal(t, "effect of Coffee on Heart Disease", c.PointOfContention)
	assert.Equal(t, "Coffee increases Heart Disease", c.SideA)
	assert.Equal(t, "https://a.com", c.SideACitation)
	assert.Equal(t, "Coffee reduces Heart Disease", c.SideB)
	assert.InDelta(t, 0.9, c.SideACredibility, 1e-9)
	assert.InDelta(t, 0.4, c.SideBCredibility, 1e-9)
}

func TestDetectGroupsUnorderedPairs(t *testing.T) {
	// (X,Y) and (Y,X) are the same point of contention.
	e := newTestEngine()
	g := model.KnowledgeGraph{
		Relationships: []model.Relationship{
			{Source: "Exercise", Relation: "improves", Target: "Sleep", Citation: "https://a.com"},
			{Source: "Sleep", Relation: "worsens", Target: "Exercise", Citation: "https://b.com"},
		},
	}

	assert.Len(t, e.Detect(g), 1)
}

func TestDetectIgnoresNeutralRelations(t *testing.T) {
	e := newTestEngine()
	g := model.KnowledgeGraph{
		Relationships: []model.Relationship{
			{Source: "Coffee", Relation: "contains", Target: "Caffeine", Citation: "https://a.com"},
			{Source: "Coffee", Relation: "is_related_to", Target: "Caffeine", Citation: "https://b.com"},
		},
	}

	assert.Empty(t, e.Detect(g))
}

func TestDetectSinglePolarityIsNotAConflict(t *testing.T) {
	e := newTestEngine()
	g := model.KnowledgeGraph{
		Relationships: []model.Relationship{
			{Source: "Coffee", Relation: "increases", Target: "Alertness", Citation: "https://a.com"},
			{Source: "Coffee", Relation: "boosts", Target: "Alertness", Citation: "https://b.com"},
		},
	}

	assert.Empty(t, e.Detect(g))
}

func TestDetectPicksHighestCredibilityRepresentative(t *testing.T) {
	e := newTestEngine()
	g := model.KnowledgeGraph{
		Relationships: []model.Relationship{
			{Source: "Coffee", Relation: "increases", Target: "Risk", Citation: "https://weak.com", Credibility: 0.3},
			{Source: "Coffee", Relation: "raises", Target: "Risk", Citation: "https://strong.gov", Credibility: 0.95},
			{Source: "Coffee", Relation: "reduces", Target: "Risk", Citation: "https://other.com", Credibility: 0.5},
		},
	}

	conflicts := e.Detect(g)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "https://strong.gov", conflicts[0].SideACitation)
}

func TestResolveFavorsHigherCredibilityAboveGap(t *testing.T) {
	e := newTestEngine()

	c := e.Resolve(model.Conflict{
		SideA: "claim a", SideACredibility: 0.9,
		SideB: "claim b", SideBCredibility: 0.4,
	})
	assert.True(t, strings.HasPrefix(c.Verdict, "side_a is better supported"))
	assert.InDelta(t, 0.5, c.VerdictConfidence, 1e-9)

	// Swapping sides flips the verdict, same confidence.
	swapped := e.Resolve(model.Conflict{
		SideA: "claim b", SideACredibility: 0.4,
		SideB: "claim a", SideBCredibility: 0.9,
	})
	assert.True(t, strings.HasPrefix(swapped.Verdict, "side_b is better supported"))
	assert.InDelta(t, c.VerdictConfidence, swapped.VerdictConfidence, 1e-9)
}

func TestResolveInsufficientEvidenceAtOrBelowGap(t *testing.T) {
	e := newTestEngine()

	// Gap exactly at the threshold stays undecided.
	c := e.Resolve(model.Conflict{SideACredibility: 0.7, SideBCredibility: 0.5})
	assert.Equal(t, InsufficientEvidenceVerdict, c.Verdict)
	assert.InDelta(t, 0.5, c.VerdictConfidence, 1e-9)

	c = e.Resolve(model.Conflict{SideACredibility: 0.6, SideBCredibility: 0.6})
	assert.Equal(t, InsufficientEvidenceVerdict, c.Verdict)
}

func TestResolveAllPreservesOrder(t *testing.T) {
	e := newTestEngine()
	resolved := e.ResolveAll([]model.Conflict{
		{PointOfContention: "first", SideACredibility: 0.9, SideBCredibility: 0.1},
		{PointOfContention: "second", SideACredibility: 0.5, SideBCredibility: 0.5},
	})

	require.Len(t, resolved, 2)
	assert.Equal(t, "first", resolved[0].PointOfContention)
	assert.NotEqual(t, InsufficientEvidenceVerdict, resolved[0].Verdict)
	assert.Equal(t, InsufficientEvidenceVerdict, resolved[1].Verdict)
}
