package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validGraph() KnowledgeGraph {
	return KnowledgeGraph{
		Entities: []string{"Coffee", "Heart Disease"},
		Relationships: []Relationship{
			{Source: "Coffee", Relation: "reduces", Target: "Heart Disease", Citation: "https://nih.gov/a", Credibility: 0.9},
		},
		Conflicts: []Conflict{
			{
				PointOfContention: "effect of Coffee on Heart Disease",
				SideA:             "Coffee reduces Heart Disease",
				SideACitation:     "https://nih.gov/a",
				SideACredibility:  0.9,
				SideB:             "Coffee increases Heart Disease",
				SideBCitation:     "https://coffeeblog.com/b",
				SideBCredibility:  0.4,
			},
		},
	}
}

func TestGraphValidate(t *testing.T) {
	assert.NoError(t, validGraph().Validate())
}

func TestGraphValidateRejectsDuplicateEntities(t *testing.T) {
	g := validGraph()
	g.Entities = append(g.Entities, "Coffee")

	err := g.Validate()
	assert.ErrorIs(t, err, ErrGraphConsistency)
}

func TestGraphValidateRejectsDanglingRelationship(t *testing.T) {
	// A relationship whose target was never declared as an entity.
	g := validGraph()
	g.Relationships = append(g.Relationships, Relationship{
		Source: "Coffee", Relation: "improves", Target: "Quantum Computing", Citation: "https://nih.gov/a",
	})

	err := g.Validate()
	assert.ErrorIs(t, err, ErrGraphConsistency)
}

func TestRelationshipValidateRejectsMissingCitation(t *testing.T) {
	r := Relationship{Source: "A", Relation: "supports", Target: "B"}
	assert.ErrorIs(t, r.Validate(), ErrGraphConsistency)
}

func TestConflictGap(t *testing.T) {
	c := Conflict{SideACredibility: 0.3, SideBCredibility: 0.9}
	assert.InDelta(t, 0.6, c.Gap(), 1e-9)

	c = Conflict{SideACredibility: 0.9, SideBCredibility: 0.3}
	assert.InDelta(t, 0.6, c.Gap(), 1e-9)
}

func TestGraphRoundTrip(t *testing.T) {
	g := validGraph()

	data, err := g.Marshal()
	require.NoError(t, err)

	parsed, err := ParseKnowledgeGraph(data)
	require.NoError(t, err)
	assert.Equal(t, g, parsed)
}

func TestParseKnowledgeGraphRejectsInvalid(t *testing.T) {
	// Parsing re-validates: a structurally broken graph never comes back.
	_, err := ParseKnowledgeGraph([]byte(`{
		"entities": ["A"],
		"relationships": [{"source": "A", "relation": "supports", "target": "Ghost", "citation": "https://x.com"}],
		"conflicts": []
	}`))
	assert.ErrorIs(t, err, ErrGraphConsistency)
}

func TestGraphCloneIsIndependent(t *testing.T) {
	g := validGraph()
	clone := g.Clone()

	clone.Entities[0] = "Tea"
	clone.Relationships[0].Credibility = 0.1
	clone.Conflicts[0].Verdict = "changed"

	assert.Equal(t, "Coffee", g.Entities[0])
	assert.InDelta(t, 0.9, g.Relationships[0].Credibility, 1e-9)
	assert.Empty(t, g.Conflicts[0].Verdict)
}
