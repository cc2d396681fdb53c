package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Relationship is a cited knowledge triplet. Credibility is 0 until the
// scoring phase annotates it.
type Relationship struct {
	Source      string  `json:"source"`
	Relation    string  `json:"relation"`
	Target      string  `json:"target"`
	Citation    string  `json:"citation"`
	Credibility float64 `json:"credibility"`
}

func (r Relationship) Validate() error {
	for field, v := range map[string]string{
		"source":   r.Source,
		"relation": r.Relation,
		"target":   r.Target,
		"citation": r.Citation,
	} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: relationship %s is empty", ErrGraphConsistency, field)
		}
	}
	if r.Credibility < 0 || r.Credibility > 1 {
		return fmt.Errorf("%w: relationship credibility %f out of range", ErrGraphConsistency, r.Credibility)
	}
	return nil
}

// Claim renders the triplet as a readable sentence fragment.
func (r Relationship) Claim() string {
	return fmt.Sprintf("%s %s %s", r.Source, r.Relation, r.Target)
}

// Conflict is a point of contention between two cited claims. Verdict and
// VerdictConfidence stay zero until the conflict engine resolves it.
type Conflict struct {
	PointOfContention string  `json:"point_of_contention"`
	SideA             string  `json:"side_a"`
	SideACitation     string  `json:"side_a_citation"`
	SideACredibility  float64 `json:"side_a_credibility"`
	SideB             string  `json:"side_b"`
	SideBCitation     string  `json:"side_b_citation"`
	SideBCredibility  float64 `json:"side_b_credibility"`
	Verdict           string  `json:"verdict,omitempty"`
	VerdictConfidence float64 `json:"verdict_confidence,omitempty"`
}

func (c Conflict) Validate() error {
	for field, v := range map[string]string{
		"point_of_contention": c.PointOfContention,
		"side_a":              c.SideA,
		"side_a_citation":     c.SideACitation,
		"side_b":              c.SideB,
		"side_b_citation":     c.SideBCitation,
	} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: conflict %s is empty", ErrGraphConsistency, field)
		}
	}
	for field, v := range map[string]float64{
		"side_a_credibility": c.SideACredibility,
		"side_b_credibility": c.SideBCredibility,
		"verdict_confidence": c.VerdictConfidence,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: conflict %s %f out of range", ErrGraphConsistency, field, v)
		}
	}
	return nil
}

// Gap is the absolute credibility difference between the two sides.
func (c Conflict) Gap() float64 {
	gap := c.SideACredibility - c.SideBCredibility
	if gap < 0 {
		gap = -gap
	}
	return gap
}

// KnowledgeGraph is the accumulated research graph. It matches the export
// format consumed by the visualization and API layers byte for byte.
type KnowledgeGraph struct {
	Entities      []string       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
	Conflicts     []Conflict     `json:"conflicts"`
}

// Validate checks entity uniqueness, required fields and referential
// integrity of every relationship.
func (g KnowledgeGraph) Validate() error {
	seen := make(map[string]struct{}, len(g.Entities))
	for _, e := range g.Entities {
		if strings.TrimSpace(e) == "" {
			return fmt.Errorf("%w: empty entity name", ErrGraphConsistency)
		}
		if _, dup := seen[e]; dup {
			return fmt.Errorf("%w: duplicate entity %q", ErrGraphConsistency, e)
		}
		seen[e] = struct{}{}
	}
	for _, r := range g.Relationships {
		if err := r.Validate(); err != nil {
			return err
		}
		if _, ok := seen[r.Source]; !ok {
			return fmt.Errorf("%w: relationship source %q not in entity set", ErrGraphConsistency, r.Source)
		}
		if _, ok := seen[r.Target]; !ok {
			return fmt.Errorf("%w: relationship target %q not in entity set", ErrGraphConsistency, r.Target)
		}
	}
	for _, c := range g.Conflicts {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (g KnowledgeGraph) HasEntity(name string) bool {
	for _, e := range g.Entities {
		if e == name {
			return true
		}
	}
	return false
}

// Marshal renders the canonical JSON form.
func (g KnowledgeGraph) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGraphConsistency, err)
	}
	return data, nil
}

// ParseKnowledgeGraph parses the canonical JSON form and validates it, so
// parse(marshal(g)) round-trips for every valid graph.
func ParseKnowledgeGraph(data []byte) (KnowledgeGraph, error) {
	var g KnowledgeGraph
	if err := json.Unmarshal(data, &g); err != nil {
		return KnowledgeGraph{}, fmt.Errorf("%w: %v", ErrGraphConsistency, err)
	}
	if err := g.Validate(); err != nil {
		return KnowledgeGraph{}, err
	}
	return g, nil
}

// Clone returns a deep copy.
func (g KnowledgeGraph) Clone() KnowledgeGraph {
	out := KnowledgeGraph{}
	if g.Entities != nil {
		out.Entities = append([]string(nil), g.Entities...)
	}
	if g.Relationships != nil {
		out.Relationships = append([]Relationship(nil), g.Relationships...)
	}
	if g.Conflicts != nil {
		out.Conflicts = append([]Conflict(nil), g.Conflicts...)
	}
	return out
}
