package graph

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/agenthands/cartographer/internal/core/dedupe"
	"github.com/agenthands/cartographer/internal/core/model"
)

// Fragment is a candidate graph delta produced by extraction or conflict
// detection. Nothing in a fragment is trusted until Merge validates it.
type Fragment struct {
	Entities      []string
	Relationships []model.Relationship
	Conflicts     []model.Conflict
}

// MergeStats summarizes what a merge accepted and dropped.
type MergeStats struct {
	EntitiesAdded        int
	RelationshipsAdded   int
	ConflictsAdded       int
	DroppedRelationships int
	DroppedConflicts     int
}

// Store owns the knowledge graph and the ingested documents. The workflow
// controller is the only writer, so the store carries no lock; concurrent
// readers get copies taken between phases.
type Store struct {
	graph   model.KnowledgeGraph
	docs    []model.Document
	docURLs map[string]bool
	matcher *dedupe.Matcher
	log     *zap.Logger
}

func NewStore(fuzzyThreshold float64, log *zap.Logger) *Store {
	return &Store{
		docURLs: make(map[string]bool),
		matcher: dedupe.NewMatcher(fuzzyThreshold),
		log:     log,
	}
}

// Restore seeds a store from a checkpointed state. The graph is validated
// before it is accepted.
func Restore(state model.WorkflowState, fuzzyThreshold float64, log *zap.Logger) (*Store, error) {
	if err := state.Graph.Validate(); err != nil {
		return nil, err
	}
	s := NewStore(fuzzyThreshold, log)
	s.graph = state.Graph.Clone()
	s.Ingest(state.Documents)
	return s, nil
}

// Ingest takes ownership of documents, dropping URL duplicates. Documents
// are immutable once ingested.
func (s *Store) Ingest(docs []model.Document) int {
	added := 0
	for _, d := range docs {
		if d.URL == "" || s.docURLs[d.URL] {
			continue
		}
		s.docURLs[d.URL] = true
		s.docs = append(s.docs, d)
		added++
	}
	return added
}

func (s *Store) Documents() []model.Document {
	return append([]model.Document(nil), s.docs...)
}

func (s *Store) HasDocument(url string) bool {
	return s.docURLs[url]
}

// Graph returns a deep copy of the current graph.
func (s *Store) Graph() model.KnowledgeGraph {
	return s.graph.Clone()
}

// Merge is the single mutator for graph structure.
//
// Incoming entities are fuzzily deduplicated against the existing entity
// set; relationship and conflict references are rewritten through the
// resulting alias map; anything whose endpoints or citations cannot be
// resolved is dropped and logged, never inserted dangling. Existing
// entities, relationships and conflicts are never removed. The merged
// candidate must survive a serialize/parse round trip before it replaces
// the current graph; otherwise the store keeps the last known good state.
func (s *Store) Merge(frag Fragment) (MergeStats, error) {
	var stats MergeStats

	next := s.graph.Clone()

	newEntities, aliases := s.matcher.Dedupe(frag.Entities, next.Entities)
	next.Entities = append(next.Entities, newEntities...)
	stats.EntitiesAdded = len(newEntities)

	resolve := func(name string) (string, bool) {
		if canonical, ok := aliases[name]; ok {
			return canonical, true
		}
		trimmed := strings.TrimSpace(name)
		if canonical, ok := aliases[trimmed]; ok {
			return canonical, true
		}
		return s.matcher.BestMatch(trimmed, next.Entities)
	}

	existingRels := make(map[string]bool, len(next.Relationships))
	for _, r := range next.Relationships {
		existingRels[relKey(r)] = true
	}
	for _, r := range frag.Relationships {
		src, okSrc := resolve(r.Source)
		tgt, okTgt := resolve(r.Target)
		if !okSrc || !okTgt {
			stats.DroppedRelationships++
			s.log.Warn("dropping relationship with unresolved endpoint",
				zap.String("source", r.Source),
				zap.String("target", r.Target),
				zap.String("relation", r.Relation))
			continue
		}
		r.Source, r.Target = src, tgt
		if err := r.Validate(); err != nil {
			stats.DroppedRelationships++
			s.log.Warn("dropping invalid relationship", zap.Error(err))
			continue
		}
		if !s.docURLs[r.Citation] {
			stats.DroppedRelationships++
			s.log.Warn("dropping relationship with unknown citation",
				zap.String("citation", r.Citation))
			continue
		}
		if existingRels[relKey(r)] {
			continue
		}
		existingRels[relKey(r)] = true
		next.Relationships = append(next.Relationships, r)
		stats.RelationshipsAdded++
	}

	existingConflicts := make(map[string]bool, len(next.Conflicts))
	for _, c := range next.Conflicts {
		existingConflicts[conflictKey(c)] = true
	}
	for _, c := range frag.Conflicts {
		if err := c.Validate(); err != nil {
			stats.DroppedConflicts++
			s.log.Warn("dropping invalid conflict", zap.Error(err))
			continue
		}
		if !s.docURLs[c.SideACitation] || !s.docURLs[c.SideBCitation] {
			stats.DroppedConflicts++
			s.log.Warn("dropping conflict with unknown citation",
				zap.String("side_a_citation", c.SideACitation),
				zap.String("side_b_citation", c.SideBCitation))
			continue
		}
		if existingConflicts[conflictKey(c)] {
			continue
		}
		existingConflicts[conflictKey(c)] = true
		next.Conflicts = append(next.Conflicts, c)
		stats.ConflictsAdded++
	}

	data, err := next.Marshal()
	if err != nil {
		return stats, err
	}
	parsed, err := model.ParseKnowledgeGraph(data)
	if err != nil {
		s.log.Error("merge aborted, candidate graph failed round trip", zap.Error(err))
		return stats, fmt.Errorf("%w: merged graph failed round trip: %v", model.ErrGraphConsistency, err)
	}

	s.graph = parsed
	return stats, nil
}

// Annotate propagates document credibility onto relationship and conflict
// sides by citation URL. Structure is untouched; uncited URLs fall back to
// the given default.
func (s *Store) Annotate(scores map[string]model.CredibilityScore, fallback float64) {
	for i := range s.graph.Relationships {
		s.graph.Relationships[i].Credibility = overallOr(scores, s.graph.Relationships[i].Citation, fallback)
	}
	for i := range s.graph.Conflicts {
		s.graph.Conflicts[i].SideACredibility = overallOr(scores, s.graph.Conflicts[i].SideACitation, fallback)
		s.graph.Conflicts[i].SideBCredibility = overallOr(scores, s.graph.Conflicts[i].SideBCitation, fallback)
	}
}

// SetVerdicts installs resolved conflicts. Only verdict fields may change;
// a resolved set of a different shape is rejected.
func (s *Store) SetVerdicts(resolved []model.Conflict) error {
	if len(resolved) != len(s.graph.Conflicts) {
		return fmt.Errorf("%w: verdict set has %d conflicts, graph has %d",
			model.ErrGraphConsistency, len(resolved), len(s.graph.Conflicts))
	}
	for i, c := range resolved {
		cur := s.graph.Conflicts[i]
		if c.PointOfContention != cur.PointOfContention ||
			c.SideACitation != cur.SideACitation ||
			c.SideBCitation != cur.SideBCitation {
			return fmt.Errorf("%w: verdict %d does not match its conflict", model.ErrGraphConsistency, i)
		}
	}
	s.graph.Conflicts = append([]model.Conflict(nil), resolved...)
	return nil
}

func overallOr(scores map[string]model.CredibilityScore, url string, fallback float64) float64 {
	if sc, ok := scores[url]; ok {
		return sc.Overall
	}
	return fallback
}

func relKey(r model.Relationship) string {
	return r.Source + "|" + r.Relation + "|" + r.Target + "|" + r.Citation
}

func conflictKey(c model.Conflict) string {
	return c.PointOfContention + "|" + c.SideACitation + "|" + c.SideBCitation
}
