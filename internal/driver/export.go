package driver

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/agenthands/cartographer/internal/core/model"
)

const (
	saveEntityQuery = `
		MERGE (n:Entity {name: $name, session_id: $session_id})
		RETURN n.name AS name
	`

	saveRelationshipQuery = `
		MATCH (a:Entity {name: $source, session_id: $session_id})
		MATCH (b:Entity {name: $target, session_id: $session_id})
		MERGE (a)-[r:CLAIMS {relation: $relation, session_id: $session_id}]->(b)
		SET r.citation = $citation,
			r.credibility = $credibility
		RETURN r.relation AS relation
	`

	saveConflictQuery = `
		MERGE (c:Conflict {point_of_contention: $point_of_contention, session_id: $session_id})
		SET c.side_a = $side_a,
			c.side_b = $side_b,
			c.side_a_citation = $side_a_citation,
			c.side_b_citation = $side_b_citation,
			c.side_a_credibility = $side_a_credibility,
			c.side_b_credibility = $side_b_credibility,
			c.verdict = $verdict,
			c.verdict_confidence = $verdict_confidence
		RETURN c.point_of_contention AS point_of_contention
	`
)

// Exporter writes a session's knowledge graph to a GraphDriver. Entities
// go first so relationship MATCH clauses find their endpoints.
type Exporter struct {
	driver GraphDriver
	log    *zap.Logger
}

func NewExporter(driver GraphDriver, log *zap.Logger) *Exporter {
	return &Exporter{driver: driver, log: log}
}

// Export is idempotent per session: every query is a MERGE keyed on the
// session id, so re-exporting after a resume updates in place.
func (e *Exporter) Export(ctx context.Context, sessionID string, g model.KnowledgeGraph) error {
	for _, name := range g.Entities {
		err := e.driver.ExecuteQuery(ctx, saveEntityQuery, map[string]any{
			"name":       name,
			"session_id": sessionID,
		})
		if err != nil {
			return fmt.Errorf("export entity %q: %w", name, err)
		}
	}

	for _, rel := range g.Relationships {
		err := e.driver.ExecuteQuery(ctx, saveRelationshipQuery, map[string]any{
			"source":      rel.Source,
			"target":      rel.Target,
			"relation":    rel.Relation,
			"citation":    rel.Citation,
			"credibility": rel.Credibility,
			"session_id":  sessionID,
		})
		if err != nil {
			return fmt.Errorf("export relationship %q: %w", rel.Claim(), err)
		}
	}

	for _, c := range g.Conflicts {
		err := e.driver.ExecuteQuery(ctx, saveConflictQuery, map[string]any{
			"point_of_contention": c.PointOfContention,
			"side_a":              c.SideA,
			"side_b":              c.SideB,
			"side_a_citation":     c.SideACitation,
			"side_b_citation":     c.SideBCitation,
			"side_a_credibility":  c.SideACredibility,
			"side_b_credibility":  c.SideBCredibility,
			"verdict":             c.Verdict,
			"verdict_confidence":  c.VerdictConfidence,
			"session_id":          sessionID,
		})
		if err != nil {
			return fmt.Errorf("export conflict %q: %w", c.PointOfContention, err)
		}
	}

	e.log.Info("graph exported",
		zap.String("session_id", sessionID),
		zap.Int("entities", len(g.Entities)),
		zap.Int("relationships", len(g.Relationships)),
		zap.Int("conflicts", len(g.Conflicts)))
	return nil
}
