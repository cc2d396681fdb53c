package extraction

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/agenthands/cartographer/internal/core/common"
	"github.com/agenthands/cartographer/internal/core/graph"
	"github.com/agenthands/cartographer/internal/core/model"
	"github.com/agenthands/cartographer/internal/llm"
)

const maxContentChars = 2000

// payload is the raw shape expected from the model. It stays inside this
// package; callers only ever see a validated Fragment.
type payload struct {
	Entities      []string `json:"entities"`
	Relationships []struct {
		Source   string `json:"source"`
		Relation string `json:"relation"`
		Target   string `json:"target"`
		Citation string `json:"citation"`
	} `json:"relationships"`
	Conflicts []struct {
		PointOfContention string `json:"point_of_contention"`
		SideA             string `json:"side_a"`
		SideACitation     string `json:"side_a_citation"`
		SideB             string `json:"side_b"`
		SideBCitation     string `json:"side_b_citation"`
	} `json:"conflicts"`
}

// Extractor turns documents into candidate graph fragments via the LLM.
// Malformed output is retried with a schema reminder appended, then
// escalated as ErrExtractionSchema.
type Extractor struct {
	llm        llm.Client
	maxRetries int
	log        *zap.Logger
}

func NewExtractor(client llm.Client, maxRetries int, log *zap.Logger) *Extractor {
	return &Extractor{llm: client, maxRetries: maxRetries, log: log}
}

// Extract analyzes the documents and returns a candidate fragment. The
// fragment is structurally typed but not yet merged or trusted; the graph
// store validates references during merge.
func (e *Extractor) Extract(ctx context.Context, topic string, docs []model.Document) (graph.Fragment, error) {
	prompt := e.buildPrompt(topic, docs)

	var lastErr error
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		if attempt > 0 {
			prompt = prompt + "\n\n" + schemaReminder
		}

		response, err := e.llm.Generate(ctx, prompt)
		if err != nil {
			lastErr = err
			e.log.Warn("extraction generation failed",
				zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}

		parsed, err := common.ParseJSON[payload](response)
		if err != nil {
			lastErr = err
			e.log.Warn("extraction output failed schema parse",
				zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}

		return e.toFragment(parsed), nil
	}

	return graph.Fragment{}, fmt.Errorf("%w: after %d attempts: %v",
		model.ErrExtractionSchema, e.maxRetries, lastErr)
}

// toFragment converts the raw payload into strict records, skipping items
// with missing required fields.
func (e *Extractor) toFragment(p payload) graph.Fragment {
	frag := graph.Fragment{Entities: p.Entities}

	for _, r := range p.Relationships {
		if r.Source == "" || r.Relation == "" || r.Target == "" || r.Citation == "" {
			e.log.Warn("skipping relationship with missing fields",
				zap.String("source", r.Source), zap.String("target", r.Target))
			continue
		}
		frag.Relationships = append(frag.Relationships, model.Relationship{
			Source:   r.Source,
			Relation: r.Relation,
			Target:   r.Target,
			Citation: r.Citation,
		})
	}

	for _, c := range p.Conflicts {
		if c.PointOfContention == "" || c.SideA == "" || c.SideACitation == "" ||
			c.SideB == "" || c.SideBCitation == "" {
			e.log.Warn("skipping conflict with missing fields",
				zap.String("point_of_contention", c.PointOfContention))
			continue
		}
		frag.Conflicts = append(frag.Conflicts, model.Conflict{
			PointOfContention: c.PointOfContention,
			SideA:             c.SideA,
			SideACitation:     c.SideACitation,
			SideB:             c.SideB,
			SideBCitation:     c.SideBCitation,
		})
	}

	return frag
}

func (e *Extractor) buildPrompt(topic string, docs []model.Document) string {
	var sources strings.Builder
	for i, doc := range docs {
		text := doc.Text
		if len(text) > maxContentChars {
			text = text[:maxContentChars] + "..."
		}
		fmt.Fprintf(&sources, "\n--- Source %d ---\nTitle: %s\nURL: %s\nContent: %s\n",
			i+1, doc.Title, doc.URL, text)
	}

	return fmt.Sprintf(`You are a knowledge cartographer. Extract structured knowledge about %q from the sources below.

Rules:
1. List every concept mentioned as an entity: people, organizations, systems, treatments, technologies, methods.
2. Relationship "source" and "target" must exactly match names in the "entities" list.
3. Use specific relations such as "increases", "reduces", "prevents", "improves".
4. "citation" must be the URL of the source that supports the claim.
5. Record a conflict wherever two sources disagree, citing one source per side.

Output JSON only, matching exactly:
{
  "entities": ["Entity1", "Entity2"],
  "relationships": [
    {"source": "Entity1", "relation": "increases", "target": "Entity2", "citation": "https://example.com"}
  ],
  "conflicts": [
    {"point_of_contention": "what is disputed", "side_a": "first claim", "side_a_citation": "https://a.com", "side_b": "opposing claim", "side_b_citation": "https://b.com"}
  ]
}

Sources:
%s`, topic, sources.String())
}

const schemaReminder = `REMINDER: your previous answer did not parse. Return ONLY a single JSON object with keys "entities" (array of strings), "relationships" (array of objects with "source", "relation", "target", "citation") and "conflicts" (array of objects with "point_of_contention", "side_a", "side_a_citation", "side_b", "side_b_citation"). No prose, no markdown.`
