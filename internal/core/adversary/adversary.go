package adversary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agenthands/cartographer/internal/core/common"
	"github.com/agenthands/cartographer/internal/core/model"
	"github.com/agenthands/cartographer/internal/llm"
)

// Weakness is a detected deficiency in the current evidence.
type Weakness struct {
	Type        string `json:"type"` // single_source, outdated, potential_bias
	Description string `json:"description"`
	Claim       string `json:"claim"`
}

var biasKeywords = []string{
	"opinion", "editorial", "blog", "sponsored",
	"advertisement", "promoted", "partisan",
}

var biasDomainPatterns = []string{
	".blog", "wordpress.com", "medium.com", "substack.com",
}

// Adversary runs the critique phase: deterministic weakness analysis over
// the graph plus LLM-generated counter-queries aimed at debunking the
// current findings.
type Adversary struct {
	llm           llm.Client
	outdatedAfter time.Duration
	minQueries    int
	maxRetries    int
	log           *zap.Logger
}

func New(client llm.Client, outdatedAfter time.Duration, minQueries, maxRetries int, log *zap.Logger) *Adversary {
	return &Adversary{
		llm:           client,
		outdatedAfter: outdatedAfter,
		minQueries:    minQueries,
		maxRetries:    maxRetries,
		log:           log,
	}
}

// Analyze flags single-citation claims, documents past the age threshold,
// and bias indicators. Pure inspection, no LLM involved.
func (a *Adversary) Analyze(g model.KnowledgeGraph, docs []model.Document, now time.Time) []Weakness {
	var weaknesses []Weakness
	weaknesses = append(weaknesses, a.singleSourceClaims(g)...)
	weaknesses = append(weaknesses, a.outdatedDocuments(docs, now)...)
	weaknesses = append(weaknesses, a.biasIndicators(docs)...)
	a.log.Info("weakness analysis complete", zap.Int("weaknesses", len(weaknesses)))
	return weaknesses
}

func (a *Adversary) singleSourceClaims(g model.KnowledgeGraph) []Weakness {
	citations := make(map[string][]string) // claim -> distinct citation URLs
	var order []string
	for _, rel := range g.Relationships {
		claim := rel.Claim()
		if _, seen := citations[claim]; !seen {
			order = append(order, claim)
		}
		urls := citations[claim]
		dup := false
		for _, u := range urls {
			if u == rel.Citation {
				dup = true
				break
			}
		}
		if !dup {
			citations[claim] = append(urls, rel.Citation)
		}
	}

	var out []Weakness
	for _, claim := range order {
		if urls := citations[claim]; len(urls) == 1 {
			out = append(out, Weakness{
				Type:        "single_source",
				Description: fmt.Sprintf("claim relies on only one source: %s", urls[0]),
				Claim:       claim,
			})
		}
	}
	return out
}

func (a *Adversary) outdatedDocuments(docs []model.Document, now time.Time) []Weakness {
	var out []Weakness
	for _, doc := range docs {
		if age := doc.Age(now); age > a.outdatedAfter {
			years := age.Hours() / (365.25 * 24)
			out = append(out, Weakness{
				Type:        "outdated",
				Description: fmt.Sprintf("source is %.1f years old: %s", years, doc.URL),
				Claim:       doc.Title,
			})
		}
	}
	return out
}

func (a *Adversary) biasIndicators(docs []model.Document) []Weakness {
	var out []Weakness
	for _, doc := range docs {
		var found []string
		title := strings.ToLower(doc.Title)
		rawURL := strings.ToLower(doc.URL)
		for _, kw := range biasKeywords {
			if strings.Contains(title, kw) || strings.Contains(rawURL, kw) {
				found = append(found, fmt.Sprintf("keyword %q", kw))
			}
		}
		domain := strings.ToLower(doc.Domain)
		for _, pattern := range biasDomainPatterns {
			if strings.Contains(domain, pattern) {
				found = append(found, fmt.Sprintf("domain pattern %q", pattern))
			}
		}
		if len(found) > 0 {
			out = append(out, Weakness{
				Type:        "potential_bias",
				Description: "potential bias indicators: " + strings.Join(found, ", "),
				Claim:       doc.Title,
			})
		}
	}
	return out
}

type counterQueryPayload struct {
	CounterQueries []string `json:"counter_queries"`
}

// CounterQueries asks the LLM for adversarial search queries and filters
// out anything already executed this session. Falling short of the minimum
// after retries is degraded, not fatal: whatever fresh queries exist are
// returned.
func (a *Adversary) CounterQueries(ctx context.Context, topic string, g model.KnowledgeGraph,
	weaknesses []Weakness, executed map[string]bool) ([]string, error) {

	prompt := a.buildPrompt(topic, g, weaknesses)

	var lastErr error
	for attempt := 0; attempt < a.maxRetries; attempt++ {
		response, err := a.llm.Generate(ctx, prompt)
		if err != nil {
			lastErr = err
			a.log.Warn("counter-query generation failed",
				zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}

		parsed, err := common.ParseJSON[counterQueryPayload](response)
		if err != nil {
			lastErr = err
			a.log.Warn("counter-query output failed schema parse",
				zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}

		fresh := dedupe(parsed.CounterQueries, executed)
		if len(fresh) >= a.minQueries {
			return fresh, nil
		}
		lastErr = fmt.Errorf("only %d fresh queries, want %d", len(fresh), a.minQueries)
		a.log.Warn("counter-query shortfall", zap.Int("attempt", attempt+1),
			zap.Int("fresh", len(fresh)), zap.Int("want", a.minQueries))
		if attempt == a.maxRetries-1 && len(fresh) > 0 {
			return fresh, nil
		}
	}

	return nil, fmt.Errorf("%w: counter-query generation: %v", model.ErrExtractionSchema, lastErr)
}

func dedupe(queries []string, executed map[string]bool) []string {
	seen := make(map[string]bool, len(queries))
	var out []string
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" || seen[q] || executed[q] {
			continue
		}
		seen[q] = true
		out = append(out, q)
	}
	return out
}

func (a *Adversary) buildPrompt(topic string, g model.KnowledgeGraph, weaknesses []Weakness) string {
	var findings strings.Builder
	fmt.Fprintf(&findings, "Topic: %s\n\nEntities: %s\n\nKey relationships:\n",
		topic, strings.Join(head(g.Entities, 20), ", "))
	for i, rel := range g.Relationships {
		if i >= 10 {
			break
		}
		fmt.Fprintf(&findings, "%d. %s\n", i+1, rel.Claim())
	}

	var weak strings.Builder
	for i, w := range weaknesses {
		if i >= 10 {
			break
		}
		fmt.Fprintf(&weak, "- %s: %s\n", w.Type, w.Description)
	}

	return fmt.Sprintf(`Role: you are a red-teamer and academic skeptic.

Current findings on %q:
%s
Identified weaknesses:
%s
Generate %d new, aggressive search queries designed to debunk the current findings. Target single-source claims, outdated statistics and biased sources. Example: if a finding is "coffee is good for health", query for "negative cardiovascular effects of daily caffeine intake".

Output JSON only:
{"counter_queries": ["query 1", "query 2", "query 3"]}`,
		topic, findings.String(), weak.String(), a.minQueries)
}

func head(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
