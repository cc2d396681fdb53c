package synthesis

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/agenthands/cartographer/internal/core/model"
	"github.com/agenthands/cartographer/internal/llm"
)

// Result is what the narrative generator hands back for a finalized graph.
type Result struct {
	Consensus     []string
	Battlegrounds []model.Battleground
	ReportText    string
}

// Synthesizer derives consensus points and battleground topics from the
// scored graph and asks the LLM for the prose report.
type Synthesizer struct {
	llm                llm.Client
	consensusThreshold float64 // supermajority of citing sources
	gapThreshold       float64
	maxRetries         int
	log                *zap.Logger
}

func New(client llm.Client, consensusThreshold, gapThreshold float64, maxRetries int, log *zap.Logger) *Synthesizer {
	return &Synthesizer{
		llm:                client,
		consensusThreshold: consensusThreshold,
		gapThreshold:       gapThreshold,
		maxRetries:         maxRetries,
		log:                log,
	}
}

// Consensus returns claims supported by at least the configured
// supermajority of distinct citing sources with decent average credibility.
func (s *Synthesizer) Consensus(g model.KnowledgeGraph) []string {
	type group struct {
		claim     string
		citations map[string]bool
		credSum   float64
		count     int
	}
	groups := make(map[string]*group)
	var order []string
	totalSources := make(map[string]bool)

	for _, rel := range g.Relationships {
		totalSources[rel.Citation] = true
		key := rel.Claim()
		grp, ok := groups[key]
		if !ok {
			grp = &group{claim: key, citations: make(map[string]bool)}
			groups[key] = grp
			order = append(order, key)
		}
		grp.citations[rel.Citation] = true
		grp.credSum += rel.Credibility
		grp.count++
	}

	if len(totalSources) == 0 {
		return nil
	}

	var out []string
	for _, key := range order {
		grp := groups[key]
		support := float64(len(grp.citations)) / float64(len(totalSources))
		avgCred := grp.credSum / float64(grp.count)
		if support >= s.consensusThreshold && avgCred >= 0.6 {
			out = append(out, fmt.Sprintf("%s (supported by %d sources, avg credibility %.2f)",
				grp.claim, len(grp.citations), avgCred))
		}
	}
	return out
}

// Battlegrounds converts resolved conflicts into report topics.
func (s *Synthesizer) Battlegrounds(g model.KnowledgeGraph) []model.Battleground {
	var out []model.Battleground
	for _, c := range g.Conflicts {
		out = append(out, model.Battleground{
			Topic: c.PointOfContention,
			Claims: []string{
				fmt.Sprintf("side A: %s (credibility %.2f)", c.SideA, c.SideACredibility),
				fmt.Sprintf("side B: %s (credibility %.2f)", c.SideB, c.SideBCredibility),
			},
			DisagreementReason: s.disagreementReason(c),
			Verdict:            c.Verdict,
			VerdictConfidence:  c.VerdictConfidence,
		})
	}
	return out
}

// disagreementReason is a metadata-only heuristic; it never claims more
// than citations can show.
func (s *Synthesizer) disagreementReason(c model.Conflict) string {
	if c.Gap() > s.gapThreshold {
		return "the sources differ sharply in credibility"
	}
	instA := institutional(c.SideACitation)
	instB := institutional(c.SideBCitation)
	if instA != instB {
		return "institutional and commercial sources disagree"
	}
	return "comparably credible sources draw on different evidence"
}

func institutional(citation string) bool {
	lower := strings.ToLower(citation)
	return strings.Contains(lower, ".edu") || strings.Contains(lower, ".gov")
}

// Synthesize produces the final result for a scored, resolved graph.
func (s *Synthesizer) Synthesize(ctx context.Context, topic string, g model.KnowledgeGraph) (Result, error) {
	res := Result{
		Consensus:     s.Consensus(g),
		Battlegrounds: s.Battlegrounds(g),
	}

	prompt := s.buildPrompt(topic, g, res.Consensus, res.Battlegrounds)

	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		report, err := s.llm.Generate(ctx, prompt)
		if err != nil {
			lastErr = err
			s.log.Warn("report generation failed",
				zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}
		if len(strings.TrimSpace(report)) < 100 {
			lastErr = fmt.Errorf("generated report is too short")
			s.log.Warn("report too short", zap.Int("attempt", attempt+1))
			continue
		}
		res.ReportText = report
		return res, nil
	}

	return res, fmt.Errorf("report generation failed after %d attempts: %w", s.maxRetries, lastErr)
}

func (s *Synthesizer) buildPrompt(topic string, g model.KnowledgeGraph,
	consensus []string, battlegrounds []model.Battleground) string {

	consensusText := "- no strong consensus points identified\n"
	if len(consensus) > 0 {
		var b strings.Builder
		for _, point := range consensus {
			fmt.Fprintf(&b, "- %s\n", point)
		}
		consensusText = b.String()
	}

	battlegroundText := "none\n"
	if len(battlegrounds) > 0 {
		var b strings.Builder
		for i, bt := range battlegrounds {
			fmt.Fprintf(&b, "%d. %s\n", i+1, bt.Topic)
			for _, claim := range bt.Claims {
				fmt.Fprintf(&b, "   - %s\n", claim)
			}
			fmt.Fprintf(&b, "   reason: %s\n   verdict: %s (confidence %.2f)\n",
				bt.DisagreementReason, bt.Verdict, bt.VerdictConfidence)
		}
		battlegroundText = b.String()
	}

	var rels strings.Builder
	for i, rel := range g.Relationships {
		if i >= 20 {
			break
		}
		fmt.Fprintf(&rels, "%d. %s (credibility %.2f)\n", i+1, rel.Claim(), rel.Credibility)
	}

	return fmt.Sprintf(`Role: you are a principal investigator synthesizing research findings.

Write a strategic research report on %q.

Graph summary: %d entities, %d relationships, %d conflicts.

Key relationships:
%s
Consensus points:
%s
Battleground topics:
%s
Structure the report with three sections:
1. The Consensus: what nearly all sources agree on.
2. The Battleground: where and why sources disagree.
3. The Verdict: which side is more likely correct per battleground, given source credibility.

Return plain text with clear section headers.`,
		topic, len(g.Entities), len(g.Relationships), len(g.Conflicts),
		rels.String(), consensusText, battlegroundText)
}
