package conflict

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/agenthands/cartographer/internal/core/model"
)

// Relation polarity vocabulary. Relations are tokenized on underscores and
// spaces; a relation is positive or negative if any token matches, neutral
// if none or both do. Neutral relations never produce conflicts.
var (
	positiveWords = wordSet("increases", "increase", "improves", "improve",
		"supports", "support", "boosts", "boost", "enhances", "enhance",
		"promotes", "promote", "benefits", "benefit", "strengthens",
		"strengthen", "raises", "raise", "accelerates", "accelerate", "helps", "help")

	negativeWords = wordSet("decreases", "decrease", "reduces", "reduce",
		"prevents", "prevent", "harms", "harm", "inhibits", "inhibit",
		"worsens", "worsen", "undermines", "undermine", "lowers", "lower",
		"blocks", "block", "suppresses", "suppress", "slows", "slow",
		"contradicts", "contradict", "refutes", "refute", "damages", "damage")
)

type polarity int

const (
	neutral polarity = iota
	positive
	negative
)

// Engine detects contradictory relationship pairs and computes
// credibility-weighted verdicts. GapThreshold is the credibility gap below
// which a conflict stays undecided.
type Engine struct {
	GapThreshold float64
	log          *zap.Logger
}

func NewEngine(gapThreshold float64, log *zap.Logger) *Engine {
	return &Engine{GapThreshold: gapThreshold, log: log}
}

// InsufficientEvidenceVerdict is the verdict for gaps at or below the
// threshold.
const InsufficientEvidenceVerdict = "insufficient evidence to determine a winner"

// Detect groups relationships by unordered entity pair and partitions each
// group by relation polarity. A pair with claims of both polarities yields
// exactly one Conflict, citing one representative claim per side: the claim
// with the highest-credibility citation once scores exist, the first
// encountered before that.
func (e *Engine) Detect(g model.KnowledgeGraph) []model.Conflict {
	type sides struct {
		pos, neg []model.Relationship
	}
	groups := make(map[string]*sides)
	var order []string

	for _, rel := range g.Relationships {
		pol := classify(rel.Relation)
		if pol == neutral {
			continue
		}
		key := pairKey(rel.Source, rel.Target)
		grp, ok := groups[key]
		if !ok {
			grp = &sides{}
			groups[key] = grp
			order = append(order, key)
		}
		if pol == positive {
			grp.pos = append(grp.pos, rel)
		} else {
			grp.neg = append(grp.neg, rel)
		}
	}

	var conflicts []model.Conflict
	for _, key := range order {
		grp := groups[key]
		if len(grp.pos) == 0 || len(grp.neg) == 0 {
			continue
		}
		a := representative(grp.pos)
		b := representative(grp.neg)
		c := model.Conflict{
			PointOfContention: contention(a),
			SideA:             a.Claim(),
			SideACitation:     a.Citation,
			SideACredibility:  a.Credibility,
			SideB:             b.Claim(),
			SideBCitation:     b.Citation,
			SideBCredibility:  b.Credibility,
		}
		conflicts = append(conflicts, c)
		e.log.Debug("conflict detected",
			zap.String("pair", key),
			zap.String("side_a", c.SideA),
			zap.String("side_b", c.SideB))
	}
	return conflicts
}

// Resolve assigns a verdict from the two credibility scores alone. A gap
// above the threshold favors the higher-credibility side with the gap as
// confidence; otherwise the evidence is insufficient and confidence is 0.5.
func (e *Engine) Resolve(c model.Conflict) model.Conflict {
	gap := c.Gap()
	switch {
	case gap > e.GapThreshold && c.SideACredibility > c.SideBCredibility:
		c.Verdict = fmt.Sprintf("side_a is better supported: %s", c.SideA)
		c.VerdictConfidence = gap
	case gap > e.GapThreshold:
		c.Verdict = fmt.Sprintf("side_b is better supported: %s", c.SideB)
		c.VerdictConfidence = gap
	default:
		c.Verdict = InsufficientEvidenceVerdict
		c.VerdictConfidence = 0.5
	}
	return c
}

// ResolveAll resolves every conflict in order.
func (e *Engine) ResolveAll(conflicts []model.Conflict) []model.Conflict {
	out := make([]model.Conflict, len(conflicts))
	for i, c := range conflicts {
		out[i] = e.Resolve(c)
	}
	return out
}

// representative picks the claim that speaks for a side. Before scoring all
// credibilities are zero, so the first encountered wins; after scoring the
// highest-credibility citation wins, first-encountered breaking ties.
func representative(rels []model.Relationship) model.Relationship {
	best := rels[0]
	for _, r := range rels[1:] {
		if r.Credibility > best.Credibility {
			best = r
		}
	}
	return best
}

func classify(relation string) polarity {
	tokens := strings.FieldsFunc(strings.ToLower(relation), func(r rune) bool {
		return r == '_' || r == ' ' || r == '-'
	})
	pos, neg := false, false
	for _, t := range tokens {
		if positiveWords[t] {
			pos = true
		}
		if negativeWords[t] {
			neg = true
		}
	}
	switch {
	case pos && !neg:
		return positive
	case neg && !pos:
		return negative
	default:
		return neutral
	}
}

// pairKey is unordered: (X,Y) and (Y,X) land in the same group.
func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func contention(rel model.Relationship) string {
	return fmt.Sprintf("effect of %s on %s", rel.Source, rel.Target)
}

func wordSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
