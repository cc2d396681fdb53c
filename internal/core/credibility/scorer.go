package credibility

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/agenthands/cartographer/internal/core/model"
)

// Weights for combining the three sub-scores. Each sub-score is clamped to
// [0,1] before weighting.
type Weights struct {
	Domain   float64
	Citation float64
	Recency  float64
}

// DefaultWeights is the 0.4 / 0.3 / 0.3 split.
var DefaultWeights = Weights{Domain: 0.4, Citation: 0.3, Recency: 0.3}

// Reputation tiers for specific well-known hosts.
var highAuthorityDomains = map[string]float64{
	"nature.com":    0.95,
	"science.org":   0.95,
	"ieee.org":      0.95,
	"acm.org":       0.95,
	"nih.gov":       1.0,
	"who.int":       0.95,
	"arxiv.org":     0.85,
	"wikipedia.org": 0.7,
	"bbc.com":       0.75,
	"reuters.com":   0.75,
	"nytimes.com":   0.75,
}

// Tier scores by TLD suffix, checked after the host table.
var tldScores = []struct {
	suffix string
	score  float64
}{
	{".edu", 1.0},
	{".gov", 1.0},
	{".org", 0.8},
	{".com", 0.6},
}

var (
	referencesRe  = regexp.MustCompile(`\b(references|bibliography|works cited|citations)\b`)
	inlineCiteRe  = regexp.MustCompile(`\[\d+\]|\(\d{4}\)|\[[\w ]+,\s*\d{4}\]`)
	credentialsRe = regexp.MustCompile(`\b(dr\.\s+\w+|phd|professor|researcher|scientist)\b`)
)

// Scorer maps a document's provenance metadata to a trust score in [0,1].
// The reference clock is fixed at construction, so one Scorer instance is a
// pure function of document metadata: identical input, identical score.
type Scorer struct {
	weights Weights
	now     time.Time
}

func NewScorer(w Weights, now time.Time) *Scorer {
	return &Scorer{weights: w, now: now}
}

// Score computes clamp(wD·domain + wC·citation + wR·recency, 0, 1).
func (s *Scorer) Score(doc model.Document) model.CredibilityScore {
	domain := clamp01(s.domainAuthority(doc))
	citation := clamp01(s.citationIndicators(doc.Text))
	recency := clamp01(s.recency(doc.RetrievedAt))

	overall := clamp01(s.weights.Domain*domain + s.weights.Citation*citation + s.weights.Recency*recency)

	return model.CredibilityScore{
		SourceURL:          doc.URL,
		DomainAuthority:    domain,
		CitationIndicators: citation,
		Recency:            recency,
		Overall:            overall,
	}
}

// ScoreAll maps every document's URL to its score.
func (s *Scorer) ScoreAll(docs []model.Document) map[string]model.CredibilityScore {
	scores := make(map[string]model.CredibilityScore, len(docs))
	for _, d := range docs {
		scores[d.URL] = s.Score(d)
	}
	return scores
}

func (s *Scorer) domainAuthority(doc model.Document) float64 {
	host := strings.ToLower(doc.Domain)
	if host == "" {
		if u, err := url.Parse(doc.URL); err == nil {
			host = strings.ToLower(u.Hostname())
		}
	}
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return 0.5
	}

	if score, ok := highAuthorityDomains[host]; ok {
		return score
	}
	for _, tier := range tldScores {
		if strings.HasSuffix(host, tier.suffix) {
			return tier.score
		}
	}
	// Unknown suffixes default low.
	return 0.5
}

// citationIndicators is an additive heuristic over textual signals, capped
// at 1.0: a references section (+0.3), inline citation markers (+0.2),
// author credentials (+0.3).
func (s *Scorer) citationIndicators(text string) float64 {
	lower := strings.ToLower(text)

	score := 0.0
	if referencesRe.MatchString(lower) {
		score += 0.3
	}
	if inlineCiteRe.MatchString(text) {
		score += 0.2
	}
	if credentialsRe.MatchString(lower) {
		score += 0.3
	}
	return score
}

// recency is a step function of document age against the scorer's fixed
// reference clock.
func (s *Scorer) recency(retrievedAt time.Time) float64 {
	age := s.now.Sub(retrievedAt)
	const year = 365 * 24 * time.Hour
	switch {
	case age < year:
		return 1.0
	case age < 2*year:
		return 0.8
	case age < 5*year:
		return 0.5
	default:
		return 0.3
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
