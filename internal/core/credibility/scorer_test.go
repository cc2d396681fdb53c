package credibility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/agenthands/cartographer/internal/core/model"
)

var refNow = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func docAt(url, domain, text string, retrieved time.Time) model.Document {
	return model.Document{URL: url, Title: "t", Text: text, Domain: domain, RetrievedAt: retrieved}
}

func TestScoreIsDeterministic(t *testing.T) {
	s := NewScorer(DefaultWeights, refNow)
	d := docAt("https://nature.com/x", "nature.com", "References [1] by Dr. Smith, PhD", refNow.AddDate(-1, -6, 0))

	first := s.Score(d)
	second := s.Score(d)
	assert.Equal(t, first, second)
}

func TestDomainAuthorityTiers(t *testing.T) {
	s := NewScorer(DefaultWeights, refNow)

	assert.InDelta(t, 1.0, s.domainAuthority(docAt("", "nih.gov", "", refNow)), 1e-9)
	assert.InDelta(t, 1.0, s.domainAuthority(docAt("", "mit.edu", "", refNow)), 1e-9)
	assert.InDelta(t, 0.95, s.domainAuthority(docAt("", "www.nature.com", "", refNow)), 1e-9)
	assert.InDelta(t, 0.8, s.domainAuthority(docAt("", "archive.org", "", refNow)), 1e-9)
	assert.InDelta(t, 0.6, s.domainAuthority(docAt("", "coffeeblog.com", "", refNow)), 1e-9)
	assert.InDelta(t, 0.5, s.domainAuthority(docAt("", "mystery.xyz", "", refNow)), 1e-9)

	// Host is recovered from the URL when the domain field is empty.
	assert.InDelta(t, 1.0, s.domainAuthority(docAt("https://www.cdc.gov/page", "", "", refNow)), 1e-9)
}

func TestCitationIndicators(t *testing.T) {
	s := NewScorer(DefaultWeights, refNow)

	assert.InDelta(t, 0.0, s.citationIndicators("just some text"), 1e-9)
	assert.InDelta(t, 0.3, s.citationIndicators("see the References section"), 1e-9)
	assert.InDelta(t, 0.5, s.citationIndicators("References: [1] study"), 1e-9)
	assert.InDelta(t, 0.8, s.citationIndicators("References [1], written by Dr. Jones, PhD"), 1e-9)
}

func TestRecencySteps(t *testing.T) {
	s := NewScorer(DefaultWeights, refNow)

	assert.InDelta(t, 1.0, s.recency(refNow.AddDate(0, -6, 0)), 1e-9)
	assert.InDelta(t, 0.8, s.recency(refNow.AddDate(-1, -6, 0)), 1e-9)
	assert.InDelta(t, 0.5, s.recency(refNow.AddDate(-3, 0, 0)), 1e-9)
	assert.InDelta(t, 0.3, s.recency(refNow.AddDate(-7, 0, 0)), 1e-9)
}

func TestScoreCombinesWeightedComponents(t *testing.T) {
	s := NewScorer(DefaultWeights, refNow)

	// domain 1.0, citations 0, recency 1.0 -> 0.4 + 0 + 0.3
	score := s.Score(docAt("https://nih.gov/x", "nih.gov", "plain text", refNow))
	assert.InDelta(t, 0.7, score.Overall, 1e-9)

	// Every component maxed still caps at 1.0.
	full := s.Score(docAt("https://nih.gov/x", "nih.gov",
		"References [1] by Dr. Smith, PhD, professor", refNow))
	assert.LessOrEqual(t, full.Overall, 1.0)
	assert.InDelta(t, 0.94, full.Overall, 1e-9)
}

func TestScoreStaysInBounds(t *testing.T) {
	s := NewScorer(Weights{Domain: 2, Citation: 2, Recency: 2}, refNow)
	score := s.Score(docAt("https://nih.gov/x", "nih.gov", "References [1] PhD", refNow))
	assert.LessOrEqual(t, score.Overall, 1.0)
	assert.GreaterOrEqual(t, score.Overall, 0.0)
}

func TestScoreAllKeysByURL(t *testing.T) {
	s := NewScorer(DefaultWeights, refNow)
	scores := s.ScoreAll([]model.Document{
		docAt("https://a.com/1", "a.com", "x", refNow),
		docAt("https://b.org/2", "b.org", "x", refNow),
	})

	assert.Len(t, scores, 2)
	assert.Equal(t, "https://a.com/1", scores["https://a.com/1"].SourceURL)
}
