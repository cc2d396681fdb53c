package integration

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agenthands/cartographer/internal/checkpoint"
	"github.com/agenthands/cartographer/internal/core/adversary"
	"github.com/agenthands/cartographer/internal/core/conflict"
	"github.com/agenthands/cartographer/internal/core/credibility"
	"github.com/agenthands/cartographer/internal/core/extraction"
	"github.com/agenthands/cartographer/internal/core/model"
	"github.com/agenthands/cartographer/internal/core/synthesis"
	"github.com/agenthands/cartographer/internal/core/workflow"
	"github.com/agenthands/cartographer/internal/llm"
	"github.com/agenthands/cartographer/internal/search"
)

// fixedProvider answers every query with the same two sources: a strong
// institutional study and a weak enthusiast page that disagree.
type fixedProvider struct {
	mu      sync.Mutex
	queries []string
}

func (p *fixedProvider) Name() string { return "fixed" }

func (p *fixedProvider) Search(ctx context.Context, query string, maxResults int) ([]search.Result, error) {
	p.mu.Lock()
	p.queries = append(p.queries, query)
	p.mu.Unlock()
	return []search.Result{
		{
			URL:     "https://medicine.stanford.edu/fasting-trial",
			Title:   "Randomized trial of intermittent fasting",
			Content: "References [1] by Dr. Lee, PhD. Fasting reduces inflammation markers.",
		},
		{
			URL:     "https://fastinglife.net/miracle",
			Title:   "Fasting cured everything for me",
			Content: "Fasting increases inflammation according to something I read once.",
		},
	}, nil
}

const extractionJSON = `{
	"entities": ["Intermittent Fasting", "Inflammation"],
	"relationships": [
		{"source": "Intermittent Fasting", "relation": "reduces", "target": "Inflammation", "citation": "https://medicine.stanford.edu/fasting-trial"},
		{"source": "intermittent fasting", "relation": "increases", "target": "Inflammation", "citation": "https://fastinglife.net/miracle"}
	],
	"conflicts": []
}`

var reportText = strings.Repeat("Consensus, battleground and verdict are laid out in detail. ", 5)

func buildMachine(t *testing.T, client llm.Client, provider search.Provider,
	checkpoints workflow.CheckpointStore) *workflow.Machine {
	t.Helper()
	log := zap.NewNop()
	return workflow.NewMachine(workflow.Settings{
		MaxIterations:      2,
		MinSources:         2,
		GatherQueryRetries: 1,
		FuzzyThreshold:     0.85,
		Weights:            credibility.DefaultWeights,
	},
		search.NewCollector(provider, nil, search.CollectorConfig{RequestsPerSec: 10000}, log),
		extraction.NewExtractor(client, 3, log),
		adversary.New(client, 2*365*24*time.Hour, 1, 3, log),
		conflict.NewEngine(0.2, log),
		synthesis.New(client, 0.9, 0.2, 3, log),
		checkpoints, nil, nil, log)
}

func TestPipelineEndToEnd(t *testing.T) {
	checkpoints, err := checkpoint.Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	defer checkpoints.Close()

	provider := &fixedProvider{}
	client := &llm.MockClient{ResponseQueue: []string{
		extractionJSON,
		`{"counter_queries": ["evidence against intermittent fasting"]}`,
		`{"counter_queries": ["intermittent fasting adverse effects"]}`,
		reportText,
	}}

	m := buildMachine(t, client, provider, checkpoints)

	state, err := m.Start("intermittent fasting and inflammation")
	require.NoError(t, err)

	final, err := m.Run(context.Background(), state)
	require.NoError(t, err)

	// The session looped once, then hit the iteration bound.
	assert.Equal(t, model.PhaseComplete, final.Phase)
	assert.Equal(t, model.StatusCompleted, final.Status)
	assert.Equal(t, 1, final.Iteration)
	assert.True(t, final.Executed("evidence against intermittent fasting"))
	assert.False(t, final.Executed("intermittent fasting adverse effects"))

	// The lowercase near-duplicate entity was folded into the canonical one.
	assert.Equal(t, []string{"Intermittent Fasting", "Inflammation"}, final.Graph.Entities)
	require.Len(t, final.Graph.Relationships, 2)
	assert.Equal(t, "Intermittent Fasting", final.Graph.Relationships[1].Source)

	// Opposing polarities on the same pair became one resolved conflict,
	// won by the far more credible institutional source.
	require.Len(t, final.Graph.Conflicts, 1)
	c := final.Graph.Conflicts[0]
	assert.Equal(t, "effect of Intermittent Fasting on Inflammation", c.PointOfContention)
	assert.Equal(t, "https://fastinglife.net/miracle", c.SideACitation)
	assert.Equal(t, "https://medicine.stanford.edu/fasting-trial", c.SideBCitation)
	assert.True(t, strings.HasPrefix(c.Verdict, "side_b is better supported"))
	assert.Greater(t, c.VerdictConfidence, 0.2)

	assert.Equal(t, reportText, final.Report)
	require.Len(t, final.Battlegrounds, 1)
	assert.Equal(t, c.Verdict, final.Battlegrounds[0].Verdict)

	// Every phase boundary was checkpointed; the latest snapshot is the
	// terminal state.
	latest, err := checkpoints.Latest(final.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseComplete, latest.Phase)
	assert.Equal(t, final.Report, latest.Report)
}

func TestResumeCompletedSessionIsTerminal(t *testing.T) {
	checkpoints, err := checkpoint.Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	defer checkpoints.Close()

	done := model.WorkflowState{
		SessionID:     "s-done",
		Topic:         "coffee",
		Phase:         model.PhaseComplete,
		MaxIterations: 2,
		Status:        model.StatusCompleted,
	}
	require.NoError(t, checkpoints.Save(done))

	m := buildMachine(t, &llm.MockClient{}, &fixedProvider{}, checkpoints)

	state, err := m.Resume(context.Background(), "s-done")
	require.NoError(t, err)
	assert.Equal(t, model.PhaseComplete, state.Phase)
}

func TestResumeContinuesFromCheckpoint(t *testing.T) {
	// A session checkpointed at the score phase resumes and finishes
	// without re-running earlier phases.
	checkpoints, err := checkpoint.Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	defer checkpoints.Close()

	midway := model.WorkflowState{
		SessionID:     "s-mid",
		Topic:         "intermittent fasting and inflammation",
		Phase:         model.PhaseScore,
		Iteration:     1,
		MaxIterations: 2,
		Documents: []model.Document{
			{
				URL: "https://medicine.stanford.edu/fasting-trial", Title: "Trial",
				Text: "References [1] PhD", Domain: "medicine.stanford.edu",
				RetrievedAt: time.Now().UTC(),
			},
		},
		Graph: model.KnowledgeGraph{
			Entities: []string{"Intermittent Fasting", "Inflammation"},
			Relationships: []model.Relationship{
				{Source: "Intermittent Fasting", Relation: "reduces", Target: "Inflammation",
					Citation: "https://medicine.stanford.edu/fasting-trial"},
			},
		},
		ExtractedDocs:   1,
		ExecutedQueries: map[string]bool{"intermittent fasting and inflammation": true},
		Status:          model.StatusRunning,
	}
	require.NoError(t, checkpoints.Save(midway))

	provider := &fixedProvider{}
	client := &llm.MockClient{Response: reportText}
	m := buildMachine(t, client, provider, checkpoints)

	final, err := m.Resume(context.Background(), "s-mid")
	require.NoError(t, err)

	assert.Equal(t, model.PhaseComplete, final.Phase)
	assert.Equal(t, reportText, final.Report)
	// No gather happened on resume.
	assert.Empty(t, provider.queries)
	// Scoring annotated the surviving relationship.
	assert.Greater(t, final.Graph.Relationships[0].Credibility, 0.0)
}
