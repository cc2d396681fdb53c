package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[workflow]
max_iterations = 5
min_sources = 4

[scoring]
credibility_gap = 0.3
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Workflow.MaxIterations)
	assert.Equal(t, 4, cfg.Workflow.MinSources)
	assert.InDelta(t, 0.3, cfg.Scoring.CredibilityGap, 1e-9)
	// Untouched sections keep their defaults.
	assert.Equal(t, "tavily", cfg.Search.Provider)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "claude")
	t.Setenv("TAVILY_API_KEY", "tv-key")
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_ITERATIONS", "2")

	cfg := Default()
	cfg.ApplyEnv()

	assert.Equal(t, "claude", cfg.LLM.Provider)
	assert.Equal(t, "tv-key", cfg.Search.TavilyAPIKey)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Workflow.MaxIterations)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Workflow.MaxIterations = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Search.Provider = "askjeeves"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Scoring.FuzzyThreshold = 1.5
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Scoring.ConsensusThreshold = 0
	assert.Error(t, cfg.Validate())
}
