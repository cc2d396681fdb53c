package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

type LLMConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
}

type SearchConfig struct {
	Provider         string  `toml:"provider"` // tavily or serper
	TavilyAPIKey     string  `toml:"tavily_api_key"`
	SerperAPIKey     string  `toml:"serper_api_key"`
	MaxPerQuery      int     `toml:"max_per_query"`
	FetchConcurrency int     `toml:"fetch_concurrency"`
	FetchTimeoutSecs int     `toml:"fetch_timeout_secs"`
	MaxRetries       int     `toml:"max_retries"`
	RequestsPerSec   float64 `toml:"requests_per_sec"`
}

type WorkflowConfig struct {
	MaxIterations      int `toml:"max_iterations"`
	MinSources         int `toml:"min_sources"`
	MinCounterQueries  int `toml:"min_counter_queries"`
	GatherQueryRetries int `toml:"gather_query_retries"`
	PhaseTimeoutSecs   int `toml:"phase_timeout_secs"`
	OutdatedAfterYears int `toml:"outdated_after_years"`
}

type ScoringConfig struct {
	DomainWeight       float64 `toml:"domain_weight"`
	CitationWeight     float64 `toml:"citation_weight"`
	RecencyWeight      float64 `toml:"recency_weight"`
	CredibilityGap     float64 `toml:"credibility_gap"`
	ConsensusThreshold float64 `toml:"consensus_threshold"`
	FuzzyThreshold     float64 `toml:"fuzzy_match_threshold"`
}

type ServerConfig struct {
	Port           int    `toml:"port"`
	LogLevel       string `toml:"log_level"`
	CheckpointPath string `toml:"checkpoint_path"`
	GraphSinkURI   string `toml:"graph_sink_uri"`
	GraphSinkUser  string `toml:"graph_sink_user"`
	GraphSinkPass  string `toml:"graph_sink_password"`
}

type Config struct {
	LLM      LLMConfig      `toml:"llm"`
	Search   SearchConfig   `toml:"search"`
	Workflow WorkflowConfig `toml:"workflow"`
	Scoring  ScoringConfig  `toml:"scoring"`
	Server   ServerConfig   `toml:"server"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Search: SearchConfig{
			Provider:         "tavily",
			MaxPerQuery:      10,
			FetchConcurrency: 5,
			FetchTimeoutSecs: 30,
			MaxRetries:       3,
			RequestsPerSec:   2,
		},
		Workflow: WorkflowConfig{
			MaxIterations:      3,
			MinSources:         10,
			MinCounterQueries:  3,
			GatherQueryRetries: 3,
			PhaseTimeoutSecs:   300,
			OutdatedAfterYears: 2,
		},
		Scoring: ScoringConfig{
			DomainWeight:       0.4,
			CitationWeight:     0.3,
			RecencyWeight:      0.3,
			CredibilityGap:     0.2,
			ConsensusThreshold: 0.9,
			FuzzyThreshold:     0.85,
		},
		Server: ServerConfig{
			Port:           8080,
			LogLevel:       "info",
			CheckpointPath: "cartographer.db",
		},
	}
}

// Load reads a TOML config file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides selected fields from environment variables. Secrets
// normally arrive this way rather than through the file.
func (c *Config) ApplyEnv() {
	setStr := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setStr(&c.LLM.Provider, "LLM_PROVIDER")
	setStr(&c.LLM.Model, "LLM_MODEL")
	setStr(&c.LLM.APIKey, "LLM_API_KEY")
	setStr(&c.LLM.BaseURL, "LLM_BASE_URL")
	setStr(&c.Search.Provider, "SEARCH_PROVIDER")
	setStr(&c.Search.TavilyAPIKey, "TAVILY_API_KEY")
	setStr(&c.Search.SerperAPIKey, "SERPER_API_KEY")
	setStr(&c.Server.LogLevel, "LOG_LEVEL")
	setStr(&c.Server.CheckpointPath, "CHECKPOINT_PATH")
	setStr(&c.Server.GraphSinkURI, "GRAPH_SINK_URI")
	setStr(&c.Server.GraphSinkUser, "GRAPH_SINK_USER")
	setStr(&c.Server.GraphSinkPass, "GRAPH_SINK_PASSWORD")

	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workflow.MaxIterations = n
		}
	}
	if v := os.Getenv("MIN_SOURCES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workflow.MinSources = n
		}
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Workflow.MaxIterations < 1 {
		return fmt.Errorf("workflow.max_iterations must be at least 1")
	}
	if c.Workflow.MinSources < 1 {
		return fmt.Errorf("workflow.min_sources must be at least 1")
	}
	if c.Search.Provider != "tavily" && c.Search.Provider != "serper" {
		return fmt.Errorf("search.provider must be 'tavily' or 'serper'")
	}
	if c.Scoring.FuzzyThreshold <= 0 || c.Scoring.FuzzyThreshold > 1 {
		return fmt.Errorf("scoring.fuzzy_match_threshold must be in (0,1]")
	}
	if c.Scoring.CredibilityGap < 0 || c.Scoring.CredibilityGap > 1 {
		return fmt.Errorf("scoring.credibility_gap must be in [0,1]")
	}
	if c.Scoring.ConsensusThreshold <= 0 || c.Scoring.ConsensusThreshold > 1 {
		return fmt.Errorf("scoring.consensus_threshold must be in (0,1]")
	}
	return nil
}
