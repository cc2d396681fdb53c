package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/agenthands/cartographer/internal/checkpoint"
	"github.com/agenthands/cartographer/internal/config"
	"github.com/agenthands/cartographer/internal/core/adversary"
	"github.com/agenthands/cartographer/internal/core/conflict"
	"github.com/agenthands/cartographer/internal/core/credibility"
	"github.com/agenthands/cartographer/internal/core/extraction"
	"github.com/agenthands/cartographer/internal/core/synthesis"
	"github.com/agenthands/cartographer/internal/core/workflow"
	"github.com/agenthands/cartographer/internal/driver"
	"github.com/agenthands/cartographer/internal/llm"
	"github.com/agenthands/cartographer/internal/logging"
	"github.com/agenthands/cartographer/internal/search"
	"github.com/agenthands/cartographer/internal/server"
)

const llmRetries = 3

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment as-is")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("No config file at %s, using defaults", cfgPath)
		cfg = config.Default()
	} else if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.Server.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	llmClient, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		logger.Fatal("failed to initialize LLM client", zap.Error(err))
	}

	primary, fallback := buildProviders(cfg.Search, logger)
	collector := search.NewCollector(primary, fallback, search.CollectorConfig{
		MaxPerQuery:    cfg.Search.MaxPerQuery,
		Concurrency:    cfg.Search.FetchConcurrency,
		FetchTimeout:   time.Duration(cfg.Search.FetchTimeoutSecs) * time.Second,
		MaxRetries:     cfg.Search.MaxRetries,
		InitialBackoff: time.Second,
		RequestsPerSec: cfg.Search.RequestsPerSec,
	}, logger)

	extractor := extraction.NewExtractor(llmClient, llmRetries, logger)
	adv := adversary.New(llmClient,
		time.Duration(cfg.Workflow.OutdatedAfterYears)*365*24*time.Hour,
		cfg.Workflow.MinCounterQueries, llmRetries, logger)
	engine := conflict.NewEngine(cfg.Scoring.CredibilityGap, logger)
	synth := synthesis.New(llmClient, cfg.Scoring.ConsensusThreshold,
		cfg.Scoring.CredibilityGap, llmRetries, logger)

	checkpoints, err := checkpoint.Open(cfg.Server.CheckpointPath)
	if err != nil {
		logger.Fatal("failed to open checkpoint store", zap.Error(err))
	}
	defer checkpoints.Close()

	var exporter workflow.Exporter
	if cfg.Server.GraphSinkURI != "" {
		bolt, err := driver.NewBoltDriver(cfg.Server.GraphSinkURI,
			cfg.Server.GraphSinkUser, cfg.Server.GraphSinkPass, logger)
		if err != nil {
			logger.Fatal("failed to connect to graph sink", zap.Error(err))
		}
		defer bolt.Close(ctx)
		if err := bolt.BuildIndices(ctx); err != nil {
			logger.Warn("graph sink index setup failed", zap.Error(err))
		}
		exporter = driver.NewExporter(bolt, logger)
	}

	registry := server.NewRegistry()
	machine := workflow.NewMachine(workflow.Settings{
		MaxIterations:      cfg.Workflow.MaxIterations,
		MinSources:         cfg.Workflow.MinSources,
		GatherQueryRetries: cfg.Workflow.GatherQueryRetries,
		PhaseTimeout:       time.Duration(cfg.Workflow.PhaseTimeoutSecs) * time.Second,
		FuzzyThreshold:     cfg.Scoring.FuzzyThreshold,
		Weights: credibility.Weights{
			Domain:   cfg.Scoring.DomainWeight,
			Citation: cfg.Scoring.CitationWeight,
			Recency:  cfg.Scoring.RecencyWeight,
		},
	}, collector, extractor, adv, engine, synth, checkpoints, exporter, registry.Update, logger)

	srv := server.New(machine, registry, logger)
	logger.Info("starting server", zap.Int("port", cfg.Server.Port))
	if err := srv.Run(cfg.Server.Port); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

// buildProviders returns the configured primary provider and, when both
// API keys are present, the other provider as fallback.
func buildProviders(cfg config.SearchConfig, logger *zap.Logger) (search.Provider, search.Provider) {
	var primary, fallback search.Provider
	switch cfg.Provider {
	case "serper":
		primary = search.NewSerperProvider(cfg.SerperAPIKey)
		if cfg.TavilyAPIKey != "" {
			fallback = search.NewTavilyProvider(cfg.TavilyAPIKey)
		}
	default:
		primary = search.NewTavilyProvider(cfg.TavilyAPIKey)
		if cfg.SerperAPIKey != "" {
			fallback = search.NewSerperProvider(cfg.SerperAPIKey)
		}
	}
	if fallback != nil {
		logger.Info("search fallback enabled", zap.String("fallback", fallback.Name()))
	}
	return primary, fallback
}
