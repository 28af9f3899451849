// Package main implements the menos pipeline worker: a standalone process
// that polls pending jobs and runs the entity resolution pipeline, without
// serving HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/menosai/menos/internal/chunking"
	"github.com/menosai/menos/internal/enrich"
	"github.com/menosai/menos/internal/fetchers"
	"github.com/menosai/menos/internal/graphstore"
	"github.com/menosai/menos/internal/graphstore/neostore"
	"github.com/menosai/menos/internal/graphstore/vectorstore"
	"github.com/menosai/menos/internal/keyword"
	"github.com/menosai/menos/internal/orchestrator"
	"github.com/menosai/menos/internal/providers/httpllm"
	"github.com/menosai/menos/internal/resolver"
)

type config struct {
	Neo4jURL         string
	Neo4jUser        string
	Neo4jPass        string
	QdrantURL        string
	QdrantCollection string
	LLMBaseURL       string
	LLMAPIKey        string
	LLMModel         string
	GitHubToken      string
	PipelineVersion  int
	Workers          int
	NatsURL          string
}

func loadConfig() config {
	return config{
		Neo4jURL:         envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser:        envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:        envOr("NEO4J_PASS", "password"),
		QdrantURL:        envOr("QDRANT_URL", "localhost:6334"),
		QdrantCollection: envOr("QDRANT_COLLECTION", "menos_chunks"),
		LLMBaseURL:       envOr("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMAPIKey:        envOr("LLM_API_KEY", ""),
		LLMModel:         envOr("LLM_MODEL", "gpt-4o-mini"),
		GitHubToken:      envOr("GITHUB_TOKEN", ""),
		PipelineVersion:  envOrInt("PIPELINE_VERSION", 1),
		Workers:          envOrInt("WORKERS", 4),
		NatsURL:          envOr("NATS_URL", ""),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return fallback
	}
	return n
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(loadConfig(), logger); err != nil {
		logger.Error("worker exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	neo4jDriver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer neo4jDriver.Close(ctx)
	graphStore := neostore.New(neo4jDriver)

	vectorStore, err := vectorstore.New(cfg.QdrantURL, cfg.QdrantCollection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()

	store := graphstore.New(graphStore, vectorStore)

	gen := httpllm.NewChatGenerator(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel)
	embedder := httpllm.NewOllamaEmbedder(cfg.LLMBaseURL, "nomic-embed-text", 768)

	matcher := keyword.NewMatcher()
	if entities, err := store.ListAllEntities(ctx); err != nil {
		logger.Warn("failed to preload keyword matcher", "error", err)
	} else {
		matcher.Rebuild(entities)
	}

	enricher := enrich.New(gen, enrich.DefaultConfig(), logger)
	resolverSvc := resolver.New(
		store,
		matcher,
		enricher,
		fetchers.NewGitHubClient(cfg.GitHubToken),
		fetchers.NewArXivClient(),
		resolver.Config{FetchExternalMetadata: true},
		logger,
	)

	webhookDeliverer := orchestrator.NewWebhookDeliverer(nil, logger)
	orchSvc := orchestrator.New(store, resolverSvc, webhookDeliverer, orchestrator.Config{
		UnifiedPipelineEnabled: true,
		PipelineVersion:        cfg.PipelineVersion,
		Workers:                cfg.Workers,
		PollInterval:           2 * time.Second,
	}, logger).WithChunking(chunking.New(embedder, chunking.DefaultConfig()), store)

	if cfg.NatsURL != "" {
		if nc, err := nats.Connect(cfg.NatsURL); err != nil {
			logger.Warn("nats connect failed, workers will wait out the poll interval", "err", err)
		} else {
			defer nc.Close()
			orchSvc.WithNotifier(orchestrator.NewNatsNotifier(nc, logger))
		}
	}

	logger.Info("worker pool starting", "workers", cfg.Workers, "pipeline_version", cfg.PipelineVersion)
	orchSvc.Run(ctx)
	return nil
}
