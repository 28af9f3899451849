// Package main implements the menos API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/menosai/menos/internal/blobstore"
	"github.com/menosai/menos/internal/chunking"
	"github.com/menosai/menos/internal/enrich"
	"github.com/menosai/menos/internal/fetchers"
	"github.com/menosai/menos/internal/graphstore"
	"github.com/menosai/menos/internal/graphstore/neostore"
	"github.com/menosai/menos/internal/graphstore/vectorstore"
	"github.com/menosai/menos/internal/httpapi"
	"github.com/menosai/menos/internal/ingest"
	"github.com/menosai/menos/internal/keyword"
	"github.com/menosai/menos/internal/llm"
	"github.com/menosai/menos/internal/orchestrator"
	"github.com/menosai/menos/internal/providers/httpllm"
	"github.com/menosai/menos/internal/resolver"
	"github.com/menosai/menos/internal/retrieve"
)

// Config holds all environment-based configuration.
type Config struct {
	Port       string
	CORSOrigin string

	Neo4jURL  string
	Neo4jUser string
	Neo4jPass string

	QdrantURL        string
	QdrantCollection string
	EmbeddingDims    int

	BlobEndpoint  string
	BlobAccessKey string
	BlobSecretKey string
	BlobBucket    string
	BlobUseSSL    bool

	LLMBaseURL       string
	LLMAPIKey        string
	LLMModel         string
	EmbedBaseURL     string
	EmbedModel       string
	RerankEnabled    bool
	SynthesisEnabled bool

	YouTubeAPIKey string
	GitHubToken   string

	UnifiedPipelineEnabled bool
	PipelineVersion        int
	Workers                int

	NatsURL string
}

func loadConfig() Config {
	return Config{
		Port:       envOr("PORT", "8080"),
		CORSOrigin: envOr("CORS_ORIGIN", "*"),

		Neo4jURL:  envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser: envOr("NEO4J_USER", "neo4j"),
		Neo4jPass: envOr("NEO4J_PASS", "password"),

		QdrantURL:        envOr("QDRANT_URL", "localhost:6334"),
		QdrantCollection: envOr("QDRANT_COLLECTION", "menos_chunks"),
		EmbeddingDims:    envOrInt("EMBEDDING_DIMS", 768),

		BlobEndpoint:  envOr("BLOB_ENDPOINT", "localhost:9000"),
		BlobAccessKey: envOr("BLOB_ACCESS_KEY", "minioadmin"),
		BlobSecretKey: envOr("BLOB_SECRET_KEY", "minioadmin"),
		BlobBucket:    envOr("BLOB_BUCKET", "menos"),
		BlobUseSSL:    envOr("BLOB_USE_SSL", "false") == "true",

		LLMBaseURL:       envOr("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMAPIKey:        envOr("LLM_API_KEY", ""),
		LLMModel:         envOr("LLM_MODEL", "gpt-4o-mini"),
		EmbedBaseURL:     envOr("EMBED_BASE_URL", "http://localhost:11434"),
		EmbedModel:       envOr("EMBED_MODEL", "nomic-embed-text"),
		RerankEnabled:    envOr("RERANK_ENABLED", "true") == "true",
		SynthesisEnabled: envOr("SYNTHESIS_ENABLED", "true") == "true",

		YouTubeAPIKey: envOr("YOUTUBE_API_KEY", ""),
		GitHubToken:   envOr("GITHUB_TOKEN", ""),

		UnifiedPipelineEnabled: envOr("UNIFIED_PIPELINE_ENABLED", "true") == "true",
		PipelineVersion:        envOrInt("PIPELINE_VERSION", 1),
		Workers:                envOrInt("WORKERS", 2),

		NatsURL: envOr("NATS_URL", ""),
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
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
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
	if err := store.EnsureSchema(ctx, cfg.EmbeddingDims); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	blobStore, err := blobstore.New(ctx, blobstore.Config{
		Endpoint:        cfg.BlobEndpoint,
		AccessKeyID:     cfg.BlobAccessKey,
		SecretAccessKey: cfg.BlobSecretKey,
		Bucket:          cfg.BlobBucket,
		UseSSL:          cfg.BlobUseSSL,
	}, logger)
	if err != nil {
		return fmt.Errorf("blobstore connect: %w", err)
	}

	gen := httpllm.NewChatGenerator(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel)
	embedder := httpllm.NewOllamaEmbedder(cfg.EmbedBaseURL, cfg.EmbedModel, cfg.EmbeddingDims)
	var reranker llm.Reranker
	if cfg.RerankEnabled {
		reranker = httpllm.NewLLMReranker(gen)
	}
	var synth llm.Generator
	if cfg.SynthesisEnabled {
		synth = gen
	}

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
		UnifiedPipelineEnabled: cfg.UnifiedPipelineEnabled,
		PipelineVersion:        cfg.PipelineVersion,
		Workers:                cfg.Workers,
		PollInterval:           2 * time.Second,
	}, logger).WithChunking(chunking.New(embedder, chunking.DefaultConfig()), store)

	if cfg.NatsURL != "" {
		if nc, err := nats.Connect(cfg.NatsURL); err != nil {
			logger.Warn("nats connect failed, job submissions will wait out the poll interval", "err", err)
		} else {
			defer nc.Close()
			orchSvc.WithNotifier(orchestrator.NewNatsNotifier(nc, logger))
		}
	}

	go orchSvc.Run(ctx)

	youtubeClient := fetchers.NewYouTubeClient(cfg.YouTubeAPIKey)
	ingestSvc := ingest.New(store, blobStore, youtubeClient, ingest.NewWebExtractor(), orchSvc, logger)

	retrieveSvc := retrieve.New(store, embedder, gen, reranker, synth, logger)

	server := httpapi.NewServer(ingestSvc, orchSvc, store, retrieveSvc, blobStore, cfg.PipelineVersion, logger)
	handler := httpapi.NewRouter(server, cfg.CORSOrigin)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
