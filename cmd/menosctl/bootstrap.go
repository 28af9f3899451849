package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/menosai/menos/internal/blobstore"
	"github.com/menosai/menos/internal/chunking"
	"github.com/menosai/menos/internal/enrich"
	"github.com/menosai/menos/internal/fetchers"
	"github.com/menosai/menos/internal/graphstore"
	"github.com/menosai/menos/internal/graphstore/neostore"
	"github.com/menosai/menos/internal/graphstore/vectorstore"
	"github.com/menosai/menos/internal/ingest"
	"github.com/menosai/menos/internal/keyword"
	"github.com/menosai/menos/internal/orchestrator"
	"github.com/menosai/menos/internal/providers/httpllm"
	"github.com/menosai/menos/internal/resolver"
)

// config mirrors cmd/api and cmd/worker's environment-based configuration.
// menosctl is a single operator process, so it reuses the same env vars
// those two already read rather than inventing a third config surface.
type config struct {
	Neo4jURL         string
	Neo4jUser        string
	Neo4jPass        string
	QdrantURL        string
	QdrantCollection string
	EmbeddingDims    int

	BlobEndpoint  string
	BlobAccessKey string
	BlobSecretKey string
	BlobBucket    string
	BlobUseSSL    bool

	LLMBaseURL   string
	LLMAPIKey    string
	LLMModel     string
	EmbedBaseURL string
	EmbedModel   string

	YouTubeAPIKey   string
	GitHubToken     string
	PipelineVersion int
}

func loadConfig() config {
	return config{
		Neo4jURL:         envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser:        envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:        envOr("NEO4J_PASS", "password"),
		QdrantURL:        envOr("QDRANT_URL", "localhost:6334"),
		QdrantCollection: envOr("QDRANT_COLLECTION", "menos_chunks"),
		EmbeddingDims:    envOrInt("EMBEDDING_DIMS", 768),

		BlobEndpoint:  envOr("BLOB_ENDPOINT", "localhost:9000"),
		BlobAccessKey: envOr("BLOB_ACCESS_KEY", "minioadmin"),
		BlobSecretKey: envOr("BLOB_SECRET_KEY", "minioadmin"),
		BlobBucket:    envOr("BLOB_BUCKET", "menos"),
		BlobUseSSL:    envOr("BLOB_USE_SSL", "false") == "true",

		LLMBaseURL:   envOr("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMAPIKey:    envOr("LLM_API_KEY", ""),
		LLMModel:     envOr("LLM_MODEL", "gpt-4o-mini"),
		EmbedBaseURL: envOr("EMBED_BASE_URL", "http://localhost:11434"),
		EmbedModel:   envOr("EMBED_MODEL", "nomic-embed-text"),

		YouTubeAPIKey:   envOr("YOUTUBE_API_KEY", ""),
		GitHubToken:     envOr("GITHUB_TOKEN", ""),
		PipelineVersion: envOrInt("PIPELINE_VERSION", 1),
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

// services bundles every dependency a menosctl subcommand might need. Each
// subcommand builds one via newServices and is free to use only the fields
// it needs; close must be deferred by the caller.
type services struct {
	cfg         config
	store       *graphstore.Store
	blob        *blobstore.Store
	ingestSvc   *ingest.Service
	orchSvc     *orchestrator.Service
	resolverSvc *resolver.Service
	log         *slog.Logger
	close       func(ctx context.Context)
}

func newServices(ctx context.Context, log *slog.Logger) (*services, error) {
	cfg := loadConfig()

	neo4jDriver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	graphStore := neostore.New(neo4jDriver)

	vectorStore, err := vectorstore.New(cfg.QdrantURL, cfg.QdrantCollection)
	if err != nil {
		neo4jDriver.Close(ctx)
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}

	store := graphstore.New(graphStore, vectorStore)

	blobStore, err := blobstore.New(ctx, blobstore.Config{
		Endpoint:        cfg.BlobEndpoint,
		AccessKeyID:     cfg.BlobAccessKey,
		SecretAccessKey: cfg.BlobSecretKey,
		Bucket:          cfg.BlobBucket,
		UseSSL:          cfg.BlobUseSSL,
	}, log)
	if err != nil {
		neo4jDriver.Close(ctx)
		vectorStore.Close()
		return nil, fmt.Errorf("blobstore connect: %w", err)
	}

	gen := httpllm.NewChatGenerator(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel)
	embedder := httpllm.NewOllamaEmbedder(cfg.EmbedBaseURL, cfg.EmbedModel, cfg.EmbeddingDims)

	matcher := keyword.NewMatcher()
	if entities, err := store.ListAllEntities(ctx); err != nil {
		log.Warn("failed to preload keyword matcher", "error", err)
	} else {
		matcher.Rebuild(entities)
	}

	enricher := enrich.New(gen, enrich.DefaultConfig(), log)
	resolverSvc := resolver.New(
		store,
		matcher,
		enricher,
		fetchers.NewGitHubClient(cfg.GitHubToken),
		fetchers.NewArXivClient(),
		resolver.Config{FetchExternalMetadata: true},
		log,
	)

	orchSvc := orchestrator.New(store, resolverSvc, orchestrator.NewWebhookDeliverer(nil, log), orchestrator.Config{
		UnifiedPipelineEnabled: true,
		PipelineVersion:        cfg.PipelineVersion,
		Workers:                1,
		PollInterval:           500 * time.Millisecond,
	}, log).WithChunking(chunking.New(embedder, chunking.DefaultConfig()), store)

	youtubeClient := fetchers.NewYouTubeClient(cfg.YouTubeAPIKey)
	ingestSvc := ingest.New(store, blobStore, youtubeClient, ingest.NewWebExtractor(), orchSvc, log)

	return &services{
		cfg:         cfg,
		store:       store,
		blob:        blobStore,
		ingestSvc:   ingestSvc,
		orchSvc:     orchSvc,
		resolverSvc: resolverSvc,
		log:         log,
		close: func(ctx context.Context) {
			neo4jDriver.Close(ctx)
			vectorStore.Close()
		},
	}, nil
}
