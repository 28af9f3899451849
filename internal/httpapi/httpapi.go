// Package httpapi exposes the ingestion, entity-graph, and retrieval
// services over HTTP, following the same router and middleware shape as
// the rest of the menos stack: a Go 1.22+ http.ServeMux with
// method-and-path patterns, wrapped in pkg/mid's recover/logger/CORS
// chain.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/menosai/menos/internal/domain"
	"github.com/menosai/menos/internal/graphstore"
	"github.com/menosai/menos/internal/ingest"
	"github.com/menosai/menos/internal/orchestrator"
	"github.com/menosai/menos/internal/retrieve"
	"github.com/menosai/menos/pkg/metrics"
	"github.com/menosai/menos/pkg/mid"
)

// Ingestor is the ingestion surface the API needs. *ingest.Service
// satisfies this.
type Ingestor interface {
	Ingest(ctx context.Context, rawURL string) (*ingest.Result, error)
}

// Jobs is the orchestrator surface the API needs. *orchestrator.Service
// satisfies this.
type Jobs interface {
	Submit(ctx context.Context, sub orchestrator.Submission) (*domain.PipelineJob, error)
	Cancel(ctx context.Context, jobID string) (domain.PipelineJob, error)
	DriftReport(ctx context.Context) (map[int]int, error)
}

// Store is the persistence surface the API needs beyond what Ingestor and
// Jobs already cover. *graphstore.Store satisfies this.
type Store interface {
	GetContent(ctx context.Context, id string) (domain.Content, error)
	SaveContent(ctx context.Context, c domain.Content) error
	ListContent(ctx context.Context, limit, offset int) ([]domain.Content, error)
	DeleteContent(ctx context.Context, id string) error

	GetEntity(ctx context.Context, id string) (domain.Entity, error)
	SaveEntity(ctx context.Context, e domain.Entity) error
	DeleteEntity(ctx context.Context, id string) error
	ListAllEntities(ctx context.Context) ([]domain.Entity, error)
	ListExistingTopicNames(ctx context.Context, limit int) ([]string, error)
	EntitiesForContent(ctx context.Context, contentID string) ([]domain.Entity, error)
	ContentForEntity(ctx context.Context, entityID string) ([]domain.Content, error)

	GraphSnapshot(ctx context.Context, limit int) ([]domain.Content, []domain.Entity, []graphstore.GraphEdge, error)
	Neighborhood(ctx context.Context, id string, depth int) ([]domain.Content, []domain.Entity, []graphstore.GraphEdge, error)

	GetJob(ctx context.Context, id string) (domain.PipelineJob, error)
	ListPendingJobs(ctx context.Context, limit int) ([]domain.PipelineJob, error)

	ListExistingTags(ctx context.Context, limit int) ([]string, error)
}

// Retriever is the agentic-search surface the API needs.
type Retriever interface {
	Search(ctx context.Context, q retrieve.Query) (*retrieve.Result, error)
}

// BlobStore is the object-store surface needed to serve a content's
// canonical payload.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Server composes every capability the HTTP surface calls into.
type Server struct {
	ingest          Ingestor
	jobs            Jobs
	store           Store
	retriever       Retriever
	blob            BlobStore
	pipelineVersion int
	log             *slog.Logger
	metrics         *metrics.Registry
	requests        *metrics.Counter
	duration        *metrics.Histogram
}

// NewServer composes a Server. pipelineVersion is the orchestrator's
// currently configured pipeline version, used by the reprocess handler to
// decide whether a content is already current.
func NewServer(ingest Ingestor, jobs Jobs, store Store, retriever Retriever, blob BlobStore, pipelineVersion int, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	reg := metrics.New()
	return &Server{
		ingest: ingest, jobs: jobs, store: store, retriever: retriever, blob: blob,
		pipelineVersion: pipelineVersion, log: log,
		metrics:  reg,
		requests: reg.Counter("menos_http_requests_total", "total HTTP requests served"),
		duration: reg.Histogram("menos_http_request_duration_seconds", "HTTP request duration in seconds", metrics.DefaultBuckets),
	}
}

// instrument counts requests and records duration for every route except
// the metrics endpoint itself.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.requests.Inc()
		s.duration.Since(start)
	})
}

// NewRouter builds the full HTTP handler: every route in the API surface,
// wrapped in the standard recover/logger/CORS middleware chain.
func NewRouter(s *Server, corsOrigin string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handleHealth)
	mux.Handle("GET /api/metrics", s.metrics.Handler())

	mux.HandleFunc("POST /api/v1/ingest", s.handleIngest)

	mux.HandleFunc("POST /api/v1/content", s.handleUploadContent)
	mux.HandleFunc("GET /api/v1/content", s.handleListContent)
	mux.HandleFunc("GET /api/v1/content/{id}", s.handleGetContent)
	mux.HandleFunc("GET /api/v1/content/{id}/content", s.handleGetContentBody)
	mux.HandleFunc("PATCH /api/v1/content/{id}", s.handlePatchContent)
	mux.HandleFunc("DELETE /api/v1/content/{id}", s.handleDeleteContent)
	mux.HandleFunc("POST /api/v1/content/{id}/reprocess", s.handleReprocessContent)

	mux.HandleFunc("GET /api/v1/entities", s.handleListEntities)
	mux.HandleFunc("GET /api/v1/entities/topics", s.handleEntityTopics)
	mux.HandleFunc("GET /api/v1/entities/duplicates", s.handleEntityDuplicates)
	mux.HandleFunc("GET /api/v1/entities/{id}", s.handleGetEntity)
	mux.HandleFunc("GET /api/v1/entities/{id}/content", s.handleEntityContent)
	mux.HandleFunc("PATCH /api/v1/entities/{id}", s.handlePatchEntity)
	mux.HandleFunc("DELETE /api/v1/entities/{id}", s.handleDeleteEntity)

	mux.HandleFunc("POST /api/v1/search", s.handleSearch)
	mux.HandleFunc("POST /api/v1/search/agentic", s.handleAgenticSearch)

	mux.HandleFunc("GET /api/v1/graph", s.handleGraph)
	mux.HandleFunc("GET /api/v1/graph/neighborhood/{id}", s.handleGraphNeighborhood)

	mux.HandleFunc("GET /api/v1/jobs", s.handleListJobs)
	mux.HandleFunc("GET /api/v1/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("GET /api/v1/jobs/drift", s.handleJobsDrift)
	mux.HandleFunc("POST /api/v1/jobs/{id}/cancel", s.handleCancelJob)

	mux.HandleFunc("GET /api/v1/tags", s.handleListTags)

	return mid.Chain(mux,
		mid.Recover(s.log),
		mid.Logger(s.log),
		mid.CORS(corsOrigin),
		s.instrument,
	)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
