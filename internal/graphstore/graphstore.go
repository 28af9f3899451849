// Package graphstore presents the single durable-storage interface the rest
// of the system sees, internally composing a Neo4j-backed neostore.Store for
// graph-shaped records and a Qdrant-backed vectorstore.Store for chunk
// embeddings and cosine-similarity search.
package graphstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/menosai/menos/internal/domain"
	"github.com/menosai/menos/internal/graphstore/neostore"
	"github.com/menosai/menos/internal/graphstore/vectorstore"
)

// Store is the facade consumed by the ingestor, resolver, orchestrator, and
// retriever.
type Store struct {
	graph  *neostore.Store
	vector *vectorstore.Store
}

// New composes the two backing stores into a single facade.
func New(graph *neostore.Store, vector *vectorstore.Store) *Store {
	return &Store{graph: graph, vector: vector}
}

// EnsureSchema installs constraints and the chunk collection. Call once at
// startup.
func (s *Store) EnsureSchema(ctx context.Context, embeddingDims int) error {
	if err := s.graph.EnsureConstraints(ctx); err != nil {
		return err
	}
	return s.vector.EnsureCollection(ctx, embeddingDims)
}

// --- Content ---------------------------------------------------------------

func (s *Store) GetContent(ctx context.Context, id string) (domain.Content, error) {
	return s.graph.GetContentByID(ctx, id)
}

func (s *Store) GetContentByResourceKey(ctx context.Context, resourceKey string) (domain.Content, error) {
	return s.graph.GetContentByResourceKey(ctx, resourceKey)
}

func (s *Store) SaveContent(ctx context.Context, c domain.Content) error {
	return s.graph.SaveContent(ctx, c)
}

func (s *Store) ListContent(ctx context.Context, limit, offset int) ([]domain.Content, error) {
	return s.graph.ListContent(ctx, limit, offset)
}

// DeleteContent removes a content record and cascades to its chunks
// (both stores), edges, and links.
func (s *Store) DeleteContent(ctx context.Context, id string) error {
	if err := s.vector.DeleteByContentID(ctx, id); err != nil {
		return err
	}
	return s.graph.DeleteContent(ctx, id)
}

// --- Chunks ------------------------------------------------------------

// ReplaceChunks replaces a content's chunk set in the graph store (for
// chunk_index bookkeeping) and then in the vector store (for search), with
// the content type and tier denormalized onto each point. The writes run in
// sequence with no transaction spanning both stores; the first error is
// returned and earlier writes are not undone.
func (s *Store) ReplaceChunks(ctx context.Context, content domain.Content, chunks []domain.Chunk) error {
	if err := s.graph.ReplaceChunks(ctx, content.ID, chunks); err != nil {
		return err
	}
	if err := s.vector.DeleteByContentID(ctx, content.ID); err != nil {
		return err
	}

	points := make([]vectorstore.ChunkPoint, len(chunks))
	for i, c := range chunks {
		points[i] = vectorstore.ChunkPoint{
			ChunkID:     c.ID,
			ContentID:   content.ID,
			ChunkIndex:  c.ChunkIndex,
			Text:        c.Text,
			Embedding:   c.Embedding,
			ContentType: string(content.ContentType),
			Tier:        string(content.Tier),
		}
	}
	return s.vector.Upsert(ctx, points)
}

// --- Entities ------------------------------------------------------------

func (s *Store) FindEntityByNormalizedName(ctx context.Context, normalizedName string, entityType domain.EntityType) (domain.Entity, error) {
	return s.graph.FindEntityByNormalizedName(ctx, normalizedName, entityType)
}

func (s *Store) FindEntityByAlias(ctx context.Context, normalizedAlias string) (domain.Entity, error) {
	return s.graph.FindEntityByAlias(ctx, normalizedAlias)
}

func (s *Store) GetEntity(ctx context.Context, id string) (domain.Entity, error) {
	return s.graph.GetEntityByID(ctx, id)
}

func (s *Store) SaveEntity(ctx context.Context, e domain.Entity) error {
	return s.graph.SaveEntity(ctx, e)
}

func (s *Store) DeleteEntity(ctx context.Context, id string) error {
	return s.graph.DeleteEntity(ctx, id)
}

func (s *Store) ListExistingTopicNames(ctx context.Context, limit int) ([]string, error) {
	return s.graph.ListExistingTopicNames(ctx, limit)
}

// ListAllEntities returns every entity, for rebuilding the keyword matcher.
func (s *Store) ListAllEntities(ctx context.Context) ([]domain.Entity, error) {
	return s.graph.ListAllEntities(ctx)
}

// FindOrCreateEntity implements the three-tier lookup used by the resolver:
// normalized-name match, then alias match, then create. The bool result
// reports whether a new entity was created (false means an existing entity
// was reused).
func (s *Store) FindOrCreateEntity(ctx context.Context, e domain.Entity) (domain.Entity, bool, error) {
	existing, err := s.graph.FindEntityByNormalizedName(ctx, e.NormalizedName, e.EntityType)
	if err == nil {
		return existing, false, nil
	}
	if err != domain.ErrNotFound {
		return domain.Entity{}, false, err
	}

	existing, err = s.graph.FindEntityByAlias(ctx, e.NormalizedName)
	if err == nil {
		return existing, false, nil
	}
	if err != domain.ErrNotFound {
		return domain.Entity{}, false, err
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if err := s.graph.SaveEntity(ctx, e); err != nil {
		return domain.Entity{}, false, fmt.Errorf("graphstore: create entity %s: %w", e.Name, err)
	}
	return e, true, nil
}

// --- Content-entity edges --------------------------------------------------

func (s *Store) UpsertEdge(ctx context.Context, edge domain.ContentEntityEdge) error {
	if edge.ID == "" {
		edge.ID = uuid.NewString()
	}
	return s.graph.UpsertEdge(ctx, edge)
}

func (s *Store) DeleteEdgesForContent(ctx context.Context, contentID string) error {
	return s.graph.DeleteEdgesForContent(ctx, contentID)
}

// --- Content links -----------------------------------------------------

func (s *Store) ReplaceLinks(ctx context.Context, sourceID string, links []domain.ContentLink) error {
	return s.graph.ReplaceLinks(ctx, sourceID, links)
}

// --- Pipeline jobs -----------------------------------------------------

func (s *Store) FindActiveJobByResourceKey(ctx context.Context, resourceKey string) (domain.PipelineJob, error) {
	return s.graph.FindActiveJobByResourceKey(ctx, resourceKey)
}

func (s *Store) CreateJob(ctx context.Context, job domain.PipelineJob) error {
	return s.graph.CreateJob(ctx, job)
}

func (s *Store) SaveJob(ctx context.Context, job domain.PipelineJob) error {
	return s.graph.SaveJob(ctx, job)
}

func (s *Store) GetJob(ctx context.Context, id string) (domain.PipelineJob, error) {
	return s.graph.GetJob(ctx, id)
}

func (s *Store) ListPendingJobs(ctx context.Context, limit int) ([]domain.PipelineJob, error) {
	return s.graph.ListPendingJobs(ctx, limit)
}

func (s *Store) DriftCounts(ctx context.Context, currentVersion int) (map[int]int, error) {
	return s.graph.DriftCounts(ctx, currentVersion)
}

// --- Tag aliases -----------------------------------------------------------

func (s *Store) UpsertTagAlias(ctx context.Context, variant, canonical string) error {
	return s.graph.UpsertTagAlias(ctx, variant, canonical)
}

func (s *Store) ListExistingTags(ctx context.Context, limit int) ([]string, error) {
	return s.graph.ListExistingTags(ctx, limit)
}

// --- Migrations --------------------------------------------------------

func (s *Store) RecordMigration(ctx context.Context, m domain.Migration) error {
	return s.graph.RecordMigration(ctx, m)
}

func (s *Store) ListMigrations(ctx context.Context) ([]domain.Migration, error) {
	return s.graph.ListMigrations(ctx)
}

// --- Vector search -----------------------------------------------------

// VectorSearchParams mirrors vectorstore.SearchParams so callers outside
// graphstore never import the vectorstore package directly.
type VectorSearchParams = vectorstore.SearchParams

// VectorSearchResult mirrors vectorstore.SearchResult.
type VectorSearchResult = vectorstore.SearchResult

func (s *Store) VectorSearch(ctx context.Context, p VectorSearchParams) ([]VectorSearchResult, error) {
	return s.vector.Search(ctx, p)
}

// --- Graph views -----------------------------------------------------------

// GraphEdge mirrors neostore.GraphEdge.
type GraphEdge = neostore.GraphEdge

func (s *Store) EntitiesForContent(ctx context.Context, contentID string) ([]domain.Entity, error) {
	return s.graph.EntitiesForContent(ctx, contentID)
}

func (s *Store) ContentForEntity(ctx context.Context, entityID string) ([]domain.Content, error) {
	return s.graph.ContentForEntity(ctx, entityID)
}

func (s *Store) GraphSnapshot(ctx context.Context, limit int) ([]domain.Content, []domain.Entity, []GraphEdge, error) {
	return s.graph.GraphSnapshot(ctx, limit)
}

func (s *Store) Neighborhood(ctx context.Context, id string, depth int) ([]domain.Content, []domain.Entity, []GraphEdge, error) {
	return s.graph.Neighborhood(ctx, id, depth)
}
