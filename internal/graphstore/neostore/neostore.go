// Package neostore is the sole owner of Neo4j operations backing content,
// entity, edge, link, job, tag-alias, and migration records.
package neostore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/menosai/menos/internal/domain"
	"github.com/menosai/menos/pkg/repo"
)

// Store owns every Neo4j read/write in the system.
type Store struct {
	driver     neo4j.DriverWithContext
	migrations *repo.Neo4jRepo[domain.Migration, string]
}

// New wraps an already-connected driver.
func New(driver neo4j.DriverWithContext) *Store {
	migrations := repo.NewNeo4jRepo[domain.Migration, string](
		driver, "Migration", migrationToProps, migrationFromRecord,
		repo.WithIDKey[domain.Migration, string]("name"),
	)
	return &Store{driver: driver, migrations: migrations}
}

func (s *Store) session(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{})
}

// EnsureConstraints installs the uniqueness constraints the data model
// depends on. It is idempotent and safe to call on every startup.
func (s *Store) EnsureConstraints(ctx context.Context) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	stmts := []string{
		`CREATE CONSTRAINT content_id IF NOT EXISTS FOR (c:Content) REQUIRE c.id IS UNIQUE`,
		`CREATE CONSTRAINT entity_id IF NOT EXISTS FOR (e:Entity) REQUIRE e.id IS UNIQUE`,
		`CREATE CONSTRAINT job_id IF NOT EXISTS FOR (j:PipelineJob) REQUIRE j.id IS UNIQUE`,
		`CREATE CONSTRAINT entity_norm_type IF NOT EXISTS FOR (e:Entity) REQUIRE (e.normalized_name, e.entity_type) IS UNIQUE`,
	}
	for _, stmt := range stmts {
		if _, err := sess.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("neostore: ensure constraints: %w", err)
		}
	}
	return nil
}

// --- Content ---------------------------------------------------------------

// GetContentByID returns a content record by id.
func (s *Store) GetContentByID(ctx context.Context, id string) (domain.Content, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, `MATCH (c:Content {id: $id}) RETURN c`, map[string]any{"id": id})
	if err != nil {
		return domain.Content{}, fmt.Errorf("neostore: get content %s: %w", id, err)
	}
	if !result.Next(ctx) {
		return domain.Content{}, domain.ErrNotFound
	}
	node, _, err := neo4j.GetRecordValue[dbtype.Node](result.Record(), "c")
	if err != nil {
		return domain.Content{}, err
	}
	return contentFromProps(node.Props), nil
}

// GetContentByResourceKey returns a content record by its dedup key, or
// ErrNotFound.
func (s *Store) GetContentByResourceKey(ctx context.Context, resourceKey string) (domain.Content, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, `MATCH (c:Content {resource_key: $rk}) RETURN c`, map[string]any{"rk": resourceKey})
	if err != nil {
		return domain.Content{}, fmt.Errorf("neostore: get content by resource_key: %w", err)
	}
	if !result.Next(ctx) {
		return domain.Content{}, domain.ErrNotFound
	}
	node, _, err := neo4j.GetRecordValue[dbtype.Node](result.Record(), "c")
	if err != nil {
		return domain.Content{}, err
	}
	return contentFromProps(node.Props), nil
}

// SaveContent creates or updates a content record.
func (s *Store) SaveContent(ctx context.Context, c domain.Content) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.Run(ctx, `MERGE (c:Content {id: $id}) SET c += $props`, map[string]any{
		"id":    c.ID,
		"props": contentToProps(c),
	})
	if err != nil {
		return fmt.Errorf("neostore: save content %s: %w", c.ID, err)
	}
	return nil
}

// DeleteContent removes a content record and cascades to its chunks,
// content-entity edges, and content-links.
func (s *Store) DeleteContent(ctx context.Context, id string) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.Run(ctx, `
		MATCH (c:Content {id: $id})
		OPTIONAL MATCH (c)-[:HAS_CHUNK]->(ch:Chunk)
		OPTIONAL MATCH (link:ContentLink {source: $id})
		DETACH DELETE c, ch, link`, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("neostore: delete content %s: %w", id, err)
	}
	return nil
}

// DeleteEntity removes an entity and every edge to it. Content nodes are
// untouched.
func (s *Store) DeleteEntity(ctx context.Context, id string) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.Run(ctx, `MATCH (e:Entity {id: $id}) DETACH DELETE e`, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("neostore: delete entity %s: %w", id, err)
	}
	return nil
}

// ListContent returns content rows, newest first, bounded by limit/offset.
func (s *Store) ListContent(ctx context.Context, limit, offset int) ([]domain.Content, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, `
		MATCH (c:Content) RETURN c ORDER BY c.created_at DESC SKIP $offset LIMIT $limit`,
		map[string]any{"offset": offset, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("neostore: list content: %w", err)
	}
	var out []domain.Content
	for result.Next(ctx) {
		node, _, err := neo4j.GetRecordValue[dbtype.Node](result.Record(), "c")
		if err != nil {
			return nil, err
		}
		out = append(out, contentFromProps(node.Props))
	}
	return out, nil
}

// --- Chunks ------------------------------------------------------------

// ReplaceChunks deletes all chunks for a content and inserts the given
// replacement set in one transaction, enforcing the dense 0-based
// chunk_index invariant.
func (s *Store) ReplaceChunks(ctx context.Context, contentID string, chunks []domain.Chunk) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `MATCH (c:Content {id: $id})-[:HAS_CHUNK]->(ch:Chunk) DETACH DELETE ch`,
			map[string]any{"id": contentID}); err != nil {
			return nil, err
		}
		for _, ch := range chunks {
			if _, err := tx.Run(ctx, `
				MATCH (c:Content {id: $cid})
				MERGE (ch:Chunk {id: $id})
				SET ch.content_id = $cid, ch.text = $text, ch.chunk_index = $idx
				MERGE (c)-[:HAS_CHUNK]->(ch)`, map[string]any{
				"cid":  contentID,
				"id":   ch.ID,
				"text": ch.Text,
				"idx":  ch.ChunkIndex,
			}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("neostore: replace chunks for %s: %w", contentID, err)
	}
	return nil
}

// --- Entities ------------------------------------------------------------

// FindEntityByNormalizedName looks up an entity by (normalized_name,
// entity_type), or ErrNotFound.
func (s *Store) FindEntityByNormalizedName(ctx context.Context, normalizedName string, entityType domain.EntityType) (domain.Entity, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, `
		MATCH (e:Entity {normalized_name: $nn, entity_type: $et}) RETURN e`,
		map[string]any{"nn": normalizedName, "et": string(entityType)})
	if err != nil {
		return domain.Entity{}, fmt.Errorf("neostore: find entity by name: %w", err)
	}
	if !result.Next(ctx) {
		return domain.Entity{}, domain.ErrNotFound
	}
	node, _, err := neo4j.GetRecordValue[dbtype.Node](result.Record(), "e")
	if err != nil {
		return domain.Entity{}, err
	}
	return entityFromProps(node.Props), nil
}

// FindEntityByAlias looks up an entity owning normalizedAlias in its
// metadata.aliases list, or ErrNotFound.
func (s *Store) FindEntityByAlias(ctx context.Context, normalizedAlias string) (domain.Entity, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, `
		MATCH (e:Entity) WHERE $alias IN e.aliases RETURN e LIMIT 1`,
		map[string]any{"alias": normalizedAlias})
	if err != nil {
		return domain.Entity{}, fmt.Errorf("neostore: find entity by alias: %w", err)
	}
	if !result.Next(ctx) {
		return domain.Entity{}, domain.ErrNotFound
	}
	node, _, err := neo4j.GetRecordValue[dbtype.Node](result.Record(), "e")
	if err != nil {
		return domain.Entity{}, err
	}
	return entityFromProps(node.Props), nil
}

// GetEntityByID returns an entity by id.
func (s *Store) GetEntityByID(ctx context.Context, id string) (domain.Entity, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, `MATCH (e:Entity {id: $id}) RETURN e`, map[string]any{"id": id})
	if err != nil {
		return domain.Entity{}, fmt.Errorf("neostore: get entity %s: %w", id, err)
	}
	if !result.Next(ctx) {
		return domain.Entity{}, domain.ErrNotFound
	}
	node, _, err := neo4j.GetRecordValue[dbtype.Node](result.Record(), "e")
	if err != nil {
		return domain.Entity{}, err
	}
	return entityFromProps(node.Props), nil
}

// SaveEntity creates or updates an entity record.
func (s *Store) SaveEntity(ctx context.Context, e domain.Entity) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.Run(ctx, `MERGE (e:Entity {id: $id}) SET e += $props`, map[string]any{
		"id":    e.ID,
		"props": entityToProps(e),
	})
	if err != nil {
		return fmt.Errorf("neostore: save entity %s: %w", e.ID, err)
	}
	return nil
}

// ListExistingTopicNames returns up to limit topic entity names, for
// prompt-budget capping in the enricher.
func (s *Store) ListExistingTopicNames(ctx context.Context, limit int) ([]string, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, `
		MATCH (e:Entity {entity_type: $et}) RETURN e.name AS name LIMIT $limit`,
		map[string]any{"et": string(domain.EntityTopic), "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("neostore: list topic names: %w", err)
	}
	var names []string
	for result.Next(ctx) {
		if v, ok := result.Record().Get("name"); ok {
			if s, ok := v.(string); ok {
				names = append(names, s)
			}
		}
	}
	return names, nil
}

// ListAllEntities returns every entity, for rebuilding the in-memory keyword
// matcher index.
func (s *Store) ListAllEntities(ctx context.Context) ([]domain.Entity, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, `MATCH (e:Entity) RETURN e`, nil)
	if err != nil {
		return nil, fmt.Errorf("neostore: list all entities: %w", err)
	}
	var out []domain.Entity
	for result.Next(ctx) {
		node, _, err := neo4j.GetRecordValue[dbtype.Node](result.Record(), "e")
		if err != nil {
			return nil, err
		}
		out = append(out, entityFromProps(node.Props))
	}
	return out, nil
}

// --- Content-Entity edges ------------------------------------------------

// UpsertEdge creates or replaces the single edge between a content and an
// entity, per the at-most-one-edge invariant.
func (s *Store) UpsertEdge(ctx context.Context, edge domain.ContentEntityEdge) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.Run(ctx, `
		MATCH (c:Content {id: $cid}), (e:Entity {id: $eid})
		MERGE (c)-[r:RELATES_TO]->(e)
		SET r.id = $id, r.edge_type = $edge_type, r.confidence = $confidence,
		    r.source = $source, r.created_at = $created_at`,
		map[string]any{
			"cid":        edge.ContentID,
			"eid":        edge.EntityID,
			"id":         edge.ID,
			"edge_type":  string(edge.EdgeType),
			"confidence": edge.Confidence,
			"source":     string(edge.Source),
			"created_at": edge.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	if err != nil {
		return fmt.Errorf("neostore: upsert edge %s->%s: %w", edge.ContentID, edge.EntityID, err)
	}
	return nil
}

// DeleteEdgesForContent removes every content-entity edge for a content,
// ahead of reprocessing.
func (s *Store) DeleteEdgesForContent(ctx context.Context, contentID string) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.Run(ctx, `MATCH (c:Content {id: $id})-[r:RELATES_TO]->() DELETE r`,
		map[string]any{"id": contentID})
	if err != nil {
		return fmt.Errorf("neostore: delete edges for %s: %w", contentID, err)
	}
	return nil
}

// --- Content links -------------------------------------------------------

// ReplaceLinks deletes all links for a source content and inserts the given
// replacement set, atomically.
func (s *Store) ReplaceLinks(ctx context.Context, sourceID string, links []domain.ContentLink) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `MATCH (l:ContentLink {source: $src}) DELETE l`,
			map[string]any{"src": sourceID}); err != nil {
			return nil, err
		}
		for _, l := range links {
			if _, err := tx.Run(ctx, `
				CREATE (l:ContentLink {id: $id, source: $source, target: $target,
					link_text: $link_text, link_type: $link_type})`, map[string]any{
				"id":        l.ID,
				"source":    l.Source,
				"target":    l.Target,
				"link_text": l.LinkText,
				"link_type": string(l.LinkType),
			}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("neostore: replace links for %s: %w", sourceID, err)
	}
	return nil
}

// --- Pipeline jobs ---------------------------------------------------------

// FindActiveJobByResourceKey returns the pending/processing job for a
// resource key, or ErrNotFound if none is active. This lookup and CreateJob
// are separate statements and no constraint covers resource_key, so two
// concurrent submissions for the same key can both find no active job and
// both create one.
func (s *Store) FindActiveJobByResourceKey(ctx context.Context, resourceKey string) (domain.PipelineJob, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, `
		MATCH (j:PipelineJob {resource_key: $rk})
		WHERE j.status IN ['pending', 'processing']
		RETURN j LIMIT 1`, map[string]any{"rk": resourceKey})
	if err != nil {
		return domain.PipelineJob{}, fmt.Errorf("neostore: find active job: %w", err)
	}
	if !result.Next(ctx) {
		return domain.PipelineJob{}, domain.ErrNotFound
	}
	node, _, err := neo4j.GetRecordValue[dbtype.Node](result.Record(), "j")
	if err != nil {
		return domain.PipelineJob{}, err
	}
	return jobFromProps(node.Props), nil
}

// CreateJob persists a new pipeline job.
func (s *Store) CreateJob(ctx context.Context, job domain.PipelineJob) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.Run(ctx, `CREATE (j:PipelineJob) SET j += $props`, map[string]any{
		"props": jobToProps(job),
	})
	if err != nil {
		return fmt.Errorf("neostore: create job %s: %w", job.ID, err)
	}
	return nil
}

// SaveJob updates an existing pipeline job's full state.
func (s *Store) SaveJob(ctx context.Context, job domain.PipelineJob) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.Run(ctx, `MATCH (j:PipelineJob {id: $id}) SET j += $props`, map[string]any{
		"id":    job.ID,
		"props": jobToProps(job),
	})
	if err != nil {
		return fmt.Errorf("neostore: save job %s: %w", job.ID, err)
	}
	return nil
}

// GetJob returns a job by id.
func (s *Store) GetJob(ctx context.Context, id string) (domain.PipelineJob, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, `MATCH (j:PipelineJob {id: $id}) RETURN j`, map[string]any{"id": id})
	if err != nil {
		return domain.PipelineJob{}, fmt.Errorf("neostore: get job %s: %w", id, err)
	}
	if !result.Next(ctx) {
		return domain.PipelineJob{}, domain.ErrNotFound
	}
	node, _, err := neo4j.GetRecordValue[dbtype.Node](result.Record(), "j")
	if err != nil {
		return domain.PipelineJob{}, err
	}
	return jobFromProps(node.Props), nil
}

// ListPendingJobs returns up to limit jobs in status=pending, oldest first,
// for the worker loop to claim.
func (s *Store) ListPendingJobs(ctx context.Context, limit int) ([]domain.PipelineJob, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, `
		MATCH (j:PipelineJob {status: 'pending'})
		RETURN j ORDER BY j.created_at ASC LIMIT $limit`, map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("neostore: list pending jobs: %w", err)
	}
	var out []domain.PipelineJob
	for result.Next(ctx) {
		node, _, err := neo4j.GetRecordValue[dbtype.Node](result.Record(), "j")
		if err != nil {
			return nil, err
		}
		out = append(out, jobFromProps(node.Props))
	}
	return out, nil
}

// DriftCounts groups completed content by pipeline_version for the drift
// report. Every version is counted, currentVersion included.
func (s *Store) DriftCounts(ctx context.Context, currentVersion int) (map[int]int, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, `
		MATCH (c:Content {processing_status: 'completed'})
		RETURN c.pipeline_version AS version, count(*) AS n`, nil)
	if err != nil {
		return nil, fmt.Errorf("neostore: drift counts: %w", err)
	}
	out := make(map[int]int)
	for result.Next(ctx) {
		v, _ := result.Record().Get("version")
		n, _ := result.Record().Get("n")
		version := toInt(v)
		count := toInt(n)
		out[version] = count
	}
	return out, nil
}

// --- Tag aliases -----------------------------------------------------------

// UpsertTagAlias creates or increments a tag alias mapping.
func (s *Store) UpsertTagAlias(ctx context.Context, variant, canonical string) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.Run(ctx, `
		MERGE (t:TagAlias {variant: $variant})
		ON CREATE SET t.canonical = $canonical, t.usage_count = 1
		ON MATCH SET t.usage_count = t.usage_count + 1`,
		map[string]any{"variant": variant, "canonical": canonical})
	if err != nil {
		return fmt.Errorf("neostore: upsert tag alias %s: %w", variant, err)
	}
	return nil
}

// ListExistingTags returns up to limit known tag strings for prompt-budget
// capping, most-used first.
func (s *Store) ListExistingTags(ctx context.Context, limit int) ([]string, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, `
		MATCH (c:Content) UNWIND c.tags AS tag
		RETURN tag, count(*) AS n ORDER BY n DESC LIMIT $limit`,
		map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("neostore: list existing tags: %w", err)
	}
	var tags []string
	for result.Next(ctx) {
		if v, ok := result.Record().Get("tag"); ok {
			if s, ok := v.(string); ok {
				tags = append(tags, s)
			}
		}
	}
	return tags, nil
}

// --- Migrations -------------------------------------------------------------

// RecordMigration appends a migration record. Backed by pkg/repo's generic
// Neo4j repository rather than a hand-written Cypher statement, since a
// migration is a plain flat-property entity with no nested fields.
func (s *Store) RecordMigration(ctx context.Context, m domain.Migration) error {
	if _, err := s.migrations.Upsert(ctx, m); err != nil {
		return fmt.Errorf("neostore: record migration %s: %w", m.Name, err)
	}
	return nil
}

// ListMigrations returns every applied migration, ordered by name.
func (s *Store) ListMigrations(ctx context.Context) ([]domain.Migration, error) {
	out, err := s.migrations.List(ctx, repo.ListOpts{Limit: 1000})
	if err != nil {
		return nil, fmt.Errorf("neostore: list migrations: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- Graph views -----------------------------------------------------------

// EntitiesForContent returns every entity a content has an edge to.
func (s *Store) EntitiesForContent(ctx context.Context, contentID string) ([]domain.Entity, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, `
		MATCH (:Content {id: $id})-[:RELATES_TO]->(e:Entity) RETURN DISTINCT e`,
		map[string]any{"id": contentID})
	if err != nil {
		return nil, fmt.Errorf("neostore: entities for content %s: %w", contentID, err)
	}
	var out []domain.Entity
	for result.Next(ctx) {
		node, _, err := neo4j.GetRecordValue[dbtype.Node](result.Record(), "e")
		if err != nil {
			return nil, err
		}
		out = append(out, entityFromProps(node.Props))
	}
	return out, nil
}

// ContentForEntity returns every content with an edge to an entity.
func (s *Store) ContentForEntity(ctx context.Context, entityID string) ([]domain.Content, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, `
		MATCH (c:Content)-[:RELATES_TO]->(:Entity {id: $id}) RETURN DISTINCT c`,
		map[string]any{"id": entityID})
	if err != nil {
		return nil, fmt.Errorf("neostore: content for entity %s: %w", entityID, err)
	}
	var out []domain.Content
	for result.Next(ctx) {
		node, _, err := neo4j.GetRecordValue[dbtype.Node](result.Record(), "c")
		if err != nil {
			return nil, err
		}
		out = append(out, contentFromProps(node.Props))
	}
	return out, nil
}

// GraphEdge is a denormalized content-entity edge for graph-view endpoints.
type GraphEdge struct {
	ContentID string
	EntityID  string
	EdgeType  string
}

// GraphSnapshot returns up to limit content nodes, every entity, and the
// edges between them, for the whole-graph view.
func (s *Store) GraphSnapshot(ctx context.Context, limit int) ([]domain.Content, []domain.Entity, []GraphEdge, error) {
	content, err := s.ListContent(ctx, limit, 0)
	if err != nil {
		return nil, nil, nil, err
	}
	entities, err := s.ListAllEntities(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	sess := s.session(ctx)
	defer sess.Close(ctx)
	result, err := sess.Run(ctx, `
		MATCH (c:Content)-[r:RELATES_TO]->(e:Entity)
		WHERE c.id IN $ids
		RETURN c.id AS cid, e.id AS eid, r.edge_type AS edge_type`,
		map[string]any{"ids": contentIDs(content)})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("neostore: graph snapshot edges: %w", err)
	}
	var edges []GraphEdge
	for result.Next(ctx) {
		rec := result.Record()
		cid, _, _ := neo4j.GetRecordValue[string](rec, "cid")
		eid, _, _ := neo4j.GetRecordValue[string](rec, "eid")
		et, _, _ := neo4j.GetRecordValue[string](rec, "edge_type")
		edges = append(edges, GraphEdge{ContentID: cid, EntityID: eid, EdgeType: et})
	}
	return content, entities, edges, nil
}

func contentIDs(content []domain.Content) []string {
	ids := make([]string, len(content))
	for i, c := range content {
		ids[i] = c.ID
	}
	return ids
}

// Neighborhood returns the content and entity nodes, and the edges between
// them, reachable from id within depth RELATES_TO hops in either direction.
func (s *Store) Neighborhood(ctx context.Context, id string, depth int) ([]domain.Content, []domain.Entity, []GraphEdge, error) {
	if depth <= 0 {
		depth = 1
	}
	if depth > 3 {
		depth = 3
	}
	sess := s.session(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf(`
		MATCH (start {id: $id})-[:RELATES_TO*1..%d]-(n)
		WHERE (start:Content OR start:Entity) AND (n:Content OR n:Entity)
		WITH collect(DISTINCT n) AS nodes
		UNWIND nodes AS n
		RETURN n, labels(n) AS labels`, depth)
	result, err := sess.Run(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("neostore: neighborhood %s: %w", id, err)
	}

	var content []domain.Content
	var entities []domain.Entity
	ids := []string{id}
	for result.Next(ctx) {
		rec := result.Record()
		node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
		if err != nil {
			return nil, nil, nil, err
		}
		labels, _, _ := neo4j.GetRecordValue[[]any](rec, "labels")
		ids = append(ids, strProp(node.Props, "id"))
		isEntity := false
		for _, l := range labels {
			if lbl, ok := l.(string); ok && lbl == "Entity" {
				isEntity = true
				break
			}
		}
		if isEntity {
			entities = append(entities, entityFromProps(node.Props))
		} else {
			content = append(content, contentFromProps(node.Props))
		}
	}

	edgeResult, err := sess.Run(ctx, `
		MATCH (a)-[r:RELATES_TO]->(b)
		WHERE a.id IN $ids AND b.id IN $ids
		RETURN a.id AS cid, b.id AS eid, r.edge_type AS edge_type`,
		map[string]any{"ids": ids})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("neostore: neighborhood edges %s: %w", id, err)
	}
	var edges []GraphEdge
	for edgeResult.Next(ctx) {
		rec := edgeResult.Record()
		cid, _, _ := neo4j.GetRecordValue[string](rec, "cid")
		eid, _, _ := neo4j.GetRecordValue[string](rec, "eid")
		et, _, _ := neo4j.GetRecordValue[string](rec, "edge_type")
		edges = append(edges, GraphEdge{ContentID: cid, EntityID: eid, EdgeType: et})
	}
	return content, entities, edges, nil
}
