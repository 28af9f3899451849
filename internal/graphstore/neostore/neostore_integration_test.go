//go:build integration

package neostore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/menosai/menos/internal/domain"
)

func testDriver(t *testing.T) neo4j.DriverWithContext {
	t.Helper()
	url := envOr("NEO4J_URL", "neo4j://localhost:7687")
	user := envOr("NEO4J_USER", "neo4j")
	pass := envOr("NEO4J_PASSWORD", "password")

	driver, err := neo4j.NewDriverWithContext(url, neo4j.BasicAuth(user, pass, ""))
	if err != nil {
		t.Fatalf("neo4j connect: %v", err)
	}
	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		t.Fatalf("neo4j verify: %v", err)
	}
	t.Cleanup(func() {
		sess := driver.NewSession(ctx, neo4j.SessionConfig{})
		sess.Run(ctx, "MATCH (n) DETACH DELETE n", nil)
		sess.Close(ctx)
		driver.Close(ctx)
	})
	return driver
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newTestContent(id string) domain.Content {
	now := time.Now().UTC()
	return domain.Content{
		ID:               id,
		ContentType:      domain.ContentWeb,
		Title:            "test content " + id,
		ProcessingStatus: domain.StatusCompleted,
		PipelineVersion:  1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func newTestEntity(id string) domain.Entity {
	now := time.Now().UTC()
	return domain.Entity{
		ID:             id,
		EntityType:     domain.EntityTopic,
		Name:           "Topic " + id,
		NormalizedName: "topic " + id,
		Source:         domain.SourceAIExtracted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestNeostore_EntitiesForContentAndContentForEntity(t *testing.T) {
	driver := testDriver(t)
	store := New(driver)
	ctx := context.Background()

	if err := store.EnsureConstraints(ctx); err != nil {
		t.Fatalf("EnsureConstraints: %v", err)
	}

	content := newTestContent("c1")
	if err := store.SaveContent(ctx, content); err != nil {
		t.Fatalf("SaveContent: %v", err)
	}
	entity := newTestEntity("e1")
	if err := store.SaveEntity(ctx, entity); err != nil {
		t.Fatalf("SaveEntity: %v", err)
	}
	edge := domain.ContentEntityEdge{
		ID:         "edge1",
		ContentID:  content.ID,
		EntityID:   entity.ID,
		EdgeType:   domain.EdgeDiscusses,
		Confidence: 0.9,
		Source:     domain.SourceAIExtracted,
		CreatedAt:  time.Now().UTC(),
	}
	if err := store.UpsertEdge(ctx, edge); err != nil {
		t.Fatalf("UpsertEdge: %v", err)
	}

	entities, err := store.EntitiesForContent(ctx, content.ID)
	if err != nil {
		t.Fatalf("EntitiesForContent: %v", err)
	}
	if len(entities) != 1 || entities[0].ID != entity.ID {
		t.Fatalf("expected [%s], got %v", entity.ID, entities)
	}

	contents, err := store.ContentForEntity(ctx, entity.ID)
	if err != nil {
		t.Fatalf("ContentForEntity: %v", err)
	}
	if len(contents) != 1 || contents[0].ID != content.ID {
		t.Fatalf("expected [%s], got %v", content.ID, contents)
	}
}

func TestNeostore_UpsertEdgeMergesRepeatCallsIntoOneEdge(t *testing.T) {
	driver := testDriver(t)
	store := New(driver)
	ctx := context.Background()

	content := newTestContent("c4")
	store.SaveContent(ctx, content)
	entity := newTestEntity("e4")
	store.SaveEntity(ctx, entity)

	for i := 0; i < 3; i++ {
		edge := domain.ContentEntityEdge{
			ID:         "edge4",
			ContentID:  content.ID,
			EntityID:   entity.ID,
			EdgeType:   domain.EdgeDiscusses,
			Confidence: 0.5 + float64(i)*0.1,
			Source:     domain.SourceAIExtracted,
			CreatedAt:  time.Now().UTC(),
		}
		if err := store.UpsertEdge(ctx, edge); err != nil {
			t.Fatalf("UpsertEdge call %d: %v", i, err)
		}
	}

	entities, err := store.EntitiesForContent(ctx, content.ID)
	if err != nil {
		t.Fatalf("EntitiesForContent: %v", err)
	}
	if len(entities) != 1 {
		t.Fatalf("expected repeated upserts to converge to a single edge, got %d entities", len(entities))
	}
}

func TestNeostore_DeleteEntityRemovesItsEdges(t *testing.T) {
	driver := testDriver(t)
	store := New(driver)
	ctx := context.Background()

	content := newTestContent("c2")
	store.SaveContent(ctx, content)
	entity := newTestEntity("e2")
	store.SaveEntity(ctx, entity)
	store.UpsertEdge(ctx, domain.ContentEntityEdge{
		ID: "edge2", ContentID: content.ID, EntityID: entity.ID,
		EdgeType: domain.EdgeMentions, Source: domain.SourceAIExtracted, CreatedAt: time.Now().UTC(),
	})

	if err := store.DeleteEntity(ctx, entity.ID); err != nil {
		t.Fatalf("DeleteEntity: %v", err)
	}

	entities, err := store.EntitiesForContent(ctx, content.ID)
	if err != nil {
		t.Fatalf("EntitiesForContent after delete: %v", err)
	}
	if len(entities) != 0 {
		t.Fatalf("expected no entities after delete, got %v", entities)
	}
}

func TestNeostore_GraphSnapshotAndNeighborhood(t *testing.T) {
	driver := testDriver(t)
	store := New(driver)
	ctx := context.Background()

	content := newTestContent("c3")
	store.SaveContent(ctx, content)
	entity := newTestEntity("e3")
	store.SaveEntity(ctx, entity)
	store.UpsertEdge(ctx, domain.ContentEntityEdge{
		ID: "edge3", ContentID: content.ID, EntityID: entity.ID,
		EdgeType: domain.EdgeUses, Source: domain.SourceAIExtracted, CreatedAt: time.Now().UTC(),
	})

	contents, entities, edges, err := store.GraphSnapshot(ctx, 10)
	if err != nil {
		t.Fatalf("GraphSnapshot: %v", err)
	}
	if len(contents) == 0 || len(entities) == 0 || len(edges) == 0 {
		t.Fatalf("expected non-empty snapshot, got contents=%d entities=%d edges=%d", len(contents), len(entities), len(edges))
	}

	nContents, nEntities, nEdges, err := store.Neighborhood(ctx, content.ID, 1)
	if err != nil {
		t.Fatalf("Neighborhood: %v", err)
	}
	if len(nEntities) != 1 || nEntities[0].ID != entity.ID {
		t.Fatalf("expected neighborhood entity [%s], got %v", entity.ID, nEntities)
	}
	if len(nEdges) != 1 {
		t.Fatalf("expected 1 neighborhood edge, got %d", len(nEdges))
	}
	found := false
	for _, c := range nContents {
		if c.ID == content.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected neighborhood to include origin content %s, got %v", content.ID, nContents)
	}
}
