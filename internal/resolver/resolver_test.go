package resolver

import (
	"context"
	"testing"

	"github.com/menosai/menos/internal/domain"
	"github.com/menosai/menos/internal/enrich"
	"github.com/menosai/menos/internal/keyword"
	"github.com/menosai/menos/internal/llm"
)

type fakeStore struct {
	contents map[string]domain.Content
	entities map[string]domain.Entity
	byName   map[string]string // normalized_name|entity_type -> id
	edges    []domain.ContentEntityEdge
	tags     []string
	topics   []string
	aliases  []struct{ variant, canonical string }
	nextID   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		contents: map[string]domain.Content{},
		entities: map[string]domain.Entity{},
		byName:   map[string]string{},
	}
}

func (f *fakeStore) GetContent(ctx context.Context, id string) (domain.Content, error) {
	c, ok := f.contents[id]
	if !ok {
		return domain.Content{}, domain.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) SaveContent(ctx context.Context, c domain.Content) error {
	f.contents[c.ID] = c
	return nil
}

func (f *fakeStore) FindOrCreateEntity(ctx context.Context, e domain.Entity) (domain.Entity, bool, error) {
	key := e.NormalizedName + "|" + string(e.EntityType)
	if id, ok := f.byName[key]; ok {
		return f.entities[id], false, nil
	}
	f.nextID++
	id := "e" + itoa(f.nextID)
	e.ID = id
	f.entities[id] = e
	f.byName[key] = id
	return e, true, nil
}

func (f *fakeStore) GetEntity(ctx context.Context, id string) (domain.Entity, error) {
	e, ok := f.entities[id]
	if !ok {
		return domain.Entity{}, domain.ErrNotFound
	}
	return e, nil
}

func (f *fakeStore) UpsertEdge(ctx context.Context, edge domain.ContentEntityEdge) error {
	f.edges = append(f.edges, edge)
	return nil
}

func (f *fakeStore) ListExistingTopicNames(ctx context.Context, limit int) ([]string, error) {
	return f.topics, nil
}

func (f *fakeStore) ListExistingTags(ctx context.Context, limit int) ([]string, error) {
	return f.tags, nil
}

func (f *fakeStore) UpsertTagAlias(ctx context.Context, variant, canonical string) error {
	f.aliases = append(f.aliases, struct{ variant, canonical string }{variant, canonical})
	return nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

type stubGenerator struct{ response string }

func (s stubGenerator) Generate(ctx context.Context, p llm.GenerateParams) (string, error) {
	return s.response, nil
}

const s3EnrichResponse = `{
  "tags": ["programming", "kubernetes"],
  "new_tags": ["homelab"],
  "tier": "A",
  "quality_score": 78,
  "summary": "A deep dive into Kubernetes tooling.",
  "topics": [
    {"name": "DevOps > Kubernetes > Helm", "confidence": "high", "edge_type": "discusses"}
  ],
  "pre_detected_validations": [
    {"entity_id": "entity:langchain", "edge_type": "uses", "confirmed": true}
  ],
  "additional_entities": [
    {"type": "tool", "name": "Helm", "confidence": "high", "edge_type": "uses"}
  ]
}`

func TestProcessContentS3HappyPath(t *testing.T) {
	store := newFakeStore()
	store.contents["content-1"] = domain.Content{ID: "content-1", ContentType: domain.ContentMarkdown}

	store.entities["langchain"] = domain.Entity{ID: "langchain", Name: "langchain", NormalizedName: "langchain", EntityType: domain.EntityTool}
	store.byName["langchain|tool"] = "langchain"

	matcher := keyword.NewMatcher()
	matcher.Rebuild([]domain.Entity{store.entities["langchain"]})

	enricher := enrich.New(stubGenerator{response: s3EnrichResponse}, enrich.DefaultConfig(), nil)
	svc := New(store, matcher, enricher, nil, nil, Config{}, nil)

	result, err := svc.ProcessContent(context.Background(), Input{
		ContentID:   "content-1",
		ContentText: "We use langchain extensively for RAG in this Kubernetes Helm setup.",
		ContentType: domain.ContentMarkdown,
		Title:       "K8s + langchain",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 3 topic entities (DevOps, Kubernetes, Helm-topic) + langchain (reused) + Helm (tool, additional) = 5 resolutions.
	if got := result.EntitiesCreated + result.EntitiesReused; got < 4 {
		t.Errorf("expected at least 4 entity resolutions, got %d (created=%d reused=%d)", got, result.EntitiesCreated, result.EntitiesReused)
	}
	if result.EntitiesReused < 1 {
		t.Errorf("expected langchain to be reused, got reused=%d", result.EntitiesReused)
	}

	if len(result.Edges) < 4 {
		t.Errorf("expected at least 4 edges (langchain + 3 topics, plus Helm tool), got %d", len(result.Edges))
	}

	saved := store.contents["content-1"]
	if saved.ProcessingStatus != domain.StatusCompleted {
		t.Errorf("expected content marked completed, got %q", saved.ProcessingStatus)
	}
	if saved.Tier != domain.TierA {
		t.Errorf("expected tier A, got %q", saved.Tier)
	}
	if saved.QualityScore != 78 {
		t.Errorf("expected quality_score 78, got %d", saved.QualityScore)
	}

	// Verify the topic hierarchy chain exists with parent links.
	var devops, kubernetes, helmTopic *domain.Entity
	for id := range store.entities {
		e := store.entities[id]
		switch e.Name {
		case "DevOps":
			devops = &e
		case "Kubernetes":
			kubernetes = &e
		case "Helm":
			if e.EntityType == domain.EntityTopic {
				helmTopic = &e
			}
		}
	}
	if devops == nil || kubernetes == nil || helmTopic == nil {
		t.Fatalf("expected DevOps/Kubernetes/Helm topic chain, got entities: %+v", store.entities)
	}
	if helmTopic.Metadata["parent_topic"] == nil {
		t.Errorf("expected Helm topic to have parent_topic metadata")
	}
}

func TestProcessContentDropsSponsoredLinks(t *testing.T) {
	store := newFakeStore()
	store.contents["content-2"] = domain.Content{ID: "content-2", ContentType: domain.ContentWeb}

	matcher := keyword.NewMatcher()
	enricher := enrich.New(stubGenerator{response: `{"tier":"C","quality_score":40,"summary":"x"}`}, enrich.DefaultConfig(), nil)
	svc := New(store, matcher, enricher, nil, nil, Config{}, nil)

	text := "Check out https://brilliant.org/ref=xyz and https://github.com/qdrant/qdrant for more."
	preDetected := svc.detectURLs(context.Background(), text, nil)

	if len(preDetected) != 1 {
		t.Fatalf("expected exactly 1 surviving URL entity, got %d: %+v", len(preDetected), preDetected)
	}
	if preDetected[0].entity.EntityType != domain.EntityRepo || preDetected[0].entity.Name != "qdrant" {
		t.Errorf("unexpected surviving entity: %+v", preDetected[0].entity)
	}
}
