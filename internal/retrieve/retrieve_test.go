package retrieve

import (
	"context"
	"testing"

	"github.com/menosai/menos/internal/domain"
	"github.com/menosai/menos/internal/graphstore"
	"github.com/menosai/menos/internal/llm"
)

type fakeStore struct {
	byQuery  map[string][]graphstore.VectorSearchResult
	contents map[string]domain.Content
}

func (f *fakeStore) VectorSearch(ctx context.Context, p graphstore.VectorSearchParams) ([]graphstore.VectorSearchResult, error) {
	key := string(rune(int(p.Embedding[0])))
	return f.byQuery[key], nil
}

func (f *fakeStore) GetContent(ctx context.Context, id string) (domain.Content, error) {
	c, ok := f.contents[id]
	if !ok {
		return domain.Content{}, domain.ErrNotFound
	}
	return c, nil
}

// fakeEmbedder maps each query string to a single-element embedding whose
// value encodes the query, so fakeStore can key its canned search results
// on the query without a real vector space.
type fakeEmbedder struct{ calls []string }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls = append(f.calls, text)
	return []float32{float32(rune(text[0]))}, nil
}
func (f *fakeEmbedder) Dimensions() int { return 1 }

type fakeGenerator struct {
	out string
	err error
}

func (f fakeGenerator) Generate(ctx context.Context, p llm.GenerateParams) (string, error) {
	return f.out, f.err
}

type noopReranker struct{}

func (noopReranker) Rerank(ctx context.Context, query string, candidates []llm.RerankCandidate) ([]llm.RerankResult, error) {
	out := make([]llm.RerankResult, len(candidates))
	for i, c := range candidates {
		out[i] = llm.RerankResult{ID: c.ID, Score: float64(len(candidates) - i)}
	}
	return out, nil
}

func TestExpandQueryFallsBackOnUnparsableResponse(t *testing.T) {
	store := &fakeStore{byQuery: map[string][]graphstore.VectorSearchResult{}}
	svc := New(store, &fakeEmbedder{}, fakeGenerator{out: "not json"}, nil, nil, nil)

	queries := svc.expandQuery(context.Background(), "how do I use kubernetes")
	if len(queries) != 1 || queries[0] != "how do I use kubernetes" {
		t.Errorf("expected fallback to original query, got %v", queries)
	}
}

func TestExpandQueryParsesFencedJSONAndPrependsOriginal(t *testing.T) {
	store := &fakeStore{byQuery: map[string][]graphstore.VectorSearchResult{}}
	resp := "```json\n{\"queries\": [\"kubernetes basics\", \"k8s tutorial\"]}\n```"
	svc := New(store, &fakeEmbedder{}, fakeGenerator{out: resp}, nil, nil, nil)

	queries := svc.expandQuery(context.Background(), "kubernetes")
	if len(queries) != 3 {
		t.Fatalf("expected original + 2 expansions, got %v", queries)
	}
	if queries[0] != "kubernetes" {
		t.Errorf("expected original query first, got %q", queries[0])
	}
}

func TestExpandQueryCapsAtFive(t *testing.T) {
	store := &fakeStore{byQuery: map[string][]graphstore.VectorSearchResult{}}
	resp := `{"queries": ["q1", "q2", "q3", "q4", "q5", "q6", "q7"]}`
	svc := New(store, &fakeEmbedder{}, fakeGenerator{out: resp}, nil, nil, nil)

	queries := svc.expandQuery(context.Background(), "q1")
	if len(queries) != 5 {
		t.Errorf("expected cap of 5 expanded queries, got %d: %v", len(queries), queries)
	}
}

func TestExpandQueryNoExpanderDegradesToOriginal(t *testing.T) {
	store := &fakeStore{byQuery: map[string][]graphstore.VectorSearchResult{}}
	svc := New(store, &fakeEmbedder{}, nil, nil, nil, nil)

	queries := svc.expandQuery(context.Background(), "solo query")
	if len(queries) != 1 || queries[0] != "solo query" {
		t.Errorf("expected [original] with no expander, got %v", queries)
	}
}

// TestSearchWithRRFOrdersBySpecScenario reproduces the S6 fixture: subquery-1
// yields (A rank 0, B rank 1); subquery-2 yields (B rank 0, C rank 1). With
// k=60, RRF scores are B = 1/61 + 1/60, A = 1/60, C = 1/61, giving order
// B, A, C.
func TestSearchWithRRFOrdersBySpecScenario(t *testing.T) {
	store := &fakeStore{
		byQuery: map[string][]graphstore.VectorSearchResult{
			string(rune('1')): {
				{ContentID: "A", ChunkText: "about A", ContentType: "web"},
				{ContentID: "B", ChunkText: "about B", ContentType: "web"},
			},
			string(rune('2')): {
				{ContentID: "B", ChunkText: "about B again", ContentType: "web"},
				{ContentID: "C", ChunkText: "about C", ContentType: "web"},
			},
		},
		contents: map[string]domain.Content{},
	}
	svc := New(store, &fakeEmbedder{}, nil, nil, nil, nil)

	sources, err := svc.searchWithRRF(context.Background(), []string{"1", "2"}, "", "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sources) != 3 {
		t.Fatalf("expected 3 fused sources, got %d: %+v", len(sources), sources)
	}
	if sources[0].ID != "B" || sources[1].ID != "A" || sources[2].ID != "C" {
		t.Errorf("expected order B, A, C; got %s, %s, %s", sources[0].ID, sources[1].ID, sources[2].ID)
	}
}

func TestAllowedTiersIncludesEverythingAtOrAboveFloor(t *testing.T) {
	tiers := allowedTiers(domain.TierA)
	want := map[string]bool{"S": true, "A": true}
	if len(tiers) != len(want) {
		t.Fatalf("expected 2 tiers, got %v", tiers)
	}
	for _, tier := range tiers {
		if !want[tier] {
			t.Errorf("unexpected tier %q in allowed set for tier_min=A", tier)
		}
	}
}

func TestAllowedTiersEmptyFloorMeansNoFilter(t *testing.T) {
	if tiers := allowedTiers(""); tiers != nil {
		t.Errorf("expected nil (no filter) for empty tier floor, got %v", tiers)
	}
}

func TestSynthesizeAnswerEmptyResultsReturnsEmptyString(t *testing.T) {
	svc := New(&fakeStore{}, &fakeEmbedder{}, nil, nil, fakeGenerator{out: "should not be called"}, nil)
	if got := svc.synthesizeAnswer(context.Background(), "q", nil); got != "" {
		t.Errorf("expected empty answer for no results, got %q", got)
	}
}

func TestSynthesizeAnswerUsesUntitledFallback(t *testing.T) {
	var captured string
	gen := capturingGenerator{fn: func(p llm.GenerateParams) (string, error) {
		captured = p.Prompt
		return "Answer with [1] citation.", nil
	}}
	svc := New(&fakeStore{}, &fakeEmbedder{}, nil, nil, gen, nil)

	sources := []Source{{ID: "c1", Snippet: "some text"}}
	answer := svc.synthesizeAnswer(context.Background(), "q", sources)
	if answer != "Answer with [1] citation." {
		t.Errorf("unexpected answer: %q", answer)
	}
	if want := "[1] Untitled"; !containsSubstring(captured, want) {
		t.Errorf("expected prompt to use Untitled fallback, got: %s", captured)
	}
}

func TestSynthesizeAnswerFailureReturnsEmptyString(t *testing.T) {
	svc := New(&fakeStore{}, &fakeEmbedder{}, nil, nil, fakeGenerator{err: context.DeadlineExceeded}, nil)
	sources := []Source{{ID: "c1", Title: "T", Snippet: "some text"}}
	if got := svc.synthesizeAnswer(context.Background(), "q", sources); got != "" {
		t.Errorf("expected empty answer on synthesis failure, got %q", got)
	}
}

func TestRerankReordersByRerankerScore(t *testing.T) {
	store := &fakeStore{}
	svc := New(store, &fakeEmbedder{}, nil, noopReranker{}, nil, nil)

	sources := []Source{
		{ID: "low", Snippet: "a"},
		{ID: "high", Snippet: "b"},
	}
	out, err := svc.rerank(context.Background(), "q", sources, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 || out[0].ID != "low" {
		t.Errorf("unexpected rerank order: %+v", out)
	}
}

type capturingGenerator struct {
	fn func(llm.GenerateParams) (string, error)
}

func (c capturingGenerator) Generate(ctx context.Context, p llm.GenerateParams) (string, error) {
	return c.fn(p)
}

func containsSubstring(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}
