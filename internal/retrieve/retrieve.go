// Package retrieve implements the agentic retrieval pipeline: query
// expansion, multi-query vector search fused by Reciprocal Rank Fusion,
// reranking, and cited answer synthesis.
package retrieve

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/menosai/menos/internal/domain"
	"github.com/menosai/menos/internal/graphstore"
	"github.com/menosai/menos/internal/llm"
)

const (
	rrfK             = 60
	scoreFloor       = 0.30
	defaultLimit     = 10
	maxExpandedCount = 5

	expansionTemperature = 0.3
	expansionTimeout     = 30.0
	synthesisTemperature = 0.5
	synthesisTimeout     = 60.0

	synthesisSnippetLimit = 400
	sourceSnippetLimit    = 500
)

const expansionPrompt = `Generate 3-5 diverse search queries to find relevant content.
Return JSON: {"queries": ["query1", "query2", ...]}
Focus on different aspects and synonyms to maximize recall.

Original question: %s

Return only JSON, no other text.`

const synthesisPrompt = `Based on the following search results, answer the user's question.
Include citations using [1], [2] etc. for each source used.
If the results don't contain relevant information, say so.

Question: %s

Search Results:
%s

Provide a comprehensive answer with citations.`

// tierOrder ranks tiers best-to-worst; tier_min=A means the allowed set is
// every tier at or above A, i.e. {S, A}.
var tierOrder = []domain.Tier{domain.TierS, domain.TierA, domain.TierB, domain.TierC, domain.TierD}

// Store is the persistence surface the retriever needs: vector search plus
// content lookup to resolve titles for search hits.
type Store interface {
	VectorSearch(ctx context.Context, p graphstore.VectorSearchParams) ([]graphstore.VectorSearchResult, error)
	GetContent(ctx context.Context, id string) (domain.Content, error)
}

// Service implements the 4-stage agentic search pipeline.
type Service struct {
	store    Store
	embedder llm.Embedder
	expander llm.Generator
	reranker llm.Reranker
	synth    llm.Generator
	log      *slog.Logger
}

// New constructs a Service. expander and synth may be the same Generator.
func New(store Store, embedder llm.Embedder, expander llm.Generator, reranker llm.Reranker, synth llm.Generator, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, embedder: embedder, expander: expander, reranker: reranker, synth: synth, log: log}
}

// Query bounds a single agentic search request.
type Query struct {
	Text        string
	ContentType string     // empty = no filter
	TierMin     domain.Tier // empty = no tier floor
	Limit       int         // defaults to 10
}

// Source is one cited search result.
type Source struct {
	ID          string  `json:"id"`
	ContentType string  `json:"content_type"`
	Title       string  `json:"title"`
	Score       float64 `json:"score"`
	Snippet     string  `json:"snippet"`
}

// Timing records per-stage wall-clock duration in milliseconds.
type Timing struct {
	ExpansionMS float64 `json:"expansion_ms"`
	RetrievalMS float64 `json:"retrieval_ms"`
	RerankMS    float64 `json:"rerank_ms"`
	SynthesisMS float64 `json:"synthesis_ms"`
	TotalMS     float64 `json:"total_ms"`
}

// Result is the outcome of a Query call.
type Result struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
	Timing  Timing   `json:"timing"`
}

// Search runs the 4-stage pipeline: expand, multi-query RRF search, rerank,
// synthesize.
func (s *Service) Search(ctx context.Context, q Query) (*Result, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	totalStart := time.Now()
	var timing Timing

	expansionStart := time.Now()
	queries := s.expandQuery(ctx, q.Text)
	timing.ExpansionMS = elapsedMS(expansionStart)

	retrievalStart := time.Now()
	sources, err := s.searchWithRRF(ctx, queries, q.ContentType, q.TierMin, limit*2)
	if err != nil {
		return nil, fmt.Errorf("retrieve: rrf search: %w", err)
	}
	timing.RetrievalMS = elapsedMS(retrievalStart)

	rerankStart := time.Now()
	if len(sources) > 0 && s.reranker != nil {
		sources, err = s.rerank(ctx, q.Text, sources, limit)
		if err != nil {
			s.log.Warn("retrieve: rerank failed, keeping RRF order", "err", err)
			if len(sources) > limit {
				sources = sources[:limit]
			}
		}
	} else if len(sources) > limit {
		sources = sources[:limit]
	}
	timing.RerankMS = elapsedMS(rerankStart)

	synthesisStart := time.Now()
	answer := s.synthesizeAnswer(ctx, q.Text, sources)
	timing.SynthesisMS = elapsedMS(synthesisStart)

	timing.TotalMS = elapsedMS(totalStart)

	return &Result{Answer: answer, Sources: sources, Timing: timing}, nil
}

func elapsedMS(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}

type expansionResponse struct {
	Queries []string `json:"queries"`
}

var fencePattern = regexp.MustCompile(`(?s)` + "```" + `(?:json)?\s*(.*?)\s*` + "```")

// expandQuery asks the expansion LLM for 3-5 alternative phrasings,
// prepending the original and capping at 5. Any failure degrades to
// [original query].
func (s *Service) expandQuery(ctx context.Context, query string) []string {
	fallback := []string{query}
	if s.expander == nil {
		return fallback
	}

	prompt := fmt.Sprintf(expansionPrompt, query)
	raw, err := s.expander.Generate(ctx, llm.GenerateParams{
		Prompt:      prompt,
		Temperature: expansionTemperature,
		Timeout:     expansionTimeout,
	})
	if err != nil {
		s.log.Warn("retrieve: query expansion failed, using original query only", "err", err)
		return fallback
	}

	data, ok := extractJSONObject(raw)
	if !ok {
		return fallback
	}
	var parsed expansionResponse
	if err := json.Unmarshal(data, &parsed); err != nil || len(parsed.Queries) == 0 {
		return fallback
	}

	queries := parsed.Queries
	if !contains(queries, query) {
		queries = append([]string{query}, queries...)
	}
	if len(queries) > maxExpandedCount {
		queries = queries[:maxExpandedCount]
	}
	return queries
}

// extractJSONObject pulls a {...} object out of raw, tolerating a ```json
// fenced block around it.
func extractJSONObject(raw string) ([]byte, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	candidate := raw
	if m := fencePattern.FindStringSubmatch(raw); m != nil {
		candidate = strings.TrimSpace(m[1])
	}
	start := strings.IndexByte(candidate, '{')
	end := strings.LastIndexByte(candidate, '}')
	if start < 0 || end < start {
		return nil, false
	}
	return []byte(candidate[start : end+1]), true
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

// searchWithRRF embeds and searches each expanded query, fusing the results
// by Reciprocal Rank Fusion.
func (s *Service) searchWithRRF(ctx context.Context, queries []string, contentType string, tierMin domain.Tier, limit int) ([]Source, error) {
	fused := map[string]*Source{}
	rrfScores := map[string]float64{}

	tiers := allowedTiers(tierMin)

	for _, query := range queries {
		embedding, err := s.embedder.Embed(ctx, query)
		if err != nil {
			s.log.Warn("retrieve: embedding failed for expanded query, skipping", "query", query, "err", err)
			continue
		}

		hits, err := s.store.VectorSearch(ctx, graphstore.VectorSearchParams{
			Embedding:    embedding,
			Limit:        limit,
			ScoreFloor:   scoreFloor,
			ContentType:  contentType,
			AllowedTiers: tiers,
		})
		if err != nil {
			return nil, err
		}

		for rank, hit := range hits {
			src, ok := fused[hit.ContentID]
			if !ok {
				title, contentTypeLabel := s.lookupContent(ctx, hit.ContentID, hit.ContentType)
				src = &Source{
					ID:          hit.ContentID,
					ContentType: contentTypeLabel,
					Title:       title,
					Snippet:     truncate(hit.ChunkText, sourceSnippetLimit),
				}
				fused[hit.ContentID] = src
			}
			rrfScores[hit.ContentID] += rrfScore(rank)
		}
	}

	out := make([]Source, 0, len(fused))
	for id, src := range fused {
		src.Score = round4(rrfScores[id])
		out = append(out, *src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func rrfScore(rank int) float64 {
	return 1.0 / float64(rrfK+rank)
}

func round4(f float64) float64 {
	return float64(int(f*10000+0.5)) / 10000
}

// lookupContent resolves a title for a content hit, falling back to the
// vector-store's denormalized content_type when the content record can't be
// fetched.
func (s *Service) lookupContent(ctx context.Context, contentID, fallbackType string) (title, contentType string) {
	content, err := s.store.GetContent(ctx, contentID)
	if err != nil {
		return "", fallbackType
	}
	return content.Title, string(content.ContentType)
}

// allowedTiers returns every tier at or above tierMin. An empty tierMin
// applies no floor.
func allowedTiers(tierMin domain.Tier) []string {
	if tierMin == "" {
		return nil
	}
	out := make([]string, 0, len(tierOrder))
	for _, t := range tierOrder {
		out = append(out, string(t))
		if t == tierMin {
			return out
		}
	}
	return out
}

// rerank presents the fused snippets to the reranker and reorders sources
// by the returned relevance scores, keeping the top limit.
func (s *Service) rerank(ctx context.Context, query string, sources []Source, limit int) ([]Source, error) {
	candidates := make([]llm.RerankCandidate, len(sources))
	byID := make(map[string]Source, len(sources))
	for i, src := range sources {
		candidates[i] = llm.RerankCandidate{ID: src.ID, Text: src.Snippet}
		byID[src.ID] = src
	}

	ranked, err := s.reranker.Rerank(ctx, query, candidates)
	if err != nil {
		return nil, err
	}

	out := make([]Source, 0, limit)
	for _, r := range ranked {
		src, ok := byID[r.ID]
		if !ok {
			continue
		}
		src.Score = r.Score
		out = append(out, src)
		if len(out) >= limit {
			break
		}
	}
	if len(out) == 0 {
		if len(sources) > limit {
			return sources[:limit], nil
		}
		return sources, nil
	}
	return out, nil
}

// synthesizeAnswer prompts the synthesis LLM with the query and numbered,
// truncated snippets. Returns "" on no results, a disabled synthesizer, or
// synthesis failure.
func (s *Service) synthesizeAnswer(ctx context.Context, query string, sources []Source) string {
	if len(sources) == 0 || s.synth == nil {
		return ""
	}

	formatted := make([]string, len(sources))
	for i, src := range sources {
		title := src.Title
		if title == "" {
			title = "Untitled"
		}
		formatted[i] = fmt.Sprintf("[%d] %s\n%s", i+1, title, truncate(src.Snippet, synthesisSnippetLimit))
	}

	prompt := fmt.Sprintf(synthesisPrompt, query, strings.Join(formatted, "\n\n"))
	answer, err := s.synth.Generate(ctx, llm.GenerateParams{
		Prompt:      prompt,
		Temperature: synthesisTemperature,
		Timeout:     synthesisTimeout,
	})
	if err != nil {
		s.log.Warn("retrieve: answer synthesis failed", "err", err)
		return ""
	}
	return strings.TrimSpace(answer)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
