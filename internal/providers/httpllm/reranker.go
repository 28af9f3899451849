package httpllm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/menosai/menos/internal/llm"
)

const (
	rerankTemperature  = 0.0
	rerankTimeout      = 30.0
	rerankDocTruncate  = 200
)

const rerankPromptTemplate = `Rank the following documents by relevance to the query.
Return JSON: {"rankings": [{"index": 0, "score": 0.0}, ...]}
Score each document from 0.0 (irrelevant) to 1.0 (highly relevant).

Query: %s

Documents:
%s

Return only JSON, no other text.`

var rerankFencePattern = regexp.MustCompile(`(?s)` + "```" + `(?:json)?\s*(.*?)\s*` + "```")

// LLMReranker implements llm.Reranker by asking a Generator to score and
// order candidates. A parse failure or missing rankings degrades to the
// original order with score 1.0 for every candidate.
type LLMReranker struct {
	gen llm.Generator
}

// NewLLMReranker constructs an LLMReranker wrapping gen.
func NewLLMReranker(gen llm.Generator) *LLMReranker {
	return &LLMReranker{gen: gen}
}

type rerankRanking struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

type rerankResponse struct {
	Rankings []rerankRanking `json:"rankings"`
}

// Rerank implements llm.Reranker.
func (r *LLMReranker) Rerank(ctx context.Context, query string, candidates []llm.RerankCandidate) ([]llm.RerankResult, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	var docs strings.Builder
	for i, c := range candidates {
		fmt.Fprintf(&docs, "[%d] %s\n", i, truncateDoc(c.Text))
	}
	prompt := fmt.Sprintf(rerankPromptTemplate, query, docs.String())

	raw, err := r.gen.Generate(ctx, llm.GenerateParams{
		Prompt:      prompt,
		Temperature: rerankTemperature,
		Timeout:     rerankTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("httpllm: rerank: %w", err)
	}

	rankings, ok := parseRankings(raw)
	if !ok || len(rankings) == 0 {
		return originalOrder(candidates), nil
	}

	out := make([]llm.RerankResult, 0, len(rankings))
	for _, rk := range rankings {
		if rk.Index < 0 || rk.Index >= len(candidates) {
			continue
		}
		out = append(out, llm.RerankResult{ID: candidates[rk.Index].ID, Score: rk.Score})
	}
	if len(out) == 0 {
		return originalOrder(candidates), nil
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func originalOrder(candidates []llm.RerankCandidate) []llm.RerankResult {
	out := make([]llm.RerankResult, len(candidates))
	for i, c := range candidates {
		out[i] = llm.RerankResult{ID: c.ID, Score: 1.0}
	}
	return out
}

func truncateDoc(s string) string {
	if len(s) <= rerankDocTruncate {
		return s
	}
	return s[:rerankDocTruncate] + "..."
}

func parseRankings(raw string) ([]rerankRanking, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	candidate := raw
	if m := rerankFencePattern.FindStringSubmatch(raw); m != nil {
		candidate = strings.TrimSpace(m[1])
	}
	start := strings.IndexByte(candidate, '{')
	end := strings.LastIndexByte(candidate, '}')
	if start < 0 || end < start {
		return nil, false
	}

	var parsed rerankResponse
	if err := json.Unmarshal([]byte(candidate[start:end+1]), &parsed); err != nil {
		return nil, false
	}
	return parsed.Rankings, true
}
