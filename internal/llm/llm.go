// Package llm defines the abstract capability interfaces the pipeline calls
// against: text generation, embedding, and reranking. Concrete vendor
// clients live outside this package; the core pipeline depends only on
// these interfaces, constructed once at startup and passed as values.
package llm

import "context"

// GenerateParams configures a single generation call.
type GenerateParams struct {
	Prompt      string
	Temperature float32
	MaxTokens   int
	Timeout     float64 // seconds, informational; callers derive a context deadline
}

// Generator produces text completions from a prompt.
type Generator interface {
	Generate(ctx context.Context, p GenerateParams) (string, error)
}

// Embedder produces a dense vector embedding for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// RerankCandidate is one item offered to a Reranker.
type RerankCandidate struct {
	ID   string
	Text string
}

// RerankResult pairs a candidate ID with its reranked relevance score.
type RerankResult struct {
	ID    string
	Score float64
}

// Reranker reorders search candidates against a query by relevance.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []RerankCandidate) ([]RerankResult, error)
}
