// Package chunking splits content text into overlapping sentence-bounded
// chunks and embeds each one, producing the dense 0-based chunk_index
// sequence the graph and vector stores expect.
package chunking

import (
	"context"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/menosai/menos/internal/domain"
	"github.com/menosai/menos/internal/llm"
)

const (
	// DefaultChunkSize is the target number of words per chunk.
	DefaultChunkSize = 512
	// DefaultOverlap is the number of overlapping words between chunks.
	DefaultOverlap = 50
)

// Service splits content text and embeds each resulting chunk.
type Service struct {
	embedder  llm.Embedder
	chunkSize int
	overlap   int
}

// Config tunes chunk size and overlap, both measured in words.
type Config struct {
	ChunkSize int
	Overlap   int
}

// DefaultConfig returns the teacher's tuned defaults.
func DefaultConfig() Config {
	return Config{ChunkSize: DefaultChunkSize, Overlap: DefaultOverlap}
}

// New constructs a Service. embedder must not be nil.
func New(embedder llm.Embedder, cfg Config) *Service {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}
	return &Service{embedder: embedder, chunkSize: cfg.ChunkSize, overlap: cfg.Overlap}
}

// Chunk splits text, embeds every chunk, and returns a dense-indexed,
// contiguous []domain.Chunk for contentID. A single-sentence or empty input
// produces at most one chunk so short content is never dropped.
func (s *Service) Chunk(ctx context.Context, contentID, text string) ([]domain.Chunk, error) {
	sentences := splitSentences(text)
	texts := groupSentences(sentences, s.chunkSize, s.overlap)
	if len(texts) == 0 && strings.TrimSpace(text) != "" {
		texts = []string{strings.TrimSpace(text)}
	}

	chunks := make([]domain.Chunk, len(texts))
	for i, t := range texts {
		embedding, err := s.embedder.Embed(ctx, t)
		if err != nil {
			return nil, domain.NewStageError(domain.StagePersist, "EMBED_FAILED", err.Error(), err)
		}
		chunks[i] = domain.Chunk{
			ID:         uuid.NewString(),
			ContentID:  contentID,
			Text:       t,
			ChunkIndex: i,
			Embedding:  embedding,
		}
	}
	return chunks, nil
}

// splitSentences splits text into sentences on terminal punctuation or
// newlines, respecting word boundaries.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if r == '\n' || i == len(text)-1 || (i+1 < len(text) && unicode.IsSpace(rune(text[i+1]))) {
				if s := strings.TrimSpace(current.String()); s != "" {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// groupSentences packs sentences into chunks of ~chunkSize words, carrying
// overlap words of context from the tail of one chunk into the next.
func groupSentences(sentences []string, chunkSize, overlap int) []string {
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	start := 0

	for start < len(sentences) {
		var buf strings.Builder
		words := 0
		end := start

		for end < len(sentences) {
			w := wordCount(sentences[end])
			if words+w > chunkSize && words > 0 {
				break
			}
			if buf.Len() > 0 {
				buf.WriteByte(' ')
			}
			buf.WriteString(sentences[end])
			words += w
			end++
		}

		chunks = append(chunks, buf.String())

		overlapWords := 0
		newStart := end
		for newStart > start && overlapWords < overlap {
			newStart--
			overlapWords += wordCount(sentences[newStart])
		}
		if newStart == start {
			start = end
		} else {
			start = newStart
		}
	}
	return chunks
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
