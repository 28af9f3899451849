package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/menosai/menos/internal/domain"
	"github.com/menosai/menos/internal/llm"
)

const (
	contentTruncateLimit = 10000
	truncationMarker     = "\n\n[Content truncated...]"

	maxExistingTagsInPrompt    = 50
	maxExistingTopicsInPrompt  = 20

	generateTemperature = 0.3
	generateMaxTokens   = 3000
	generateTimeout     = 120.0
)

const unifiedPromptTemplate = `You are a content analyst. Evaluate the content and provide classification ratings, tags, and entity extraction in a single response.

CONTENT TYPE: %s
CONTENT TITLE: %s

## EXISTING TAGS (prefer these over creating new ones)
%s

## PRE-DETECTED ENTITIES (already found via URL/keyword matching)
%s

## EXISTING TOPICS (strongly prefer these)
%s

## RULES

### Tags
- Assign up to 10 tags from existing tags above
- You may create up to %d NEW tags if needed (lowercase, hyphenated)
- Tags must be single lowercase words or hyphenated (e.g. "kubernetes", "home-lab")

### Quality Rating
- Assign a quality tier: S (exceptional), A (great), B (good), C (mediocre), D (poor)
- Assign a quality score from 1-100 where 50 = average, 80+ = exceptional, <30 = low value
- Provide brief explanations (2-3 bullet points each)

### Summary
- Generate a summary: a 2-3 sentence overview followed by 3-5 bullet points of main topics

### Topics
- Extract 3-7 hierarchical topics
- Format: "Parent > Child > Grandchild" (e.g., "AI > LLMs > RAG")
- PREFER existing topics over creating new ones

### Pre-detected Validations
- For each pre-detected entity, confirm edge_type:
  discusses, mentions, uses, cites, demonstrates

### Additional Entities
- Only extract repos/tools/papers NOT in the pre-detected list
- Must be substantively discussed, not just name-dropped

<CONTENT>
%s
</CONTENT>

Respond ONLY with valid JSON (no markdown, no code blocks):
{
  "tags": ["existing-tag-1", "existing-tag-2"],
  "new_tags": ["genuinely-new-tag"],
  "tier": "B",
  "tier_explanation": ["Reason 1", "Reason 2"],
  "quality_score": 55,
  "score_explanation": ["Reason 1", "Reason 2"],
  "summary": "2-3 sentence overview.\n\n- Bullet 1\n- Bullet 2",
  "topics": [
    {"name": "AI > LLMs > RAG", "confidence": "high", "edge_type": "discusses"}
  ],
  "pre_detected_validations": [
    {"entity_id": "entity:langchain", "edge_type": "uses", "confirmed": true}
  ],
  "additional_entities": [
    {"type": "repo", "name": "FAISS", "confidence": "medium", "edge_type": "mentions"}
  ]
}`

// Service runs the single-LLM-call unified enrichment pipeline: tag
// assignment, quality tier/score, summary, and entity/topic extraction.
type Service struct {
	gen        llm.Generator
	log        *slog.Logger
	cfg        ParseConfig
	maxNewTags int
}

// Config bounds the enrichment call.
type Config struct {
	MaxNewTags    int
	MaxTopics     int
	MinConfidence float64
	DedupDistance int
}

// DefaultConfig mirrors DefaultParseConfig.
func DefaultConfig() Config {
	d := DefaultParseConfig()
	return Config{MaxNewTags: d.MaxNewTags, MaxTopics: d.MaxTopics, MinConfidence: d.MinConfidence, DedupDistance: d.DedupDistance}
}

// New constructs a unified enrichment Service.
func New(gen llm.Generator, cfg Config, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		gen: gen,
		log: log,
		cfg: ParseConfig{
			MaxNewTags:    cfg.MaxNewTags,
			MaxTopics:     cfg.MaxTopics,
			MinConfidence: cfg.MinConfidence,
			DedupDistance: cfg.DedupDistance,
		},
		maxNewTags: cfg.MaxNewTags,
	}
}

// Input gathers everything the unified prompt needs.
type Input struct {
	ContentID      string
	ContentText    string
	ContentType    domain.ContentType
	Title          string
	PreDetected    []PreDetected
	ExistingTags   []string
	ExistingTopics []string
	JobID          string
}

// Process runs one unified enrichment call and returns a validated Result
// plus any tag remaps (new_tags collapsed onto existing tags) that the
// caller should persist as TagAlias side effects.
func (s *Service) Process(ctx context.Context, in Input) (*Result, []TagRemap, error) {
	truncated := in.ContentText
	if len(truncated) > contentTruncateLimit {
		truncated = truncated[:contentTruncateLimit] + truncationMarker
	}

	preDetectedJSON, err := marshalPreDetected(in.PreDetected)
	if err != nil {
		return nil, nil, domain.NewStageError(domain.StageLLMCall, "LLM_CALL_ERROR", "failed to marshal pre-detected entities", err)
	}

	existingTags := capStrings(in.ExistingTags, maxExistingTagsInPrompt)
	existingTopics := capStrings(in.ExistingTopics, maxExistingTopicsInPrompt)

	prompt := fmt.Sprintf(unifiedPromptTemplate,
		in.ContentType,
		in.Title,
		joinOrNone(existingTags),
		preDetectedJSON,
		joinOrNone(existingTopics),
		s.maxNewTags,
		truncated,
	)

	start := time.Now()
	response, err := s.gen.Generate(ctx, llm.GenerateParams{
		Prompt:      prompt,
		Temperature: generateTemperature,
		MaxTokens:   generateMaxTokens,
		Timeout:     generateTimeout,
	})
	if err != nil {
		return nil, nil, domain.NewStageError(domain.StageLLMCall, "LLM_CALL_ERROR", truncateMessage(err.Error()), err)
	}
	s.log.Info("enrich: llm call complete",
		"content_id", in.ContentID, "job_id", in.JobID, "ms", time.Since(start).Milliseconds())

	data, ok := extractJSON(response)
	if !ok {
		return nil, nil, domain.NewStageError(domain.StageParse, "EMPTY_RESPONSE",
			fmt.Sprintf("empty unified pipeline response for %s", in.ContentID), nil)
	}

	result, remaps, ok := ParseUnifiedResponse(data, in.ExistingTags, s.cfg)
	if !ok {
		return nil, nil, domain.NewStageError(domain.StageParse, "PARSE_FAILED",
			fmt.Sprintf("failed to parse unified response for %s", in.ContentID), nil)
	}

	result.Model = "fallback_chain"
	result.ProcessedAt = time.Now().UTC().Format(time.RFC3339)

	s.log.Info("enrich: pipeline complete",
		"content_id", in.ContentID, "job_id", in.JobID,
		"tier", result.Tier, "score", result.QualityScore, "topics", len(result.Topics))

	return result, remaps, nil
}

type preDetectedPromptEntry struct {
	EntityID string `json:"entity_id"`
	Type     string `json:"type"`
	Name     string `json:"name"`
}

func marshalPreDetected(pre []PreDetected) (string, error) {
	entries := make([]preDetectedPromptEntry, 0, len(pre))
	for _, p := range pre {
		ref := p.EntityID
		if ref == "" {
			ref = p.NormalizedName
		}
		entries = append(entries, preDetectedPromptEntry{
			EntityID: "entity:" + ref,
			Type:     string(p.EntityType),
			Name:     p.Name,
		})
	}
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func capStrings(ss []string, n int) []string {
	if len(ss) <= n {
		return ss
	}
	return ss[:n]
}

func joinOrNone(ss []string) string {
	if len(ss) == 0 {
		return "None yet"
	}
	return strings.Join(ss, ", ")
}

func truncateMessage(s string) string {
	const limit = 500
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
