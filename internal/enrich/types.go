// Package enrich implements the unified enricher: a single LLM invocation
// per content that produces tags, a quality tier and score, a summary, and
// entity/topic extractions in one pass.
package enrich

import "github.com/menosai/menos/internal/domain"

// Confidence-string to float mapping, including the 0.6 default for
// unrecognized confidence strings (see DESIGN.md's Open Question
// resolution for the unified enricher).
const (
	ConfidenceHigh    = 0.9
	ConfidenceMedium  = 0.7
	ConfidenceLow     = 0.5
	ConfidenceDefault = 0.6
)

// PreDetected is the subset of an already-resolved entity the enricher
// needs to build its prompt and to key validations back to an entity.
type PreDetected struct {
	EntityID       string
	NormalizedName string
	EntityType     domain.EntityType
	Name           string
}

// ExtractedTopic is a hierarchical topic extraction, e.g.
// "DevOps > Kubernetes > Helm" parsed into its ancestor chain.
type ExtractedTopic struct {
	Name       string // leaf name, last element of Hierarchy
	Hierarchy  []string
	Confidence float64
	EdgeType   domain.EdgeType
}

// ExtractedEntity is a non-topic entity the enricher extracted directly
// (additional_entities in the response).
type ExtractedEntity struct {
	EntityType domain.EntityType
	Name       string
	Confidence float64
	EdgeType   domain.EdgeType
}

// PreDetectedValidation records whether the enricher confirmed a
// pre-detected entity and which edge type applies.
type PreDetectedValidation struct {
	EntityID  string
	EdgeType  domain.EdgeType
	Confirmed bool
}

// Result is the fully validated, strictly typed output of one unified
// enrichment call.
type Result struct {
	Tags                    []string
	NewTags                 []string
	Tier                    domain.Tier
	TierExplanation         []string
	QualityScore            int
	ScoreExplanation        []string
	Summary                 string
	Topics                  []ExtractedTopic
	PreDetectedValidations  []PreDetectedValidation
	AdditionalEntities      []ExtractedEntity
	Model                   string
	ProcessedAt             string
}

// TagRemap records a new_tags candidate collapsed onto an existing tag via
// near-duplicate matching, so callers can persist a TagAlias side effect.
type TagRemap struct {
	Variant   string
	Canonical string
}
