// Package domain defines the core record types shared across the ingestion
// and enrichment pipeline: content, chunks, entities, edges, links, jobs,
// tag aliases and migrations.
package domain

import "time"

// ContentType enumerates the kinds of content the system ingests.
type ContentType string

const (
	ContentYouTube   ContentType = "youtube"
	ContentWeb       ContentType = "web"
	ContentMarkdown  ContentType = "markdown"
	ContentDocument  ContentType = "document"
)

// ProcessingStatus tracks a content record's place in the pipeline.
type ProcessingStatus string

const (
	StatusNone       ProcessingStatus = "none"
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Tier is a discrete quality label, S (best) through D (worst).
type Tier string

const (
	TierS Tier = "S"
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
	TierD Tier = "D"
)

// ValidTiers is the recognised tier set, S through D.
var ValidTiers = map[Tier]bool{TierS: true, TierA: true, TierB: true, TierC: true, TierD: true}

// Content is the primary ingested node.
type Content struct {
	ID               string
	ContentType      ContentType
	Title            string
	MimeType         string
	FileSize         int64
	FilePath         string // BlobStore key for the canonical payload
	Author           string
	Tags             []string
	Description      string
	Metadata         map[string]any
	ProcessingStatus ProcessingStatus
	PipelineVersion  int
	ProcessedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time

	// Denormalized enrichment outputs.
	Tier         Tier
	QualityScore int
	Summary      string
}

// ResourceKey returns the content's dedup key from its metadata, if present.
func (c Content) ResourceKey() string {
	if v, ok := c.Metadata["resource_key"].(string); ok {
		return v
	}
	return ""
}

// Chunk is a text slice of a content payload with an embedding vector.
type Chunk struct {
	ID         string
	ContentID  string
	Text       string
	ChunkIndex int
	Embedding  []float32
}

// EntityType enumerates the kinds of entity nodes.
type EntityType string

const (
	EntityTopic  EntityType = "topic"
	EntityRepo   EntityType = "repo"
	EntityPaper  EntityType = "paper"
	EntityTool   EntityType = "tool"
	EntityPerson EntityType = "person"
)

// EntitySource records how an entity was first produced.
type EntitySource string

const (
	SourceURLDetected EntitySource = "url_detected"
	SourceAIExtracted EntitySource = "ai_extracted"
	SourceManual      EntitySource = "manual"
)

// Entity is a typed node representing a stable concept.
type Entity struct {
	ID             string
	EntityType     EntityType
	Name           string
	NormalizedName string
	Description    string
	Hierarchy      []string // ordered ancestor names for topics; empty for non-topics
	Metadata       map[string]any
	Source         EntitySource
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EdgeType enumerates the kinds of content-entity relationships.
type EdgeType string

const (
	EdgeDiscusses    EdgeType = "discusses"
	EdgeMentions     EdgeType = "mentions"
	EdgeUses         EdgeType = "uses"
	EdgeCites        EdgeType = "cites"
	EdgeDemonstrates EdgeType = "demonstrates"
)

// ContentEntityEdge is a typed relationship between a content and an entity.
type ContentEntityEdge struct {
	ID         string
	ContentID  string
	EntityID   string
	EdgeType   EdgeType
	Confidence float64
	Source     EntitySource
	CreatedAt  time.Time
}

// LinkType enumerates the kinds of in-document references.
type LinkType string

const (
	LinkWiki     LinkType = "wiki"
	LinkMarkdown LinkType = "markdown"
)

// ContentLink is a lightweight in-document reference from one content to
// another. Target is empty when the link is unresolved.
type ContentLink struct {
	ID       string
	Source   string
	Target   string
	LinkText string
	LinkType LinkType
}

// JobStatus tracks a PipelineJob's place in the state machine.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// ActiveJobStatuses are the statuses counted against the one-active-job-per-
// resource-key invariant.
var ActiveJobStatuses = map[JobStatus]bool{JobPending: true, JobProcessing: true}

// DataTier selects how much of a content's text is carried through a job.
type DataTier string

const (
	DataTierCompact DataTier = "compact"
	DataTierFull    DataTier = "full"
)

// PipelineJob is a durable unit of pipeline work.
type PipelineJob struct {
	ID              string
	ResourceKey     string
	ContentID       string
	Status          JobStatus
	PipelineVersion int
	DataTier        DataTier
	IdempotencyKey  string
	ErrorCode       string
	ErrorMessage    string
	ErrorStage      string
	Metadata        map[string]any
	CreatedAt       time.Time
	StartedAt       *time.Time
	FinishedAt      *time.Time
}

// IsTerminal reports whether the job has reached a terminal state.
func (j PipelineJob) IsTerminal() bool {
	switch j.Status {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// TagAlias maps a variant tag string to its canonical form.
type TagAlias struct {
	Variant    string
	Canonical  string
	UsageCount int
}

// Migration is an append-only record of an applied schema change.
type Migration struct {
	Name      string
	AppliedAt time.Time
}
