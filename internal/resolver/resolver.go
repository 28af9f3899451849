// Package resolver implements the three-stage entity resolution pipeline:
// URL detection, keyword matching, and unified LLM enrichment, followed by
// find-or-create persistence of every confirmed entity and its content
// edge.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/menosai/menos/internal/domain"
	"github.com/menosai/menos/internal/enrich"
	"github.com/menosai/menos/internal/keyword"
)

const (
	confidenceURLDetected = 0.9
	confidenceTopic       = 0.85
	confidenceAdditional  = 0.7

	existingTagsLimit   = 50
	existingTopicsLimit = 50
)

// Store is the persistence surface the resolver needs. graphstore.Store
// satisfies it structurally.
type Store interface {
	GetContent(ctx context.Context, id string) (domain.Content, error)
	SaveContent(ctx context.Context, c domain.Content) error
	FindOrCreateEntity(ctx context.Context, e domain.Entity) (domain.Entity, bool, error)
	GetEntity(ctx context.Context, id string) (domain.Entity, error)
	UpsertEdge(ctx context.Context, edge domain.ContentEntityEdge) error
	ListExistingTopicNames(ctx context.Context, limit int) ([]string, error)
	ListExistingTags(ctx context.Context, limit int) ([]string, error)
	UpsertTagAlias(ctx context.Context, variant, canonical string) error
}

// Config toggles external metadata fetching for URL-detected repos/papers.
type Config struct {
	FetchExternalMetadata bool
}

// Service orchestrates URL detection, keyword matching, and unified
// enrichment into persisted entities and edges.
type Service struct {
	store    Store
	matcher  *keyword.Matcher
	enricher *enrich.Service
	github   GitHubFetcher
	arxiv    ArXivFetcher
	cfg      Config
	log      *slog.Logger
}

// GitHubFetcher is the subset of fetchers.GitHubClient the resolver needs.
type GitHubFetcher interface {
	FetchRepo(ctx context.Context, owner, name string) (RepoMetadata, error)
}

// ArXivFetcher is the subset of fetchers.ArXivClient the resolver needs.
type ArXivFetcher interface {
	FetchPaper(ctx context.Context, arxivID string) (PaperMetadata, error)
}

// RepoMetadata mirrors fetchers.RepoMetadata to avoid resolver depending on
// the concrete fetchers package beyond these two narrow interfaces.
type RepoMetadata struct {
	Stars       int
	Language    string
	Topics      []string
	Description string
	Name        string
	FetchedAt   time.Time
}

// PaperMetadata mirrors fetchers.PaperMetadata.
type PaperMetadata struct {
	Title       string
	Authors     []string
	Abstract    string
	DOI         string
	PublishedAt *time.Time
	FetchedAt   time.Time
}

// New constructs a resolver Service. github and arxiv may be nil, in which
// case URL-detected repos/papers are persisted without external enrichment.
func New(store Store, matcher *keyword.Matcher, enricher *enrich.Service, github GitHubFetcher, arxiv ArXivFetcher, cfg Config, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, matcher: matcher, enricher: enricher, github: github, arxiv: arxiv, cfg: cfg, log: log}
}

// Input describes the content being resolved.
type Input struct {
	ContentID       string
	ContentText     string
	ContentType     domain.ContentType
	Title           string
	DescriptionURLs []string
}

// Result summarizes what the resolution pass produced, for observability.
type Result struct {
	Edges           []domain.ContentEntityEdge
	EntitiesCreated int
	EntitiesReused  int
	Enrichment      *enrich.Result
}

// provisionalEntity is a not-yet-persisted entity candidate along with the
// reference used to key it against the enricher's validation map.
type provisionalEntity struct {
	entity    domain.Entity
	reference string // matches enrich.PreDetected.EntityID/NormalizedName convention
}

// ProcessContent runs the full three-stage resolution pipeline and persists
// every confirmed entity, edge, and the enrichment's classification fields
// onto the content record.
func (s *Service) ProcessContent(ctx context.Context, in Input) (*Result, error) {
	preDetected := s.detectURLs(ctx, in.ContentText, in.DescriptionURLs)
	preDetected = append(preDetected, s.matchKeywords(ctx, in.ContentText, preDetected)...)

	existingTags, err := s.store.ListExistingTags(ctx, existingTagsLimit)
	if err != nil {
		return nil, domain.NewStageError(domain.StageFetch, "TAG_FETCH_ERROR", err.Error(), err)
	}
	existingTopics, err := s.store.ListExistingTopicNames(ctx, existingTopicsLimit)
	if err != nil {
		return nil, domain.NewStageError(domain.StageFetch, "TAG_FETCH_ERROR", err.Error(), err)
	}

	enrichPre := make([]enrich.PreDetected, len(preDetected))
	for i, p := range preDetected {
		enrichPre[i] = enrich.PreDetected{
			EntityID:       p.entity.ID,
			NormalizedName: p.entity.NormalizedName,
			EntityType:     p.entity.EntityType,
			Name:           p.entity.Name,
		}
	}

	enrichResult, tagRemaps, err := s.enricher.Process(ctx, enrich.Input{
		ContentID:      in.ContentID,
		ContentText:    in.ContentText,
		ContentType:    in.ContentType,
		Title:          in.Title,
		PreDetected:    enrichPre,
		ExistingTags:   existingTags,
		ExistingTopics: existingTopics,
	})
	if err != nil {
		return nil, err
	}

	for _, remap := range tagRemaps {
		if err := s.store.UpsertTagAlias(ctx, remap.Variant, remap.Canonical); err != nil {
			s.log.Warn("resolver: failed to upsert tag alias", "variant", remap.Variant, "canonical", remap.Canonical, "err", err)
		}
	}

	result := &Result{Enrichment: enrichResult}

	validationMap := make(map[string]enrich.PreDetectedValidation, len(enrichResult.PreDetectedValidations))
	for _, v := range enrichResult.PreDetectedValidations {
		validationMap[v.EntityID] = v
	}

	for _, p := range preDetected {
		validation, hasValidation := validationMap["entity:"+p.reference]
		if hasValidation && !validation.Confirmed {
			continue
		}

		edgeType := domain.EdgeMentions
		if hasValidation {
			edgeType = validation.EdgeType
		}

		resolved, created, err := s.findOrCreate(ctx, p.entity)
		if err != nil {
			s.log.Warn("resolver: failed to resolve pre-detected entity", "name", p.entity.Name, "err", err)
			continue
		}
		s.countResolution(result, created)

		if err := s.store.UpsertEdge(ctx, domain.ContentEntityEdge{
			ContentID:  in.ContentID,
			EntityID:   resolved.ID,
			EdgeType:   edgeType,
			Confidence: confidenceURLDetected,
			Source:     p.entity.Source,
		}); err != nil {
			s.log.Warn("resolver: failed to create edge", "entity", p.entity.Name, "err", err)
			continue
		}
		result.Edges = append(result.Edges, domain.ContentEntityEdge{ContentID: in.ContentID, EntityID: resolved.ID, EdgeType: edgeType})
	}

	for _, topic := range enrichResult.Topics {
		chain, created, err := s.resolveTopic(ctx, topic)
		if err != nil {
			s.log.Warn("resolver: failed to resolve topic", "name", topic.Name, "err", err)
			continue
		}
		for i, resolved := range chain {
			s.countResolution(result, created[i])

			if err := s.store.UpsertEdge(ctx, domain.ContentEntityEdge{
				ContentID:  in.ContentID,
				EntityID:   resolved.ID,
				EdgeType:   topic.EdgeType,
				Confidence: confidenceTopic,
				Source:     domain.SourceAIExtracted,
			}); err != nil {
				s.log.Warn("resolver: failed to create topic edge", "topic", resolved.Name, "err", err)
				continue
			}
			result.Edges = append(result.Edges, domain.ContentEntityEdge{ContentID: in.ContentID, EntityID: resolved.ID, EdgeType: topic.EdgeType})
		}
	}

	for _, additional := range enrichResult.AdditionalEntities {
		resolved, created, err := s.findOrCreate(ctx, domain.Entity{
			EntityType:     additional.EntityType,
			Name:           additional.Name,
			NormalizedName: normalizeEntityName(additional.Name),
			Source:         domain.SourceAIExtracted,
		})
		if err != nil {
			s.log.Warn("resolver: failed to resolve additional entity", "name", additional.Name, "err", err)
			continue
		}
		s.countResolution(result, created)

		if err := s.store.UpsertEdge(ctx, domain.ContentEntityEdge{
			ContentID:  in.ContentID,
			EntityID:   resolved.ID,
			EdgeType:   additional.EdgeType,
			Confidence: confidenceAdditional,
			Source:     domain.SourceAIExtracted,
		}); err != nil {
			s.log.Warn("resolver: failed to create additional-entity edge", "name", additional.Name, "err", err)
			continue
		}
		result.Edges = append(result.Edges, domain.ContentEntityEdge{ContentID: in.ContentID, EntityID: resolved.ID, EdgeType: additional.EdgeType})
	}

	if err := s.applyEnrichmentToContent(ctx, in.ContentID, enrichResult); err != nil {
		return result, err
	}

	s.log.Info("resolver: processed content", "content_id", in.ContentID,
		"edges", len(result.Edges), "created", result.EntitiesCreated, "reused", result.EntitiesReused)

	return result, nil
}

func (s *Service) countResolution(r *Result, created bool) {
	if created {
		r.EntitiesCreated++
	} else {
		r.EntitiesReused++
	}
}

// findOrCreate wraps Store.FindOrCreateEntity.
func (s *Service) findOrCreate(ctx context.Context, e domain.Entity) (domain.Entity, bool, error) {
	return s.store.FindOrCreateEntity(ctx, e)
}

// resolveTopic walks a topic's hierarchy left to right, find-or-creating
// each ancestor, then the leaf with metadata.parent_topic pointing at its
// immediate parent. It returns the whole chain, root first, and whether
// each entity in it was created.
func (s *Service) resolveTopic(ctx context.Context, topic enrich.ExtractedTopic) ([]domain.Entity, []bool, error) {
	hierarchy := topic.Hierarchy
	if len(hierarchy) == 0 {
		hierarchy = []string{topic.Name}
	}

	var parentID string
	var chain []domain.Entity
	var created []bool
	for i := 0; i < len(hierarchy)-1; i++ {
		level := hierarchy[i]
		parent, wasCreated, err := s.findOrCreate(ctx, domain.Entity{
			EntityType:     domain.EntityTopic,
			Name:           level,
			NormalizedName: normalizeEntityName(level),
			Hierarchy:      append([]string{}, hierarchy[:i+1]...),
			Source:         domain.SourceAIExtracted,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("resolver: resolve parent topic %q: %w", level, err)
		}
		parentID = parent.ID
		chain = append(chain, parent)
		created = append(created, wasCreated)
	}

	metadata := map[string]any{}
	if parentID != "" {
		metadata["parent_topic"] = "entity:" + parentID
	}

	leaf := hierarchy[len(hierarchy)-1]
	leafEntity, wasCreated, err := s.findOrCreate(ctx, domain.Entity{
		EntityType:     domain.EntityTopic,
		Name:           leaf,
		NormalizedName: normalizeEntityName(leaf),
		Hierarchy:      hierarchy,
		Metadata:       metadata,
		Source:         domain.SourceAIExtracted,
	})
	if err != nil {
		return nil, nil, err
	}
	return append(chain, leafEntity), append(created, wasCreated), nil
}

// applyEnrichmentToContent writes the classification outputs (tags, tier,
// score, summary) onto the content record and marks it completed.
func (s *Service) applyEnrichmentToContent(ctx context.Context, contentID string, result *enrich.Result) error {
	content, err := s.store.GetContent(ctx, contentID)
	if err != nil {
		return domain.NewStageError(domain.StagePersist, "CONTENT_LOAD_FAILED", err.Error(), err)
	}

	content.Tags = result.Tags
	content.Tier = result.Tier
	content.QualityScore = result.QualityScore
	content.Summary = result.Summary
	content.ProcessingStatus = domain.StatusCompleted
	now := time.Now().UTC()
	content.ProcessedAt = &now
	content.UpdatedAt = now

	if err := s.store.SaveContent(ctx, content); err != nil {
		return domain.NewStageError(domain.StagePersist, "CONTENT_SAVE_FAILED", err.Error(), err)
	}
	return nil
}
