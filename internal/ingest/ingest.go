// Package ingest implements first-sighting and backfill ingestion of
// YouTube and web URLs: classification, external fetch, blob upload,
// content record creation, and pipeline job submission.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/menosai/menos/internal/blobstore"
	"github.com/menosai/menos/internal/domain"
	"github.com/menosai/menos/internal/fetchers"
	"github.com/menosai/menos/internal/orchestrator"
	"github.com/menosai/menos/internal/urlclass"
)

// Store is the persistence surface the ingestor needs.
type Store interface {
	GetContentByResourceKey(ctx context.Context, resourceKey string) (domain.Content, error)
	SaveContent(ctx context.Context, c domain.Content) error
}

// BlobStore is the content-addressed object store surface the ingestor
// needs. *blobstore.Store satisfies this.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// YouTubeFetcher fetches transcripts and metadata. *fetchers.YouTubeClient
// satisfies this.
type YouTubeFetcher interface {
	FetchTranscript(ctx context.Context, videoID string) (string, error)
	FetchMetadata(ctx context.Context, videoID string) (fetchers.VideoMetadata, error)
}

// WebExtractorer extracts a title and markdown body from a web page.
// *WebExtractor (extract.go) is the default implementation.
type WebExtractorer interface {
	Extract(ctx context.Context, rawURL string) (title, markdown string, err error)
}

// JobSubmitter is the orchestrator surface the ingestor needs.
type JobSubmitter interface {
	Submit(ctx context.Context, sub orchestrator.Submission) (*domain.PipelineJob, error)
}

// Service implements the ingestion algorithm.
type Service struct {
	store   Store
	blob    BlobStore
	youtube YouTubeFetcher
	web     WebExtractorer
	jobs    JobSubmitter
	log     *slog.Logger
}

// New constructs a Service.
func New(store Store, blob BlobStore, youtube YouTubeFetcher, web WebExtractorer, jobs JobSubmitter, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, blob: blob, youtube: youtube, web: web, jobs: jobs, log: log}
}

// Result is the outcome of an Ingest call.
type Result struct {
	ContentID   string
	ContentType domain.ContentType
	Title       string
	JobID       string // empty when no job was submitted (dedup hit or backfill)
}

// youtubePlaceholderPrefix marks a title as not yet backfilled from the
// YouTube Data API.
const youtubePlaceholderPrefix = "YouTube: "

// Ingest classifies rawURL, dedups by resource_key, and creates or
// backfills the content record per §4.2's algorithm.
func (s *Service) Ingest(ctx context.Context, rawURL string) (*Result, error) {
	classification, err := urlclass.Classify(rawURL)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w: %v", domain.ErrInvalidURL, err)
	}
	resourceKey := urlclass.ResourceKey(classification)

	existing, err := s.store.GetContentByResourceKey(ctx, resourceKey)
	switch {
	case err == nil:
		if classification.Kind == urlclass.KindYouTube && isIncompleteYouTubeMetadata(existing) {
			return s.backfillYouTube(ctx, existing, classification.Identifier)
		}
		return &Result{ContentID: existing.ID, ContentType: existing.ContentType, Title: existing.Title}, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	if classification.Kind == urlclass.KindYouTube {
		return s.ingestYouTube(ctx, classification.Identifier, resourceKey)
	}
	return s.ingestWeb(ctx, rawURL, resourceKey, classification)
}

func isIncompleteYouTubeMetadata(c domain.Content) bool {
	if len(c.Title) >= len(youtubePlaceholderPrefix) && c.Title[:len(youtubePlaceholderPrefix)] == youtubePlaceholderPrefix {
		return true
	}
	channelTitle, _ := c.Metadata["channel_title"].(string)
	return channelTitle == ""
}

func (s *Service) ingestYouTube(ctx context.Context, videoID, resourceKey string) (*Result, error) {
	transcript, err := s.youtube.FetchTranscript(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("ingest: youtube transcript fetch: %w", err)
	}

	title := youtubePlaceholderPrefix + videoID
	meta, metaErr := s.youtube.FetchMetadata(ctx, videoID)
	if metaErr != nil {
		s.log.Warn("ingest: youtube metadata fetch failed, using placeholder title", "video_id", videoID, "err", metaErr)
		meta = fetchers.VideoMetadata{ID: videoID, VideoID: videoID}
	} else {
		title = meta.Title
	}
	meta.FetchedAt = time.Now().UTC().Format(time.RFC3339)

	if err := s.blob.Put(ctx, blobstore.YouTubeTranscriptKey(videoID), []byte(transcript), "text/plain"); err != nil {
		return nil, fmt.Errorf("ingest: upload transcript: %w", err)
	}
	if err := s.putMetadataJSON(ctx, videoID, meta); err != nil {
		return nil, fmt.Errorf("ingest: upload metadata: %w", err)
	}

	now := time.Now().UTC()
	content := domain.Content{
		ID:          uuid.NewString(),
		ContentType: domain.ContentYouTube,
		Title:       title,
		MimeType:    "text/plain",
		FileSize:    int64(len(transcript)),
		FilePath:    blobstore.YouTubeTranscriptKey(videoID),
		Author:      meta.ChannelTitle,
		Description: meta.Description,
		Metadata: map[string]any{
			"resource_key":     resourceKey,
			"video_id":         videoID,
			"channel_id":       meta.ChannelID,
			"channel_title":    meta.ChannelTitle,
			"duration_seconds": meta.DurationSeconds,
			"view_count":       meta.ViewCount,
			"like_count":       meta.LikeCount,
		},
		ProcessingStatus: domain.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.store.SaveContent(ctx, content); err != nil {
		return nil, fmt.Errorf("ingest: save content: %w", err)
	}

	job, err := s.jobs.Submit(ctx, orchestrator.Submission{
		ContentID:       content.ID,
		ContentText:     transcript,
		ContentType:     domain.ContentYouTube,
		Title:           title,
		ResourceKey:     resourceKey,
		DescriptionURLs: meta.DescriptionURLs,
		DataTier:        domain.DataTierFull,
	})
	if err != nil {
		return nil, fmt.Errorf("ingest: submit job: %w", err)
	}

	result := &Result{ContentID: content.ID, ContentType: content.ContentType, Title: content.Title}
	if job != nil {
		result.JobID = job.ID
	}
	return result, nil
}

func (s *Service) backfillYouTube(ctx context.Context, existing domain.Content, videoID string) (*Result, error) {
	meta, err := s.youtube.FetchMetadata(ctx, videoID)
	if err != nil {
		s.log.Warn("ingest: backfill metadata fetch failed, keeping existing record", "video_id", videoID, "err", err)
		return &Result{ContentID: existing.ID, ContentType: existing.ContentType, Title: existing.Title}, nil
	}
	meta.FetchedAt = time.Now().UTC().Format(time.RFC3339)

	existing.Title = meta.Title
	existing.Author = meta.ChannelTitle
	existing.Description = meta.Description
	if existing.Metadata == nil {
		existing.Metadata = map[string]any{}
	}
	existing.Metadata["channel_id"] = meta.ChannelID
	existing.Metadata["channel_title"] = meta.ChannelTitle
	existing.Metadata["duration_seconds"] = meta.DurationSeconds
	existing.Metadata["view_count"] = meta.ViewCount
	existing.Metadata["like_count"] = meta.LikeCount
	existing.UpdatedAt = time.Now().UTC()

	if err := s.store.SaveContent(ctx, existing); err != nil {
		s.log.Warn("ingest: backfill save failed, returning existing record", "content_id", existing.ID, "err", err)
		return &Result{ContentID: existing.ID, ContentType: existing.ContentType, Title: existing.Title}, nil
	}
	if err := s.putMetadataJSON(ctx, videoID, meta); err != nil {
		s.log.Warn("ingest: backfill metadata blob rewrite failed", "video_id", videoID, "err", err)
	}

	return &Result{ContentID: existing.ID, ContentType: existing.ContentType, Title: existing.Title}, nil
}

func (s *Service) ingestWeb(ctx context.Context, rawURL, resourceKey string, classification urlclass.Classification) (*Result, error) {
	title, markdown, err := s.web.Extract(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("ingest: web extraction: %w", err)
	}

	urlHash := sha256Hex(classification.Canonical)
	key := blobstore.WebContentKey(urlHash)
	if err := s.blob.Put(ctx, key, []byte(markdown), "text/markdown"); err != nil {
		return nil, fmt.Errorf("ingest: upload web content: %w", err)
	}

	now := time.Now().UTC()
	content := domain.Content{
		ID:          uuid.NewString(),
		ContentType: domain.ContentWeb,
		Title:       title,
		MimeType:    "text/markdown",
		FileSize:    int64(len(markdown)),
		FilePath:    key,
		Metadata: map[string]any{
			"resource_key": resourceKey,
			"canonical_url": classification.Canonical,
			"source_url":   rawURL,
		},
		ProcessingStatus: domain.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.SaveContent(ctx, content); err != nil {
		return nil, fmt.Errorf("ingest: save content: %w", err)
	}

	job, err := s.jobs.Submit(ctx, orchestrator.Submission{
		ContentID:   content.ID,
		ContentText: markdown,
		ContentType: domain.ContentWeb,
		Title:       title,
		ResourceKey: resourceKey,
		DataTier:    domain.DataTierFull,
	})
	if err != nil {
		return nil, fmt.Errorf("ingest: submit job: %w", err)
	}

	result := &Result{ContentID: content.ID, ContentType: content.ContentType, Title: content.Title}
	if job != nil {
		result.JobID = job.ID
	}
	return result, nil
}

func (s *Service) putMetadataJSON(ctx context.Context, videoID string, meta fetchers.VideoMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return s.blob.Put(ctx, blobstore.YouTubeMetadataKey(videoID), data, "application/json")
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
