// Package orchestrator implements the job state machine: submission,
// dedup-by-resource-key, a worker pool that runs the entity resolution
// pipeline, webhook delivery on terminal state, and the version-drift
// report.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/menosai/menos/internal/domain"
	"github.com/menosai/menos/internal/resolver"
)

// compactTextLimit bounds how much content text a "compact" DataTier job
// carries, keeping lightweight/backfill jobs cheap to queue and replay.
const compactTextLimit = 4000

// Store is the persistence surface the orchestrator needs.
type Store interface {
	FindActiveJobByResourceKey(ctx context.Context, resourceKey string) (domain.PipelineJob, error)
	CreateJob(ctx context.Context, job domain.PipelineJob) error
	SaveJob(ctx context.Context, job domain.PipelineJob) error
	GetJob(ctx context.Context, id string) (domain.PipelineJob, error)
	ListPendingJobs(ctx context.Context, limit int) ([]domain.PipelineJob, error)
	DriftCounts(ctx context.Context, currentVersion int) (map[int]int, error)
	GetContent(ctx context.Context, id string) (domain.Content, error)
	SaveContent(ctx context.Context, c domain.Content) error
}

// Pipeline is the resolution pipeline the orchestrator drives per job.
// *resolver.Service satisfies this.
type Pipeline interface {
	ProcessContent(ctx context.Context, in resolver.Input) (*resolver.Result, error)
}

// WebhookSender delivers a terminal job's result to a caller-registered
// endpoint. *orchestrator.WebhookDeliverer (webhook.go) satisfies this.
type WebhookSender interface {
	Deliver(ctx context.Context, job domain.PipelineJob, result *resolver.Result, deliveryErr error)
}

// Chunker splits a content's text into embedded chunks. *chunking.Service
// satisfies this. A content's whole chunk set is replaced after every
// successful pipeline run, matching the content/chunk lifecycle invariant.
type Chunker interface {
	Chunk(ctx context.Context, contentID, text string) ([]domain.Chunk, error)
}

// ChunkStore is the subset of graphstore.Store needed to rewrite a
// content's chunk set.
type ChunkStore interface {
	ReplaceChunks(ctx context.Context, content domain.Content, chunks []domain.Chunk) error
}

// Config tunes the worker pool and pipeline version.
type Config struct {
	UnifiedPipelineEnabled bool
	PipelineVersion        int
	Workers                int
	PollInterval           time.Duration
}

// DefaultConfig returns sane single-process defaults.
func DefaultConfig() Config {
	return Config{UnifiedPipelineEnabled: true, PipelineVersion: 1, Workers: 2, PollInterval: 2 * time.Second}
}

// Service is the job orchestrator.
type Service struct {
	store      Store
	pipeline   Pipeline
	webhook    WebhookSender
	chunker    Chunker
	chunkStore ChunkStore
	cfg        Config
	log        *slog.Logger
	notifier   JobNotifier
	wakeSub    JobWakeSubscriber
}

// JobNotifier publishes a best-effort, low-latency notice that a job was
// submitted. The worker pool never depends on it arriving: ListPendingJobs
// polling is the durable source of work, so a dropped or delayed
// notification only costs the poll interval's worth of latency.
type JobNotifier interface {
	NotifyJobSubmitted(ctx context.Context, jobID string)
}

// JobWakeSubscriber feeds wake into the worker pool's poll loop whenever a
// job-submitted notice arrives, letting workers skip ahead of their next
// scheduled poll tick instead of waiting out PollInterval.
type JobWakeSubscriber interface {
	Subscribe(ctx context.Context, wake chan<- struct{}) error
}

// New constructs a Service. webhook may be nil to disable delivery.
func New(store Store, pipeline Pipeline, webhook WebhookSender, cfg Config, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, pipeline: pipeline, webhook: webhook, cfg: cfg, log: log}
}

// WithNotifier attaches a JobNotifier, nudging idle workers awake as soon
// as a job is submitted instead of waiting for the next poll tick. If n
// also implements JobWakeSubscriber, Run subscribes it to feed the
// worker pool's wake channel.
func (s *Service) WithNotifier(n JobNotifier) *Service {
	s.notifier = n
	if ws, ok := n.(JobWakeSubscriber); ok {
		s.wakeSub = ws
	}
	return s
}

// WithChunking attaches a chunker and its chunk store, enabling
// rewrite-chunks-on-every-run behavior after each successful pipeline run.
func (s *Service) WithChunking(chunker Chunker, chunkStore ChunkStore) *Service {
	s.chunker = chunker
	s.chunkStore = chunkStore
	return s
}

// Submission describes a unit of work ready for pipeline processing.
type Submission struct {
	ContentID       string
	ContentText     string
	ContentType     domain.ContentType
	Title           string
	ResourceKey     string
	DescriptionURLs []string
	DataTier        domain.DataTier
	WebhookURL      string
}

// Submit implements §4.3's decision table: disabled pipeline returns nil;
// an active job for the resource key is returned as-is; otherwise a new
// pending job is created.
func (s *Service) Submit(ctx context.Context, sub Submission) (*domain.PipelineJob, error) {
	if !s.cfg.UnifiedPipelineEnabled {
		return nil, nil
	}

	active, err := s.store.FindActiveJobByResourceKey(ctx, sub.ResourceKey)
	if err == nil {
		return &active, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	text := sub.ContentText
	if sub.DataTier == domain.DataTierCompact && len(text) > compactTextLimit {
		text = text[:compactTextLimit]
	}

	metadata := map[string]any{
		"content_text":     text,
		"content_type":     string(sub.ContentType),
		"title":            sub.Title,
		"description_urls": sub.DescriptionURLs,
	}
	if sub.WebhookURL != "" {
		metadata["webhook_url"] = sub.WebhookURL
	}

	dataTier := sub.DataTier
	if dataTier == "" {
		dataTier = domain.DataTierFull
	}

	job := domain.PipelineJob{
		ID:              uuid.NewString(),
		ResourceKey:     sub.ResourceKey,
		ContentID:       sub.ContentID,
		Status:          domain.JobPending,
		PipelineVersion: s.cfg.PipelineVersion,
		DataTier:        dataTier,
		Metadata:        metadata,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.NotifyJobSubmitted(ctx, job.ID)
	}
	return &job, nil
}

// Cancel marks a pending or processing job cancelled. Cancelling a
// terminal job is a no-op that returns the current state.
func (s *Service) Cancel(ctx context.Context, jobID string) (domain.PipelineJob, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return domain.PipelineJob{}, err
	}
	if job.IsTerminal() {
		return job, nil
	}

	job.Status = domain.JobCancelled
	now := time.Now().UTC()
	job.FinishedAt = &now
	if err := s.store.SaveJob(ctx, job); err != nil {
		return domain.PipelineJob{}, err
	}
	return job, nil
}

// DriftReport groups completed content by pipeline_version.
func (s *Service) DriftReport(ctx context.Context) (map[int]int, error) {
	return s.store.DriftCounts(ctx, s.cfg.PipelineVersion)
}

// Run starts the worker pool and blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	var wg sync.WaitGroup
	workers := s.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	interval := s.cfg.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	var wake chan struct{}
	if s.wakeSub != nil {
		wake = make(chan struct{}, workers)
		if err := s.wakeSub.Subscribe(ctx, wake); err != nil {
			s.log.Warn("orchestrator: failed to subscribe to job wake notifications", "err", err)
			wake = nil
		}
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.workerLoop(ctx, id, interval, wake)
		}(i)
	}
	wg.Wait()
}

func (s *Service) workerLoop(ctx context.Context, id int, interval time.Duration, wake <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.drainOnce(ctx, id)
		case <-wake:
			s.drainOnce(ctx, id)
		}
	}
}

func (s *Service) drainOnce(ctx context.Context, workerID int) {
	jobs, err := s.store.ListPendingJobs(ctx, 1)
	if err != nil {
		s.log.Warn("orchestrator: failed to list pending jobs", "worker", workerID, "err", err)
		return
	}
	for _, job := range jobs {
		s.executeJob(ctx, job)
	}
}

func (s *Service) executeJob(ctx context.Context, job domain.PipelineJob) {
	now := time.Now().UTC()
	job.Status = domain.JobProcessing
	job.StartedAt = &now
	if err := s.store.SaveJob(ctx, job); err != nil {
		s.log.Warn("orchestrator: failed to mark job processing", "job_id", job.ID, "err", err)
		return
	}

	in := resolver.Input{
		ContentID:       job.ContentID,
		ContentText:     stringMeta(job.Metadata, "content_text"),
		ContentType:     domain.ContentType(stringMeta(job.Metadata, "content_type")),
		Title:           stringMeta(job.Metadata, "title"),
		DescriptionURLs: stringSliceMeta(job.Metadata, "description_urls"),
	}

	result, err := s.pipeline.ProcessContent(ctx, in)
	if err != nil {
		s.failJob(ctx, job, err)
		if s.webhook != nil {
			s.webhook.Deliver(ctx, job, nil, err)
		}
		return
	}

	if err := s.recordUnifiedResult(ctx, job, result); err != nil {
		s.log.Warn("orchestrator: failed to record unified result", "job_id", job.ID, "err", err)
	}

	finished := time.Now().UTC()
	job.Status = domain.JobCompleted
	job.FinishedAt = &finished
	if err := s.store.SaveJob(ctx, job); err != nil {
		s.log.Warn("orchestrator: failed to mark job completed", "job_id", job.ID, "err", err)
	}

	if s.webhook != nil {
		s.webhook.Deliver(ctx, job, result, nil)
	}
}

func (s *Service) failJob(ctx context.Context, job domain.PipelineJob, err error) {
	var stageErr *domain.StageError
	if errors.As(err, &stageErr) {
		job.ErrorStage = stageErr.Stage
		job.ErrorCode = stageErr.Code
		job.ErrorMessage = stageErr.Message
	} else {
		job.ErrorStage = domain.StageEntityResolve
		job.ErrorCode = "UNKNOWN_ERROR"
		job.ErrorMessage = err.Error()
	}

	now := time.Now().UTC()
	job.Status = domain.JobFailed
	job.FinishedAt = &now
	if saveErr := s.store.SaveJob(ctx, job); saveErr != nil {
		s.log.Error("orchestrator: failed to record job failure", "job_id", job.ID, "err", saveErr)
	}
	s.log.Error("orchestrator: job failed", "job_id", job.ID, "stage", job.ErrorStage, "code", job.ErrorCode, "err", err)
}

// recordUnifiedResult writes the full result payload and bumps
// pipeline_version on the content record. Tags/tier/score/summary were
// already written by the resolver.
func (s *Service) recordUnifiedResult(ctx context.Context, job domain.PipelineJob, result *resolver.Result) error {
	content, err := s.store.GetContent(ctx, job.ContentID)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(result.Enrichment)
	if err != nil {
		return err
	}
	var unified map[string]any
	if err := json.Unmarshal(raw, &unified); err != nil {
		return err
	}

	if content.Metadata == nil {
		content.Metadata = map[string]any{}
	}
	content.Metadata["unified_result"] = unified
	content.PipelineVersion = job.PipelineVersion
	content.UpdatedAt = time.Now().UTC()

	if err := s.store.SaveContent(ctx, content); err != nil {
		return err
	}

	if s.chunker == nil || s.chunkStore == nil {
		return nil
	}

	text := stringMeta(job.Metadata, "content_text")
	chunks, err := s.chunker.Chunk(ctx, content.ID, text)
	if err != nil {
		return err
	}
	return s.chunkStore.ReplaceChunks(ctx, content, chunks)
}

func stringMeta(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func stringSliceMeta(m map[string]any, key string) []string {
	v, ok := m[key]
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
