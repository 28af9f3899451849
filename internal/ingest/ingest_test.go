package ingest

import (
	"context"
	"testing"

	"github.com/menosai/menos/internal/domain"
	"github.com/menosai/menos/internal/fetchers"
	"github.com/menosai/menos/internal/orchestrator"
)

type fakeStore struct {
	byKey    map[string]domain.Content
	byID     map[string]domain.Content
	putCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{byKey: map[string]domain.Content{}, byID: map[string]domain.Content{}}
}

func (f *fakeStore) GetContentByResourceKey(ctx context.Context, resourceKey string) (domain.Content, error) {
	c, ok := f.byKey[resourceKey]
	if !ok {
		return domain.Content{}, domain.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) SaveContent(ctx context.Context, c domain.Content) error {
	f.byID[c.ID] = c
	f.byKey[c.ResourceKey()] = c
	return nil
}

type fakeBlob struct{ puts map[string][]byte }

func newFakeBlob() *fakeBlob { return &fakeBlob{puts: map[string][]byte{}} }

func (f *fakeBlob) Put(ctx context.Context, key string, data []byte, contentType string) error {
	f.puts[key] = data
	return nil
}

type fakeYouTube struct {
	transcript string
	transErr   error
	meta       fetchers.VideoMetadata
	metaErr    error
}

func (f *fakeYouTube) FetchTranscript(ctx context.Context, videoID string) (string, error) {
	return f.transcript, f.transErr
}

func (f *fakeYouTube) FetchMetadata(ctx context.Context, videoID string) (fetchers.VideoMetadata, error) {
	return f.meta, f.metaErr
}

type fakeWeb struct {
	title, markdown string
	err             error
}

func (f *fakeWeb) Extract(ctx context.Context, rawURL string) (string, string, error) {
	return f.title, f.markdown, f.err
}

type fakeJobs struct {
	submitted []orchestrator.Submission
	job       *domain.PipelineJob
	err       error
}

func (f *fakeJobs) Submit(ctx context.Context, sub orchestrator.Submission) (*domain.PipelineJob, error) {
	f.submitted = append(f.submitted, sub)
	return f.job, f.err
}

func TestIngestYouTubeFirstSighting(t *testing.T) {
	store := newFakeStore()
	blob := newFakeBlob()
	yt := &fakeYouTube{
		transcript: "This is the transcript.",
		meta: fetchers.VideoMetadata{
			Title: "How to Go", ChannelID: "UC1", ChannelTitle: "GoChannel",
			Description: "desc", DurationSeconds: 600,
		},
	}
	jobs := &fakeJobs{job: &domain.PipelineJob{ID: "job-1"}}
	svc := New(store, blob, yt, &fakeWeb{}, jobs, nil)

	result, err := svc.Ingest(context.Background(), "https://www.youtube.com/watch?v=abcdefghijk")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Title != "How to Go" {
		t.Errorf("expected title from metadata, got %q", result.Title)
	}
	if result.JobID != "job-1" {
		t.Errorf("expected job submitted, got %q", result.JobID)
	}
	if len(blob.puts) != 2 {
		t.Errorf("expected transcript + metadata blobs uploaded, got %d", len(blob.puts))
	}
	if len(jobs.submitted) != 1 || jobs.submitted[0].ContentText != "This is the transcript." {
		t.Errorf("expected job submitted with transcript text, got %+v", jobs.submitted)
	}
}

func TestIngestYouTubeMetadataFetchFailureUsesPlaceholder(t *testing.T) {
	store := newFakeStore()
	blob := newFakeBlob()
	yt := &fakeYouTube{transcript: "transcript text", metaErr: context.DeadlineExceeded}
	jobs := &fakeJobs{job: &domain.PipelineJob{ID: "job-2"}}
	svc := New(store, blob, yt, &fakeWeb{}, jobs, nil)

	result, err := svc.Ingest(context.Background(), "https://youtu.be/abcdefghijk")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Title != "YouTube: abcdefghijk" {
		t.Errorf("expected placeholder title, got %q", result.Title)
	}
}

func TestIngestYouTubeTranscriptFailureIsFatal(t *testing.T) {
	store := newFakeStore()
	blob := newFakeBlob()
	yt := &fakeYouTube{transErr: context.DeadlineExceeded}
	jobs := &fakeJobs{}
	svc := New(store, blob, yt, &fakeWeb{}, jobs, nil)

	_, err := svc.Ingest(context.Background(), "https://youtu.be/abcdefghijk")
	if err == nil {
		t.Fatal("expected transcript fetch failure to be fatal")
	}
	if len(blob.puts) != 0 {
		t.Errorf("expected no blobs uploaded on fatal failure, got %d", len(blob.puts))
	}
}

func TestIngestDedupReturnsExistingWithNoJob(t *testing.T) {
	store := newFakeStore()
	store.byKey["yt:abcdefghijk"] = domain.Content{
		ID: "existing-1", ContentType: domain.ContentYouTube, Title: "Already processed",
		Metadata: map[string]any{"resource_key": "yt:abcdefghijk", "channel_title": "GoChannel"},
	}
	jobs := &fakeJobs{job: &domain.PipelineJob{ID: "should-not-be-used"}}
	svc := New(store, newFakeBlob(), &fakeYouTube{}, &fakeWeb{}, jobs, nil)

	result, err := svc.Ingest(context.Background(), "https://youtu.be/abcdefghijk")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ContentID != "existing-1" || result.JobID != "" {
		t.Errorf("expected dedup hit with no job, got %+v", result)
	}
	if len(jobs.submitted) != 0 {
		t.Errorf("expected no job submission on dedup hit, got %d", len(jobs.submitted))
	}
}

func TestIngestBackfillsIncompleteYouTubeRecordWithoutNewJob(t *testing.T) {
	store := newFakeStore()
	store.byKey["yt:abcdefghijk"] = domain.Content{
		ID: "existing-2", ContentType: domain.ContentYouTube, Title: "YouTube: abcdefghijk",
		Metadata: map[string]any{"resource_key": "yt:abcdefghijk"},
	}
	yt := &fakeYouTube{meta: fetchers.VideoMetadata{Title: "Real Title", ChannelTitle: "GoChannel"}}
	jobs := &fakeJobs{job: &domain.PipelineJob{ID: "should-not-be-used"}}
	svc := New(store, newFakeBlob(), yt, &fakeWeb{}, jobs, nil)

	result, err := svc.Ingest(context.Background(), "https://youtu.be/abcdefghijk")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Title != "Real Title" {
		t.Errorf("expected backfilled title, got %q", result.Title)
	}
	if result.JobID != "" {
		t.Errorf("expected no job submitted on backfill, got %q", result.JobID)
	}
	if len(jobs.submitted) != 0 {
		t.Errorf("expected no job submission on backfill, got %d", len(jobs.submitted))
	}
}

func TestIngestWebFirstSighting(t *testing.T) {
	store := newFakeStore()
	blob := newFakeBlob()
	web := &fakeWeb{title: "An Article", markdown: "# An Article\n\nBody text."}
	jobs := &fakeJobs{job: &domain.PipelineJob{ID: "job-3"}}
	svc := New(store, blob, &fakeYouTube{}, web, jobs, nil)

	result, err := svc.Ingest(context.Background(), "https://example.com/article?utm_source=x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ContentType != domain.ContentWeb {
		t.Errorf("expected web content type, got %q", result.ContentType)
	}
	if result.Title != "An Article" {
		t.Errorf("expected extracted title, got %q", result.Title)
	}
	if len(blob.puts) != 1 {
		t.Errorf("expected 1 blob uploaded, got %d", len(blob.puts))
	}
}

func TestIngestDisabledPipelineStillCreatesContentWithNilJob(t *testing.T) {
	store := newFakeStore()
	blob := newFakeBlob()
	web := &fakeWeb{title: "An Article", markdown: "Body text."}
	jobs := &fakeJobs{job: nil}
	svc := New(store, blob, &fakeYouTube{}, web, jobs, nil)

	result, err := svc.Ingest(context.Background(), "https://example.com/other")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.JobID != "" {
		t.Errorf("expected empty job id when orchestrator returns nil job, got %q", result.JobID)
	}
}
