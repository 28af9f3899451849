package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/menosai/menos/internal/domain"
	"github.com/menosai/menos/internal/graphstore"
	"github.com/menosai/menos/internal/ingest"
	"github.com/menosai/menos/internal/orchestrator"
	"github.com/menosai/menos/internal/retrieve"
)

type fakeIngestor struct {
	result *ingest.Result
	err    error
}

func (f *fakeIngestor) Ingest(ctx context.Context, rawURL string) (*ingest.Result, error) {
	return f.result, f.err
}

type fakeJobs struct {
	submitted  orchestrator.Submission
	submitJob  *domain.PipelineJob
	submitErr  error
	cancelJob  domain.PipelineJob
	cancelErr  error
	driftCounts map[int]int
	driftErr   error
}

func (f *fakeJobs) Submit(ctx context.Context, sub orchestrator.Submission) (*domain.PipelineJob, error) {
	f.submitted = sub
	return f.submitJob, f.submitErr
}

func (f *fakeJobs) Cancel(ctx context.Context, jobID string) (domain.PipelineJob, error) {
	return f.cancelJob, f.cancelErr
}

func (f *fakeJobs) DriftReport(ctx context.Context) (map[int]int, error) {
	return f.driftCounts, f.driftErr
}

type fakeStore struct {
	content       map[string]domain.Content
	entities      map[string]domain.Entity
	savedContent  domain.Content
	savedEntity   domain.Entity
	deletedEntity string
	entityList    []domain.Entity
	contentForEnt []domain.Content
	jobs          map[string]domain.PipelineJob
	tags          []string
	neighborhood  struct {
		content  []domain.Content
		entities []domain.Entity
		edges    []graphstore.GraphEdge
	}
}

func newFakeStore() *fakeStore {
	return &fakeStore{content: map[string]domain.Content{}, entities: map[string]domain.Entity{}, jobs: map[string]domain.PipelineJob{}}
}

func (f *fakeStore) GetContent(ctx context.Context, id string) (domain.Content, error) {
	c, ok := f.content[id]
	if !ok {
		return domain.Content{}, domain.ErrNotFound
	}
	return c, nil
}
func (f *fakeStore) SaveContent(ctx context.Context, c domain.Content) error {
	f.savedContent = c
	f.content[c.ID] = c
	return nil
}
func (f *fakeStore) ListContent(ctx context.Context, limit, offset int) ([]domain.Content, error) {
	var out []domain.Content
	for _, c := range f.content {
		out = append(out, c)
	}
	return out, nil
}
func (f *fakeStore) DeleteContent(ctx context.Context, id string) error {
	delete(f.content, id)
	return nil
}
func (f *fakeStore) GetEntity(ctx context.Context, id string) (domain.Entity, error) {
	e, ok := f.entities[id]
	if !ok {
		return domain.Entity{}, domain.ErrNotFound
	}
	return e, nil
}
func (f *fakeStore) SaveEntity(ctx context.Context, e domain.Entity) error {
	f.savedEntity = e
	f.entities[e.ID] = e
	return nil
}
func (f *fakeStore) DeleteEntity(ctx context.Context, id string) error {
	f.deletedEntity = id
	delete(f.entities, id)
	return nil
}
func (f *fakeStore) ListAllEntities(ctx context.Context) ([]domain.Entity, error) {
	return f.entityList, nil
}
func (f *fakeStore) ListExistingTopicNames(ctx context.Context, limit int) ([]string, error) {
	return []string{"go", "databases"}, nil
}
func (f *fakeStore) EntitiesForContent(ctx context.Context, contentID string) ([]domain.Entity, error) {
	return f.entityList, nil
}
func (f *fakeStore) ContentForEntity(ctx context.Context, entityID string) ([]domain.Content, error) {
	return f.contentForEnt, nil
}
func (f *fakeStore) GraphSnapshot(ctx context.Context, limit int) ([]domain.Content, []domain.Entity, []graphstore.GraphEdge, error) {
	return nil, nil, nil, nil
}
func (f *fakeStore) Neighborhood(ctx context.Context, id string, depth int) ([]domain.Content, []domain.Entity, []graphstore.GraphEdge, error) {
	return f.neighborhood.content, f.neighborhood.entities, f.neighborhood.edges, nil
}
func (f *fakeStore) GetJob(ctx context.Context, id string) (domain.PipelineJob, error) {
	j, ok := f.jobs[id]
	if !ok {
		return domain.PipelineJob{}, domain.ErrNotFound
	}
	return j, nil
}
func (f *fakeStore) ListPendingJobs(ctx context.Context, limit int) ([]domain.PipelineJob, error) {
	var out []domain.PipelineJob
	for _, j := range f.jobs {
		out = append(out, j)
	}
	return out, nil
}
func (f *fakeStore) ListExistingTags(ctx context.Context, limit int) ([]string, error) {
	return f.tags, nil
}

type fakeRetriever struct {
	result *retrieve.Result
	err    error
}

func (f *fakeRetriever) Search(ctx context.Context, q retrieve.Query) (*retrieve.Result, error) {
	return f.result, f.err
}

type fakeBlob struct {
	data map[string][]byte
}

func (f *fakeBlob) Get(ctx context.Context, key string) ([]byte, error) {
	d, ok := f.data[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

func newTestServer(ing *fakeIngestor, jobs *fakeJobs, store *fakeStore, retr *fakeRetriever, blob *fakeBlob, pipelineVersion int) *Server {
	return NewServer(ing, jobs, store, retr, blob, pipelineVersion, nil)
}

func TestHandleIngestSuccess(t *testing.T) {
	ing := &fakeIngestor{result: &ingest.Result{ContentID: "c1", ContentType: domain.ContentYouTube, Title: "A Video", JobID: "j1"}}
	srv := newTestServer(ing, &fakeJobs{}, newFakeStore(), &fakeRetriever{}, &fakeBlob{}, 1)
	r := NewRouter(srv, "*")

	body, _ := json.Marshal(ingestRequest{URL: "https://youtube.com/watch?v=abc"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var resp ingestResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.ContentID != "c1" || resp.JobID != "j1" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestHandleIngestMissingURLIsBadRequest(t *testing.T) {
	srv := newTestServer(&fakeIngestor{}, &fakeJobs{}, newFakeStore(), &fakeRetriever{}, &fakeBlob{}, 1)
	r := NewRouter(srv, "*")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleGetContentNotFound(t *testing.T) {
	srv := newTestServer(&fakeIngestor{}, &fakeJobs{}, newFakeStore(), &fakeRetriever{}, &fakeBlob{}, 1)
	r := NewRouter(srv, "*")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/content/missing", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHandlePatchContentRejectsUnknownTier(t *testing.T) {
	store := newFakeStore()
	store.content["c1"] = domain.Content{ID: "c1", Title: "Original"}
	srv := newTestServer(&fakeIngestor{}, &fakeJobs{}, store, &fakeRetriever{}, &fakeBlob{}, 1)
	r := NewRouter(srv, "*")

	body, _ := json.Marshal(patchContentRequest{Tier: strPtr("Z")})
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/content/c1", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown tier, got %d", w.Code)
	}
}

func TestHandlePatchContentUpdatesTitle(t *testing.T) {
	store := newFakeStore()
	store.content["c1"] = domain.Content{ID: "c1", Title: "Original"}
	srv := newTestServer(&fakeIngestor{}, &fakeJobs{}, store, &fakeRetriever{}, &fakeBlob{}, 1)
	r := NewRouter(srv, "*")

	body, _ := json.Marshal(patchContentRequest{Title: strPtr("Updated")})
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/content/c1", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if store.savedContent.Title != "Updated" {
		t.Errorf("expected title to be updated, got %q", store.savedContent.Title)
	}
}

func TestHandleReprocessSkipsWhenCurrentAndNotForced(t *testing.T) {
	store := newFakeStore()
	store.content["c1"] = domain.Content{ID: "c1", PipelineVersion: 2, ProcessingStatus: domain.StatusCompleted}
	jobs := &fakeJobs{}
	srv := newTestServer(&fakeIngestor{}, jobs, store, &fakeRetriever{}, &fakeBlob{}, 2)
	r := NewRouter(srv, "*")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/content/c1/reprocess", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if jobs.submitted.ContentID != "" {
		t.Errorf("expected no job submission when already current")
	}
}

func TestHandleReprocessForcesResubmission(t *testing.T) {
	store := newFakeStore()
	store.content["c1"] = domain.Content{ID: "c1", PipelineVersion: 2, ProcessingStatus: domain.StatusCompleted}
	jobs := &fakeJobs{submitJob: &domain.PipelineJob{ID: "job-new"}}
	srv := newTestServer(&fakeIngestor{}, jobs, store, &fakeRetriever{}, &fakeBlob{}, 2)
	r := NewRouter(srv, "*")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/content/c1/reprocess?force=true", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	if jobs.submitted.ContentID != "c1" {
		t.Errorf("expected forced resubmission, got %+v", jobs.submitted)
	}
}

func TestHandleReprocessSubmitsWhenStale(t *testing.T) {
	store := newFakeStore()
	store.content["c1"] = domain.Content{ID: "c1", PipelineVersion: 1, ProcessingStatus: domain.StatusCompleted}
	jobs := &fakeJobs{submitJob: &domain.PipelineJob{ID: "job-new"}}
	srv := newTestServer(&fakeIngestor{}, jobs, store, &fakeRetriever{}, &fakeBlob{}, 2)
	r := NewRouter(srv, "*")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/content/c1/reprocess", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202 for stale content, got %d", w.Code)
	}
	if jobs.submitted.ContentID != "c1" {
		t.Errorf("expected resubmission for stale content")
	}
}

func TestHandleEntityDuplicatesGroupsNearMatches(t *testing.T) {
	store := newFakeStore()
	store.entityList = []domain.Entity{
		{ID: "e1", Name: "Kubernetes", NormalizedName: "kubernetes"},
		{ID: "e2", Name: "Kubernets", NormalizedName: "kubernets"},
		{ID: "e3", Name: "Postgres", NormalizedName: "postgres"},
	}
	srv := newTestServer(&fakeIngestor{}, &fakeJobs{}, store, &fakeRetriever{}, &fakeBlob{}, 1)
	r := NewRouter(srv, "*")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/entities/duplicates?max_distance=1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var groups []duplicateGroup
	json.Unmarshal(w.Body.Bytes(), &groups)
	if len(groups) != 1 || len(groups[0].Entities) != 2 {
		t.Errorf("expected one group of two near-duplicates, got %+v", groups)
	}
}

func TestHandleSearchStripsAnswer(t *testing.T) {
	retr := &fakeRetriever{result: &retrieve.Result{Answer: "synthesized", Sources: []retrieve.Source{{ID: "c1"}}}}
	srv := newTestServer(&fakeIngestor{}, &fakeJobs{}, newFakeStore(), retr, &fakeBlob{}, 1)
	r := NewRouter(srv, "*")

	body, _ := json.Marshal(searchRequest{Query: "hello"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var result retrieve.Result
	json.Unmarshal(w.Body.Bytes(), &result)
	if result.Answer != "" {
		t.Errorf("expected /search to omit the synthesized answer, got %q", result.Answer)
	}
	if len(result.Sources) != 1 {
		t.Errorf("expected sources to survive, got %+v", result.Sources)
	}
}

func TestHandleAgenticSearchKeepsAnswer(t *testing.T) {
	retr := &fakeRetriever{result: &retrieve.Result{Answer: "synthesized", Sources: []retrieve.Source{{ID: "c1"}}}}
	srv := newTestServer(&fakeIngestor{}, &fakeJobs{}, newFakeStore(), retr, &fakeBlob{}, 1)
	r := NewRouter(srv, "*")

	body, _ := json.Marshal(searchRequest{Query: "hello"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search/agentic", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var result retrieve.Result
	json.Unmarshal(w.Body.Bytes(), &result)
	if result.Answer != "synthesized" {
		t.Errorf("expected /search/agentic to keep the synthesized answer, got %q", result.Answer)
	}
}

func TestHandleGraphNeighborhoodClampsDepth(t *testing.T) {
	store := newFakeStore()
	store.neighborhood.entities = []domain.Entity{{ID: "e1", Name: "Go"}}
	srv := newTestServer(&fakeIngestor{}, &fakeJobs{}, store, &fakeRetriever{}, &fakeBlob{}, 1)
	r := NewRouter(srv, "*")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/graph/neighborhood/c1?depth=99", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var view graphView
	json.Unmarshal(w.Body.Bytes(), &view)
	if len(view.Nodes) != 1 || view.Nodes[0].Kind != "entity" {
		t.Errorf("unexpected graph view: %+v", view)
	}
}

func TestHandleCancelJob(t *testing.T) {
	jobs := &fakeJobs{cancelJob: domain.PipelineJob{ID: "j1", Status: domain.JobCancelled}}
	srv := newTestServer(&fakeIngestor{}, jobs, newFakeStore(), &fakeRetriever{}, &fakeBlob{}, 1)
	r := NewRouter(srv, "*")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/j1/cancel", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var job domain.PipelineJob
	json.Unmarshal(w.Body.Bytes(), &job)
	if job.Status != domain.JobCancelled {
		t.Errorf("expected cancelled job in response, got %+v", job)
	}
}

func TestHandleDeleteEntity(t *testing.T) {
	store := newFakeStore()
	store.entities["e1"] = domain.Entity{ID: "e1"}
	srv := newTestServer(&fakeIngestor{}, &fakeJobs{}, store, &fakeRetriever{}, &fakeBlob{}, 1)
	r := NewRouter(srv, "*")

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/entities/e1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	if store.deletedEntity != "e1" {
		t.Errorf("expected delete to reach the store")
	}
}

func TestHandleUploadContentRejectsEmptyFile(t *testing.T) {
	srv := newTestServer(&fakeIngestor{}, &fakeJobs{}, newFakeStore(), &fakeRetriever{}, &fakeBlob{}, 1)
	r := NewRouter(srv, "*")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "empty.txt")
	part.Write([]byte(""))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/content", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty upload, got %d", w.Code)
	}
}

func TestHandleGetContentBodyFetchesFromBlobStore(t *testing.T) {
	store := newFakeStore()
	store.content["c1"] = domain.Content{ID: "c1", FilePath: "youtube/abc/transcript.txt", MimeType: "text/plain"}
	blob := &fakeBlob{data: map[string][]byte{"youtube/abc/transcript.txt": []byte("hello world")}}
	srv := newTestServer(&fakeIngestor{}, &fakeJobs{}, store, &fakeRetriever{}, blob, 1)
	r := NewRouter(srv, "*")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/content/c1/content", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body, _ := io.ReadAll(w.Body)
	if string(body) != "hello world" {
		t.Errorf("expected blob contents in response, got %q", string(body))
	}
}

func strPtr(s string) *string { return &s }
