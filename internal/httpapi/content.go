package httpapi

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/menosai/menos/internal/blobstore"
	"github.com/menosai/menos/internal/domain"
	"github.com/menosai/menos/internal/orchestrator"
)

type ingestRequest struct {
	URL string `json:"url"`
}

type ingestResponse struct {
	ContentID   string `json:"content_id"`
	ContentType string `json:"content_type"`
	Title       string `json:"title"`
	JobID       string `json:"job_id,omitempty"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	result, err := s.ingest.Ingest(r.Context(), req.URL)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ingestResponse{
		ContentID:   result.ContentID,
		ContentType: string(result.ContentType),
		Title:       result.Title,
		JobID:       result.JobID,
	})
}

// handleUploadContent accepts an admin-supplied document (multipart,
// field "file") and stores it as a new content, submitting a pipeline job
// directly since there is no external URL to classify or dedup against.
func (s *Server) handleUploadContent(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart/form-data")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, domain.ErrEmptyContent.Error())
		return
	}

	id := uuid.NewString()
	key := blobstore.UploadedDocumentKey("document", id, header.Filename)

	content := domain.Content{
		ID:               id,
		ContentType:      domain.ContentDocument,
		Title:            header.Filename,
		MimeType:         header.Header.Get("Content-Type"),
		FileSize:         int64(len(data)),
		FilePath:         key,
		ProcessingStatus: domain.StatusPending,
		Metadata:         map[string]any{"resource_key": "document:" + id},
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}
	if err := s.store.SaveContent(r.Context(), content); err != nil {
		writeServiceError(w, s.log, err)
		return
	}

	job, err := s.jobs.Submit(r.Context(), orchestrator.Submission{
		ContentID:   id,
		ContentText: string(data),
		ContentType: domain.ContentDocument,
		Title:       header.Filename,
		ResourceKey: content.ResourceKey(),
		DataTier:    domain.DataTierFull,
	})
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}

	resp := ingestResponse{ContentID: id, ContentType: string(domain.ContentDocument), Title: header.Filename}
	if job != nil {
		resp.JobID = job.ID
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleListContent(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	items, err := s.store.ListContent(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetContent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	content, err := s.store.GetContent(r.Context(), id)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, content)
}

func (s *Server) handleGetContentBody(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	content, err := s.store.GetContent(r.Context(), id)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	if content.FilePath == "" || s.blob == nil {
		writeError(w, http.StatusNotFound, "no stored payload for this content")
		return
	}
	data, err := s.blob.Get(r.Context(), content.FilePath)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	contentType := content.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

type patchContentRequest struct {
	Title       *string   `json:"title"`
	Tags        *[]string `json:"tags"`
	Description *string   `json:"description"`
	Tier        *string   `json:"tier"`
}

func (s *Server) handlePatchContent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	content, err := s.store.GetContent(r.Context(), id)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}

	var req patchContentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title != nil {
		content.Title = *req.Title
	}
	if req.Tags != nil {
		content.Tags = *req.Tags
	}
	if req.Description != nil {
		content.Description = *req.Description
	}
	if req.Tier != nil {
		tier := domain.Tier(*req.Tier)
		if !domain.ValidTiers[tier] {
			writeError(w, http.StatusBadRequest, domain.ErrUnknownTier.Error())
			return
		}
		content.Tier = tier
	}
	content.UpdatedAt = time.Now().UTC()

	if err := s.store.SaveContent(r.Context(), content); err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, content)
}

func (s *Server) handleDeleteContent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteContent(r.Context(), id); err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReprocessContent resubmits a content for pipeline processing.
// Without force=true, a content already at the current pipeline version is
// left alone and reported as already current rather than resubmitted.
func (s *Server) handleReprocessContent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	force := r.URL.Query().Get("force") == "true"

	content, err := s.store.GetContent(r.Context(), id)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}

	if !force && content.PipelineVersion >= s.pipelineVersion && content.ProcessingStatus == domain.StatusCompleted {
		writeJSON(w, http.StatusOK, map[string]any{
			"content_id": id,
			"status":     "already_current",
		})
		return
	}

	text, _ := content.Metadata["content_text"].(string)
	if text == "" && s.blob != nil && content.FilePath != "" {
		if data, err := s.blob.Get(r.Context(), content.FilePath); err == nil {
			text = string(data)
		}
	}

	job, err := s.jobs.Submit(r.Context(), orchestrator.Submission{
		ContentID:   content.ID,
		ContentText: text,
		ContentType: content.ContentType,
		Title:       content.Title,
		ResourceKey: content.ResourceKey(),
		DataTier:    domain.DataTierFull,
	})
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}

	resp := map[string]any{"content_id": id, "status": "queued"}
	if job != nil {
		resp["job_id"] = job.ID
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
