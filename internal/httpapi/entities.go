package httpapi

import (
	"net/http"
	"time"

	"github.com/menosai/menos/internal/domain"
	"github.com/menosai/menos/internal/normalizer"
)

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := s.store.ListAllEntities(r.Context())
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, entities)
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	entity, err := s.store.GetEntity(r.Context(), id)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, entity)
}

func (s *Server) handleEntityContent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetEntity(r.Context(), id); err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	content, err := s.store.ContentForEntity(r.Context(), id)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, content)
}

func (s *Server) handleEntityTopics(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	names, err := s.store.ListExistingTopicNames(r.Context(), limit)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

type duplicateGroup struct {
	Canonical string          `json:"canonical"`
	Entities  []domain.Entity `json:"entities"`
}

// handleEntityDuplicates groups entities whose normalized names sit within
// max_distance edit-distance of one another, for admin merge review.
func (s *Server) handleEntityDuplicates(w http.ResponseWriter, r *http.Request) {
	maxDistance := queryInt(r, "max_distance", 2)

	entities, err := s.store.ListAllEntities(r.Context())
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}

	groups := normalizer.FindNearDuplicates(entities, func(e domain.Entity) string {
		return e.NormalizedName
	}, maxDistance)

	out := make([]duplicateGroup, len(groups))
	for i, g := range groups {
		out[i] = duplicateGroup{Canonical: g.Key, Entities: g.Items}
	}
	writeJSON(w, http.StatusOK, out)
}

type patchEntityRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (s *Server) handlePatchEntity(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	entity, err := s.store.GetEntity(r.Context(), id)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}

	var req patchEntityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name != nil {
		entity.Name = *req.Name
		entity.NormalizedName = normalizer.NormalizeName(*req.Name)
	}
	if req.Description != nil {
		entity.Description = *req.Description
	}
	entity.UpdatedAt = time.Now().UTC()

	if err := s.store.SaveEntity(r.Context(), entity); err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, entity)
}

func (s *Server) handleDeleteEntity(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteEntity(r.Context(), id); err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
