package httpapi

import (
	"net/http"

	"github.com/menosai/menos/internal/domain"
	"github.com/menosai/menos/internal/retrieve"
)

type searchRequest struct {
	Query       string `json:"query"`
	ContentType string `json:"content_type"`
	TierMin     string `json:"tier_min"`
	Limit       int    `json:"limit"`
}

// handleSearch runs the same retrieval pipeline as handleAgenticSearch and
// returns ranked sources only: the synthesized answer is dropped from the
// response.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.search(w, r, false)
}

// handleAgenticSearch runs the full pipeline including answer synthesis.
func (s *Server) handleAgenticSearch(w http.ResponseWriter, r *http.Request) {
	s.search(w, r, true)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request, withAnswer bool) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil || req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	result, err := s.retriever.Search(r.Context(), retrieve.Query{
		Text:        req.Query,
		ContentType: req.ContentType,
		TierMin:     domain.Tier(req.TierMin),
		Limit:       req.Limit,
	})
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	if !withAnswer {
		result.Answer = ""
	}
	writeJSON(w, http.StatusOK, result)
}
