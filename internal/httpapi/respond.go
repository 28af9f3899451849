package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/menosai/menos/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps a sentinel or validation error from the domain
// layer onto the appropriate HTTP status.
func writeServiceError(w http.ResponseWriter, log interface{ Error(string, ...any) }, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidURL), errors.Is(err, domain.ErrEmptyContent):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrActiveJobExists), errors.Is(err, domain.ErrJobNotCancellable), errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Error("httpapi: internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
