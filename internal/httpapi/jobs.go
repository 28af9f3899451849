package httpapi

import "net/http"

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	jobs, err := s.store.ListPendingJobs(r.Context(), limit)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleJobsDrift reports how many completed content records sit at each
// pipeline version (the current one included), for administrative
// reprocess targeting.
func (s *Server) handleJobsDrift(w http.ResponseWriter, r *http.Request) {
	counts, err := s.jobs.DriftReport(r.Context())
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := s.jobs.Cancel(r.Context(), id)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 200)
	tags, err := s.store.ListExistingTags(r.Context(), limit)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}
