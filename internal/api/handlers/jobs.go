package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-reconciler/internal/api/middleware"
	"github.com/dvloznov/finance-reconciler/internal/jobs"
)

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// Get handles GET /api/jobs/{id}
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		middleware.WriteDomainError(w, requestLogger(r, h.log), err, "Failed to get job")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// List handles GET /api/jobs
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, h.log)

	filter := jobs.JobFilter{Status: jobs.JobStatus(r.URL.Query().Get("status"))}
	docID, err := queryInt64(r, "documentId")
	if err != nil {
		middleware.WriteDomainError(w, log, err, "Invalid documentId")
		return
	}
	if docID != nil {
		filter.DocumentID = *docID
	}
	if filter.Limit, err = queryInt(r, "limit", 0); err != nil {
		middleware.WriteDomainError(w, log, err, "Invalid limit")
		return
	}
	if filter.Offset, err = queryInt(r, "offset", 0); err != nil {
		middleware.WriteDomainError(w, log, err, "Invalid offset")
		return
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		middleware.WriteDomainError(w, log, err, "Failed to list jobs")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
