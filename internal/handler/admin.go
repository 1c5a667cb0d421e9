package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"civic-reporting-api/internal/apperr"
	"civic-reporting-api/internal/models"
	"civic-reporting-api/internal/tracing"
)

// ListJobs handles GET /admin/n8n/jobs?status&limit
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.JobFilter{Status: models.JobStatus(q.Get("status"))}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			h.respondError(w, r, apperr.Validation("limit must be an integer"))
			return
		}
		filter.Limit = limit
	}

	jobs, err := h.service.Jobs.ListJobs(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, jobs)
}

// ProcessJob handles POST /admin/n8n/jobs/{jobId}/process
func (h *Handler) ProcessJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.Jobs.ProcessJob(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondMessage(w, http.StatusOK, "job processed", job)
}

// GetMetrics handles GET /admin/metrics with a snapshot of the process's
// instruments, such as classifier call counts and latency.
func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	points, err := tracing.CollectMetrics(r.Context())
	if err != nil {
		h.respondError(w, r, apperr.Internal("failed to collect metrics", err))
		return
	}
	if points == nil {
		points = []tracing.MetricPoint{}
	}
	h.respondJSON(w, http.StatusOK, points)
}
