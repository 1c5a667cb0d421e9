package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"civic-reporting-api/internal/models"
	"civic-reporting-api/internal/validation"
)

// CreateProblem handles POST /problems
func (h *Handler) CreateProblem(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProblemRequest
	if !h.decode(w, r, &req) {
		return
	}

	problem, err := h.service.Problems.CreateProblem(r.Context(), principal(r).UserID, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	msg := "problem reported"
	if problem.Status == models.StatusPending {
		msg = "problem reported, classification queued"
	}
	h.respondMessage(w, http.StatusCreated, msg, problem)
}

// GetMyProblems handles GET /problems/mine
func (h *Handler) GetMyProblems(w http.ResponseWriter, r *http.Request) {
	problems, err := h.service.Problems.GetUserProblems(r.Context(), principal(r).UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, problems)
}

// GetOpenProblems handles GET /problems/open?domain=
func (h *Handler) GetOpenProblems(w http.ResponseWriter, r *http.Request) {
	domain := validation.SanitizeString(r.URL.Query().Get("domain"))
	problems, err := h.service.Problems.GetOpenProblems(r.Context(), domain)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, problems)
}

// GetProblem handles GET /problems/{id}
func (h *Handler) GetProblem(w http.ResponseWriter, r *http.Request) {
	problem, err := h.service.Problems.GetProblemByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, problem)
}

// UpdateProblemStatus handles PATCH /problems/{id}/status
func (h *Handler) UpdateProblemStatus(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateProblemStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	problem, err := h.service.Problems.UpdateProblemStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, problem)
}

// GetHeatmap handles GET /heatmap?neLat&neLng&swLat&swLng
func (h *Handler) GetHeatmap(w http.ResponseWriter, r *http.Request) {
	bounds, ok := h.bounds(w, r)
	if !ok {
		return
	}
	points, err := h.service.Problems.GetHeatmapData(r.Context(), bounds)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, points)
}

// GetHeatmapAggregate handles GET /heatmap/aggregate
func (h *Handler) GetHeatmapAggregate(w http.ResponseWriter, r *http.Request) {
	bounds, ok := h.bounds(w, r)
	if !ok {
		return
	}
	data, err := h.service.Problems.GetHeatmapAggregate(r.Context(), bounds)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, data)
}

func (h *Handler) bounds(w http.ResponseWriter, r *http.Request) (*models.Bounds, bool) {
	q := r.URL.Query()
	bounds, err := validation.ParseBounds(q.Get("neLat"), q.Get("neLng"), q.Get("swLat"), q.Get("swLng"))
	if err != nil {
		h.respondError(w, r, err)
		return nil, false
	}
	return bounds, true
}
