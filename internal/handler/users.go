package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"civic-reporting-api/internal/models"
)

// RegisterContractor handles POST /contractors/register
func (h *Handler) RegisterContractor(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterContractorRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.service.Users.RegisterContractor(r.Context(), principal(r).UserID, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, user.Public())
}

// GetContractor handles GET /contractors/{id}
func (h *Handler) GetContractor(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Users.GetContractorProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, user.Public())
}

// GetContractorsByDomain handles GET /contractors/domain/{domain}
func (h *Handler) GetContractorsByDomain(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.Users.GetContractorsByDomain(r.Context(), chi.URLParam(r, "domain"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]models.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	h.respondJSON(w, http.StatusOK, out)
}

// RegisterCompany handles POST /companies/register
func (h *Handler) RegisterCompany(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterCompanyRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.service.Users.RegisterCompany(r.Context(), principal(r).UserID, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, user.Public())
}
