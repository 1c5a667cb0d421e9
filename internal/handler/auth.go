package handler

import (
	"net/http"

	"civic-reporting-api/internal/models"
)

// Register handles POST /auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.service.Auth.Register(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondMessage(w, http.StatusCreated, "account created", res)
}

// Login handles POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.service.Auth.Login(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, res)
}

// Refresh handles POST /auth/refresh
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Auth.Refresh(r.Context(), principal(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// Logout handles POST /auth/logout. Tokens are stateless, so the client
// simply discards its copy.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.respondMessage(w, http.StatusOK, "logged out", nil)
}
