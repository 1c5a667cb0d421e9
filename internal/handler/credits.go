package handler

import (
	"net/http"

	"civic-reporting-api/internal/models"
)

// PurchaseGreenCredits handles POST /green-credits/purchase
func (h *Handler) PurchaseGreenCredits(w http.ResponseWriter, r *http.Request) {
	var req models.PurchaseRequest
	if !h.decode(w, r, &req) {
		return
	}

	purchase, err := h.service.Credits.PurchaseGreenCredits(r.Context(), principal(r).UserID, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondMessage(w, http.StatusCreated, "green credits purchased", purchase)
}

// GetGreenCreditBalance handles GET /green-credits/balance
func (h *Handler) GetGreenCreditBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.service.Credits.GetGreenCreditBalance(r.Context(), principal(r).UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, balance)
}

// GetGreenCreditHistory handles GET /green-credits/history
func (h *Handler) GetGreenCreditHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.service.Credits.GetGreenCreditHistory(r.Context(), principal(r).UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, history)
}

// AllocateGreenCredits handles POST /green-credits/allocation
func (h *Handler) AllocateGreenCredits(w http.ResponseWriter, r *http.Request) {
	var req models.AllocationRequest
	if !h.decode(w, r, &req) {
		return
	}

	purchase, err := h.service.Credits.AllocateGreenCredits(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondMessage(w, http.StatusOK, "green credits allocated", purchase)
}
