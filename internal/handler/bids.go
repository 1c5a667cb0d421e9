package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"civic-reporting-api/internal/models"
)

// SubmitBid handles POST /bids
func (h *Handler) SubmitBid(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitBidRequest
	if !h.decode(w, r, &req) {
		return
	}

	bid, err := h.service.Bidding.SubmitBid(r.Context(), principal(r).UserID, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondMessage(w, http.StatusCreated, "bid submitted", bid)
}

// GetBidsForProblem handles GET /bids/problem/{problemId}
func (h *Handler) GetBidsForProblem(w http.ResponseWriter, r *http.Request) {
	bids, err := h.service.Bidding.GetBidsForProblem(r.Context(), chi.URLParam(r, "problemId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, bids)
}

// CreateBiddingSession handles POST /bids/sessions
func (h *Handler) CreateBiddingSession(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest
	if !h.decode(w, r, &req) {
		return
	}

	session, err := h.service.Bidding.CreateBiddingSession(r.Context(), req.ProblemID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, session)
}

// GetBiddingSession handles GET /bids/sessions/{sessionId}
func (h *Handler) GetBiddingSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Bidding.GetSession(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, session)
}

// SelectWinningBid handles POST /bids/{sessionId}/select
func (h *Handler) SelectWinningBid(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Bidding.SelectWinningBid(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondMessage(w, http.StatusOK, "winning bid selected", session)
}

// CloseBiddingSession handles POST /bids/{sessionId}/close
func (h *Handler) CloseBiddingSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Bidding.CloseBiddingSession(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondMessage(w, http.StatusOK, "bidding session closed", session)
}
