package handler

import (
	"net/http"

	"civic-reporting-api/internal/apperr"
	"civic-reporting-api/internal/models"
)

// ListRewards handles GET /rewards/list
func (h *Handler) ListRewards(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.service.Redemptions.ListAvailableRewards(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, rewards)
}

// CreateReward handles POST /rewards
func (h *Handler) CreateReward(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRewardRequest
	if !h.decode(w, r, &req) {
		return
	}

	reward, err := h.service.Redemptions.CreateReward(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, reward)
}

// RedeemReward handles POST /rewards/redeem
func (h *Handler) RedeemReward(w http.ResponseWriter, r *http.Request) {
	var req models.RedeemRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.RewardID == "" {
		h.respondError(w, r, apperr.Validation("rewardId is required"))
		return
	}

	redemption, err := h.service.Redemptions.RedeemReward(r.Context(), principal(r).UserID, req.RewardID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondMessage(w, http.StatusOK, "reward redeemed", redemption)
}

// GetRedemptionHistory handles GET /rewards/history
func (h *Handler) GetRedemptionHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.service.Redemptions.GetRedemptionHistory(r.Context(), principal(r).UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, history)
}
