package models

import "time"

type RewardType string

const (
	RewardTransport RewardType = "transport"
	RewardCommodity RewardType = "commodity"
	RewardPartner   RewardType = "partner"
)

func (t RewardType) Valid() bool {
	return t == RewardTransport || t == RewardCommodity || t == RewardPartner
}

type Reward struct {
	ID              string         `json:"id"`
	Type            RewardType     `json:"type"`
	PartnerID       string         `json:"partnerId,omitempty"`
	Description     string         `json:"description"`
	CreditsRequired float64        `json:"creditsRequired"`
	PartnersData    map[string]any `json:"partnersData,omitempty"`
	IsActive        bool           `json:"isActive"`
	CreatedAt       time.Time      `json:"createdAt"`
}

func (r *Reward) Validate() error {
	if !r.Type.Valid() {
		return invalid("reward", "unknown type %q", r.Type)
	}
	if r.CreditsRequired <= 0 {
		return invalid("reward", "credits required must be positive")
	}
	return nil
}

type RedemptionStatus string

const (
	RedemptionPending   RedemptionStatus = "pending"
	RedemptionCompleted RedemptionStatus = "completed"
	RedemptionExpired   RedemptionStatus = "expired"
)

type RewardDetails struct {
	PartnerID   string    `json:"partnerId,omitempty"`
	RewardCode  string    `json:"rewardCode"`
	Description string    `json:"description"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type Redemption struct {
	ID            string           `json:"id"`
	UserID        string           `json:"userId"`
	RewardID      string           `json:"rewardId"`
	CreditsSpent  float64          `json:"creditsSpent"`
	RewardDetails RewardDetails    `json:"rewardDetails"`
	Status        RedemptionStatus `json:"status"`
	CreatedAt     time.Time        `json:"createdAt"`
	CompletedAt   *time.Time       `json:"completedAt,omitempty"`
}
