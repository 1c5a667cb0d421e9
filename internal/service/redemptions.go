package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"civic-reporting-api/internal/apperr"
	"civic-reporting-api/internal/cache"
	"civic-reporting-api/internal/database"
	"civic-reporting-api/internal/events"
	"civic-reporting-api/internal/models"
	"civic-reporting-api/internal/validation"
)

const (
	rewardsCacheKey    = "rewards:active"
	rewardsCacheTTL    = 5 * time.Minute
	redemptionValidFor = 90 * 24 * time.Hour
)

// RedemptionService exchanges reward credits for catalog rewards.
type RedemptionService struct {
	*env
	accounts *UserService
}

// ListAvailableRewards returns the active reward catalog.
func (s *RedemptionService) ListAvailableRewards(ctx context.Context) ([]models.Reward, error) {
	return cache.GetOrLoad(ctx, s.cache, rewardsCacheKey, rewardsCacheTTL, func() ([]models.Reward, error) {
		return s.rewards.FindBy(ctx, "isActive", database.OpEqual, true)
	})
}

// CreateReward adds an active reward to the catalog.
func (s *RedemptionService) CreateReward(ctx context.Context, req models.CreateRewardRequest) (*models.Reward, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	reward := &models.Reward{
		ID:              s.newID("reward"),
		Type:            req.Type,
		PartnerID:       req.PartnerID,
		Description:     validation.SanitizeString(req.Description),
		CreditsRequired: req.CreditsRequired,
		PartnersData:    req.PartnersData,
		IsActive:        true,
		CreatedAt:       s.now(),
	}
	if err := s.rewards.Set(ctx, reward.ID, reward); err != nil {
		return nil, err
	}
	s.invalidate(ctx, rewardsCacheKey)
	return reward, nil
}

// RedeemReward debits the reward's price from the user and issues a
// redemption code. Nothing changes when the balance is too low.
func (s *RedemptionService) RedeemReward(ctx context.Context, userID, rewardID string) (*models.Redemption, error) {
	reward, err := s.rewards.Get(ctx, rewardID)
	if err != nil {
		return nil, notFound(err, "reward")
	}
	if !reward.IsActive {
		return nil, apperr.Validation("reward is no longer available")
	}
	user, err := s.accounts.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.OneCreditsBalance < reward.CreditsRequired {
		return nil, apperr.Validation("insufficient credits")
	}

	if _, err := s.accounts.AdjustCredits(ctx, userID, -reward.CreditsRequired); err != nil {
		return nil, err
	}

	now := s.now()
	redemption := &models.Redemption{
		ID:           s.newID("redeem"),
		UserID:       userID,
		RewardID:     rewardID,
		CreditsSpent: reward.CreditsRequired,
		RewardDetails: models.RewardDetails{
			PartnerID:   reward.PartnerID,
			RewardCode:  newRewardCode(),
			Description: reward.Description,
			ExpiresAt:   now.Add(redemptionValidFor),
		},
		Status:      models.RedemptionCompleted,
		CreatedAt:   now,
		CompletedAt: timePtr(now),
	}
	if err := s.redemptions.Set(ctx, redemption.ID, redemption); err != nil {
		return nil, err
	}

	s.logFor(ctx).WithField("redemption_id", redemption.ID).WithField("reward_id", rewardID).Info("reward redeemed")
	s.publish(ctx, events.EventRewardRedeemed, events.RedemptionData{Redemption: *redemption})
	return redemption, nil
}

// GetRedemptionHistory lists a user's redemptions, newest first.
func (s *RedemptionService) GetRedemptionHistory(ctx context.Context, userID string) ([]models.Redemption, error) {
	return s.redemptions.FindAllSorted(ctx, eq("userId", userID), byCreatedDesc)
}

// newRewardCode returns "RDM-" followed by eight uppercase characters.
func newRewardCode() string {
	return "RDM-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
