package services

import (
	"context"
	"errors"
	"fmt"

	"slangmaster/models"
	"slangmaster/repository"

	"go.uber.org/zap"
)

// RewardOutcome describes what a badge's reward actually granted.
type RewardOutcome struct {
	ExpAwarded     int64
	AvatarUnlocked *models.Avatar
	AvatarMissing  bool
}

type RewardService struct {
	logger *zap.Logger
}

func NewRewardService(logger *zap.Logger) *RewardService {
	return &RewardService{logger: logger}
}

// ApplyBadgeRewards grants badge's reward to stats.UserID using tx. The exp
// part mutates stats and the caller must save it. A reward avatar that does
// not exist is logged and skipped; exp is still granted.
func (s *RewardService) ApplyBadgeRewards(ctx context.Context, tx repository.Repository, stats *models.UserStats, badge *models.Badge) (RewardOutcome, error) {
	var outcome RewardOutcome

	reward, rejected := badge.Reward()
	if len(rejected) > 0 {
		s.logger.Warn("ignoring unusable reward fields",
			zap.Uint("badge_id", badge.ID),
			zap.String("badge", badge.Title),
			zap.Strings("fields", rejected),
		)
	}

	if reward.Exp != nil && *reward.Exp > 0 {
		stats.AddExperience(*reward.Exp)
		outcome.ExpAwarded = *reward.Exp
	}

	if reward.AvatarID != nil {
		avatar, err := tx.FindAvatar(ctx, *reward.AvatarID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			missingRewardAvatars.Inc()
			outcome.AvatarMissing = true
			s.logger.Warn("reward avatar not found",
				zap.Uint("badge_id", badge.ID),
				zap.Uint("avatar_id", *reward.AvatarID),
				zap.Uint("user_id", stats.UserID),
			)
		case err != nil:
			return outcome, fmt.Errorf("load reward avatar %d: %w", *reward.AvatarID, err)
		default:
			added, err := tx.UnlockAvatar(ctx, stats.UserID, avatar.ID)
			if err != nil {
				return outcome, fmt.Errorf("unlock avatar %d: %w", avatar.ID, err)
			}
			if added {
				outcome.AvatarUnlocked = avatar
			}
		}
	}

	return outcome, nil
}
