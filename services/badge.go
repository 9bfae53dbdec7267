package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"slangmaster/models"
	"slangmaster/repository"

	"go.uber.org/zap"
)

var errConditionsNoLongerMet = errors.New("conditions no longer met")

type BadgeService struct {
	repo    repository.Repository
	rewards *RewardService
	logger  *zap.Logger
}

func NewBadgeService(repo repository.Repository, rewards *RewardService, logger *zap.Logger) *BadgeService {
	return &BadgeService{repo: repo, rewards: rewards, logger: logger}
}

// Snapshot reads the stats plus the set sizes conditions can refer to.
func (s *BadgeService) Snapshot(ctx context.Context, repo repository.Repository, stats *models.UserStats) (StatsSnapshot, error) {
	counts, err := repo.WordCounts(ctx, stats.UserID)
	if err != nil {
		return StatsSnapshot{}, fmt.Errorf("count unlocked words: %w", err)
	}
	avatars, err := repo.CountUnlockedAvatars(ctx, stats.UserID)
	if err != nil {
		return StatsSnapshot{}, fmt.Errorf("count unlocked avatars: %w", err)
	}
	return StatsSnapshot{
		Stats:           *stats,
		UnlockedWords:   counts.TotalSeen(),
		UnlockedAvatars: avatars,
	}, nil
}

// CheckAndUnlockBadges grants every catalog badge whose conditions the user
// now satisfies and returns them in grant order. Each grant and its reward
// commit together under the stats row lock; a failing badge is logged and
// skipped without affecting the others.
func (s *BadgeService) CheckAndUnlockBadges(ctx context.Context, userID uint) ([]models.Badge, error) {
	start := time.Now()
	defer func() { badgeEvaluationSeconds.Observe(time.Since(start).Seconds()) }()

	stats, err := s.repo.FindStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	badges, err := s.repo.ListBadges(ctx)
	if err != nil {
		return nil, fmt.Errorf("load badge catalog: %w", err)
	}
	owned, err := s.repo.OwnedBadgeIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load owned badges: %w", err)
	}
	snap, err := s.Snapshot(ctx, s.repo, stats)
	if err != nil {
		return nil, err
	}

	var unlocked []models.Badge
	for i := range badges {
		badge := &badges[i]
		if owned[badge.ID] {
			continue
		}
		conds, ok := badge.Conditions()
		if !ok || !AllConditionsMet(conds, snap) {
			continue
		}

		fresh, granted, err := s.grant(ctx, userID, badge, conds)
		if err != nil {
			if !errors.Is(err, errConditionsNoLongerMet) {
				badgeGrantFailures.Inc()
				s.logger.Error("badge grant failed",
					zap.Uint("user_id", userID),
					zap.Uint("badge_id", badge.ID),
					zap.String("badge", badge.Title),
					zap.Error(err),
				)
			}
			continue
		}
		owned[badge.ID] = true
		if !granted {
			continue
		}
		// Later badges see the rewards of earlier ones.
		snap = fresh
		unlocked = append(unlocked, *badge)
		badgesUnlocked.WithLabelValues(string(badge.Category)).Inc()
		s.logger.Info("badge unlocked",
			zap.Uint("user_id", userID),
			zap.Uint("badge_id", badge.ID),
			zap.String("badge", badge.Title),
		)
	}
	return unlocked, nil
}

// grant re-checks the badge against locked stats, then records ownership
// and applies the reward in one transaction. granted is false when another
// request got there first.
func (s *BadgeService) grant(ctx context.Context, userID uint, badge *models.Badge, conds []models.Condition) (StatsSnapshot, bool, error) {
	var (
		after   StatsSnapshot
		granted bool
	)
	err := s.repo.Transaction(ctx, func(tx repository.Repository) error {
		stats, err := tx.LockStats(ctx, userID)
		if err != nil {
			return err
		}
		snap, err := s.Snapshot(ctx, tx, stats)
		if err != nil {
			return err
		}
		if !AllConditionsMet(conds, snap) {
			return errConditionsNoLongerMet
		}

		granted, err = tx.GrantBadge(ctx, userID, badge.ID)
		if err != nil {
			return fmt.Errorf("record ownership: %w", err)
		}
		if !granted {
			after = snap
			return nil
		}

		if _, err := s.rewards.ApplyBadgeRewards(ctx, tx, stats, badge); err != nil {
			return err
		}
		if err := tx.SaveStats(ctx, stats); err != nil {
			return fmt.Errorf("save stats: %w", err)
		}
		after, err = s.Snapshot(ctx, tx, stats)
		return err
	})
	return after, granted, err
}
