package services

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"slangmaster/models"
	"slangmaster/repository"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const DefaultStreamPollInterval = 2 * time.Second

// BadgeStreamService pushes newly awarded badges to a connected client
// as Server-Sent Events.
type BadgeStreamService struct {
	repo     repository.Repository
	interval time.Duration
	logger   *zap.Logger
	done     <-chan struct{}
}

// NewBadgeStreamService polls every interval. Streams end when base is cancelled.
func NewBadgeStreamService(base context.Context, repo repository.Repository, interval time.Duration, logger *zap.Logger) *BadgeStreamService {
	if interval <= 0 {
		interval = DefaultStreamPollInterval
	}
	return &BadgeStreamService{repo: repo, interval: interval, logger: logger, done: base.Done()}
}

// StreamUserBadgesSSE expects the user id in c.Locals("user_id").
func (s *BadgeStreamService) StreamUserBadgesSSE(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "authentication required"})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-s.done:
				cancel()
			case <-ctx.Done():
			}
		}()

		cursor := time.Now()
		// comment frame so proxies flush headers
		if _, err := w.WriteString(":\n\n"); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		s.logger.Debug("badge stream opened", zap.Uint("user_id", userID))
		for {
			select {
			case <-ticker.C:
				next, err := s.WriteNewBadges(ctx, w, userID, cursor)
				if err != nil {
					s.logger.Debug("badge stream closed", zap.Uint("user_id", userID), zap.Error(err))
					return
				}
				cursor = next
			case <-ctx.Done():
				return
			}
		}
	})
	return nil
}

// WriteNewBadges emits one `event: badge` frame per badge awarded after
// since and returns the advanced cursor. Write or flush failures mean the
// client went away.
func (s *BadgeStreamService) WriteNewBadges(ctx context.Context, w *bufio.Writer, userID uint, since time.Time) (time.Time, error) {
	owned, err := s.repo.ListUserBadges(ctx, userID, since)
	if err != nil {
		s.logger.Warn("badge stream query failed", zap.Uint("user_id", userID), zap.Error(err))
		return since, nil
	}
	if len(owned) == 0 {
		// keepalive
		if _, err := w.WriteString(":\n\n"); err != nil {
			return since, err
		}
		return since, w.Flush()
	}
	for _, ub := range owned {
		payload, err := json.Marshal(badgeEvent(ub))
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "event: badge\ndata: %s\n\n", payload); err != nil {
			return since, err
		}
		if ub.AwardedAt.After(since) {
			since = ub.AwardedAt
		}
	}
	return since, w.Flush()
}

type badgeEventPayload struct {
	BadgeSummary
	AwardedAt time.Time `json:"awarded_at"`
}

func badgeEvent(ub models.UserBadge) badgeEventPayload {
	return badgeEventPayload{
		BadgeSummary: summarizeBadges([]models.Badge{ub.Badge})[0],
		AwardedAt:    ub.AwardedAt,
	}
}
