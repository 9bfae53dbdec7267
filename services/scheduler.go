package services

import (
	"context"
	"fmt"
	"time"

	"slangmaster/models"
	"slangmaster/repository"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

type SchedulerConfig struct {
	TokenCleanupInterval time.Duration
	StreakResetEnabled   bool
}

// Scheduler runs the periodic maintenance jobs.
type Scheduler struct {
	repo   repository.Repository
	cfg    SchedulerConfig
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
	sched  gocron.Scheduler
}

func NewScheduler(repo repository.Repository, cfg SchedulerConfig, loc *time.Location, logger *zap.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	if cfg.TokenCleanupInterval <= 0 {
		cfg.TokenCleanupInterval = time.Hour
	}
	sched, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{repo: repo, cfg: cfg, loc: loc, logger: logger, now: time.Now, sched: sched}, nil
}

// Start registers the jobs and starts the scheduler. Jobs run with ctx, so
// cancelling it aborts in-flight queries.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(s.cfg.TokenCleanupInterval),
		gocron.NewTask(func() {
			if _, err := s.PurgeExpiredTokens(ctx); err != nil {
				s.logger.Error("token cleanup failed", zap.Error(err))
			}
		}),
		gocron.WithName("purge-verification-tokens"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("register token cleanup: %w", err)
	}

	if s.cfg.StreakResetEnabled {
		_, err = s.sched.NewJob(
			gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 5, 0))),
			gocron.NewTask(func() {
				if _, err := s.ResetStaleStreaks(ctx); err != nil {
					s.logger.Error("streak reset failed", zap.Error(err))
				}
			}),
			gocron.WithName("reset-stale-streaks"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("register streak reset: %w", err)
		}
	}

	s.sched.Start()
	s.logger.Info("scheduler started",
		zap.Duration("token_cleanup_interval", s.cfg.TokenCleanupInterval),
		zap.Bool("streak_reset", s.cfg.StreakResetEnabled))
	return nil
}

func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}

func (s *Scheduler) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpiredVerificationTokens(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired verification tokens purged", zap.Int64("count", n))
	}
	return n, nil
}

// ResetStaleStreaks zeroes the current streak of everyone whose last
// activity is older than yesterday. Longest streaks are kept.
func (s *Scheduler) ResetStaleStreaks(ctx context.Context) (int64, error) {
	cutoff := models.CalendarDay(s.now().In(s.loc).AddDate(0, 0, -1))
	n, err := s.repo.ResetStaleStreaks(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.logger.Info("stale streaks reset", zap.Int64("count", n), zap.Time("cutoff", cutoff))
	return n, nil
}
