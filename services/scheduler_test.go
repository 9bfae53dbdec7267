package services

import (
	"context"
	"testing"
	"time"

	"slangmaster/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestResetStaleStreaks(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	sched, err := NewScheduler(env.repo, SchedulerConfig{StreakResetEnabled: true}, time.UTC, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Shutdown() })
	sched.now = fixedClock(time.Date(2026, 3, 10, 0, 5, 0, 0, time.UTC))

	yesterday := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	twoDaysAgo := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	active := createUser(t, env.repo, "active")
	stale := createUser(t, env.repo, "stale")
	setStats(t, env.repo, active.ID, func(s *models.UserStats) {
		s.LastLoginDate = &yesterday
		s.CurrentStreak, s.LongestStreak = 4, 4
	})
	setStats(t, env.repo, stale.ID, func(s *models.UserStats) {
		s.LastLoginDate = &twoDaysAgo
		s.CurrentStreak, s.LongestStreak = 6, 9
	})

	n, err := sched.ResetStaleStreaks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stats, err := env.repo.FindStats(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.CurrentStreak, "played yesterday, streak still alive")

	stats, err = env.repo.FindStats(ctx, stale.ID)
	require.NoError(t, err)
	assert.Zero(t, stats.CurrentStreak)
	assert.Equal(t, int64(9), stats.LongestStreak)
}

func TestResetStaleStreaksUsesConfiguredZone(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tokyo := time.FixedZone("JST", 9*60*60)
	sched, err := NewScheduler(env.repo, SchedulerConfig{}, tokyo, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Shutdown() })
	// 2026-03-10 in Tokyo while UTC is still on the 9th.
	sched.now = fixedClock(time.Date(2026, 3, 9, 16, 0, 0, 0, time.UTC))

	user := createUser(t, env.repo, "ana")
	// Two days back for Tokyo, yesterday for UTC.
	lastPlayed := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	setStats(t, env.repo, user.ID, func(s *models.UserStats) {
		s.LastLoginDate = &lastPlayed
		s.CurrentStreak = 2
	})

	n, err := sched.ResetStaleStreaks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestPurgeExpiredTokens(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	sched, err := NewScheduler(env.repo, SchedulerConfig{}, nil, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Shutdown() })
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sched.now = fixedClock(now)

	expired := createUser(t, env.repo, "expired")
	fresh := createUser(t, env.repo, "fresh")
	require.NoError(t, env.repo.SaveVerificationToken(ctx, models.NewEmailVerificationToken(expired.ID, now.Add(-48*time.Hour))))
	freshToken := models.NewEmailVerificationToken(fresh.ID, now.Add(-time.Hour))
	require.NoError(t, env.repo.SaveVerificationToken(ctx, freshToken))

	n, err := sched.PurgeExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = env.repo.FindVerificationToken(ctx, freshToken.Token)
	assert.NoError(t, err)
}

func TestSchedulerStartAndShutdown(t *testing.T) {
	env := newTestEnv(t)
	sched, err := NewScheduler(env.repo, SchedulerConfig{TokenCleanupInterval: time.Hour, StreakResetEnabled: true}, time.UTC, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, sched.Start(ctx))
	assert.Len(t, sched.sched.Jobs(), 2)
	require.NoError(t, sched.Shutdown())
}
