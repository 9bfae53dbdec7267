package services

import (
	"context"
	"testing"

	"slangmaster/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCheckAndUnlockBadgesThreshold(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := createUser(t, env.repo, "ana")
	createBadge(t, env.repo, "Ten Words", `[{"type":"words_seen_total","value":10}]`, `{}`)

	setStats(t, env.repo, user.ID, func(s *models.UserStats) { s.WordsSeenTotal = 9 })
	unlocked, err := env.badges.CheckAndUnlockBadges(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, unlocked)

	setStats(t, env.repo, user.ID, func(s *models.UserStats) { s.WordsSeenTotal = 10 })
	unlocked, err = env.badges.CheckAndUnlockBadges(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ten Words"}, badgeTitles(unlocked))
}

func TestCheckAndUnlockBadgesNeverRegrants(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := createUser(t, env.repo, "ana")
	createBadge(t, env.repo, "Starter", `[{"type":"total_exp_achieved","value":0}]`, `{"exp":10}`)

	first, err := env.badges.CheckAndUnlockBadges(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := env.badges.CheckAndUnlockBadges(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, second)

	stats, err := env.repo.FindStats(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stats.Experience, "reward is applied once")

	owned, err := env.repo.ListUserBadges(ctx, user.ID, zeroTime)
	require.NoError(t, err)
	assert.Len(t, owned, 1)
}

func TestCheckAndUnlockBadgesRequiresEveryCondition(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := createUser(t, env.repo, "ana")
	createBadge(t, env.repo, "Sharp",
		`[{"type":"answered_total_questions","value":50},{"type":"general_accuracy","value":80}]`, `{}`)

	setStats(t, env.repo, user.ID, func(s *models.UserStats) {
		s.TotalQuestionsAnswered = 50
		s.CorrectAnswersTotal = 39
	})
	unlocked, err := env.badges.CheckAndUnlockBadges(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, unlocked)

	setStats(t, env.repo, user.ID, func(s *models.UserStats) { s.CorrectAnswersTotal = 40 })
	unlocked, err = env.badges.CheckAndUnlockBadges(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sharp"}, badgeTitles(unlocked))
}

func TestCheckAndUnlockBadgesSkipsUnusableConditionData(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := createUser(t, env.repo, "ana")
	setStats(t, env.repo, user.ID, func(s *models.UserStats) { s.Experience = 10_000 })

	createBadge(t, env.repo, "Empty", `[]`, `{}`)
	createBadge(t, env.repo, "Object", `{"type":"total_exp_achieved","value":1}`, `{}`)
	createBadge(t, env.repo, "Unknown kind", `[{"type":"karma","value":1}]`, `{}`)
	createBadge(t, env.repo, "String value", `[{"type":"total_exp_achieved","value":"1"}]`, `{}`)
	createBadge(t, env.repo, "Valid", `[{"type":"total_exp_achieved","value":1}]`, `{}`)

	unlocked, err := env.badges.CheckAndUnlockBadges(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Valid"}, badgeTitles(unlocked))
}

func TestCheckAndUnlockBadgesMissingRewardAvatar(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := createUser(t, env.repo, "ana")
	createBadge(t, env.repo, "Ghost Avatar", `[{"type":"total_exp_achieved","value":0}]`, `{"exp":30,"avatar_id":999}`)

	unlocked, err := env.badges.CheckAndUnlockBadges(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ghost Avatar"}, badgeTitles(unlocked))

	stats, err := env.repo.FindStats(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30), stats.Experience)

	avatars, err := env.repo.CountUnlockedAvatars(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, avatars)
}

func TestCheckAndUnlockBadgesUnlocksRewardAvatar(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := createUser(t, env.repo, "ana")
	fox := models.Avatar{Name: "fox"}
	require.NoError(t, env.repo.CreateAvatar(ctx, &fox))
	createBadge(t, env.repo, "Fox Friend", `[{"type":"total_exp_achieved","value":0}]`, `{"avatar_id":`+itoa(fox.ID)+`}`)

	_, err := env.badges.CheckAndUnlockBadges(ctx, user.ID)
	require.NoError(t, err)

	unlocked, err := env.repo.ListUnlockedAvatars(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, unlocked, 1)
	assert.Equal(t, fox.ID, unlocked[0].AvatarID)
}

func TestCheckAndUnlockBadgesRewardsCascadeWithinPass(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := createUser(t, env.repo, "ana")
	setStats(t, env.repo, user.ID, func(s *models.UserStats) { s.Experience = 90 })

	createBadge(t, env.repo, "Almost There", `[{"type":"total_exp_achieved","value":90}]`, `{"exp":10}`)
	createBadge(t, env.repo, "Level Two", `[{"type":"level_reached","value":2}]`, `{}`)

	unlocked, err := env.badges.CheckAndUnlockBadges(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Almost There", "Level Two"}, badgeTitles(unlocked))
}

func TestCheckAndUnlockBadgesIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := createUser(t, env.repo, "ana")
	first := createBadge(t, env.repo, "First", `[{"type":"total_exp_achieved","value":0}]`, `{"exp":5}`)
	broken := createBadge(t, env.repo, "Broken", `[{"type":"total_exp_achieved","value":0}]`, `{"exp":1000}`)
	createBadge(t, env.repo, "Third", `[{"type":"total_exp_achieved","value":0}]`, `{"exp":5}`)

	logger := zap.NewNop()
	repo := &failingGrantRepo{Repository: env.repo, badgeID: broken.ID}
	svc := NewBadgeService(repo, NewRewardService(logger), logger)

	unlocked, err := svc.CheckAndUnlockBadges(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"First", "Third"}, badgeTitles(unlocked))

	owned, err := env.repo.OwnedBadgeIDs(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, owned[first.ID])
	assert.False(t, owned[broken.ID])

	stats, err := env.repo.FindStats(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stats.Experience)
}

func TestRewardServiceIgnoresNegativeExp(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := createUser(t, env.repo, "ana")
	stats, err := env.repo.FindStats(ctx, user.ID)
	require.NoError(t, err)
	stats.Experience = 50

	badge := createBadge(t, env.repo, "Penalty", `[]`, `{"exp":-20}`)
	outcome, err := NewRewardService(zap.NewNop()).ApplyBadgeRewards(ctx, env.repo, stats, &badge)
	require.NoError(t, err)
	assert.Zero(t, outcome.ExpAwarded)
	assert.Equal(t, int64(50), stats.Experience)
}

func TestCheckAndUnlockBadgesExperienceCondition(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := createUser(t, env.repo, "ana")
	createBadge(t, env.repo, "Ten XP", `[{"type":"total_exp_achieved","value":10}]`, `{}`)
	createBadge(t, env.repo, "Old Style", `[{"type":"experience","value":10}]`, `{}`)

	setStats(t, env.repo, user.ID, func(s *models.UserStats) { s.Experience = 500 })
	unlocked, err := env.badges.CheckAndUnlockBadges(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ten XP", "Old Style"}, badgeTitles(unlocked))
}
