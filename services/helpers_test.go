package services

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"slangmaster/models"
	"slangmaster/repository"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
)

type testEnv struct {
	repo        *repository.MemoryRepository
	badges      *BadgeService
	progression *ProgressionService
	guard       *MemorySubmissionGuard
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := repository.NewMemoryRepository()
	logger := zap.NewNop()
	badges := NewBadgeService(repo, NewRewardService(logger), logger)
	guard := NewMemorySubmissionGuard(time.Hour)
	return &testEnv{
		repo:        repo,
		badges:      badges,
		progression: NewProgressionService(repo, badges, guard, time.UTC, logger),
		guard:       guard,
	}
}

func createUser(t *testing.T, repo repository.Repository, username string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{Username: username, Email: username + "@example.com", PasswordHash: string(hash)}
	require.NoError(t, repo.CreateUser(context.Background(), user))
	_, err = repo.FindStats(context.Background(), user.ID)
	require.NoError(t, err)
	return user
}

func createBadge(t *testing.T, repo repository.Repository, title, conditions, reward string) models.Badge {
	t.Helper()
	badge := models.Badge{
		Title:               title,
		Category:            models.BadgeCategoryBasic,
		UnlockConditionData: datatypes.JSON(conditions),
		RewardData:          datatypes.JSON(reward),
	}
	require.NoError(t, repo.CreateBadge(context.Background(), &badge))
	return badge
}

func createWord(t *testing.T, repo repository.Repository, text string, wordType models.WordType, tags ...string) models.Word {
	t.Helper()
	word := models.Word{
		Text:        text,
		Description: "meaning of " + text,
		WordType:    wordType,
		Tags:        datatypes.JSONSlice[string](tags),
	}
	word.RefreshSlug()
	require.NoError(t, repo.CreateWord(context.Background(), &word))
	return word
}

func setStats(t *testing.T, repo repository.Repository, userID uint, mutate func(*models.UserStats)) {
	t.Helper()
	ctx := context.Background()
	stats, err := repo.FindStats(ctx, userID)
	require.NoError(t, err)
	mutate(stats)
	require.NoError(t, repo.SaveStats(ctx, stats))
}

func badgeTitles(badges []models.Badge) []string {
	titles := make([]string, 0, len(badges))
	for _, b := range badges {
		titles = append(titles, b.Title)
	}
	return titles
}

// failingGrantRepo fails GrantBadge for one badge id, inside transactions too.
type failingGrantRepo struct {
	repository.Repository
	badgeID uint
}

func (r *failingGrantRepo) Transaction(ctx context.Context, fn func(tx repository.Repository) error) error {
	return r.Repository.Transaction(ctx, func(tx repository.Repository) error {
		return fn(&failingGrantRepo{Repository: tx, badgeID: r.badgeID})
	})
}

func (r *failingGrantRepo) GrantBadge(ctx context.Context, userID, badgeID uint) (bool, error) {
	if badgeID == r.badgeID {
		return false, errors.New("disk on fire")
	}
	return r.Repository.GrantBadge(ctx, userID, badgeID)
}

var zeroTime time.Time

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
