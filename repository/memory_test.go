package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"slangmaster/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func newUser(t *testing.T, repo Repository, name string) *models.User {
	t.Helper()
	u := &models.User{Username: name, Email: name + "@example.com", PasswordHash: "x"}
	require.NoError(t, repo.CreateUser(context.Background(), u))
	return u
}

func TestMemoryTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	user := newUser(t, repo, "ana")

	boom := errors.New("boom")
	err := repo.Transaction(ctx, func(tx Repository) error {
		stats, err := tx.LockStats(ctx, user.ID)
		require.NoError(t, err)
		stats.Experience = 500
		require.NoError(t, tx.SaveStats(ctx, stats))
		_, err = tx.GrantBadge(ctx, user.ID, 1)
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	stats, err := repo.FindStats(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, stats.Experience)
	owned, err := repo.OwnedBadgeIDs(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, owned)
}

func TestMemoryNestedTransactionJoinsOuter(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	err := repo.Transaction(ctx, func(tx Repository) error {
		require.NoError(t, tx.Transaction(ctx, func(inner Repository) error {
			newUser(t, inner, "ana")
			return nil
		}))
		return errors.New("outer fails")
	})
	require.Error(t, err)

	_, err = repo.FindUserByUsername(ctx, "ana")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryUniqueConstraints(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	newUser(t, repo, "ana")

	err := repo.CreateUser(ctx, &models.User{Username: "other", Email: "ANA@example.com"})
	assert.ErrorIs(t, err, ErrDuplicate, "emails compare case-insensitively")

	key := "k1"
	require.NoError(t, repo.CreateGameHistory(ctx, &models.GameHistory{UserID: 1, SubmissionKey: &key}))
	err = repo.CreateGameHistory(ctx, &models.GameHistory{UserID: 1, SubmissionKey: &key})
	assert.ErrorIs(t, err, ErrDuplicateSubmission)
	assert.NoError(t, repo.CreateGameHistory(ctx, &models.GameHistory{UserID: 2, SubmissionKey: &key}))
	assert.NoError(t, repo.CreateGameHistory(ctx, &models.GameHistory{UserID: 1}))
	assert.NoError(t, repo.CreateGameHistory(ctx, &models.GameHistory{UserID: 1}))
}

func TestMemoryOwnershipSetsAreAppendOnly(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	granted, err := repo.GrantBadge(ctx, 1, 3)
	require.NoError(t, err)
	assert.True(t, granted)
	granted, err = repo.GrantBadge(ctx, 1, 3)
	require.NoError(t, err)
	assert.False(t, granted)

	added, err := repo.UnlockAvatar(ctx, 1, 9)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = repo.UnlockAvatar(ctx, 1, 9)
	require.NoError(t, err)
	assert.False(t, added)
	n, err := repo.CountUnlockedAvatars(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemoryWordCounts(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	slang := &models.Word{Text: "bet", WordType: models.WordTypeSlang}
	idiom := &models.Word{Text: "break a leg", WordType: models.WordTypeIdiom}
	require.NoError(t, repo.CreateWord(ctx, slang))
	require.NoError(t, repo.CreateWord(ctx, idiom))
	now := time.Now()

	require.NoError(t, repo.UnlockWords(ctx, 1, []uint{slang.ID, idiom.ID, slang.ID}, false, now))
	require.NoError(t, repo.UnlockWords(ctx, 1, []uint{idiom.ID}, true, now))
	require.NoError(t, repo.UnlockWords(ctx, 1, []uint{idiom.ID}, false, now))

	counts, err := repo.WordCounts(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.TotalSeen())
	assert.Equal(t, models.WordTypeCount{Seen: 1, Learned: 0}, counts[models.WordTypeSlang])
	assert.Equal(t, models.WordTypeCount{Seen: 1, Learned: 1}, counts[models.WordTypeIdiom], "learned is never revoked")
}

func TestMemoryListWordsSearch(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	for _, text := range []string{"Qué onda", "give up", "bet"} {
		w := &models.Word{Text: text, Description: "d", Tags: datatypes.JSONSlice[string]{}}
		w.RefreshSlug()
		require.NoError(t, repo.CreateWord(ctx, w))
	}

	words, total, err := repo.ListWords(ctx, WordFilter{Search: "QUE"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Qué onda", words[0].Text)

	words, _, err = repo.ListWords(ctx, WordFilter{Search: "give-up"})
	require.NoError(t, err)
	require.Len(t, words, 1, "slugs match too")

	words, total, err = repo.ListWords(ctx, WordFilter{Offset: 2, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, words, 1)
}

func TestMemoryRandomWordsExcludes(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	var ids []uint
	for _, text := range []string{"a", "b", "c"} {
		w := &models.Word{Text: text, WordType: models.WordTypeSlang}
		require.NoError(t, repo.CreateWord(ctx, w))
		ids = append(ids, w.ID)
	}

	words, err := repo.RandomWords(ctx, "", 10, ids[:2])
	require.NoError(t, err)
	require.Len(t, words, 1)
	assert.Equal(t, ids[2], words[0].ID)

	words, err = repo.RandomWords(ctx, models.WordTypeIdiom, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, words)
}
