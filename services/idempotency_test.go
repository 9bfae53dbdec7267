package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySubmissionGuard(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	guard := NewMemorySubmissionGuard(time.Hour)
	guard.now = func() time.Time { return now }

	_, ok, err := guard.Recall(ctx, 1, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, guard.Remember(ctx, 1, "k", []byte("first")))
	require.NoError(t, guard.Remember(ctx, 1, "k", []byte("second")))

	got, ok, err := guard.Recall(ctx, 1, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "first", string(got), "first write wins")

	_, ok, err = guard.Recall(ctx, 2, "k")
	require.NoError(t, err)
	assert.False(t, ok, "keys are scoped per user")

	now = now.Add(2 * time.Hour)
	_, ok, err = guard.Recall(ctx, 1, "k")
	require.NoError(t, err)
	assert.False(t, ok, "entries expire")

	require.NoError(t, guard.Remember(ctx, 1, "k", []byte("third")))
	got, _, err = guard.Recall(ctx, 1, "k")
	require.NoError(t, err)
	assert.Equal(t, "third", string(got))
}

func TestSubmissionCacheKey(t *testing.T) {
	assert.Equal(t, "slangmaster:submission:12:abc", submissionCacheKey(12, "abc"))
}

func TestMemorySubmissionGuardSweepsExpiredKeys(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	guard := NewMemorySubmissionGuard(time.Hour)
	guard.now = func() time.Time { return now }

	for i, key := range []string{"a", "b", "c"} {
		require.NoError(t, guard.Remember(ctx, uint(i+1), key, []byte(key)))
	}
	assert.Len(t, guard.entries, 3)

	now = now.Add(30 * time.Minute)
	require.NoError(t, guard.Remember(ctx, 9, "fresh", []byte("fresh")))
	assert.Len(t, guard.entries, 4, "nothing has expired yet")

	now = now.Add(2 * time.Hour)
	require.NoError(t, guard.Remember(ctx, 10, "late", []byte("late")))
	assert.Len(t, guard.entries, 1, "keys that were never recalled are dropped")

	got, ok, err := guard.Recall(ctx, 10, "late")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "late", string(got))
}
