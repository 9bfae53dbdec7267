package services

import (
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"slangmaster/models"
	"slangmaster/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeImageStore struct {
	keys []string
}

func (s *fakeImageStore) Upload(ctx context.Context, fileHeader *multipart.FileHeader, key string) (string, error) {
	s.keys = append(s.keys, key)
	return "https://cdn.test/" + key, nil
}

func newCatalogService(t *testing.T) (*CatalogService, *repository.MemoryRepository, *fakeImageStore) {
	t.Helper()
	repo := repository.NewMemoryRepository()
	images := &fakeImageStore{}
	return NewCatalogService(repo, images, zap.NewNop()), repo, images
}

func TestSeedEmbeddedCatalog(t *testing.T) {
	ctx := context.Background()
	catalog, repo, _ := newCatalogService(t)
	data, err := LoadSeedCatalog("")
	require.NoError(t, err)

	result, err := catalog.Seed(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, 5, result.AvatarsCreated)
	assert.Equal(t, 9, result.BadgesCreated)

	again, err := catalog.Seed(ctx, data)
	require.NoError(t, err)
	assert.Zero(t, again.AvatarsCreated, "seeding is idempotent")
	assert.Zero(t, again.BadgesCreated)

	defaults, err := repo.ListDefaultAvatars(ctx)
	require.NoError(t, err)
	assert.Len(t, defaults, 2)

	owl, err := repo.FindAvatarByName(ctx, "night-owl")
	require.NoError(t, err)
	badge, err := repo.FindBadgeByTitle(ctx, "Night Owl")
	require.NoError(t, err)
	reward, rejected := badge.Reward()
	assert.Empty(t, rejected)
	require.NotNil(t, reward.AvatarID)
	assert.Equal(t, owl.ID, *reward.AvatarID)
	assert.Equal(t, models.BadgeCategoryRare, badge.Category)

	sharp, err := repo.FindBadgeByTitle(ctx, "Sharp Shooter")
	require.NoError(t, err)
	conds, ok := sharp.Conditions()
	require.True(t, ok)
	assert.Len(t, conds, 2)
	for _, c := range conds {
		assert.True(t, KnownCondition(c.Type), c.Type)
	}
}

func TestSeedFromFileKeepsExistingRows(t *testing.T) {
	ctx := context.Background()
	catalog, repo, _ := newCatalogService(t)
	existing := createBadge(t, repo, "Custom", `[{"type":"total_exp_achieved","value":5}]`, `{}`)

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
avatars:
  - name: crow
badges:
  - title: Custom
    unlock_condition_data: [{type: experience, value: 1}]
  - title: Crow Caller
    unlock_condition_data: [{type: experience, value: 1}]
    reward_data: {exp: 5}
    reward_avatar: crow
`), 0o644))

	data, err := LoadSeedCatalog(path)
	require.NoError(t, err)
	result, err := catalog.Seed(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{AvatarsCreated: 1, BadgesCreated: 1}, result)

	kept, err := repo.FindBadge(ctx, existing.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"type":"total_exp_achieved","value":5}]`, string(kept.UnlockConditionData))

	crow, err := repo.FindBadgeByTitle(ctx, "Crow Caller")
	require.NoError(t, err)
	assert.Equal(t, models.BadgeCategoryBasic, crow.Category)
	reward, _ := crow.Reward()
	require.NotNil(t, reward.Exp)
	assert.Equal(t, int64(5), *reward.Exp)
	require.NotNil(t, reward.AvatarID)

	_, err = LoadSeedCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSeedRejectsUnknownRewardAvatar(t *testing.T) {
	catalog, repo, _ := newCatalogService(t)
	_, err := catalog.Seed(context.Background(), []byte(`
avatars:
  - name: crow
badges:
  - title: Broken
    reward_avatar: raven
`))
	require.Error(t, err)

	_, err = repo.FindAvatarByName(context.Background(), "crow")
	assert.ErrorIs(t, err, repository.ErrNotFound, "seed runs in one transaction")
}

func TestCreateBadgeValidatesJSON(t *testing.T) {
	catalog, _, _ := newCatalogService(t)

	_, err := catalog.CreateBadge(context.Background(), BadgeInput{
		Title:               "Broken",
		UnlockConditionData: json.RawMessage(`[{"type":`),
		RewardData:          json.RawMessage(`{exp: 1}`),
	}, nil)
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, http.StatusBadRequest, svcErr.GetStatusCode())
	assert.Contains(t, svcErr.Fields, "unlock_condition_data")
	assert.Contains(t, svcErr.Fields, "reward_data")

	_, err = catalog.CreateBadge(context.Background(), BadgeInput{Title: "Hero", Category: "MYTHIC"}, nil)
	require.ErrorAs(t, err, &svcErr)
	assert.Contains(t, svcErr.Fields, "category")
}

func TestBadgeCRUD(t *testing.T) {
	ctx := context.Background()
	catalog, _, images := newCatalogService(t)

	badge, err := catalog.CreateBadge(ctx, BadgeInput{
		Title:               "  Night Owl ",
		UnlockConditionData: json.RawMessage(`{"not":"a list"}`),
	}, &multipart.FileHeader{Filename: "Owl.PNG"})
	require.NoError(t, err)
	assert.Equal(t, "Night Owl", badge.Title)
	assert.Equal(t, models.BadgeCategoryBasic, badge.Category)
	assert.JSONEq(t, `{}`, string(badge.RewardData))
	require.Len(t, images.keys, 1)
	assert.True(t, strings.HasPrefix(images.keys[0], "badges/night-owl-"))
	assert.True(t, strings.HasSuffix(images.keys[0], ".png"))
	assert.Equal(t, "https://cdn.test/"+images.keys[0], badge.ImageURL)

	_, err = catalog.CreateBadge(ctx, BadgeInput{Title: "Night Owl"}, nil)
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, http.StatusConflict, svcErr.GetStatusCode())

	updated, err := catalog.UpdateBadge(ctx, badge.ID, BadgeInput{Title: "Night Owl", Category: models.BadgeCategoryEpic}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.BadgeCategoryEpic, updated.Category)
	assert.Equal(t, badge.ImageURL, updated.ImageURL, "image survives updates without a new upload")
	assert.JSONEq(t, `[]`, string(updated.UnlockConditionData))

	require.NoError(t, catalog.DeleteBadge(ctx, badge.ID))
	_, err = catalog.GetBadge(ctx, badge.ID)
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, http.StatusNotFound, svcErr.GetStatusCode())
}

func TestAvatarCRUD(t *testing.T) {
	ctx := context.Background()
	catalog, _, _ := newCatalogService(t)

	avatar, err := catalog.CreateAvatar(ctx, AvatarInput{Name: "crow", IsDefault: true}, nil)
	require.NoError(t, err)
	assert.True(t, avatar.IsDefault)

	_, err = catalog.CreateAvatar(ctx, AvatarInput{Name: "crow"}, nil)
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "AVATAR_EXISTS", svcErr.Code)

	updated, err := catalog.UpdateAvatar(ctx, avatar.ID, AvatarInput{Name: "raven", ImageURL: "/static/raven.png"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "raven", updated.Name)
	assert.False(t, updated.IsDefault)

	avatars, err := catalog.ListAvatars(ctx)
	require.NoError(t, err)
	assert.Len(t, avatars, 1)

	require.NoError(t, catalog.DeleteAvatar(ctx, avatar.ID))
	err = catalog.DeleteAvatar(ctx, avatar.ID)
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, http.StatusNotFound, svcErr.GetStatusCode())
}

func TestUploadWithoutImageStore(t *testing.T) {
	catalog := NewCatalogService(repository.NewMemoryRepository(), nil, zap.NewNop())
	_, err := catalog.CreateAvatar(context.Background(), AvatarInput{Name: "crow"}, &multipart.FileHeader{Filename: "crow.png"})
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, http.StatusBadRequest, svcErr.GetStatusCode())
}
