package services

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"slangmaster/models"
	"slangmaster/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type recordingMailer struct {
	mu    sync.Mutex
	links map[string]string
}

func (m *recordingMailer) SendVerificationEmail(ctx context.Context, to, username, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.links == nil {
		m.links = map[string]string{}
	}
	m.links[to] = link
	return nil
}

// token extracts the raw token from the last link sent to addr.
func (m *recordingMailer) token(addr string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	link := strings.TrimSuffix(m.links[addr], "/")
	return link[strings.LastIndex(link, "/")+1:]
}

func newUserService(t *testing.T, repo repository.Repository) (*UserService, *recordingMailer) {
	t.Helper()
	mailer := &recordingMailer{}
	tokens := NewTokenService("test-secret", 15*time.Minute, 24*time.Hour)
	return NewUserService(repo, tokens, mailer, bcrypt.MinCost, "http://api.test/", zap.NewNop()), mailer
}

func registerRequest(username string) RegisterRequest {
	return RegisterRequest{
		Email:           username + "@example.com",
		Username:        username,
		Password:        "password123",
		ConfirmPassword: "password123",
	}
}

func seedDefaultAvatars(t *testing.T, repo repository.Repository) (def, cat models.Avatar) {
	t.Helper()
	ctx := context.Background()
	cat = models.Avatar{Name: "street-cat", IsDefault: true}
	require.NoError(t, repo.CreateAvatar(ctx, &cat))
	def = models.Avatar{Name: models.DefaultAvatarName, IsDefault: true}
	require.NoError(t, repo.CreateAvatar(ctx, &def))
	locked := models.Avatar{Name: "fire-fox"}
	require.NoError(t, repo.CreateAvatar(ctx, &locked))
	return def, cat
}

func TestRegisterProvisionsAccount(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	def, _ := seedDefaultAvatars(t, repo)
	users, mailer := newUserService(t, repo)

	user, err := users.Register(ctx, registerRequest("ana"))
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.NotEqual(t, "password123", user.PasswordHash)

	profile, err := repo.FindProfile(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, profile.CurrentAvatarID)
	assert.Equal(t, def.ID, *profile.CurrentAvatarID)
	assert.False(t, profile.Verified)
	assert.Equal(t, models.DefaultProfileImage, profile.Image)

	count, err := repo.CountUnlockedAvatars(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "every default avatar is unlocked")

	stats, err := repo.FindStats(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, stats.Experience)

	assert.True(t, strings.HasPrefix(mailer.links["ana@example.com"], "http://api.test/api/verify-email/"))
}

func TestRegisterWithoutDefaultAvatars(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	users, _ := newUserService(t, repo)

	user, err := users.Register(ctx, registerRequest("ana"))
	require.NoError(t, err)

	profile, err := repo.FindProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, profile.CurrentAvatarID)
}

func TestRegisterRejectsTakenIdentity(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	users, _ := newUserService(t, repo)
	_, err := users.Register(ctx, registerRequest("ana"))
	require.NoError(t, err)

	req := registerRequest("ana")
	_, err = users.Register(ctx, req)
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, http.StatusConflict, svcErr.GetStatusCode())
	assert.Contains(t, svcErr.Fields, "email")
	assert.Contains(t, svcErr.Fields, "username")
}

func TestRegisterValidation(t *testing.T) {
	users, _ := newUserService(t, repository.NewMemoryRepository())

	req := registerRequest("ana")
	req.ConfirmPassword = "password124"
	req.Email = "not-an-email"
	_, err := users.Register(context.Background(), req)

	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, http.StatusBadRequest, svcErr.GetStatusCode())
	assert.Contains(t, svcErr.Fields, "email")
	assert.Contains(t, svcErr.Fields, "confirm_password")
}

func TestVerifyEmail(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	users, mailer := newUserService(t, repo)
	user, err := users.Register(ctx, registerRequest("ana"))
	require.NoError(t, err)
	raw := mailer.token("ana@example.com")

	status, err := users.VerifyEmail(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, VerificationSuccess, status)

	profile, err := repo.FindProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, profile.Verified)

	status, err = users.VerifyEmail(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, VerificationTokenNotFound, status, "token is consumed")

	status, err = users.VerifyEmail(ctx, "not-a-uuid")
	require.NoError(t, err)
	assert.Equal(t, VerificationTokenNotFound, status)
}

func TestVerifyEmailAlreadyVerified(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	users, mailer := newUserService(t, repo)
	user, err := users.Register(ctx, registerRequest("ana"))
	require.NoError(t, err)

	profile, err := repo.FindProfile(ctx, user.ID)
	require.NoError(t, err)
	profile.Verified = true
	require.NoError(t, repo.SaveProfile(ctx, profile))

	status, err := users.VerifyEmail(ctx, mailer.token("ana@example.com"))
	require.NoError(t, err)
	assert.Equal(t, VerificationAlreadyVerified, status)
}

func TestVerifyEmailExpired(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	users, mailer := newUserService(t, repo)
	user, err := users.Register(ctx, registerRequest("ana"))
	require.NoError(t, err)
	raw := mailer.token("ana@example.com")

	users.now = func() time.Time { return time.Now().Add(models.VerificationTokenTTL + time.Minute) }
	status, err := users.VerifyEmail(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, VerificationExpired, status)

	profile, err := repo.FindProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, profile.Verified)

	status, err = users.VerifyEmail(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, VerificationTokenNotFound, status, "expired tokens are removed")
}

func TestLoginAndRefresh(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	users, _ := newUserService(t, repo)
	_, err := users.Register(ctx, registerRequest("ana"))
	require.NoError(t, err)

	result, err := users.Login(ctx, LoginRequest{Email: "ana@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Access)
	assert.NotEmpty(t, result.Refresh)
	assert.True(t, result.User.IsOnline)
	assert.NotNil(t, result.User.LastLogin)

	claims, err := users.tokens.Parse(result.Access, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "ana", claims.Username)

	access, err := users.Refresh(ctx, result.Refresh)
	require.NoError(t, err)
	_, err = users.tokens.Parse(access, TokenTypeAccess)
	assert.NoError(t, err)

	_, err = users.Refresh(ctx, result.Access)
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, http.StatusUnauthorized, svcErr.GetStatusCode(), "access tokens cannot refresh")

	require.NoError(t, users.Logout(ctx, result.User.ID))
	user, err := repo.FindUserByID(ctx, result.User.ID)
	require.NoError(t, err)
	assert.False(t, user.IsOnline)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	users, _ := newUserService(t, repository.NewMemoryRepository())
	_, err := users.Register(ctx, registerRequest("ana"))
	require.NoError(t, err)

	for _, req := range []LoginRequest{
		{Email: "ana@example.com", Password: "wrong-password"},
		{Email: "bob@example.com", Password: "password123"},
	} {
		_, err := users.Login(ctx, req)
		var svcErr *ServiceError
		require.ErrorAs(t, err, &svcErr)
		assert.Equal(t, http.StatusUnauthorized, svcErr.GetStatusCode())
		assert.Equal(t, invalidCredentials, svcErr.Message)
	}
}

func TestSelectAvatar(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	_, cat := seedDefaultAvatars(t, repo)
	users, _ := newUserService(t, repo)
	user, err := users.Register(ctx, registerRequest("ana"))
	require.NoError(t, err)

	profile, err := users.SelectAvatar(ctx, user.ID, cat.ID)
	require.NoError(t, err)
	assert.Equal(t, cat.ID, *profile.CurrentAvatarID)

	locked, err := repo.FindAvatarByName(ctx, "fire-fox")
	require.NoError(t, err)
	_, err = users.SelectAvatar(ctx, user.ID, locked.ID)
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, http.StatusForbidden, svcErr.GetStatusCode())

	_, err = users.SelectAvatar(ctx, user.ID, 4242)
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, http.StatusNotFound, svcErr.GetStatusCode())
}

func TestUpdateProfileKeepsUnsetFields(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	users, _ := newUserService(t, repo)
	user, err := users.Register(ctx, registerRequest("ana"))
	require.NoError(t, err)

	name := "Ana Lima"
	bio := "learning slang"
	_, err = users.UpdateProfile(ctx, user.ID, ProfileUpdate{FullName: &name, Bio: &bio})
	require.NoError(t, err)

	newBio := "fluent now"
	profile, err := users.UpdateProfile(ctx, user.ID, ProfileUpdate{Bio: &newBio})
	require.NoError(t, err)
	assert.Equal(t, "Ana Lima", *profile.FullName)
	assert.Equal(t, "fluent now", *profile.Bio)
}

func TestIsStaff(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	users, _ := newUserService(t, repo)
	user := createUser(t, repo, "ana")
	admin := &models.User{Username: "root", Email: "root@example.com", PasswordHash: "x", IsSuperuser: true}
	require.NoError(t, repo.CreateUser(ctx, admin))

	staff, err := users.IsStaff(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, staff)

	staff, err = users.IsStaff(ctx, admin.ID)
	require.NoError(t, err)
	assert.True(t, staff)
}
