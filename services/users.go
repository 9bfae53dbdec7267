package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"slangmaster/models"
	"slangmaster/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type RegisterRequest struct {
	Email           string `json:"email" validate:"required,email,max=254"`
	Username        string `json:"username" validate:"required,max=150"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ProfileUpdate struct {
	FullName *string `json:"full_name" validate:"omitempty,max=150"`
	Bio      *string `json:"bio" validate:"omitempty,max=300"`
}

type VerificationStatus string

const (
	VerificationSuccess         VerificationStatus = "success"
	VerificationAlreadyVerified VerificationStatus = "already_verified"
	VerificationExpired         VerificationStatus = "expired_or_invalid"
	VerificationTokenNotFound   VerificationStatus = "token_not_found"
)

const invalidCredentials = "no active account found with the given credentials"

type UserService struct {
	repo       repository.Repository
	tokens     *TokenService
	mailer     Mailer
	logger     *zap.Logger
	bcryptCost int
	publicURL  string
	now        func() time.Time
}

func NewUserService(repo repository.Repository, tokens *TokenService, mailer Mailer, bcryptCost int, publicURL string, logger *zap.Logger) *UserService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserService{
		repo:       repo,
		tokens:     tokens,
		mailer:     mailer,
		logger:     logger,
		bcryptCost: bcryptCost,
		publicURL:  strings.TrimRight(publicURL, "/"),
		now:        time.Now,
	}
}

// Register creates the account and everything a new player starts with:
// profile, empty stats, the default avatars and a verification token.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	taken := map[string]string{}
	if _, err := s.repo.FindUserByEmail(ctx, req.Email); err == nil {
		taken["email"] = "a user with that email already exists"
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, NewInternalError("failed to check email", err)
	}
	if _, err := s.repo.FindUserByUsername(ctx, req.Username); err == nil {
		taken["username"] = "a user with that username already exists"
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, NewInternalError("failed to check username", err)
	}
	if len(taken) > 0 {
		conflict := NewConflictError("account already exists", "ACCOUNT_EXISTS")
		conflict.Fields = taken
		return nil, conflict
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, NewInternalError("failed to hash password", err)
	}

	user := &models.User{Username: req.Username, Email: req.Email, PasswordHash: string(hash)}
	var token *models.EmailVerificationToken
	err = s.repo.Transaction(ctx, func(tx repository.Repository) error {
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}
		token, err = s.provisionAccount(ctx, tx, user)
		return err
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, NewConflictError("account already exists", "ACCOUNT_EXISTS")
	}
	if err != nil {
		return nil, NewInternalError("failed to register user", err)
	}

	link := fmt.Sprintf("%s/api/verify-email/%s/", s.publicURL, token.Token)
	if err := s.mailer.SendVerificationEmail(ctx, user.Email, user.Username, link); err != nil {
		s.logger.Warn("verification email not sent", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	registrations.Inc()
	s.logger.Info("user registered", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	return user, nil
}

func (s *UserService) provisionAccount(ctx context.Context, tx repository.Repository, user *models.User) (*models.EmailVerificationToken, error) {
	if _, err := tx.FindStats(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("create stats: %w", err)
	}

	defaults, err := tx.ListDefaultAvatars(ctx)
	if err != nil {
		return nil, fmt.Errorf("load default avatars: %w", err)
	}
	for _, avatar := range defaults {
		if _, err := tx.UnlockAvatar(ctx, user.ID, avatar.ID); err != nil {
			return nil, fmt.Errorf("unlock default avatar %d: %w", avatar.ID, err)
		}
	}

	profile := &models.Profile{UserID: user.ID, Image: models.DefaultProfileImage}
	if start := models.PickStartingAvatar(defaults); start != nil {
		id := start.ID
		profile.CurrentAvatarID = &id
	}
	if err := tx.CreateProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}

	token := models.NewEmailVerificationToken(user.ID, s.now())
	if err := tx.SaveVerificationToken(ctx, token); err != nil {
		return nil, fmt.Errorf("create verification token: %w", err)
	}
	return token, nil
}

// VerifyEmail consumes a verification token. Expired tokens are deleted too.
func (s *UserService) VerifyEmail(ctx context.Context, raw string) (VerificationStatus, error) {
	id, err := uuid.Parse(strings.Trim(raw, "/ "))
	if err != nil {
		return VerificationTokenNotFound, nil
	}

	var status VerificationStatus
	err = s.repo.Transaction(ctx, func(tx repository.Repository) error {
		token, err := tx.FindVerificationToken(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			status = VerificationTokenNotFound
			return nil
		}
		if err != nil {
			return err
		}
		profile, err := tx.FindProfile(ctx, token.UserID)
		if errors.Is(err, repository.ErrNotFound) {
			status = VerificationTokenNotFound
			return nil
		}
		if err != nil {
			return err
		}
		if profile.Verified {
			status = VerificationAlreadyVerified
			return nil
		}
		if !token.IsValid(s.now()) {
			status = VerificationExpired
			return tx.DeleteVerificationToken(ctx, token.ID)
		}
		profile.Verified = true
		if err := tx.SaveProfile(ctx, profile); err != nil {
			return err
		}
		status = VerificationSuccess
		return tx.DeleteVerificationToken(ctx, token.ID)
	})
	if err != nil {
		return "", NewInternalError("failed to verify email", err)
	}
	return status, nil
}

type LoginResult struct {
	TokenPair
	User *models.User `json:"user"`
}

func (s *UserService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	user, err := s.repo.FindUserByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewUnauthorizedError(invalidCredentials)
	}
	if err != nil {
		return nil, NewInternalError("failed to load user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, NewUnauthorizedError(invalidCredentials)
	}

	now := s.now()
	user.IsOnline = true
	user.LastLogin = &now
	if err := s.repo.SaveUser(ctx, user); err != nil {
		return nil, NewInternalError("failed to update user", err)
	}

	profile, err := s.optionalProfile(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	pair, err := s.tokens.IssuePair(user, profile)
	if err != nil {
		return nil, NewInternalError("failed to issue tokens", err)
	}
	return &LoginResult{TokenPair: pair, User: user}, nil
}

// Refresh exchanges a refresh token for a new access token carrying current profile data.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.tokens.Parse(refreshToken, TokenTypeRefresh)
	if err != nil {
		return "", NewUnauthorizedError("token is invalid or expired")
	}
	user, err := s.repo.FindUserByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", NewUnauthorizedError("user no longer exists")
	}
	if err != nil {
		return "", NewInternalError("failed to load user", err)
	}
	profile, err := s.optionalProfile(ctx, user.ID)
	if err != nil {
		return "", err
	}
	access, err := s.tokens.IssueAccess(user, profile)
	if err != nil {
		return "", NewInternalError("failed to issue token", err)
	}
	return access, nil
}

func (s *UserService) Logout(ctx context.Context, userID uint) error {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}
	user.IsOnline = false
	if err := s.repo.SaveUser(ctx, user); err != nil {
		return NewInternalError("failed to update user", err)
	}
	return nil
}

func (s *UserService) IsStaff(ctx context.Context, userID uint) (bool, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.CanAdminister(), nil
}

func (s *UserService) findUser(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.repo.FindUserByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewNotFoundError("user not found")
	}
	if err != nil {
		return nil, NewInternalError("failed to load user", err)
	}
	return user, nil
}

func (s *UserService) optionalProfile(ctx context.Context, userID uint) (*models.Profile, error) {
	profile, err := s.repo.FindProfile(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, NewInternalError("failed to load profile", err)
	}
	return profile, nil
}

func (s *UserService) Profile(ctx context.Context, userID uint) (*models.Profile, error) {
	profile, err := s.repo.FindProfile(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewNotFoundError("profile not found")
	}
	if err != nil {
		return nil, NewInternalError("failed to load profile", err)
	}
	return profile, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uint, req ProfileUpdate) (*models.Profile, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	profile, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.FullName != nil {
		profile.FullName = req.FullName
	}
	if req.Bio != nil {
		profile.Bio = req.Bio
	}
	if err := s.repo.SaveProfile(ctx, profile); err != nil {
		return nil, NewInternalError("failed to save profile", err)
	}
	return s.Profile(ctx, userID)
}

// SelectAvatar sets the profile's current avatar; only unlocked avatars qualify.
func (s *UserService) SelectAvatar(ctx context.Context, userID, avatarID uint) (*models.Profile, error) {
	if _, err := s.repo.FindAvatar(ctx, avatarID); errors.Is(err, repository.ErrNotFound) {
		return nil, NewNotFoundError("avatar not found")
	} else if err != nil {
		return nil, NewInternalError("failed to load avatar", err)
	}

	unlocked, err := s.repo.ListUnlockedAvatars(ctx, userID)
	if err != nil {
		return nil, NewInternalError("failed to load avatars", err)
	}
	owned := false
	for _, ua := range unlocked {
		if ua.AvatarID == avatarID {
			owned = true
			break
		}
	}
	if !owned {
		return nil, NewForbiddenError("avatar is not unlocked")
	}

	profile, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile.CurrentAvatarID = &avatarID
	if err := s.repo.SaveProfile(ctx, profile); err != nil {
		return nil, NewInternalError("failed to save profile", err)
	}
	return s.Profile(ctx, userID)
}

func (s *UserService) Badges(ctx context.Context, userID uint) ([]models.UserBadge, error) {
	owned, err := s.repo.ListUserBadges(ctx, userID, time.Time{})
	if err != nil {
		return nil, NewInternalError("failed to load badges", err)
	}
	return owned, nil
}

func (s *UserService) Avatars(ctx context.Context, userID uint) ([]models.UserAvatar, error) {
	unlocked, err := s.repo.ListUnlockedAvatars(ctx, userID)
	if err != nil {
		return nil, NewInternalError("failed to load avatars", err)
	}
	return unlocked, nil
}
