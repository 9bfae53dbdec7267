// Package repository is the persistence boundary of the service. The GORM
// implementation backs production; the in-memory one backs DB_DRIVER=memory
// and the test suites.
package repository

import (
	"context"
	"errors"
	"time"

	"slangmaster/models"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique column (email, username, title, ...) collides.
	ErrDuplicate = errors.New("duplicate record")
	// ErrDuplicateSubmission is returned when a game history row with the same
	// (user, submission key) already exists.
	ErrDuplicateSubmission = errors.New("submission already recorded")
)

// WordFilter narrows word listings. Search is matched case and accent insensitively.
type WordFilter struct {
	Search   string
	WordType models.WordType
	Offset   int
	Limit    int
}

type Repository interface {
	// Transaction runs fn atomically. Nested calls join the outer transaction.
	Transaction(ctx context.Context, fn func(tx Repository) error) error

	CreateUser(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id uint) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
	ListUsers(ctx context.Context) ([]models.User, error)
	CountUsers(ctx context.Context, onlineOnly bool) (int64, error)

	CreateProfile(ctx context.Context, profile *models.Profile) error
	FindProfile(ctx context.Context, userID uint) (*models.Profile, error)
	SaveProfile(ctx context.Context, profile *models.Profile) error

	SaveVerificationToken(ctx context.Context, token *models.EmailVerificationToken) error
	FindVerificationToken(ctx context.Context, token uuid.UUID) (*models.EmailVerificationToken, error)
	DeleteVerificationToken(ctx context.Context, id uint) error
	DeleteExpiredVerificationTokens(ctx context.Context, now time.Time) (int64, error)

	// FindStats returns the user's stats, creating an empty row if absent.
	FindStats(ctx context.Context, userID uint) (*models.UserStats, error)
	// LockStats is FindStats plus a row lock held until the transaction ends.
	LockStats(ctx context.Context, userID uint) (*models.UserStats, error)
	FindStatsByID(ctx context.Context, id uint) (*models.UserStats, error)
	SaveStats(ctx context.Context, stats *models.UserStats) error
	ListStats(ctx context.Context) ([]models.UserStats, error)
	// ResetStaleStreaks zeroes current_streak where last_login_date < before.
	ResetStaleStreaks(ctx context.Context, before time.Time) (int64, error)

	OwnedBadgeIDs(ctx context.Context, userID uint) (map[uint]bool, error)
	// GrantBadge records ownership and reports false if it already existed.
	GrantBadge(ctx context.Context, userID, badgeID uint) (bool, error)
	ListUserBadges(ctx context.Context, userID uint, since time.Time) ([]models.UserBadge, error)

	// UnlockAvatar adds to the unlock set and reports false if already present.
	UnlockAvatar(ctx context.Context, userID, avatarID uint) (bool, error)
	ListUnlockedAvatars(ctx context.Context, userID uint) ([]models.UserAvatar, error)
	CountUnlockedAvatars(ctx context.Context, userID uint) (int64, error)

	// UnlockWords adds words to the user's unlocked set; learned marks them as learned too.
	UnlockWords(ctx context.Context, userID uint, wordIDs []uint, learned bool, now time.Time) error
	WordCounts(ctx context.Context, userID uint) (models.WordCounts, error)

	ListBadges(ctx context.Context) ([]models.Badge, error)
	FindBadge(ctx context.Context, id uint) (*models.Badge, error)
	FindBadgeByTitle(ctx context.Context, title string) (*models.Badge, error)
	CreateBadge(ctx context.Context, badge *models.Badge) error
	SaveBadge(ctx context.Context, badge *models.Badge) error
	DeleteBadge(ctx context.Context, id uint) error
	CountBadges(ctx context.Context) (int64, error)

	ListAvatars(ctx context.Context) ([]models.Avatar, error)
	ListDefaultAvatars(ctx context.Context) ([]models.Avatar, error)
	FindAvatar(ctx context.Context, id uint) (*models.Avatar, error)
	FindAvatarByName(ctx context.Context, name string) (*models.Avatar, error)
	CreateAvatar(ctx context.Context, avatar *models.Avatar) error
	SaveAvatar(ctx context.Context, avatar *models.Avatar) error
	DeleteAvatar(ctx context.Context, id uint) error

	ListWords(ctx context.Context, filter WordFilter) ([]models.Word, int64, error)
	FindWord(ctx context.Context, id uint) (*models.Word, error)
	FindWordsByIDs(ctx context.Context, ids []uint) ([]models.Word, error)
	CreateWord(ctx context.Context, word *models.Word) error
	SaveWord(ctx context.Context, word *models.Word) error
	DeleteWord(ctx context.Context, id uint) error
	CountWords(ctx context.Context) (int64, error)
	// RandomWords returns up to limit random words, optionally of one type, skipping exclude.
	RandomWords(ctx context.Context, wordType models.WordType, limit int, exclude []uint) ([]models.Word, error)
	WordsWithTag(ctx context.Context, tag string, limit int, exclude []uint) ([]models.Word, error)

	CreateGameHistory(ctx context.Context, entry *models.GameHistory) error
	ListGameHistory(ctx context.Context, userID uint, limit int) ([]models.GameHistory, error)
}
