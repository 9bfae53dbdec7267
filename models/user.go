package models

import (
	"time"

	"github.com/google/uuid"
)

// VerificationTokenTTL is how long an email verification link stays valid.
const VerificationTokenTTL = 24 * time.Hour

// DefaultProfileImage is assigned to profiles created at registration.
const DefaultProfileImage = "avatars/default.jpg"

// User is a player or staff account. Email is the login identifier.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Username     string     `gorm:"uniqueIndex;size:150;not null" json:"username"`
	Email        string     `gorm:"uniqueIndex;size:254;not null" json:"email"`
	PasswordHash string     `gorm:"not null" json:"-"`
	IsStaff      bool       `gorm:"default:false" json:"is_staff"`
	IsSuperuser  bool       `gorm:"default:false" json:"is_superuser"`
	IsOnline     bool       `gorm:"default:false;index" json:"is_online"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	DateJoined   time.Time  `gorm:"autoCreateTime" json:"date_joined"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"-"`
}

// CanAdminister reports whether the account may use staff endpoints.
func (u *User) CanAdminister() bool {
	return u.IsStaff || u.IsSuperuser
}

type Profile struct {
	ID              uint    `gorm:"primaryKey" json:"id"`
	UserID          uint    `gorm:"uniqueIndex;not null" json:"user_id"`
	FullName        *string `gorm:"size:150" json:"full_name"`
	Bio             *string `gorm:"size:300" json:"bio"`
	Image           string  `gorm:"default:'avatars/default.jpg'" json:"image"`
	CurrentAvatarID *uint   `json:"current_avatar_id"`
	CurrentAvatar   *Avatar `gorm:"foreignKey:CurrentAvatarID;constraint:OnDelete:SET NULL" json:"current_avatar,omitempty"`
	Verified        bool    `gorm:"default:false" json:"verified"`
}

// EmailVerificationToken is the single pending verification link of a user.
type EmailVerificationToken struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Token     uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"token"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
}

func NewEmailVerificationToken(userID uint, now time.Time) *EmailVerificationToken {
	return &EmailVerificationToken{
		UserID:    userID,
		Token:     uuid.New(),
		CreatedAt: now,
		ExpiresAt: now.Add(VerificationTokenTTL),
	}
}

func (t *EmailVerificationToken) IsValid(now time.Time) bool {
	return now.Before(t.ExpiresAt)
}
