package services

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"slangmaster/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims is the JWT payload. The profile fields let the web client render
// the header without another request.
type Claims struct {
	UserID    uint    `json:"user_id"`
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	FullName  *string `json:"full_name"`
	Bio       *string `json:"bio"`
	Image     string  `json:"image"`
	Verified  bool    `json:"verified"`
	IsStaff   bool    `json:"is_staff"`
	TokenType string  `json:"token_type"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenService(secret string, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

func (s *TokenService) claimsFor(user *models.User, profile *models.Profile, tokenType string, ttl time.Duration) Claims {
	now := s.now()
	c := Claims{
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		IsStaff:   user.CanAdminister(),
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if profile != nil {
		c.FullName = profile.FullName
		c.Bio = profile.Bio
		c.Image = profile.Image
		c.Verified = profile.Verified
	}
	return c
}

func (s *TokenService) sign(c Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
}

func (s *TokenService) IssuePair(user *models.User, profile *models.Profile) (TokenPair, error) {
	access, err := s.sign(s.claimsFor(user, profile, TokenTypeAccess, s.accessTTL))
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := s.sign(s.claimsFor(user, profile, TokenTypeRefresh, s.refreshTTL))
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

func (s *TokenService) IssueAccess(user *models.User, profile *models.Profile) (string, error) {
	return s.sign(s.claimsFor(user, profile, TokenTypeAccess, s.accessTTL))
}

var ErrInvalidToken = errors.New("invalid or expired token")

// Parse verifies signature, expiry and token type.
func (s *TokenService) Parse(raw, wantType string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.TokenType != wantType || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
