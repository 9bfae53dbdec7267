package services

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"os"
	"strings"

	"slangmaster/models"
	"slangmaster/repository"
	"slangmaster/utils"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"
)

//go:embed seed/catalog.yaml
var defaultCatalog []byte

type BadgeInput struct {
	Title                string               `json:"title" validate:"required,max=100"`
	Description          string               `json:"description"`
	ImageURL             string               `json:"image_url" validate:"omitempty,max=2048"`
	Category             models.BadgeCategory `json:"category" validate:"omitempty,oneof=BASIC RARE EPIC LEGENDARY"`
	ConditionDescription string               `json:"condition_description"`
	UnlockConditionData  json.RawMessage      `json:"unlock_condition_data"`
	RewardDescription    string               `json:"reward_description"`
	RewardData           json.RawMessage      `json:"reward_data"`
}

type AvatarInput struct {
	Name                       string  `json:"name" validate:"required,max=100"`
	ImageURL                   string  `json:"image_url" validate:"omitempty,max=2048"`
	IsDefault                  bool    `json:"is_default"`
	UnlockConditionDescription *string `json:"unlock_condition_description"`
}

// CatalogService manages badge and avatar definitions.
type CatalogService struct {
	repo   repository.Repository
	images utils.ImageStore
	logger *zap.Logger
}

func NewCatalogService(repo repository.Repository, images utils.ImageStore, logger *zap.Logger) *CatalogService {
	return &CatalogService{repo: repo, images: images, logger: logger}
}

func (s *CatalogService) ListBadges(ctx context.Context) ([]models.Badge, error) {
	badges, err := s.repo.ListBadges(ctx)
	if err != nil {
		return nil, NewInternalError("failed to list badges", err)
	}
	return badges, nil
}

func (s *CatalogService) GetBadge(ctx context.Context, id uint) (*models.Badge, error) {
	badge, err := s.repo.FindBadge(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewNotFoundError("badge not found")
	}
	if err != nil {
		return nil, NewInternalError("failed to load badge", err)
	}
	return badge, nil
}

func (s *CatalogService) CreateBadge(ctx context.Context, in BadgeInput, image *multipart.FileHeader) (*models.Badge, error) {
	badge := &models.Badge{}
	if err := s.applyBadge(ctx, badge, in, image); err != nil {
		return nil, err
	}
	err := s.repo.CreateBadge(ctx, badge)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, duplicateField("badge already exists", "BADGE_EXISTS", "title", "a badge with this title already exists")
	}
	if err != nil {
		return nil, NewInternalError("failed to create badge", err)
	}
	s.logger.Info("badge created", zap.Uint("badge_id", badge.ID), zap.String("title", badge.Title))
	return badge, nil
}

func (s *CatalogService) UpdateBadge(ctx context.Context, id uint, in BadgeInput, image *multipart.FileHeader) (*models.Badge, error) {
	badge, err := s.GetBadge(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyBadge(ctx, badge, in, image); err != nil {
		return nil, err
	}
	err = s.repo.SaveBadge(ctx, badge)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, duplicateField("badge already exists", "BADGE_EXISTS", "title", "a badge with this title already exists")
	}
	if err != nil {
		return nil, NewInternalError("failed to update badge", err)
	}
	return badge, nil
}

func (s *CatalogService) DeleteBadge(ctx context.Context, id uint) error {
	err := s.repo.DeleteBadge(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return NewNotFoundError("badge not found")
	}
	if err != nil {
		return NewInternalError("failed to delete badge", err)
	}
	return nil
}

// applyBadge copies input onto the badge. Condition and reward data only
// need to be JSON; their shape is judged when badges are evaluated.
func (s *CatalogService) applyBadge(ctx context.Context, badge *models.Badge, in BadgeInput, image *multipart.FileHeader) error {
	in.Title = strings.TrimSpace(in.Title)
	if err := validateStruct(in); err != nil {
		return err
	}
	fields := map[string]string{}
	if len(in.UnlockConditionData) > 0 && !json.Valid(in.UnlockConditionData) {
		fields["unlock_condition_data"] = "must be valid JSON"
	}
	if len(in.RewardData) > 0 && !json.Valid(in.RewardData) {
		fields["reward_data"] = "must be valid JSON"
	}
	if len(fields) > 0 {
		return NewFieldValidationError("invalid badge data", fields)
	}

	badge.Title = in.Title
	badge.Description = in.Description
	badge.Category = in.Category
	if badge.Category == "" {
		badge.Category = models.BadgeCategoryBasic
	}
	badge.ConditionDescription = in.ConditionDescription
	badge.UnlockConditionData = datatypes.JSON(orJSON(in.UnlockConditionData, "[]"))
	badge.RewardDescription = in.RewardDescription
	badge.RewardData = datatypes.JSON(orJSON(in.RewardData, "{}"))
	if in.ImageURL != "" {
		badge.ImageURL = in.ImageURL
	}
	if image != nil {
		url, err := s.upload(ctx, image, "badges", badge.Title)
		if err != nil {
			return err
		}
		badge.ImageURL = url
	}
	return nil
}

func orJSON(raw json.RawMessage, fallback string) []byte {
	if len(bytes.TrimSpace(raw)) == 0 {
		return []byte(fallback)
	}
	return raw
}

func (s *CatalogService) upload(ctx context.Context, image *multipart.FileHeader, prefix, name string) (string, error) {
	if s.images == nil {
		return "", NewValidationError("image uploads are not configured", nil)
	}
	url, err := s.images.Upload(ctx, image, utils.ObjectKey(prefix, name, image.Filename))
	if err != nil {
		return "", NewInternalError("failed to upload image", err)
	}
	return url, nil
}

func (s *CatalogService) ListAvatars(ctx context.Context) ([]models.Avatar, error) {
	avatars, err := s.repo.ListAvatars(ctx)
	if err != nil {
		return nil, NewInternalError("failed to list avatars", err)
	}
	return avatars, nil
}

func (s *CatalogService) GetAvatar(ctx context.Context, id uint) (*models.Avatar, error) {
	avatar, err := s.repo.FindAvatar(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewNotFoundError("avatar not found")
	}
	if err != nil {
		return nil, NewInternalError("failed to load avatar", err)
	}
	return avatar, nil
}

func (s *CatalogService) CreateAvatar(ctx context.Context, in AvatarInput, image *multipart.FileHeader) (*models.Avatar, error) {
	avatar := &models.Avatar{}
	if err := s.applyAvatar(ctx, avatar, in, image); err != nil {
		return nil, err
	}
	err := s.repo.CreateAvatar(ctx, avatar)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, duplicateField("avatar already exists", "AVATAR_EXISTS", "name", "an avatar with this name already exists")
	}
	if err != nil {
		return nil, NewInternalError("failed to create avatar", err)
	}
	s.logger.Info("avatar created", zap.Uint("avatar_id", avatar.ID), zap.String("name", avatar.Name))
	return avatar, nil
}

func (s *CatalogService) UpdateAvatar(ctx context.Context, id uint, in AvatarInput, image *multipart.FileHeader) (*models.Avatar, error) {
	avatar, err := s.GetAvatar(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyAvatar(ctx, avatar, in, image); err != nil {
		return nil, err
	}
	err = s.repo.SaveAvatar(ctx, avatar)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, duplicateField("avatar already exists", "AVATAR_EXISTS", "name", "an avatar with this name already exists")
	}
	if err != nil {
		return nil, NewInternalError("failed to update avatar", err)
	}
	return avatar, nil
}

func (s *CatalogService) DeleteAvatar(ctx context.Context, id uint) error {
	err := s.repo.DeleteAvatar(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return NewNotFoundError("avatar not found")
	}
	if err != nil {
		return NewInternalError("failed to delete avatar", err)
	}
	return nil
}

func (s *CatalogService) applyAvatar(ctx context.Context, avatar *models.Avatar, in AvatarInput, image *multipart.FileHeader) error {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(in); err != nil {
		return err
	}
	avatar.Name = in.Name
	avatar.IsDefault = in.IsDefault
	avatar.UnlockConditionDescription = in.UnlockConditionDescription
	if in.ImageURL != "" {
		avatar.ImageURL = in.ImageURL
	}
	if image != nil {
		url, err := s.upload(ctx, image, "avatars", avatar.Name)
		if err != nil {
			return err
		}
		avatar.ImageURL = url
	}
	return nil
}

func duplicateField(message, code, field, detail string) *ServiceError {
	conflict := NewConflictError(message, code)
	conflict.Fields = map[string]string{field: detail}
	return conflict
}

type seedAvatar struct {
	Name                       string  `yaml:"name"`
	ImageURL                   string  `yaml:"image_url"`
	IsDefault                  bool    `yaml:"is_default"`
	UnlockConditionDescription *string `yaml:"unlock_condition_description"`
}

type seedBadge struct {
	Title                string               `yaml:"title"`
	Description          string               `yaml:"description"`
	ImageURL             string               `yaml:"image_url"`
	Category             models.BadgeCategory `yaml:"category"`
	ConditionDescription string               `yaml:"condition_description"`
	UnlockConditionData  any                  `yaml:"unlock_condition_data"`
	RewardDescription    string               `yaml:"reward_description"`
	RewardData           map[string]any       `yaml:"reward_data"`
	// RewardAvatar names an avatar from the same catalog; its id is written
	// into reward_data.avatar_id.
	RewardAvatar string `yaml:"reward_avatar"`
}

type seedCatalog struct {
	Avatars []seedAvatar `yaml:"avatars"`
	Badges  []seedBadge  `yaml:"badges"`
}

type SeedResult struct {
	AvatarsCreated int
	BadgesCreated  int
}

// LoadSeedCatalog reads path, or the embedded starter catalog when path is empty.
func LoadSeedCatalog(path string) ([]byte, error) {
	if path == "" {
		return defaultCatalog, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog seed: %w", err)
	}
	return data, nil
}

// Seed creates the catalog's avatars and badges that do not exist yet.
// Avatars go first so badges can reference them by name.
func (s *CatalogService) Seed(ctx context.Context, data []byte) (SeedResult, error) {
	var result SeedResult
	var catalog seedCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return result, fmt.Errorf("parse catalog seed: %w", err)
	}

	err := s.repo.Transaction(ctx, func(tx repository.Repository) error {
		avatarIDs := map[string]uint{}
		for _, sa := range catalog.Avatars {
			avatar, err := tx.FindAvatarByName(ctx, sa.Name)
			if errors.Is(err, repository.ErrNotFound) {
				avatar = &models.Avatar{
					Name:                       sa.Name,
					ImageURL:                   sa.ImageURL,
					IsDefault:                  sa.IsDefault,
					UnlockConditionDescription: sa.UnlockConditionDescription,
				}
				if err := tx.CreateAvatar(ctx, avatar); err != nil {
					return fmt.Errorf("seed avatar %q: %w", sa.Name, err)
				}
				result.AvatarsCreated++
			} else if err != nil {
				return err
			}
			avatarIDs[avatar.Name] = avatar.ID
		}

		for _, sb := range catalog.Badges {
			if _, err := tx.FindBadgeByTitle(ctx, sb.Title); err == nil {
				continue
			} else if !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			badge, err := sb.toBadge(ctx, tx, avatarIDs)
			if err != nil {
				return err
			}
			if err := tx.CreateBadge(ctx, badge); err != nil {
				return fmt.Errorf("seed badge %q: %w", sb.Title, err)
			}
			result.BadgesCreated++
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, err
	}
	s.logger.Info("catalog seeded",
		zap.Int("avatars_created", result.AvatarsCreated),
		zap.Int("badges_created", result.BadgesCreated))
	return result, nil
}

func (sb seedBadge) toBadge(ctx context.Context, tx repository.Repository, avatarIDs map[string]uint) (*models.Badge, error) {
	conditions, err := json.Marshal(sb.UnlockConditionData)
	if err != nil {
		return nil, fmt.Errorf("seed badge %q conditions: %w", sb.Title, err)
	}
	reward := map[string]any{}
	for k, v := range sb.RewardData {
		reward[k] = v
	}
	if sb.RewardAvatar != "" {
		id, ok := avatarIDs[sb.RewardAvatar]
		if !ok {
			avatar, err := tx.FindAvatarByName(ctx, sb.RewardAvatar)
			if err != nil {
				return nil, fmt.Errorf("seed badge %q reward avatar %q: %w", sb.Title, sb.RewardAvatar, err)
			}
			id = avatar.ID
		}
		reward["avatar_id"] = id
	}
	rewardJSON, err := json.Marshal(reward)
	if err != nil {
		return nil, fmt.Errorf("seed badge %q reward: %w", sb.Title, err)
	}

	category := sb.Category
	if category == "" {
		category = models.BadgeCategoryBasic
	}
	return &models.Badge{
		Title:                sb.Title,
		Description:          sb.Description,
		ImageURL:             sb.ImageURL,
		Category:             category,
		ConditionDescription: sb.ConditionDescription,
		UnlockConditionData:  datatypes.JSON(conditions),
		RewardDescription:    sb.RewardDescription,
		RewardData:           datatypes.JSON(rewardJSON),
	}, nil
}
