package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"slangmaster/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to Postgres, retrying with exponential backoff until the
// database answers a ping or retries run out.
func Open(ctx context.Context, dsn string, maxOpenConns int, retries uint64, logger *zap.Logger) (*gorm.DB, error) {
	var db *gorm.DB
	connect := func() error {
		conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			TranslateError: true,
			Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err != nil {
			return err
		}
		sqlDB, err := conn.DB()
		if err != nil {
			return backoff.Permanent(err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return err
		}
		if maxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(maxOpenConns)
			sqlDB.SetMaxIdleConns(maxOpenConns / 2)
		}
		db = conn
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), retries), ctx)
	err := backoff.RetryNotify(connect, policy, func(err error, wait time.Duration) {
		logger.Warn("database not ready, retrying", zap.Error(err), zap.Duration("backoff", wait))
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Avatar{},
		&models.Profile{},
		&models.EmailVerificationToken{},
		&models.Word{},
		&models.UserWord{},
		&models.UserStats{},
		&models.Badge{},
		&models.UserBadge{},
		&models.UserAvatar{},
		&models.GameHistory{},
	)
}

type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) conn(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}

func (r *GormRepository) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepository{db: tx})
	})
}

// --- users ---

func (r *GormRepository) CreateUser(ctx context.Context, user *models.User) error {
	return mapErr(r.conn(ctx).Create(user).Error)
}

func (r *GormRepository) FindUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.conn(ctx).First(&user, id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &user, nil
}

func (r *GormRepository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.conn(ctx).Where("LOWER(email) = LOWER(?)", email).First(&user).Error; err != nil {
		return nil, mapErr(err)
	}
	return &user, nil
}

func (r *GormRepository) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.conn(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, mapErr(err)
	}
	return &user, nil
}

func (r *GormRepository) SaveUser(ctx context.Context, user *models.User) error {
	return mapErr(r.conn(ctx).Save(user).Error)
}

func (r *GormRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.conn(ctx).Order("username ASC").Find(&users).Error
	return users, err
}

func (r *GormRepository) CountUsers(ctx context.Context, onlineOnly bool) (int64, error) {
	var count int64
	q := r.conn(ctx).Model(&models.User{})
	if onlineOnly {
		q = q.Where("is_online = ?", true)
	}
	err := q.Count(&count).Error
	return count, err
}

// --- profiles & verification ---

func (r *GormRepository) CreateProfile(ctx context.Context, profile *models.Profile) error {
	return mapErr(r.conn(ctx).Omit(clause.Associations).Create(profile).Error)
}

func (r *GormRepository) FindProfile(ctx context.Context, userID uint) (*models.Profile, error) {
	var profile models.Profile
	if err := r.conn(ctx).Preload("CurrentAvatar").Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, mapErr(err)
	}
	return &profile, nil
}

func (r *GormRepository) SaveProfile(ctx context.Context, profile *models.Profile) error {
	return mapErr(r.conn(ctx).Omit(clause.Associations).Save(profile).Error)
}

func (r *GormRepository) SaveVerificationToken(ctx context.Context, token *models.EmailVerificationToken) error {
	return mapErr(r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"token", "created_at", "expires_at"}),
	}).Create(token).Error)
}

func (r *GormRepository) FindVerificationToken(ctx context.Context, token uuid.UUID) (*models.EmailVerificationToken, error) {
	var t models.EmailVerificationToken
	if err := r.conn(ctx).Where("token = ?", token).First(&t).Error; err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

func (r *GormRepository) DeleteVerificationToken(ctx context.Context, id uint) error {
	return r.conn(ctx).Delete(&models.EmailVerificationToken{}, id).Error
}

func (r *GormRepository) DeleteExpiredVerificationTokens(ctx context.Context, now time.Time) (int64, error) {
	res := r.conn(ctx).Where("expires_at <= ?", now).Delete(&models.EmailVerificationToken{})
	return res.RowsAffected, res.Error
}

// --- stats ---

func (r *GormRepository) findStats(ctx context.Context, userID uint, lock bool) (*models.UserStats, error) {
	query := func() *gorm.DB {
		q := r.conn(ctx)
		if lock {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		return q.Where("user_id = ?", userID)
	}

	var stats models.UserStats
	err := query().First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Concurrent creators race on the unique user_id; the loser does nothing.
		seed := models.UserStats{UserID: userID}
		if err := r.conn(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(&seed).Error; err != nil {
			return nil, fmt.Errorf("create stats for user %d: %w", userID, err)
		}
		err = query().First(&stats).Error
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return &stats, nil
}

func (r *GormRepository) FindStats(ctx context.Context, userID uint) (*models.UserStats, error) {
	return r.findStats(ctx, userID, false)
}

func (r *GormRepository) LockStats(ctx context.Context, userID uint) (*models.UserStats, error) {
	return r.findStats(ctx, userID, true)
}

func (r *GormRepository) FindStatsByID(ctx context.Context, id uint) (*models.UserStats, error) {
	var stats models.UserStats
	if err := r.conn(ctx).First(&stats, id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &stats, nil
}

func (r *GormRepository) SaveStats(ctx context.Context, stats *models.UserStats) error {
	return mapErr(r.conn(ctx).Save(stats).Error)
}

func (r *GormRepository) ListStats(ctx context.Context) ([]models.UserStats, error) {
	var all []models.UserStats
	err := r.conn(ctx).Order("user_id ASC").Find(&all).Error
	return all, err
}

func (r *GormRepository) ResetStaleStreaks(ctx context.Context, before time.Time) (int64, error) {
	res := r.conn(ctx).Model(&models.UserStats{}).
		Where("last_login_date < ? AND current_streak > 0", before).
		Update("current_streak", 0)
	return res.RowsAffected, res.Error
}

// --- ownership ---

func (r *GormRepository) OwnedBadgeIDs(ctx context.Context, userID uint) (map[uint]bool, error) {
	var ids []uint
	if err := r.conn(ctx).Model(&models.UserBadge{}).Where("user_id = ?", userID).Pluck("badge_id", &ids).Error; err != nil {
		return nil, err
	}
	owned := make(map[uint]bool, len(ids))
	for _, id := range ids {
		owned[id] = true
	}
	return owned, nil
}

func (r *GormRepository) GrantBadge(ctx context.Context, userID, badgeID uint) (bool, error) {
	row := models.UserBadge{UserID: userID, BadgeID: badgeID}
	res := r.conn(ctx).Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "badge_id"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormRepository) ListUserBadges(ctx context.Context, userID uint, since time.Time) ([]models.UserBadge, error) {
	var owned []models.UserBadge
	q := r.conn(ctx).Preload("Badge").Where("user_id = ?", userID)
	if !since.IsZero() {
		q = q.Where("awarded_at > ?", since)
	}
	err := q.Order("awarded_at ASC, id ASC").Find(&owned).Error
	return owned, err
}

func (r *GormRepository) UnlockAvatar(ctx context.Context, userID, avatarID uint) (bool, error) {
	row := models.UserAvatar{UserID: userID, AvatarID: avatarID}
	res := r.conn(ctx).Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormRepository) ListUnlockedAvatars(ctx context.Context, userID uint) ([]models.UserAvatar, error) {
	var rows []models.UserAvatar
	err := r.conn(ctx).Preload("Avatar").Where("user_id = ?", userID).Order("unlocked_at ASC, avatar_id ASC").Find(&rows).Error
	return rows, err
}

func (r *GormRepository) CountUnlockedAvatars(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.conn(ctx).Model(&models.UserAvatar{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *GormRepository) UnlockWords(ctx context.Context, userID uint, wordIDs []uint, learned bool, now time.Time) error {
	ids := uniqueIDs(wordIDs)
	if len(ids) == 0 {
		return nil
	}
	rows := make([]models.UserWord, 0, len(ids))
	for _, id := range ids {
		row := models.UserWord{UserID: userID, WordID: id, SeenAt: now, Learned: learned}
		if learned {
			learnedAt := now
			row.LearnedAt = &learnedAt
		}
		rows = append(rows, row)
	}

	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "word_id"}},
		DoNothing: true,
	}
	if learned {
		onConflict = clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "word_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"learned":    true,
				"learned_at": gorm.Expr("COALESCE(user_words.learned_at, EXCLUDED.learned_at)"),
			}),
		}
	}
	return r.conn(ctx).Clauses(onConflict).Create(&rows).Error
}

func (r *GormRepository) WordCounts(ctx context.Context, userID uint) (models.WordCounts, error) {
	var rows []struct {
		WordType models.WordType
		Seen     int64
		Learned  int64
	}
	err := r.conn(ctx).Table("user_words AS uw").
		Select("w.word_type AS word_type, COUNT(*) AS seen, SUM(CASE WHEN uw.learned THEN 1 ELSE 0 END) AS learned").
		Joins("JOIN words w ON w.id = uw.word_id").
		Where("uw.user_id = ?", userID).
		Group("w.word_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(models.WordCounts, len(rows))
	for _, row := range rows {
		counts[row.WordType] = models.WordTypeCount{Seen: row.Seen, Learned: row.Learned}
	}
	return counts, nil
}

// --- badges ---

func (r *GormRepository) ListBadges(ctx context.Context) ([]models.Badge, error) {
	var badges []models.Badge
	err := r.conn(ctx).Order("id ASC").Find(&badges).Error
	return badges, err
}

func (r *GormRepository) FindBadge(ctx context.Context, id uint) (*models.Badge, error) {
	var badge models.Badge
	if err := r.conn(ctx).First(&badge, id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &badge, nil
}

func (r *GormRepository) FindBadgeByTitle(ctx context.Context, title string) (*models.Badge, error) {
	var badge models.Badge
	if err := r.conn(ctx).Where("title = ?", title).First(&badge).Error; err != nil {
		return nil, mapErr(err)
	}
	return &badge, nil
}

func (r *GormRepository) CreateBadge(ctx context.Context, badge *models.Badge) error {
	return mapErr(r.conn(ctx).Create(badge).Error)
}

func (r *GormRepository) SaveBadge(ctx context.Context, badge *models.Badge) error {
	return mapErr(r.conn(ctx).Save(badge).Error)
}

func (r *GormRepository) DeleteBadge(ctx context.Context, id uint) error {
	res := r.conn(ctx).Delete(&models.Badge{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepository) CountBadges(ctx context.Context) (int64, error) {
	var count int64
	err := r.conn(ctx).Model(&models.Badge{}).Count(&count).Error
	return count, err
}

// --- avatars ---

func (r *GormRepository) ListAvatars(ctx context.Context) ([]models.Avatar, error) {
	var avatars []models.Avatar
	err := r.conn(ctx).Order("name ASC").Find(&avatars).Error
	return avatars, err
}

func (r *GormRepository) ListDefaultAvatars(ctx context.Context) ([]models.Avatar, error) {
	var avatars []models.Avatar
	err := r.conn(ctx).Where("is_default = ?", true).Order("id ASC").Find(&avatars).Error
	return avatars, err
}

func (r *GormRepository) FindAvatar(ctx context.Context, id uint) (*models.Avatar, error) {
	var avatar models.Avatar
	if err := r.conn(ctx).First(&avatar, id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &avatar, nil
}

func (r *GormRepository) FindAvatarByName(ctx context.Context, name string) (*models.Avatar, error) {
	var avatar models.Avatar
	if err := r.conn(ctx).Where("name = ?", name).First(&avatar).Error; err != nil {
		return nil, mapErr(err)
	}
	return &avatar, nil
}

func (r *GormRepository) CreateAvatar(ctx context.Context, avatar *models.Avatar) error {
	return mapErr(r.conn(ctx).Create(avatar).Error)
}

func (r *GormRepository) SaveAvatar(ctx context.Context, avatar *models.Avatar) error {
	return mapErr(r.conn(ctx).Save(avatar).Error)
}

func (r *GormRepository) DeleteAvatar(ctx context.Context, id uint) error {
	res := r.conn(ctx).Delete(&models.Avatar{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- words ---

func (r *GormRepository) ListWords(ctx context.Context, filter WordFilter) ([]models.Word, int64, error) {
	q := r.conn(ctx).Model(&models.Word{})
	if filter.WordType != "" {
		q = q.Where("word_type = ?", filter.WordType)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + search + "%"
		if s := slug.Make(search); s != "" {
			q = q.Where("text ILIKE ? OR description ILIKE ? OR slug LIKE ?", like, like, "%"+s+"%")
		} else {
			q = q.Where("text ILIKE ? OR description ILIKE ?", like, like)
		}
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var words []models.Word
	err := q.Preload("Substitutes").
		Order("created_at DESC, id DESC").
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&words).Error
	return words, total, err
}

func (r *GormRepository) FindWord(ctx context.Context, id uint) (*models.Word, error) {
	var word models.Word
	if err := r.conn(ctx).Preload("Substitutes").First(&word, id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &word, nil
}

func (r *GormRepository) FindWordsByIDs(ctx context.Context, ids []uint) ([]models.Word, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	var words []models.Word
	err := r.conn(ctx).Where("id IN ?", ids).Order("id ASC").Find(&words).Error
	return words, err
}

func (r *GormRepository) CreateWord(ctx context.Context, word *models.Word) error {
	return mapErr(r.conn(ctx).Omit("Substitutes.*").Create(word).Error)
}

func (r *GormRepository) SaveWord(ctx context.Context, word *models.Word) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Substitutes").Save(word).Error; err != nil {
			return mapErr(err)
		}
		if len(word.Substitutes) == 0 {
			return tx.Model(word).Association("Substitutes").Clear()
		}
		return tx.Model(word).Association("Substitutes").Replace(word.Substitutes)
	})
}

func (r *GormRepository) DeleteWord(ctx context.Context, id uint) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("word_id = ?", id).Delete(&models.UserWord{}).Error; err != nil {
			return err
		}
		res := tx.Select("Substitutes").Delete(&models.Word{ID: id})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *GormRepository) CountWords(ctx context.Context) (int64, error) {
	var count int64
	err := r.conn(ctx).Model(&models.Word{}).Count(&count).Error
	return count, err
}

func (r *GormRepository) RandomWords(ctx context.Context, wordType models.WordType, limit int, exclude []uint) ([]models.Word, error) {
	q := r.conn(ctx).Model(&models.Word{})
	if wordType != "" {
		q = q.Where("word_type = ?", wordType)
	}
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}
	var words []models.Word
	err := q.Order("RANDOM()").Limit(limit).Find(&words).Error
	return words, err
}

func (r *GormRepository) WordsWithTag(ctx context.Context, tag string, limit int, exclude []uint) ([]models.Word, error) {
	needle, err := json.Marshal([]string{tag})
	if err != nil {
		return nil, err
	}
	q := r.conn(ctx).Where("tags @> ?::jsonb", string(needle))
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}
	var words []models.Word
	err = q.Order("RANDOM()").Limit(limit).Find(&words).Error
	return words, err
}

// --- history ---

func (r *GormRepository) CreateGameHistory(ctx context.Context, entry *models.GameHistory) error {
	err := r.conn(ctx).Create(entry).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateSubmission
	}
	return err
}

func (r *GormRepository) ListGameHistory(ctx context.Context, userID uint, limit int) ([]models.GameHistory, error) {
	var entries []models.GameHistory
	err := r.conn(ctx).Where("user_id = ?", userID).Order("played_at DESC, id DESC").Limit(limit).Find(&entries).Error
	return entries, err
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
