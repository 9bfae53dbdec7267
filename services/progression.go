package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"slangmaster/models"
	"slangmaster/repository"

	"go.uber.org/zap"
)

type GameResultRequest struct {
	Score          int64           `json:"score" validate:"gte=0"`
	XPEarned       int64           `json:"xp_earned" validate:"gte=0,lte=100000"`
	CorrectAnswers int64           `json:"correct_answers" validate:"gte=0,ltefield=TotalQuestions"`
	TotalQuestions int64           `json:"total_questions" validate:"gte=0"`
	SeenWordIDs    []uint          `json:"seen_word_ids"`
	CorrectWordIDs []uint          `json:"correct_word_ids"`
	WordType       models.WordType `json:"word_type"`
	GameMode       string          `json:"game_mode" validate:"max=50"`
	TimeSpent      int64           `json:"time_spent" validate:"gte=0"`
	IdempotencyKey string          `json:"idempotency_key" validate:"max=100"`
}

type BadgeSummary struct {
	ID          uint                 `json:"id"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Category    models.BadgeCategory `json:"category"`
	ImageURL    string               `json:"image_url"`
}

func summarizeBadges(badges []models.Badge) []BadgeSummary {
	out := make([]BadgeSummary, 0, len(badges))
	for _, b := range badges {
		out = append(out, BadgeSummary{
			ID:          b.ID,
			Title:       b.Title,
			Description: b.Description,
			Category:    b.Category,
			ImageURL:    b.ImageURL,
		})
	}
	return out
}

// CategoryBreakdown counts the words of one type touched by a single game.
type CategoryBreakdown struct {
	Seen    int `json:"seen"`
	Correct int `json:"correct"`
}

type GameResultResponse struct {
	Message        string                                `json:"message"`
	NewXP          int64                                 `json:"new_xp"`
	NewLevel       int                                   `json:"new_level"`
	XPProgress     float64                               `json:"xp_progress"`
	CurrentStreak  int64                                 `json:"current_streak"`
	LongestStreak  int64                                 `json:"longest_streak"`
	BadgesUnlocked []BadgeSummary                        `json:"badges_unlocked"`
	WordBreakdown  map[models.WordType]CategoryBreakdown `json:"word_breakdown"`
	Replayed       bool                                  `json:"replayed,omitempty"`
}

// StatsView is UserStats plus every derived figure the clients display.
type StatsView struct {
	models.UserStats
	Level                  int            `json:"level"`
	XPProgress             float64        `json:"xp_progress"`
	XPForCurrentLevelStart int64          `json:"xp_for_current_level_start"`
	XPForNextLevel         int64          `json:"xp_for_next_level"`
	AccuracyPercentage     float64        `json:"accuracy_percentage"`
	SlangAccuracy          float64        `json:"slang_accuracy"`
	PhrasalVerbAccuracy    float64        `json:"phrasal_verb_accuracy"`
	UniqueWordsUnlocked    int64          `json:"unique_words_unlocked"`
	AvatarsUnlockedCount   int64          `json:"avatars_unlocked_count"`
	NewlyUnlockedBadges    []BadgeSummary `json:"newly_unlocked_badges_on_get,omitempty"`
}

type ProgressionService struct {
	repo   repository.Repository
	badges *BadgeService
	guard  SubmissionGuard
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
}

func NewProgressionService(repo repository.Repository, badges *BadgeService, guard SubmissionGuard, loc *time.Location, logger *zap.Logger) *ProgressionService {
	if loc == nil {
		loc = time.UTC
	}
	return &ProgressionService{
		repo:   repo,
		badges: badges,
		guard:  guard,
		loc:    loc,
		logger: logger,
		now:    time.Now,
	}
}

// SubmitGameResult records a finished game: history row, counters, unlocked
// words and streak under the stats row lock, then badge evaluation. With an
// idempotency key, a retried submission returns the stored response instead
// of counting twice.
func (s *ProgressionService) SubmitGameResult(ctx context.Context, userID uint, req GameResultRequest) (*GameResultResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	wordType := req.WordType.OrNone()
	if !wordType.Valid() {
		return nil, NewFieldValidationError("invalid request", map[string]string{
			"word_type": "must be one of: SLANG PHRASAL_VERB IDIOM VOCABULARY NONE",
		})
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if key != "" {
		if resp, ok := s.recall(ctx, userID, key); ok {
			gameSubmissions.WithLabelValues("replayed").Inc()
			return resp, nil
		}
	}

	now := s.now()
	var breakdown map[models.WordType]CategoryBreakdown
	err := s.repo.Transaction(ctx, func(tx repository.Repository) error {
		stats, err := tx.LockStats(ctx, userID)
		if err != nil {
			return fmt.Errorf("lock stats: %w", err)
		}

		entry := &models.GameHistory{
			UserID:               userID,
			PlayedAt:             now,
			Score:                req.Score,
			CorrectInGame:        req.CorrectAnswers,
			TotalQuestionsInGame: req.TotalQuestions,
			XPEarned:             req.XPEarned,
			WordType:             wordType,
			GameMode:             req.GameMode,
			TimeSpentSeconds:     req.TimeSpent,
		}
		if key != "" {
			entry.SubmissionKey = &key
		}
		if err := tx.CreateGameHistory(ctx, entry); err != nil {
			return err
		}

		stats.AddExperience(req.XPEarned)
		stats.RecordAnswers(wordType, req.CorrectAnswers, req.TotalQuestions)

		touched := append(append([]uint{}, req.SeenWordIDs...), req.CorrectWordIDs...)
		words, err := tx.FindWordsByIDs(ctx, touched)
		if err != nil {
			return fmt.Errorf("load words: %w", err)
		}
		seenIDs, correctIDs := splitKnownWords(words, req.CorrectWordIDs)
		breakdown = wordBreakdown(words, correctIDs)

		if err := tx.UnlockWords(ctx, userID, seenIDs, false, now); err != nil {
			return fmt.Errorf("unlock words: %w", err)
		}
		if err := tx.UnlockWords(ctx, userID, correctIDs, true, now); err != nil {
			return fmt.Errorf("mark learned words: %w", err)
		}
		counts, err := tx.WordCounts(ctx, userID)
		if err != nil {
			return fmt.Errorf("count words: %w", err)
		}
		stats.ApplyWordCounts(counts)
		stats.RecordStreak(now.In(s.loc))

		return tx.SaveStats(ctx, stats)
	})
	if errors.Is(err, repository.ErrDuplicateSubmission) {
		gameSubmissions.WithLabelValues("duplicate").Inc()
		return nil, NewConflictError("this game result was already submitted", "DUPLICATE_SUBMISSION")
	}
	if err != nil {
		gameSubmissions.WithLabelValues("failed").Inc()
		s.logger.Error("game submission failed", zap.Uint("user_id", userID), zap.Error(err))
		return nil, NewInternalError("failed to record game result", err)
	}

	// The game is committed at this point; badge problems are logged only.
	unlocked, err := s.badges.CheckAndUnlockBadges(ctx, userID)
	if err != nil {
		s.logger.Error("badge evaluation after submission failed", zap.Uint("user_id", userID), zap.Error(err))
	}

	stats, err := s.repo.FindStats(ctx, userID)
	if err != nil {
		return nil, NewInternalError("failed to reload stats", err)
	}

	resp := &GameResultResponse{
		Message:        "Game results submitted successfully",
		NewXP:          stats.Experience,
		NewLevel:       stats.Level(),
		XPProgress:     stats.XPProgressInCurrentLevel(),
		CurrentStreak:  stats.CurrentStreak,
		LongestStreak:  stats.LongestStreak,
		BadgesUnlocked: summarizeBadges(unlocked),
		WordBreakdown:  breakdown,
	}
	if key != "" {
		s.remember(ctx, userID, key, resp)
	}
	gameSubmissions.WithLabelValues("recorded").Inc()
	s.logger.Info("game result recorded",
		zap.Uint("user_id", userID),
		zap.Int64("xp_earned", req.XPEarned),
		zap.Int64("experience", stats.Experience),
		zap.Int("badges_unlocked", len(unlocked)),
	)
	return resp, nil
}

func (s *ProgressionService) recall(ctx context.Context, userID uint, key string) (*GameResultResponse, bool) {
	cached, ok, err := s.guard.Recall(ctx, userID, key)
	if err != nil {
		s.logger.Warn("idempotency lookup failed", zap.Uint("user_id", userID), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var resp GameResultResponse
	if err := json.Unmarshal(cached, &resp); err != nil {
		s.logger.Warn("discarding unreadable idempotency entry", zap.Uint("user_id", userID), zap.Error(err))
		return nil, false
	}
	resp.Replayed = true
	return &resp, true
}

func (s *ProgressionService) remember(ctx context.Context, userID uint, key string, resp *GameResultResponse) {
	payload, err := json.Marshal(resp)
	if err == nil {
		err = s.guard.Remember(ctx, userID, key, payload)
	}
	if err != nil {
		s.logger.Warn("failed to store idempotency entry", zap.Uint("user_id", userID), zap.Error(err))
	}
}

// splitKnownWords returns the ids of all existing words and of the subset
// answered correctly.
func splitKnownWords(words []models.Word, correct []uint) (seen, correctKnown []uint) {
	known := make(map[uint]bool, len(words))
	for _, w := range words {
		known[w.ID] = true
		seen = append(seen, w.ID)
	}
	added := map[uint]bool{}
	for _, id := range correct {
		if known[id] && !added[id] {
			added[id] = true
			correctKnown = append(correctKnown, id)
		}
	}
	return seen, correctKnown
}

func wordBreakdown(words []models.Word, correctIDs []uint) map[models.WordType]CategoryBreakdown {
	correct := make(map[uint]bool, len(correctIDs))
	for _, id := range correctIDs {
		correct[id] = true
	}
	out := map[models.WordType]CategoryBreakdown{}
	for _, w := range words {
		b := out[w.WordType]
		b.Seen++
		if correct[w.ID] {
			b.Correct++
		}
		out[w.WordType] = b
	}
	return out
}

// ProcessGameAction runs badge evaluation on its own and returns the titles unlocked.
func (s *ProgressionService) ProcessGameAction(ctx context.Context, userID uint) ([]string, error) {
	unlocked, err := s.badges.CheckAndUnlockBadges(ctx, userID)
	if err != nil {
		return nil, NewInternalError("failed to evaluate badges", err)
	}
	titles := make([]string, 0, len(unlocked))
	for _, b := range unlocked {
		titles = append(titles, b.Title)
	}
	return titles, nil
}

// MyStats evaluates badges first, then returns the refreshed stats.
func (s *ProgressionService) MyStats(ctx context.Context, userID uint) (*StatsView, error) {
	unlocked, err := s.badges.CheckAndUnlockBadges(ctx, userID)
	if err != nil {
		s.logger.Error("badge evaluation on stats read failed", zap.Uint("user_id", userID), zap.Error(err))
	}
	stats, err := s.repo.FindStats(ctx, userID)
	if err != nil {
		return nil, NewInternalError("failed to load stats", err)
	}
	view, err := s.BuildStatsView(ctx, stats)
	if err != nil {
		return nil, err
	}
	if len(unlocked) > 0 {
		view.NewlyUnlockedBadges = summarizeBadges(unlocked)
	}
	return view, nil
}

func (s *ProgressionService) BuildStatsView(ctx context.Context, stats *models.UserStats) (*StatsView, error) {
	snap, err := s.badges.Snapshot(ctx, s.repo, stats)
	if err != nil {
		return nil, NewInternalError("failed to load stats", err)
	}
	return &StatsView{
		UserStats:              *stats,
		Level:                  stats.Level(),
		XPProgress:             stats.XPProgressInCurrentLevel(),
		XPForCurrentLevelStart: stats.XPForCurrentLevelStart(),
		XPForNextLevel:         stats.XPForNextLevel(),
		AccuracyPercentage:     stats.AccuracyPercentage(),
		SlangAccuracy:          stats.SlangAccuracyPercentage(),
		PhrasalVerbAccuracy:    stats.PhrasalVerbAccuracyPercentage(),
		UniqueWordsUnlocked:    snap.UnlockedWords,
		AvatarsUnlockedCount:   snap.UnlockedAvatars,
	}, nil
}

func (s *ProgressionService) History(ctx context.Context, userID uint, limit int) ([]models.GameHistory, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	entries, err := s.repo.ListGameHistory(ctx, userID, limit)
	if err != nil {
		return nil, NewInternalError("failed to load game history", err)
	}
	return entries, nil
}
