package services

import (
	"context"
	"errors"

	"slangmaster/models"
	"slangmaster/repository"

	"go.uber.org/zap"
)

type DashboardData struct {
	Message     string `json:"message"`
	TotalUsers  int64  `json:"total_users"`
	ActiveUsers int64  `json:"active_users"`
	TotalWords  int64  `json:"total_words"`
	TotalBadges int64  `json:"total_badges"`
}

type UserDetail struct {
	models.User
	Profile *models.Profile `json:"profile"`
}

// StatsPatch holds the counters an administrator may overwrite. Nil fields are left alone.
type StatsPatch struct {
	Experience                 *int64 `json:"experience" validate:"omitempty,gte=0"`
	WordsSeenTotal             *int64 `json:"words_seen_total" validate:"omitempty,gte=0"`
	SlangsSeen                 *int64 `json:"slangs_seen" validate:"omitempty,gte=0"`
	PhrasalVerbsSeen           *int64 `json:"phrasal_verbs_seen" validate:"omitempty,gte=0"`
	CorrectAnswersTotal        *int64 `json:"correct_answers_total" validate:"omitempty,gte=0"`
	TotalQuestionsAnswered     *int64 `json:"total_questions_answered" validate:"omitempty,gte=0"`
	CorrectSlangs              *int64 `json:"correct_slangs" validate:"omitempty,gte=0"`
	TotalSlangsQuestions       *int64 `json:"total_slangs_questions" validate:"omitempty,gte=0"`
	CorrectPhrasalVerbs        *int64 `json:"correct_phrasal_verbs" validate:"omitempty,gte=0"`
	TotalPhrasalVerbsQuestions *int64 `json:"total_phrasal_verbs_questions" validate:"omitempty,gte=0"`
	SlangsLearned              *int64 `json:"slangs_learned" validate:"omitempty,gte=0"`
	IdiomsLearned              *int64 `json:"idioms_learned" validate:"omitempty,gte=0"`
	PhrasalVerbsLearned        *int64 `json:"phrasal_verbs_learned" validate:"omitempty,gte=0"`
	VocabularyLearned          *int64 `json:"vocabulary_learned" validate:"omitempty,gte=0"`
	CurrentStreak              *int64 `json:"current_streak" validate:"omitempty,gte=0"`
	LongestStreak              *int64 `json:"longest_streak" validate:"omitempty,gte=0"`
}

func (p StatsPatch) apply(s *models.UserStats) {
	set := func(dst *int64, v *int64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&s.Experience, p.Experience)
	set(&s.WordsSeenTotal, p.WordsSeenTotal)
	set(&s.SlangsSeen, p.SlangsSeen)
	set(&s.PhrasalVerbsSeen, p.PhrasalVerbsSeen)
	set(&s.CorrectAnswersTotal, p.CorrectAnswersTotal)
	set(&s.TotalQuestionsAnswered, p.TotalQuestionsAnswered)
	set(&s.CorrectSlangs, p.CorrectSlangs)
	set(&s.TotalSlangsQuestions, p.TotalSlangsQuestions)
	set(&s.CorrectPhrasalVerbs, p.CorrectPhrasalVerbs)
	set(&s.TotalPhrasalVerbsQuestions, p.TotalPhrasalVerbsQuestions)
	set(&s.SlangsLearned, p.SlangsLearned)
	set(&s.IdiomsLearned, p.IdiomsLearned)
	set(&s.PhrasalVerbsLearned, p.PhrasalVerbsLearned)
	set(&s.VocabularyLearned, p.VocabularyLearned)
	set(&s.CurrentStreak, p.CurrentStreak)
	set(&s.LongestStreak, p.LongestStreak)
	if s.LongestStreak < s.CurrentStreak {
		s.LongestStreak = s.CurrentStreak
	}
}

type PatchedStats struct {
	*StatsView
	NewlyUnlocked []BadgeSummary `json:"newly_unlocked_badges"`
}

// AdminService backs the staff-only endpoints.
type AdminService struct {
	repo        repository.Repository
	progression *ProgressionService
	badges      *BadgeService
	logger      *zap.Logger
}

func NewAdminService(repo repository.Repository, progression *ProgressionService, badges *BadgeService, logger *zap.Logger) *AdminService {
	return &AdminService{repo: repo, progression: progression, badges: badges, logger: logger}
}

func (s *AdminService) Dashboard(ctx context.Context, admin string) (*DashboardData, error) {
	data := &DashboardData{Message: "Welcome, " + admin}
	var err error
	if data.TotalUsers, err = s.repo.CountUsers(ctx, false); err != nil {
		return nil, NewInternalError("failed to count users", err)
	}
	if data.ActiveUsers, err = s.repo.CountUsers(ctx, true); err != nil {
		return nil, NewInternalError("failed to count users", err)
	}
	if data.TotalWords, err = s.repo.CountWords(ctx); err != nil {
		return nil, NewInternalError("failed to count words", err)
	}
	if data.TotalBadges, err = s.repo.CountBadges(ctx); err != nil {
		return nil, NewInternalError("failed to count badges", err)
	}
	return data, nil
}

func (s *AdminService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, NewInternalError("failed to list users", err)
	}
	return users, nil
}

func (s *AdminService) GetUser(ctx context.Context, id uint) (*UserDetail, error) {
	user, err := s.repo.FindUserByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewNotFoundError("user not found")
	}
	if err != nil {
		return nil, NewInternalError("failed to load user", err)
	}
	detail := &UserDetail{User: *user}
	profile, err := s.repo.FindProfile(ctx, id)
	switch {
	case err == nil:
		detail.Profile = profile
	case !errors.Is(err, repository.ErrNotFound):
		return nil, NewInternalError("failed to load profile", err)
	}
	return detail, nil
}

func (s *AdminService) ListStats(ctx context.Context) ([]StatsView, error) {
	all, err := s.repo.ListStats(ctx)
	if err != nil {
		return nil, NewInternalError("failed to list stats", err)
	}
	views := make([]StatsView, 0, len(all))
	for i := range all {
		view, err := s.progression.BuildStatsView(ctx, &all[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

func (s *AdminService) GetStats(ctx context.Context, id uint) (*StatsView, error) {
	stats, err := s.findStats(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.progression.BuildStatsView(ctx, stats)
}

func (s *AdminService) findStats(ctx context.Context, id uint) (*models.UserStats, error) {
	stats, err := s.repo.FindStatsByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewNotFoundError("stats not found")
	}
	if err != nil {
		return nil, NewInternalError("failed to load stats", err)
	}
	return stats, nil
}

// PatchStats overwrites counters under the row lock and then runs badge
// evaluation, since an edit may satisfy new conditions.
func (s *AdminService) PatchStats(ctx context.Context, id uint, patch StatsPatch) (*PatchedStats, error) {
	if err := validateStruct(patch); err != nil {
		return nil, err
	}
	existing, err := s.findStats(ctx, id)
	if err != nil {
		return nil, err
	}
	userID := existing.UserID

	err = s.repo.Transaction(ctx, func(tx repository.Repository) error {
		stats, err := tx.LockStats(ctx, userID)
		if err != nil {
			return err
		}
		patch.apply(stats)
		return tx.SaveStats(ctx, stats)
	})
	if err != nil {
		return nil, NewInternalError("failed to update stats", err)
	}
	s.logger.Info("stats patched", zap.Uint("stats_id", id), zap.Uint("user_id", userID))

	unlocked, err := s.badges.CheckAndUnlockBadges(ctx, userID)
	if err != nil {
		s.logger.Error("badge evaluation after stats patch failed", zap.Uint("user_id", userID), zap.Error(err))
	}

	stats, err := s.findStats(ctx, id)
	if err != nil {
		return nil, err
	}
	view, err := s.progression.BuildStatsView(ctx, stats)
	if err != nil {
		return nil, err
	}
	return &PatchedStats{StatsView: view, NewlyUnlocked: summarizeBadges(unlocked)}, nil
}
