package models

import (
	"math"
	"time"
)

// XPPerLevelStep is the k in xpRequired(L) = k * L * (L-1).
const XPPerLevelStep = 50

// UserStats is the per-user progression aggregate. Level is never stored;
// it is derived from Experience on read.
type UserStats struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"uniqueIndex;not null" json:"user_id"`

	Experience int64 `gorm:"default:0" json:"experience"`

	WordsSeenTotal   int64 `gorm:"default:0" json:"words_seen_total"`
	SlangsSeen       int64 `gorm:"default:0" json:"slangs_seen"`
	PhrasalVerbsSeen int64 `gorm:"default:0" json:"phrasal_verbs_seen"`

	CorrectAnswersTotal        int64 `gorm:"default:0" json:"correct_answers_total"`
	TotalQuestionsAnswered     int64 `gorm:"default:0" json:"total_questions_answered"`
	CorrectSlangs              int64 `gorm:"default:0" json:"correct_slangs"`
	TotalSlangsQuestions       int64 `gorm:"default:0" json:"total_slangs_questions"`
	CorrectPhrasalVerbs        int64 `gorm:"default:0" json:"correct_phrasal_verbs"`
	TotalPhrasalVerbsQuestions int64 `gorm:"default:0" json:"total_phrasal_verbs_questions"`

	SlangsLearned       int64 `gorm:"default:0" json:"slangs_learned"`
	IdiomsLearned       int64 `gorm:"default:0" json:"idioms_learned"`
	PhrasalVerbsLearned int64 `gorm:"default:0" json:"phrasal_verbs_learned"`
	VocabularyLearned   int64 `gorm:"default:0" json:"vocabulary_learned"`

	// Calendar day of the last recorded activity, stored as UTC midnight.
	LastLoginDate *time.Time `gorm:"type:date;index" json:"last_login_date"`
	CurrentStreak int64      `gorm:"default:0" json:"current_streak"`
	LongestStreak int64      `gorm:"default:0" json:"longest_streak"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// maxLevel bounds the level search; XPRequiredForLevel overflows well before it.
const maxLevel = math.MaxInt32

func xpRequired(level int64) (int64, bool) {
	if level <= 1 {
		return 0, true
	}
	if level-1 > math.MaxInt64/XPPerLevelStep/level {
		return 0, false
	}
	return XPPerLevelStep * level * (level - 1), true
}

// XPRequiredForLevel returns the cumulative experience needed to reach level,
// saturating at math.MaxInt64.
func XPRequiredForLevel(level int) int64 {
	xp, ok := xpRequired(int64(level))
	if !ok {
		return math.MaxInt64
	}
	return xp
}

// Level is the largest L >= 1 with XPRequiredForLevel(L) <= Experience.
func (s *UserStats) Level() int {
	lo, hi := int64(1), int64(maxLevel)
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		if xp, ok := xpRequired(mid); ok && xp <= s.Experience {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return int(lo)
}

func (s *UserStats) XPForCurrentLevelStart() int64 {
	return XPRequiredForLevel(s.Level())
}

func (s *UserStats) XPForNextLevel() int64 {
	return XPRequiredForLevel(s.Level() + 1)
}

// XPProgressInCurrentLevel is the percentage [0,100) of the way to the next level.
func (s *UserStats) XPProgressInCurrentLevel() float64 {
	start := s.XPForCurrentLevelStart()
	span := s.XPForNextLevel() - start
	if span <= 0 {
		return 100
	}
	return float64(s.Experience-start) / float64(span) * 100
}

func percentage(correct, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total) * 100
}

func (s *UserStats) AccuracyPercentage() float64 {
	return percentage(s.CorrectAnswersTotal, s.TotalQuestionsAnswered)
}

func (s *UserStats) SlangAccuracyPercentage() float64 {
	return percentage(s.CorrectSlangs, s.TotalSlangsQuestions)
}

func (s *UserStats) PhrasalVerbAccuracyPercentage() float64 {
	return percentage(s.CorrectPhrasalVerbs, s.TotalPhrasalVerbsQuestions)
}

// AddExperience adds xp, saturating at math.MaxInt64. Negative amounts are ignored.
func (s *UserStats) AddExperience(xp int64) {
	if xp <= 0 {
		return
	}
	if xp > math.MaxInt64-s.Experience {
		s.Experience = math.MaxInt64
		return
	}
	s.Experience += xp
}

// RecordAnswer counts a single answered question.
func (s *UserStats) RecordAnswer(category WordType, correct bool) {
	var c int64
	if correct {
		c = 1
	}
	s.RecordAnswers(category, c, 1)
}

// RecordAnswers counts total answered questions of which correct were right.
// correct is clamped to [0, total].
func (s *UserStats) RecordAnswers(category WordType, correct, total int64) {
	if total <= 0 {
		return
	}
	if correct < 0 {
		correct = 0
	}
	if correct > total {
		correct = total
	}
	s.TotalQuestionsAnswered += total
	s.CorrectAnswersTotal += correct
	switch category {
	case WordTypeSlang:
		s.TotalSlangsQuestions += total
		s.CorrectSlangs += correct
	case WordTypePhrasalVerb:
		s.TotalPhrasalVerbsQuestions += total
		s.CorrectPhrasalVerbs += correct
	}
}

// ApplyWordCounts overwrites the seen/learned counters from the unlocked-word set.
func (s *UserStats) ApplyWordCounts(counts WordCounts) {
	s.WordsSeenTotal = counts.TotalSeen()
	s.SlangsSeen = counts[WordTypeSlang].Seen
	s.PhrasalVerbsSeen = counts[WordTypePhrasalVerb].Seen
	s.SlangsLearned = counts[WordTypeSlang].Learned
	s.IdiomsLearned = counts[WordTypeIdiom].Learned
	s.PhrasalVerbsLearned = counts[WordTypePhrasalVerb].Learned
	s.VocabularyLearned = counts[WordTypeVocabulary].Learned
}

// RecordStreak registers activity on today's calendar day. It returns false
// when the day was already recorded. A gap of several days still increments;
// breaking the streak is left to the nightly reset.
func (s *UserStats) RecordStreak(today time.Time) bool {
	day := CalendarDay(today)
	if s.LastLoginDate != nil && CalendarDay(*s.LastLoginDate).Equal(day) {
		return false
	}
	s.CurrentStreak++
	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
	s.LastLoginDate = &day
	return true
}

// CalendarDay truncates t to its date in t's own location, expressed as UTC midnight.
func CalendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
