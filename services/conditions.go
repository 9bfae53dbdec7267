package services

import (
	"slangmaster/models"
)

// ConditionKind names a statistic a badge condition can compare against.
type ConditionKind string

const (
	ConditionTotalExpAchieved           ConditionKind = "total_exp_achieved"
	ConditionWordsSeenTotal             ConditionKind = "words_seen_total"
	ConditionSlangsSeen                 ConditionKind = "slangs_seen"
	ConditionPhrasalVerbsSeen           ConditionKind = "phrasal_verbs_seen"
	ConditionCorrectAnswersTotal        ConditionKind = "correct_answers_total"
	ConditionAnsweredTotalQuestions     ConditionKind = "answered_total_questions"
	ConditionCorrectSlangs              ConditionKind = "correct_slangs"
	ConditionTotalSlangsQuestions       ConditionKind = "total_slangs_questions"
	ConditionCorrectPhrasalVerbs        ConditionKind = "correct_phrasal_verbs"
	ConditionTotalPhrasalVerbsQuestions ConditionKind = "total_phrasal_verbs_questions"
	ConditionSlangsLearned              ConditionKind = "slangs_learned"
	ConditionIdiomsLearned              ConditionKind = "idioms_learned"
	ConditionPhrasalVerbsLearned        ConditionKind = "phrasal_verbs_learned"
	ConditionVocabularyLearned          ConditionKind = "vocabulary_learned"
	ConditionCurrentStreak              ConditionKind = "current_streak"
	ConditionLongestStreak              ConditionKind = "longest_streak"

	ConditionLevelReached        ConditionKind = "level_reached"
	ConditionGeneralAccuracy     ConditionKind = "general_accuracy"
	ConditionSlangAccuracy       ConditionKind = "slang_accuracy"
	ConditionPhrasalVerbAccuracy ConditionKind = "phrasal_verb_accuracy"
	ConditionUniqueWordsUnlocked ConditionKind = "unique_words_unlocked"
	ConditionAvatarsUnlocked     ConditionKind = "avatars_unlocked"
)

// StatsSnapshot is everything a condition may read about one user.
type StatsSnapshot struct {
	Stats           models.UserStats
	UnlockedWords   int64
	UnlockedAvatars int64
}

type metricFunc func(StatsSnapshot) float64

func counter(pick func(*models.UserStats) int64) metricFunc {
	return func(s StatsSnapshot) float64 { return float64(pick(&s.Stats)) }
}

var conditionMetrics = map[ConditionKind]metricFunc{
	ConditionTotalExpAchieved:           counter(func(s *models.UserStats) int64 { return s.Experience }),
	ConditionWordsSeenTotal:             counter(func(s *models.UserStats) int64 { return s.WordsSeenTotal }),
	ConditionSlangsSeen:                 counter(func(s *models.UserStats) int64 { return s.SlangsSeen }),
	ConditionPhrasalVerbsSeen:           counter(func(s *models.UserStats) int64 { return s.PhrasalVerbsSeen }),
	ConditionCorrectAnswersTotal:        counter(func(s *models.UserStats) int64 { return s.CorrectAnswersTotal }),
	ConditionAnsweredTotalQuestions:     counter(func(s *models.UserStats) int64 { return s.TotalQuestionsAnswered }),
	ConditionCorrectSlangs:              counter(func(s *models.UserStats) int64 { return s.CorrectSlangs }),
	ConditionTotalSlangsQuestions:       counter(func(s *models.UserStats) int64 { return s.TotalSlangsQuestions }),
	ConditionCorrectPhrasalVerbs:        counter(func(s *models.UserStats) int64 { return s.CorrectPhrasalVerbs }),
	ConditionTotalPhrasalVerbsQuestions: counter(func(s *models.UserStats) int64 { return s.TotalPhrasalVerbsQuestions }),
	ConditionSlangsLearned:              counter(func(s *models.UserStats) int64 { return s.SlangsLearned }),
	ConditionIdiomsLearned:              counter(func(s *models.UserStats) int64 { return s.IdiomsLearned }),
	ConditionPhrasalVerbsLearned:        counter(func(s *models.UserStats) int64 { return s.PhrasalVerbsLearned }),
	ConditionVocabularyLearned:          counter(func(s *models.UserStats) int64 { return s.VocabularyLearned }),
	ConditionCurrentStreak:              counter(func(s *models.UserStats) int64 { return s.CurrentStreak }),
	ConditionLongestStreak:              counter(func(s *models.UserStats) int64 { return s.LongestStreak }),

	ConditionLevelReached:        func(s StatsSnapshot) float64 { return float64(s.Stats.Level()) },
	ConditionGeneralAccuracy:     func(s StatsSnapshot) float64 { return s.Stats.AccuracyPercentage() },
	ConditionSlangAccuracy:       func(s StatsSnapshot) float64 { return s.Stats.SlangAccuracyPercentage() },
	ConditionPhrasalVerbAccuracy: func(s StatsSnapshot) float64 { return s.Stats.PhrasalVerbAccuracyPercentage() },
	ConditionUniqueWordsUnlocked: func(s StatsSnapshot) float64 { return float64(s.UnlockedWords) },
	ConditionAvatarsUnlocked:     func(s StatsSnapshot) float64 { return float64(s.UnlockedAvatars) },
}

// conditionAliases maps legacy condition names onto the stat they read.
var conditionAliases = map[string]ConditionKind{
	"experience":               ConditionTotalExpAchieved,
	"total_questions_answered": ConditionAnsweredTotalQuestions,
	"level":                    ConditionLevelReached,
	"accuracy_percentage":      ConditionGeneralAccuracy,
	"avatars_unlocked_count":   ConditionAvatarsUnlocked,
}

func lookupMetric(kind string) (metricFunc, bool) {
	if canonical, ok := conditionAliases[kind]; ok {
		return conditionMetrics[canonical], true
	}
	metric, ok := conditionMetrics[ConditionKind(kind)]
	return metric, ok
}

// KnownCondition reports whether kind is part of the condition vocabulary.
func KnownCondition(kind string) bool {
	_, ok := lookupMetric(kind)
	return ok
}

// ConditionMet compares the snapshot against one condition. Malformed
// conditions and unknown kinds are never met.
func ConditionMet(cond models.Condition, snap StatsSnapshot) bool {
	if !cond.WellFormed() {
		return false
	}
	metric, ok := lookupMetric(cond.Type)
	if !ok {
		return false
	}
	return metric(snap) >= *cond.Value
}

// AllConditionsMet is the AND of every condition; an empty list is never met.
func AllConditionsMet(conds []models.Condition, snap StatsSnapshot) bool {
	if len(conds) == 0 {
		return false
	}
	for _, c := range conds {
		if !ConditionMet(c, snap) {
			return false
		}
	}
	return true
}
