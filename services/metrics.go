package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gameSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slangmaster",
		Name:      "game_submissions_total",
		Help:      "Game result submissions by outcome.",
	}, []string{"outcome"})

	badgesUnlocked = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slangmaster",
		Name:      "badges_unlocked_total",
		Help:      "Badges granted, by category.",
	}, []string{"category"})

	badgeGrantFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "slangmaster",
		Name:      "badge_grant_failures_total",
		Help:      "Per-badge grant transactions that rolled back.",
	})

	missingRewardAvatars = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "slangmaster",
		Name:      "reward_avatar_missing_total",
		Help:      "Badge rewards that referenced an avatar that does not exist.",
	})

	badgeEvaluationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "slangmaster",
		Name:      "badge_evaluation_seconds",
		Help:      "Duration of a full badge evaluation pass.",
		Buckets:   prometheus.DefBuckets,
	})

	registrations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "slangmaster",
		Name:      "registrations_total",
		Help:      "Completed account registrations.",
	})
)
