package models

import "time"

// GameHistory is one submitted game session.
type GameHistory struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	UserID               uint      `gorm:"index;uniqueIndex:idx_history_submission;not null" json:"user_id"`
	PlayedAt             time.Time `gorm:"autoCreateTime;index" json:"played_at"`
	Score                int64     `json:"score"`
	CorrectInGame        int64     `json:"correct_in_game"`
	TotalQuestionsInGame int64     `json:"total_questions_in_game"`
	XPEarned             int64     `json:"xp_earned"`
	WordType             WordType  `gorm:"size:20" json:"word_type"`
	GameMode             string    `gorm:"size:50" json:"game_mode,omitempty"`
	TimeSpentSeconds     int64     `json:"time_spent_seconds"`
	// Client supplied idempotency key, unique per user when present.
	SubmissionKey *string `gorm:"size:100;uniqueIndex:idx_history_submission" json:"-"`
}

func (GameHistory) TableName() string {
	return "game_history"
}

func (g *GameHistory) AccuracyInGame() float64 {
	return percentage(g.CorrectInGame, g.TotalQuestionsInGame)
}
