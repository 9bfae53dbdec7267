package models

import (
	"time"

	"github.com/gosimple/slug"
	"gorm.io/datatypes"
)

// WordType classifies catalog entries. Only SLANG and PHRASAL_VERB carry
// their own answer counters on UserStats.
type WordType string

const (
	WordTypeSlang       WordType = "SLANG"
	WordTypePhrasalVerb WordType = "PHRASAL_VERB"
	WordTypeIdiom       WordType = "IDIOM"
	WordTypeVocabulary  WordType = "VOCABULARY"
	WordTypeNone        WordType = "NONE"
)

var WordTypes = []WordType{
	WordTypeSlang,
	WordTypePhrasalVerb,
	WordTypeIdiom,
	WordTypeVocabulary,
	WordTypeNone,
}

func (t WordType) Valid() bool {
	for _, wt := range WordTypes {
		if t == wt {
			return true
		}
	}
	return false
}

// OrNone maps the empty string to NONE.
func (t WordType) OrNone() WordType {
	if t == "" {
		return WordTypeNone
	}
	return t
}

type Word struct {
	ID              uint                        `gorm:"primaryKey" json:"id"`
	Text            string                      `gorm:"uniqueIndex;size:255;not null" json:"text"`
	Slug            string                      `gorm:"index;size:255" json:"slug"`
	Description     string                      `gorm:"type:text;not null" json:"description"`
	WordType        WordType                    `gorm:"size:20;default:'NONE';index" json:"word_type"`
	Examples        datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"examples"`
	Tags            datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"tags"`
	DifficultyLevel int                         `gorm:"default:1" json:"difficulty_level"`
	Substitutes     []*Word                     `gorm:"many2many:word_substitutes;joinForeignKey:WordID;joinReferences:SubstituteID" json:"-"`
	CreatedAt       time.Time                   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`
}

// RefreshSlug recomputes the slug from the text.
func (w *Word) RefreshSlug() {
	w.Slug = slug.Make(w.Text)
}

// SubstituteTexts lists the texts of the word's substitutes.
func (w *Word) SubstituteTexts() []string {
	out := make([]string, 0, len(w.Substitutes))
	for _, s := range w.Substitutes {
		if s != nil {
			out = append(out, s.Text)
		}
	}
	return out
}

// UserWord is one entry of a user's unlocked-word set. Learned is set once a
// word has been answered correctly and never cleared.
type UserWord struct {
	UserID    uint       `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	WordID    uint       `gorm:"primaryKey;autoIncrement:false;index" json:"word_id"`
	Learned   bool       `gorm:"default:false" json:"learned"`
	SeenAt    time.Time  `json:"seen_at"`
	LearnedAt *time.Time `json:"learned_at,omitempty"`
}

// WordTypeCount holds seen/learned totals of one word type in an unlocked set.
type WordTypeCount struct {
	Seen    int64
	Learned int64
}

// WordCounts aggregates a user's unlocked-word set by word type.
type WordCounts map[WordType]WordTypeCount

func (c WordCounts) TotalSeen() int64 {
	var total int64
	for _, v := range c {
		total += v.Seen
	}
	return total
}
