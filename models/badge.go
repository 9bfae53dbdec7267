package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// BadgeCategory is the rarity tier of a badge, ordered BASIC < RARE < EPIC < LEGENDARY.
type BadgeCategory string

const (
	BadgeCategoryBasic     BadgeCategory = "BASIC"
	BadgeCategoryRare      BadgeCategory = "RARE"
	BadgeCategoryEpic      BadgeCategory = "EPIC"
	BadgeCategoryLegendary BadgeCategory = "LEGENDARY"
)

var badgeCategoryRank = map[BadgeCategory]int{
	BadgeCategoryBasic:     1,
	BadgeCategoryRare:      2,
	BadgeCategoryEpic:      3,
	BadgeCategoryLegendary: 4,
}

// Rank returns the ordinal rarity, 0 for unknown categories.
func (c BadgeCategory) Rank() int {
	return badgeCategoryRank[c]
}

func (c BadgeCategory) Valid() bool {
	return c.Rank() > 0
}

// Badge is a catalog entry. UnlockConditionData and RewardData are stored
// verbatim so malformed admin input survives and is judged at evaluation time.
type Badge struct {
	ID                   uint           `gorm:"primaryKey" json:"id"`
	Title                string         `gorm:"uniqueIndex;size:100;not null" json:"title"`
	Description          string         `gorm:"type:text" json:"description"`
	ImageURL             string         `gorm:"type:text" json:"image_url"`
	Category             BadgeCategory  `gorm:"size:20;default:'BASIC'" json:"category"`
	ConditionDescription string         `gorm:"type:text" json:"condition_description"`
	UnlockConditionData  datatypes.JSON `gorm:"type:jsonb" json:"unlock_condition_data"`
	RewardDescription    string         `gorm:"type:text" json:"reward_description"`
	RewardData           datatypes.JSON `gorm:"type:jsonb" json:"reward_data"`
	CreatedAt            time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// Condition is one `{"type": ..., "value": ...}` entry of a badge's
// unlock list. Value is nil when missing or not a number.
type Condition struct {
	Type  string   `json:"type"`
	Value *float64 `json:"value"`
}

func (c Condition) WellFormed() bool {
	return c.Type != "" && c.Value != nil
}

// Conditions parses UnlockConditionData. ok is false when the data is
// empty, null, or not a JSON list; such badges are never auto-unlocked.
// Entries that are not objects come back as zero Conditions.
func (b *Badge) Conditions() (conds []Condition, ok bool) {
	if len(b.UnlockConditionData) == 0 {
		return nil, false
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(b.UnlockConditionData, &raw); err != nil || len(raw) == 0 {
		return nil, false
	}
	conds = make([]Condition, 0, len(raw))
	for _, item := range raw {
		var fields map[string]any
		var cond Condition
		if err := json.Unmarshal(item, &fields); err == nil {
			if t, isStr := fields["type"].(string); isStr {
				cond.Type = t
			}
			if v, isNum := fields["value"].(float64); isNum {
				cond.Value = &v
			}
		}
		conds = append(conds, cond)
	}
	return conds, true
}

// RewardSpec is the parsed form of RewardData.
type RewardSpec struct {
	Exp      *int64 `json:"exp,omitempty"`
	AvatarID *uint  `json:"avatar_id,omitempty"`
}

func (r RewardSpec) Empty() bool {
	return r.Exp == nil && r.AvatarID == nil
}

// Reward parses RewardData. Unknown keys are ignored, as are exp or
// avatar_id values that are not non-negative numbers. The second return
// lists the keys that were present but unusable.
func (b *Badge) Reward() (RewardSpec, []string) {
	var parsed RewardSpec
	if len(b.RewardData) == 0 {
		return parsed, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(b.RewardData, &fields); err != nil {
		return parsed, []string{"reward_data"}
	}
	var rejected []string
	if raw, present := fields["exp"]; present {
		if v, isNum := raw.(float64); isNum {
			exp := int64(v)
			parsed.Exp = &exp
		} else {
			rejected = append(rejected, "exp")
		}
	}
	if raw, present := fields["avatar_id"]; present {
		if v, isNum := raw.(float64); isNum && v >= 0 {
			id := uint(v)
			parsed.AvatarID = &id
		} else {
			rejected = append(rejected, "avatar_id")
		}
	}
	return parsed, rejected
}

// UserBadge is an append-only ownership row.
type UserBadge struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex:idx_user_badge;not null" json:"user_id"`
	BadgeID   uint      `gorm:"uniqueIndex:idx_user_badge;index;not null" json:"badge_id"`
	AwardedAt time.Time `gorm:"autoCreateTime;index" json:"awarded_at"`
	Badge     Badge     `gorm:"foreignKey:BadgeID;constraint:OnDelete:CASCADE" json:"badge"`
}
