package models

import "time"

// DefaultAvatarName is preferred as the starting avatar when several
// default avatars exist.
const DefaultAvatarName = "default"

type Avatar struct {
	ID                         uint      `gorm:"primaryKey" json:"id"`
	Name                       string    `gorm:"uniqueIndex;size:100;not null" json:"name"`
	ImageURL                   string    `gorm:"type:text" json:"image_url"`
	IsDefault                  bool      `gorm:"default:false;index" json:"is_default"`
	UnlockConditionDescription *string   `gorm:"type:text" json:"unlock_condition_description"`
	CreatedAt                  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// UserAvatar is an entry of the append-only avatar unlock set.
type UserAvatar struct {
	UserID     uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	AvatarID   uint      `gorm:"primaryKey;autoIncrement:false;index" json:"avatar_id"`
	UnlockedAt time.Time `gorm:"autoCreateTime" json:"unlocked_at"`
	Avatar     Avatar    `gorm:"foreignKey:AvatarID;constraint:OnDelete:CASCADE" json:"avatar"`
}

// PickStartingAvatar returns the avatar named "default" when present,
// otherwise the first one, otherwise nil.
func PickStartingAvatar(defaults []Avatar) *Avatar {
	if len(defaults) == 0 {
		return nil
	}
	for i := range defaults {
		if defaults[i].Name == DefaultAvatarName {
			return &defaults[i]
		}
	}
	return &defaults[0]
}
