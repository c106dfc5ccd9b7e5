package models

import (
	"time"

	"gorm.io/gorm"
)

// BattleRecord is one participant's view of a finished battle. Two rows are
// written per human-vs-human battle, one per participant; battles against
// synthetic personas produce a single row for the human side.
type BattleRecord struct {
	ID             string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	BattleID       string `gorm:"index;not null" json:"battle_id"`
	ExternalUserID string `gorm:"index;not null" json:"external_user_id"`

	OpponentID   string `json:"opponent_id"`
	OpponentName string `json:"opponent_name"`
	OpponentBot  bool   `json:"opponent_bot" gorm:"default:false"`

	Topic  string `json:"topic"`
	Result string `json:"result" gorm:"type:varchar(16);check:result IN ('win','loss','draw')"`
	Reason string `json:"reason" gorm:"type:varchar(16)"` // timeout / knockout / forfeit

	FinalHP      int `json:"final_hp"`
	OpponentHP   int `json:"opponent_hp"`
	MessageCount int `json:"message_count"`
	DurationSec  int `json:"duration_sec" gorm:"default:0"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
