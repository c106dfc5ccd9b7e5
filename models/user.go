package models

import (
	"time"

	"gorm.io/gorm"
)

// ArenaUser is a local snapshot of user data needed for matchmaking and
// battle history. Owned solely by the arena service; populated via the
// sync worker from the profile service.
type ArenaUser struct {
	ID                string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID    string    `gorm:"uniqueIndex;not null" json:"external_user_id"` // profile service UUID
	Username          string    `gorm:"index;not null" json:"username"`
	DisplayName       string    `json:"display_name"`
	Level             int       `json:"level" gorm:"default:1"`
	ProfilePictureURL *string   `json:"profile_picture_url,omitempty"`
	Bio               *string   `json:"bio,omitempty"`
	CreatedAt         time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt         time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	LastSeen *time.Time `json:"last_seen,omitempty"`
	IsBanned bool       `json:"is_banned" gorm:"default:false"` // local arena ban

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
