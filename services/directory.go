package services

import (
	"errors"
	"log"

	"debate-arena-system/models"

	"gorm.io/gorm"
)

// Profile is the client-facing identity card carried through presence,
// matchmaking and battles.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Level       int    `json:"level"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Bio         string `json:"bio,omitempty"`
	Bot         bool   `json:"is_bot"`
}

// UserDirectory resolves profiles from the local ArenaUser mirror
// (kept fresh by the profile sync worker).
type UserDirectory struct {
	DB *gorm.DB
}

func NewUserDirectory(db *gorm.DB) *UserDirectory {
	return &UserDirectory{DB: db}
}

// Profile looks up a user by external ID. Unknown users get a minimal
// fallback profile so a fresh account can still go online before the
// sync worker has mirrored it.
func (d *UserDirectory) Profile(externalUserID string) Profile {
	var u models.ArenaUser
	if err := d.DB.First(&u, "external_user_id = ?", externalUserID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[DIRECTORY] lookup failed for %s: %v", externalUserID, err)
		}
		return Profile{ID: externalUserID, DisplayName: externalUserID, Level: 1}
	}

	name := u.DisplayName
	if name == "" {
		name = u.Username
	}
	p := Profile{
		ID:          u.ExternalUserID,
		DisplayName: name,
		Level:       u.Level,
	}
	if u.ProfilePictureURL != nil {
		p.AvatarURL = *u.ProfilePictureURL
	}
	if u.Bio != nil {
		p.Bio = *u.Bio
	}
	return p
}
