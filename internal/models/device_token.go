package models

import (
	"time"

	"github.com/google/uuid"
)

// Platforms
const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
	PlatformWeb     = "web"
)

func IsValidPlatform(p string) bool {
	switch p {
	case PlatformIOS, PlatformAndroid, PlatformWeb:
		return true
	}
	return false
}

type DeviceToken struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Token     string    `json:"-"`
	Platform  string    `json:"platform"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// PreviousUserID is set by registration when the token changed owner.
	PreviousUserID uuid.UUID `json:"-"`
}

// Reassigned reports whether the last registration moved the token away
// from another user.
func (t DeviceToken) Reassigned() bool {
	return t.PreviousUserID != uuid.Nil && t.PreviousUserID != t.UserID
}

// RecipientToken is an active token tagged with its owner for log attribution.
type RecipientToken struct {
	TokenID uuid.UUID
	UserID  uuid.UUID
	Token   string
}

// DeviceTokenView is what owners see when listing their devices.
type DeviceTokenView struct {
	ID        uuid.UUID `json:"id"`
	Platform  string    `json:"platform"`
	CreatedAt time.Time `json:"created_at"`

	Reassigned bool `json:"-"`
}

func (t DeviceToken) View() DeviceTokenView {
	return DeviceTokenView{ID: t.ID, Platform: t.Platform, CreatedAt: t.CreatedAt, Reassigned: t.Reassigned()}
}
