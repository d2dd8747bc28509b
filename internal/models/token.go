package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Purposes for one-time action tokens.
const (
	ActionMagicLink     = "magic_link"
	ActionPasswordReset = "password_reset"
	ActionEmailChange   = "email_change"
)

// RefreshToken is an opaque session-refresh credential. Only its SHA-256
// hash is stored; the raw value is handed to the client once.
type RefreshToken struct {
	ID        string     `gorm:"primaryKey"`
	UserID    string     `gorm:"index;not null"`
	TokenHash string     `gorm:"uniqueIndex;not null"`
	ExpiresAt time.Time  `gorm:"not null"`
	RevokedAt *time.Time
	CreatedAt time.Time
}

// BeforeCreate assigns a fresh ID when none was provided.
func (t *RefreshToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// ActionToken is a one-time token backing magic-link sign-in, password
// reset, and email change. PendingEmail holds the new address for
// email-change tokens until the user confirms.
type ActionToken struct {
	ID           string     `gorm:"primaryKey"`
	UserID       string     `gorm:"index;not null"`
	TokenHash    string     `gorm:"uniqueIndex;not null"`
	Purpose      string     `gorm:"not null"`
	PendingEmail string
	ExpiresAt    time.Time  `gorm:"not null"`
	ConsumedAt   *time.Time
	CreatedAt    time.Time
}

// BeforeCreate assigns a fresh ID when none was provided.
func (t *ActionToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
