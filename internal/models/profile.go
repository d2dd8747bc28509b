package models

import "time"

// Profile carries the public-facing attributes of a user. ShareID, when set,
// is the opaque token embedded in the user's read-only share link.
type Profile struct {
	ID        string    `gorm:"primaryKey" json:"id"` // same as the user ID
	Email     string    `gorm:"not null" json:"email"`
	ShareID   *string   `gorm:"uniqueIndex" json:"share_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
