package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DateLayout is the canonical wire format for trading dates.
const DateLayout = "2006-01-02"

// Entry modes for a trading day. A manual day carries a user-entered profit
// figure; a detailed day derives it from its buy/sell entries.
const (
	EntryModeManual   = "manual"
	EntryModeDetailed = "detailed"
)

// Trade represents one journaled trading day.
// At most one row exists per (user, date) pair; manual saves upsert on that key.
type Trade struct {
	ID          string       `gorm:"primaryKey" json:"id"`
	UserID      string       `gorm:"uniqueIndex:idx_trades_user_date;not null" json:"user_id"`
	Date        string       `gorm:"uniqueIndex:idx_trades_user_date;not null" json:"date"`
	Profit      float64      `json:"profit"`
	TradesCount int          `json:"trades_count"`
	Notes       string       `json:"notes,omitempty"`
	Tags        string       `json:"tags,omitempty"` // comma-separated
	EntryMode   string       `gorm:"default:manual" json:"entry_mode"`
	Entries     []TradeEntry `gorm:"constraint:OnDelete:CASCADE" json:"entries,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// BeforeCreate assigns a fresh ID when none was provided.
func (t *Trade) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// Day parses the record's date into a time at midnight UTC.
func (t *Trade) Day() (time.Time, error) {
	return time.Parse(DateLayout, t.Date)
}
