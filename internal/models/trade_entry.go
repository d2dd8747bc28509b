package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Transaction types for a trade entry.
const (
	TransactionBuy  = "Buy"
	TransactionSell = "Sell"
)

// TradeEntry is a single buy or sell lot contributing to a detailed
// trading day. The parent trade's profit and trade count are derived
// from its entries when it is in detailed mode.
type TradeEntry struct {
	ID              string    `gorm:"primaryKey" json:"id"`
	TradeID         string    `gorm:"index;not null" json:"trade_id"`
	TransactionType string    `gorm:"not null" json:"transaction_type"`
	Symbol          string    `gorm:"not null" json:"symbol"`
	Quantity        float64   `gorm:"not null" json:"quantity"`
	Price           float64   `gorm:"not null" json:"price"`
	Commission      float64   `json:"commission"`
	TotalAmount     float64   `json:"total_amount"` // quantity x price, rounded to 4dp
	Notes           string    `json:"notes,omitempty"`
	Tags            string    `json:"tags,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// BeforeCreate assigns a fresh ID when none was provided.
func (e *TradeEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
