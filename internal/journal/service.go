package journal

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/anhtuan9622/flippl/internal/models"
	"github.com/anhtuan9622/flippl/internal/realtime"
	"github.com/anhtuan9622/flippl/internal/stats"
)

var (
	// ErrNotFound is returned when a trade does not exist or belongs to
	// another user.
	ErrNotFound = errors.New("trade not found")
	// ErrDetailedMode rejects a manual save on a day that still carries
	// detailed entries. The draft must be cleared before switching modes.
	ErrDetailedMode = errors.New("day has detailed entries; delete them before saving manually")
	// ErrInvalidDate is returned for dates not in yyyy-MM-dd form.
	ErrInvalidDate = errors.New("date must be in yyyy-MM-dd format")
	// ErrInvalidTradeCount is returned for negative trade counts.
	ErrInvalidTradeCount = errors.New("trade count must not be negative")
)

// Publisher fans out change notifications after successful mutations.
type Publisher interface {
	Publish(ctx context.Context, event realtime.Event) error
}

// Service owns trade-day and trade-entry records. All writes go through it;
// reads are plain queries scoped by user.
type Service struct {
	db        *gorm.DB
	logger    *zap.Logger
	publisher Publisher
}

// NewService creates a journal service. publisher may be nil, in which case
// no change events are emitted.
func NewService(db *gorm.DB, logger *zap.Logger, publisher Publisher) *Service {
	return &Service{db: db, logger: logger, publisher: publisher}
}

// ListTrades returns all of a user's trade days, date ascending.
func (s *Service) ListTrades(ctx context.Context, userID string) ([]models.Trade, error) {
	var trades []models.Trade
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date asc").
		Find(&trades).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	return trades, nil
}

// GetTrade returns one trade day with its entries.
func (s *Service) GetTrade(ctx context.Context, userID, id string) (*models.Trade, error) {
	var trade models.Trade
	err := s.db.WithContext(ctx).
		Preload("Entries").
		Where("user_id = ? AND id = ?", userID, id).
		First(&trade).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trade: %w", err)
	}
	return &trade, nil
}

// UpsertInput is a manual save of one trading day.
type UpsertInput struct {
	Date        string
	Profit      float64
	TradesCount int
	Notes       string
	Tags        []string
}

// UpsertTrade saves a manual day record, last write wins on (user, date).
// A day currently in detailed mode must have its entries deleted first.
func (s *Service) UpsertTrade(ctx context.Context, userID string, in UpsertInput) (*models.Trade, error) {
	if _, err := time.Parse(models.DateLayout, in.Date); err != nil {
		return nil, ErrInvalidDate
	}
	if in.TradesCount < 0 {
		return nil, ErrInvalidTradeCount
	}

	// The mode check, the upsert, and the read-back share one transaction
	// so a concurrent detailed save cannot slip between them.
	var saved models.Trade
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Trade
		err := tx.Where("user_id = ? AND date = ?", userID, in.Date).First(&existing).Error
		if err == nil && existing.EntryMode == models.EntryModeDetailed {
			return ErrDetailedMode
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		trade := models.Trade{
			UserID:      userID,
			Date:        in.Date,
			Profit:      in.Profit,
			TradesCount: in.TradesCount,
			Notes:       in.Notes,
			Tags:        strings.Join(in.Tags, ","),
			EntryMode:   models.EntryModeManual,
		}
		err = tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"profit", "trades_count", "notes", "tags", "entry_mode", "updated_at",
			}),
		}).Create(&trade).Error
		if err != nil {
			return err
		}

		return tx.Where("user_id = ? AND date = ?", userID, in.Date).First(&saved).Error
	})
	if err != nil {
		if errors.Is(err, ErrDetailedMode) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to upsert trade: %w", err)
	}

	s.publish(ctx, realtime.Event{Type: realtime.EventTradeChange, UserID: userID, Action: "updated"})
	return &saved, nil
}

// DeleteTrade removes a day record and its entries.
func (s *Service) DeleteTrade(ctx context.Context, userID, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND id = ?", userID, id).Delete(&models.Trade{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("trade_id = ?", id).Delete(&models.TradeEntry{}).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete trade: %w", err)
	}

	s.publish(ctx, realtime.Event{Type: realtime.EventTradeChange, UserID: userID, Action: "deleted"})
	return nil
}

// EntryInput is one buy or sell lot in a detailed save.
type EntryInput struct {
	TransactionType string
	Symbol          string
	Quantity        float64
	Price           float64
	Commission      float64
	Notes           string
	Tags            []string
}

// SaveEntries validates a full day's lots and persists them atomically,
// replacing any previous entries for the day. The parent day's profit and
// trade count are derived from the reconciliation inside the same
// transaction, so readers never observe a stale day summary.
func (s *Service) SaveEntries(ctx context.Context, userID, date string, inputs []EntryInput) (*models.Trade, error) {
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return nil, ErrInvalidDate
	}

	lots := make([]stats.Entry, len(inputs))
	for i, in := range inputs {
		lots[i] = stats.Entry{
			TransactionType: in.TransactionType,
			Symbol:          in.Symbol,
			Quantity:        in.Quantity,
			Price:           in.Price,
			Commission:      in.Commission,
		}
	}
	rec, err := stats.Reconcile(lots)
	if err != nil {
		return nil, err
	}

	var trade models.Trade
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND date = ?", userID, date).First(&trade).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			trade = models.Trade{UserID: userID, Date: date, EntryMode: models.EntryModeDetailed}
			if err := tx.Create(&trade).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		if err := tx.Where("trade_id = ?", trade.ID).Delete(&models.TradeEntry{}).Error; err != nil {
			return err
		}

		for _, in := range inputs {
			entry := models.TradeEntry{
				TradeID:         trade.ID,
				TransactionType: in.TransactionType,
				Symbol:          in.Symbol,
				Quantity:        in.Quantity,
				Price:           in.Price,
				Commission:      in.Commission,
				TotalAmount:     round4(in.Quantity * in.Price),
				Notes:           in.Notes,
				Tags:            strings.Join(in.Tags, ","),
			}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
		}

		trade.Profit = rec.Profit
		trade.TradesCount = rec.Trades
		trade.EntryMode = models.EntryModeDetailed
		return tx.Model(&models.Trade{}).Where("id = ?", trade.ID).Updates(map[string]any{
			"profit":       rec.Profit,
			"trades_count": rec.Trades,
			"entry_mode":   models.EntryModeDetailed,
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save trade entries: %w", err)
	}

	s.publish(ctx, realtime.Event{Type: realtime.EventEntriesChange, UserID: userID, Action: "updated"})
	return &trade, nil
}

// ListEntries returns a day's lots, oldest first.
func (s *Service) ListEntries(ctx context.Context, userID, tradeID string) ([]models.TradeEntry, error) {
	if _, err := s.GetTrade(ctx, userID, tradeID); err != nil {
		return nil, err
	}
	var entries []models.TradeEntry
	err := s.db.WithContext(ctx).
		Where("trade_id = ?", tradeID).
		Order("created_at asc").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list trade entries: %w", err)
	}
	return entries, nil
}

// DeleteEntries clears a day's lots and resets it to manual mode with
// zeroed aggregates, re-enabling the mode toggle.
func (s *Service) DeleteEntries(ctx context.Context, userID, tradeID string) error {
	if _, err := s.GetTrade(ctx, userID, tradeID); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("trade_id = ?", tradeID).Delete(&models.TradeEntry{}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Trade{}).Where("id = ?", tradeID).Updates(map[string]any{
			"profit":       0,
			"trades_count": 0,
			"entry_mode":   models.EntryModeManual,
		}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete trade entries: %w", err)
	}

	s.publish(ctx, realtime.Event{Type: realtime.EventEntriesChange, UserID: userID, Action: "deleted"})
	return nil
}

// Stats aggregates a user's full journal for the given period.
func (s *Service) Stats(ctx context.Context, userID string, period stats.Period, now time.Time) (stats.Summary, error) {
	trades, err := s.ListTrades(ctx, userID)
	if err != nil {
		return stats.Summary{}, err
	}
	return stats.Calculate(Days(trades), period, now), nil
}

// MonthStats aggregates the month containing ref, for the calendar header.
func (s *Service) MonthStats(ctx context.Context, userID string, ref time.Time) (stats.Summary, error) {
	trades, err := s.ListTrades(ctx, userID)
	if err != nil {
		return stats.Summary{}, err
	}
	return stats.CalculateMonth(Days(trades), ref), nil
}

// Days converts stored records to the aggregation input. Rows with
// malformed dates are skipped; the unique index makes them impossible to
// write through this service.
func Days(trades []models.Trade) []stats.Day {
	days := make([]stats.Day, 0, len(trades))
	for _, t := range trades {
		d, err := t.Day()
		if err != nil {
			continue
		}
		days = append(days, stats.Day{Date: d, Profit: t.Profit, Trades: t.TradesCount})
	}
	return days
}

func (s *Service) publish(ctx context.Context, event realtime.Event) {
	if s.publisher == nil {
		return
	}
	// Best effort: a dropped event only delays convergence until the next
	// client re-fetch.
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Debug("Change event not delivered", zap.Error(err))
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
