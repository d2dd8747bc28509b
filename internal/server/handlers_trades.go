package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anhtuan9622/flippl/internal/auth"
	"github.com/anhtuan9622/flippl/internal/journal"
)

type upsertTradeRequest struct {
	Date        string   `json:"date" binding:"required"`
	Profit      float64  `json:"profit"`
	TradesCount int      `json:"trades_count"`
	Notes       string   `json:"notes"`
	Tags        []string `json:"tags"`
}

type entryRequest struct {
	TransactionType string   `json:"transaction_type" binding:"required"`
	Symbol          string   `json:"symbol" binding:"required"`
	Quantity        float64  `json:"quantity" binding:"required"`
	Price           float64  `json:"price" binding:"required"`
	Commission      float64  `json:"commission"`
	Notes           string   `json:"notes"`
	Tags            []string `json:"tags"`
}

func (s *Server) handleListTrades(c *gin.Context) {
	userID, _ := auth.UserID(c)
	trades, err := s.journal.ListTrades(c.Request.Context(), userID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, trades)
}

func (s *Server) handleUpsertTrade(c *gin.Context) {
	userID, _ := auth.UserID(c)
	var req upsertTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "date is required")
		return
	}
	trade, err := s.journal.UpsertTrade(c.Request.Context(), userID, journal.UpsertInput{
		Date:        req.Date,
		Profit:      req.Profit,
		TradesCount: req.TradesCount,
		Notes:       req.Notes,
		Tags:        req.Tags,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, trade)
}

func (s *Server) handleDeleteTrade(c *gin.Context) {
	userID, _ := auth.UserID(c)
	if err := s.journal.DeleteTrade(c.Request.Context(), userID, c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"deleted": true})
}

func (s *Server) handleListEntries(c *gin.Context) {
	userID, _ := auth.UserID(c)
	entries, err := s.journal.ListEntries(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, entries)
}

func (s *Server) handleSaveEntries(c *gin.Context) {
	userID, _ := auth.UserID(c)
	var req struct {
		Entries []entryRequest `json:"entries" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "entries are required")
		return
	}

	trade, err := s.journal.GetTrade(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}

	inputs := make([]journal.EntryInput, len(req.Entries))
	for i, e := range req.Entries {
		inputs[i] = journal.EntryInput{
			TransactionType: e.TransactionType,
			Symbol:          e.Symbol,
			Quantity:        e.Quantity,
			Price:           e.Price,
			Commission:      e.Commission,
			Notes:           e.Notes,
			Tags:            e.Tags,
		}
	}
	saved, err := s.journal.SaveEntries(c.Request.Context(), userID, trade.Date, inputs)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, saved)
}

func (s *Server) handleDeleteEntries(c *gin.Context) {
	userID, _ := auth.UserID(c)
	if err := s.journal.DeleteEntries(c.Request.Context(), userID, c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"deleted": true})
}
