package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/anhtuan9622/flippl/internal/auth"
	"github.com/anhtuan9622/flippl/internal/export"
	"github.com/anhtuan9622/flippl/internal/journal"
	"github.com/anhtuan9622/flippl/internal/stats"
)

func (s *Server) handleStats(c *gin.Context) {
	userID, _ := auth.UserID(c)
	period := stats.ParsePeriod(c.Query("period"))
	summary, err := s.journal.Stats(c.Request.Context(), userID, period, s.now())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, summary)
}

func (s *Server) handleMonthStats(c *gin.Context) {
	userID, _ := auth.UserID(c)
	ref := s.now()
	if raw := c.Query("month"); raw != "" {
		parsed, err := parseMonth(raw)
		if err != nil {
			fail(c, http.StatusBadRequest, "month must be in yyyy-MM format")
			return
		}
		ref = parsed
	}
	summary, err := s.journal.MonthStats(c.Request.Context(), userID, ref)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, summary)
}

func (s *Server) handleExport(c *gin.Context) {
	userID, _ := auth.UserID(c)
	s.writeExport(c, userID)
}

func (s *Server) writeExport(c *gin.Context, userID string) {
	period := stats.ParsePeriod(c.Query("period"))

	trades, err := s.journal.ListTrades(c.Request.Context(), userID)
	if err != nil {
		failErr(c, err)
		return
	}
	now := s.now()
	body, err := export.CSV(journal.Days(trades), period, now)
	if err != nil {
		failErr(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(now)))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(body))
}

func parseMonth(raw string) (time.Time, error) {
	return time.Parse("2006-01", raw)
}
