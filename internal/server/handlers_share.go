package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anhtuan9622/flippl/internal/auth"
	"github.com/anhtuan9622/flippl/internal/journal"
	"github.com/anhtuan9622/flippl/internal/stats"
)

func (s *Server) handleEnsureShare(c *gin.Context) {
	userID, _ := auth.UserID(c)
	shareID, link, err := s.shares.EnsureShareID(c.Request.Context(), userID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"share_id": shareID, "link": link})
}

func (s *Server) handleRevokeShare(c *gin.Context) {
	userID, _ := auth.UserID(c)
	if err := s.shares.Revoke(c.Request.Context(), userID); err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"revoked": true})
}

// handleSharedSummary serves a read-only view of a shared journal. The
// viewer needs no session, only the share token.
func (s *Server) handleSharedSummary(c *gin.Context) {
	shared, err := s.shares.Resolve(c.Request.Context(), c.Param("token"))
	if err != nil {
		failErr(c, err)
		return
	}

	trades, err := s.journal.ListTrades(c.Request.Context(), shared.UserID)
	if err != nil {
		failErr(c, err)
		return
	}
	period := stats.ParsePeriod(c.Query("period"))
	summary := stats.Calculate(journal.Days(trades), period, s.now())

	ok(c, gin.H{
		"email":   shared.Email,
		"trades":  trades,
		"summary": summary,
	})
}

// handleSharedExport serves the CSV download for a shared journal.
func (s *Server) handleSharedExport(c *gin.Context) {
	shared, err := s.shares.Resolve(c.Request.Context(), c.Param("token"))
	if err != nil {
		failErr(c, err)
		return
	}
	s.writeExport(c, shared.UserID)
}

func (s *Server) handleRealtime(c *gin.Context) {
	userID, _ := auth.UserID(c)
	if err := s.hub.Stream(c.Writer, c.Request, userID); err != nil {
		s.logger.Debug("realtime stream closed", zap.Error(err))
	}
}

func (s *Server) handleSharedRealtime(c *gin.Context) {
	shared, err := s.shares.Resolve(c.Request.Context(), c.Param("token"))
	if err != nil {
		failErr(c, err)
		return
	}
	if err := s.hub.Stream(c.Writer, c.Request, shared.UserID); err != nil {
		s.logger.Debug("realtime stream closed", zap.Error(err))
	}
}
