package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anhtuan9622/flippl/internal/auth"
	"github.com/anhtuan9622/flippl/internal/config"
	"github.com/anhtuan9622/flippl/internal/journal"
	"github.com/anhtuan9622/flippl/internal/realtime"
	"github.com/anhtuan9622/flippl/internal/share"
)

// Server holds dependencies for the HTTP API.
type Server struct {
	logger  *zap.Logger
	jwt     auth.JWT
	auth    *auth.Service
	journal *journal.Service
	shares  *share.Service
	hub     *realtime.Hub

	// now is swappable in tests so period boundaries are deterministic.
	now func() time.Time
}

// New creates the API server.
func New(cfg *config.Config, logger *zap.Logger, jwt auth.JWT, authSvc *auth.Service,
	journalSvc *journal.Service, shareSvc *share.Service, hub *realtime.Hub) *Server {
	if strings.EqualFold(cfg.Server.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	return &Server{
		logger:  logger,
		jwt:     jwt,
		auth:    authSvc,
		journal: journalSvc,
		shares:  shareSvc,
		hub:     hub,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", func(c *gin.Context) { ok(c, gin.H{"status": "up"}) })

	api := r.Group("/api")
	{
		a := api.Group("/auth")
		{
			a.POST("/signup", s.handleSignUp)
			a.POST("/signin", s.handleSignIn)
			a.POST("/magic-link", s.handleMagicLink)
			a.GET("/callback", s.handleMagicLinkCallback)
			a.POST("/refresh", s.handleRefresh)
			a.POST("/password-reset", s.handlePasswordResetRequest)
			a.POST("/password-reset/confirm", s.handlePasswordResetConfirm)
			a.POST("/email-change/confirm", s.handleEmailChangeConfirm)
		}

		// Public read-only share surface.
		api.GET("/share/:token", s.handleSharedSummary)
		api.GET("/share/:token/export", s.handleSharedExport)
		api.GET("/share/:token/realtime", s.handleSharedRealtime)

		authed := api.Group("", auth.Middleware(s.jwt))
		{
			authed.POST("/auth/signout", s.handleSignOut)
			authed.POST("/auth/email-change", s.handleEmailChangeRequest)

			authed.GET("/trades", s.handleListTrades)
			authed.PUT("/trades", s.handleUpsertTrade)
			authed.DELETE("/trades/:id", s.handleDeleteTrade)
			authed.GET("/trades/:id/entries", s.handleListEntries)
			authed.PUT("/trades/:id/entries", s.handleSaveEntries)
			authed.DELETE("/trades/:id/entries", s.handleDeleteEntries)

			authed.GET("/stats", s.handleStats)
			authed.GET("/stats/month", s.handleMonthStats)
			authed.GET("/export", s.handleExport)

			authed.POST("/share", s.handleEnsureShare)
			authed.DELETE("/share", s.handleRevokeShare)

			authed.GET("/realtime", s.handleRealtime)
		}
	}

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("Request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}
