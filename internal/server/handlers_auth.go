package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anhtuan9622/flippl/internal/auth"
)

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type emailRequest struct {
	Email string `json:"email" binding:"required"`
}

func (s *Server) handleSignUp(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "email and password are required")
		return
	}
	session, err := s.auth.SignUp(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, session)
}

func (s *Server) handleSignIn(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "email and password are required")
		return
	}
	session, err := s.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, session)
}

func (s *Server) handleMagicLink(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "email is required")
		return
	}
	if err := s.auth.RequestMagicLink(c.Request.Context(), req.Email); err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"sent": true})
}

func (s *Server) handleMagicLinkCallback(c *gin.Context) {
	session, err := s.auth.RedeemMagicLink(c.Request.Context(), c.Query("token"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, session)
}

func (s *Server) handleRefresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "refresh_token is required")
		return
	}
	session, err := s.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, session)
}

func (s *Server) handleSignOut(c *gin.Context) {
	userID, _ := auth.UserID(c)
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = c.ShouldBindJSON(&req) // body optional: header session alone is enough

	if err := s.auth.SignOut(c.Request.Context(), userID, req.RefreshToken); err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"signed_out": true})
}

func (s *Server) handlePasswordResetRequest(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "email is required")
		return
	}
	if err := s.auth.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		failErr(c, err)
		return
	}
	// Uniform response regardless of whether the address exists.
	ok(c, gin.H{"sent": true})
}

func (s *Server) handlePasswordResetConfirm(c *gin.Context) {
	var req struct {
		Token    string `json:"token" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "token and password are required")
		return
	}
	if err := s.auth.ConfirmPasswordReset(c.Request.Context(), req.Token, req.Password); err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"reset": true})
}

func (s *Server) handleEmailChangeRequest(c *gin.Context) {
	userID, _ := auth.UserID(c)
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "email is required")
		return
	}
	if err := s.auth.RequestEmailChange(c.Request.Context(), userID, req.Email); err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"sent": true})
}

func (s *Server) handleEmailChangeConfirm(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "token is required")
		return
	}
	if err := s.auth.ConfirmEmailChange(c.Request.Context(), req.Token); err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"changed": true})
}
