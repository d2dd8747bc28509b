package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/anhtuan9622/flippl/internal/models"
	"github.com/anhtuan9622/flippl/internal/realtime"
)

var (
	// ErrInvalidCredentials covers unknown emails and wrong passwords alike,
	// so sign-in failures don't reveal which accounts exist.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrSessionExpired is returned when a refresh token is unknown,
	// revoked, or past its expiry.
	ErrSessionExpired = errors.New("session expired")
	// ErrEmailTaken is returned on sign-up or email change for an address
	// already attached to another account.
	ErrEmailTaken = errors.New("email already registered")
	// ErrTokenInvalid is returned for unknown, consumed, or expired
	// one-time action tokens.
	ErrTokenInvalid = errors.New("link is invalid or has expired")
	// ErrInvalidEmail is returned for malformed addresses.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrWeakPassword enforces the minimum password length.
	ErrWeakPassword = errors.New("password must be at least 8 characters")
)

// Mailer delivers auth-flow messages. Links embed one-time tokens.
type Mailer interface {
	SendMagicLink(ctx context.Context, email, link string) error
	SendPasswordReset(ctx context.Context, email, link string) error
	SendEmailChange(ctx context.Context, email, link string) error
}

// Publisher broadcasts session events to the user's realtime channel.
type Publisher interface {
	Publish(ctx context.Context, event realtime.Event) error
}

// Session is the credential pair handed to clients. RefreshToken is opaque
// and single-use; Refresh rotates it.
type Session struct {
	AccessToken  string    `json:"access_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	RefreshToken string    `json:"refresh_token"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
}

// Service implements account, session, and one-time-token flows.
type Service struct {
	db        *gorm.DB
	logger    *zap.Logger
	jwt       JWT
	mailer    Mailer
	publisher Publisher

	refreshTTL time.Duration
	actionTTL  time.Duration
	appBaseURL string
}

// NewService wires the auth service. mailer and publisher may be nil in
// tests; flows then skip delivery and broadcasting.
func NewService(db *gorm.DB, logger *zap.Logger, jwt JWT, mailer Mailer, publisher Publisher,
	refreshTTL, actionTTL time.Duration, appBaseURL string) *Service {
	return &Service{
		db:         db,
		logger:     logger,
		jwt:        jwt,
		mailer:     mailer,
		publisher:  publisher,
		refreshTTL: refreshTTL,
		actionTTL:  actionTTL,
		appBaseURL: strings.TrimRight(appBaseURL, "/"),
	}
}

// SignUp registers an email+password account and opens a session.
func (s *Service) SignUp(ctx context.Context, email, password string) (Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Session{}, err
	}
	if len(password) < 8 {
		return Session{}, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Session{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{Email: email, PasswordHash: string(hash)}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.User
		if err := tx.Where("email = ?", email).First(&existing).Error; err == nil {
			return ErrEmailTaken
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return tx.Create(&models.Profile{ID: user.ID, Email: email}).Error
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("failed to create account: %w", err)
	}

	return s.openSession(ctx, s.db, &user)
}

// SignIn checks an email+password pair and opens a session.
func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Session{}, ErrInvalidCredentials
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return Session{}, ErrInvalidCredentials
	}
	if user.PasswordHash == "" {
		return Session{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return Session{}, ErrInvalidCredentials
	}

	return s.openSession(ctx, s.db, &user)
}

// RequestMagicLink issues a one-time sign-in link. Unknown addresses are
// registered on the fly, making magic links double as passwordless sign-up.
func (s *Service) RequestMagicLink(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	var user models.User
	err = s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{Email: email}
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
			return tx.Create(&models.Profile{ID: user.ID, Email: email}).Error
		})
	}
	if err != nil {
		return fmt.Errorf("failed to look up account: %w", err)
	}

	raw, err := s.issueActionToken(ctx, user.ID, models.ActionMagicLink, "")
	if err != nil {
		return err
	}
	link := fmt.Sprintf("%s/auth/callback?token=%s", s.appBaseURL, raw)
	return s.deliver(ctx, email, link, models.ActionMagicLink)
}

// RedeemMagicLink consumes a magic-link token and opens a session.
func (s *Service) RedeemMagicLink(ctx context.Context, rawToken string) (Session, error) {
	token, err := s.consumeActionToken(ctx, rawToken, models.ActionMagicLink)
	if err != nil {
		return Session{}, err
	}
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", token.UserID).Error; err != nil {
		return Session{}, ErrTokenInvalid
	}
	return s.openSession(ctx, s.db, &user)
}

// RequestPasswordReset mails a reset link. Unknown addresses are ignored
// silently for the same reason sign-in errors are uniform.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil
	}

	raw, err := s.issueActionToken(ctx, user.ID, models.ActionPasswordReset, "")
	if err != nil {
		return err
	}
	link := fmt.Sprintf("%s/auth/reset?token=%s", s.appBaseURL, raw)
	return s.deliver(ctx, email, link, models.ActionPasswordReset)
}

// ConfirmPasswordReset consumes a reset token and replaces the password.
// All refresh tokens are revoked: other devices must sign in again.
func (s *Service) ConfirmPasswordReset(ctx context.Context, rawToken, newPassword string) error {
	if len(newPassword) < 8 {
		return ErrWeakPassword
	}
	token, err := s.consumeActionToken(ctx, rawToken, models.ActionPasswordReset)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("id = ?", token.UserID).
			Update("password_hash", string(hash)).Error; err != nil {
			return err
		}
		return s.revokeAllRefreshTokens(tx, token.UserID)
	})
	if err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}

	s.broadcastSignOut(ctx, token.UserID)
	return nil
}

// RequestEmailChange mails a confirmation link to the new address. The
// account keeps its current email until the link is followed.
func (s *Service) RequestEmailChange(ctx context.Context, userID, newEmail string) error {
	newEmail, err := normalizeEmail(newEmail)
	if err != nil {
		return err
	}

	var existing models.User
	if err := s.db.WithContext(ctx).Where("email = ?", newEmail).First(&existing).Error; err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check email: %w", err)
	}

	raw, err := s.issueActionToken(ctx, userID, models.ActionEmailChange, newEmail)
	if err != nil {
		return err
	}
	link := fmt.Sprintf("%s/auth/email-change?token=%s", s.appBaseURL, raw)
	return s.deliver(ctx, newEmail, link, models.ActionEmailChange)
}

// ConfirmEmailChange consumes an email-change token and applies the
// pending address to the user and profile.
func (s *Service) ConfirmEmailChange(ctx context.Context, rawToken string) error {
	token, err := s.consumeActionToken(ctx, rawToken, models.ActionEmailChange)
	if err != nil {
		return err
	}
	if token.PendingEmail == "" {
		return ErrTokenInvalid
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("id = ?", token.UserID).
			Update("email", token.PendingEmail).Error; err != nil {
			return err
		}
		return tx.Model(&models.Profile{}).Where("id = ?", token.UserID).
			Update("email", token.PendingEmail).Error
	})
	if err != nil {
		return fmt.Errorf("failed to change email: %w", err)
	}
	return nil
}

// Refresh rotates a refresh token and issues a new access token.
func (s *Service) Refresh(ctx context.Context, rawRefresh string) (Session, error) {
	now := time.Now().UTC()
	hash := hashToken(rawRefresh)

	var stored models.RefreshToken
	err := s.db.WithContext(ctx).Where("token_hash = ?", hash).First(&stored).Error
	if err != nil || stored.RevokedAt != nil || now.After(stored.ExpiresAt) {
		return Session{}, ErrSessionExpired
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", stored.UserID).Error; err != nil {
		return Session{}, ErrSessionExpired
	}

	// Rotate atomically: the old token dies only if the new one is stored.
	var session Session
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL", stored.ID).
			Update("revoked_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race with a concurrent refresh.
			return ErrSessionExpired
		}
		session, err = s.openSession(ctx, tx, &user)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	return session, nil
}

// SignOut revokes the presented refresh token and broadcasts a signed_out
// event so other tabs and devices drop their local session.
func (s *Service) SignOut(ctx context.Context, userID, rawRefresh string) error {
	now := time.Now().UTC()
	if rawRefresh != "" {
		err := s.db.WithContext(ctx).Model(&models.RefreshToken{}).
			Where("user_id = ? AND token_hash = ?", userID, hashToken(rawRefresh)).
			Update("revoked_at", now).Error
		if err != nil {
			return fmt.Errorf("failed to revoke refresh token: %w", err)
		}
	}

	s.broadcastSignOut(ctx, userID)
	return nil
}

// PurgeExpiredTokens removes dead refresh and action tokens. Run from the
// maintenance scheduler.
func (s *Service) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	res := s.db.WithContext(ctx).
		Where("expires_at < ? OR revoked_at IS NOT NULL", now).
		Delete(&models.RefreshToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge refresh tokens: %w", res.Error)
	}
	total += res.RowsAffected

	res = s.db.WithContext(ctx).
		Where("expires_at < ? OR consumed_at IS NOT NULL", now).
		Delete(&models.ActionToken{})
	if res.Error != nil {
		return total, fmt.Errorf("failed to purge action tokens: %w", res.Error)
	}
	total += res.RowsAffected
	return total, nil
}

// openSession signs an access token and stores a fresh refresh token on db,
// which is either the service handle or an enclosing transaction.
func (s *Service) openSession(ctx context.Context, db *gorm.DB, user *models.User) (Session, error) {
	access, expiresAt, err := s.jwt.Sign(user.ID, user.Email)
	if err != nil {
		return Session{}, fmt.Errorf("failed to sign access token: %w", err)
	}

	raw, err := randomToken()
	if err != nil {
		return Session{}, err
	}
	stored := models.RefreshToken{
		UserID:    user.ID,
		TokenHash: hashToken(raw),
		ExpiresAt: time.Now().UTC().Add(s.refreshTTL),
	}
	if err := db.WithContext(ctx).Create(&stored).Error; err != nil {
		return Session{}, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return Session{
		AccessToken:  access,
		ExpiresAt:    expiresAt,
		RefreshToken: raw,
		UserID:       user.ID,
		Email:        user.Email,
	}, nil
}

func (s *Service) issueActionToken(ctx context.Context, userID, purpose, pendingEmail string) (string, error) {
	raw, err := randomToken()
	if err != nil {
		return "", err
	}
	token := models.ActionToken{
		UserID:       userID,
		TokenHash:    hashToken(raw),
		Purpose:      purpose,
		PendingEmail: pendingEmail,
		ExpiresAt:    time.Now().UTC().Add(s.actionTTL),
	}
	if err := s.db.WithContext(ctx).Create(&token).Error; err != nil {
		return "", fmt.Errorf("failed to store %s token: %w", purpose, err)
	}
	return raw, nil
}

func (s *Service) consumeActionToken(ctx context.Context, rawToken, purpose string) (*models.ActionToken, error) {
	now := time.Now().UTC()

	var token models.ActionToken
	err := s.db.WithContext(ctx).
		Where("token_hash = ? AND purpose = ?", hashToken(rawToken), purpose).
		First(&token).Error
	if err != nil || token.ConsumedAt != nil || now.After(token.ExpiresAt) {
		return nil, ErrTokenInvalid
	}

	res := s.db.WithContext(ctx).Model(&models.ActionToken{}).
		Where("id = ? AND consumed_at IS NULL", token.ID).
		Update("consumed_at", now)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to consume token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Lost the race with a concurrent redeem.
		return nil, ErrTokenInvalid
	}
	return &token, nil
}

func (s *Service) revokeAllRefreshTokens(tx *gorm.DB, userID string) error {
	return tx.Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", time.Now().UTC()).Error
}

func (s *Service) deliver(ctx context.Context, email, link, purpose string) error {
	if s.mailer == nil {
		s.logger.Info("Mailer not configured, logging auth link",
			zap.String("purpose", purpose), zap.String("email", email), zap.String("link", link))
		return nil
	}
	switch purpose {
	case models.ActionPasswordReset:
		return s.mailer.SendPasswordReset(ctx, email, link)
	case models.ActionEmailChange:
		return s.mailer.SendEmailChange(ctx, email, link)
	default:
		return s.mailer.SendMagicLink(ctx, email, link)
	}
}

func (s *Service) broadcastSignOut(ctx context.Context, userID string) {
	if s.publisher == nil {
		return
	}
	event := realtime.Event{Type: realtime.EventSignedOut, UserID: userID}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Debug("Sign-out broadcast not delivered", zap.Error(err))
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
