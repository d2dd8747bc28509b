package share

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/anhtuan9622/flippl/internal/models"
)

// ErrNotFound is returned for unknown or revoked share tokens.
var ErrNotFound = errors.New("share link not found")

// Shared is the read-only view a share token resolves to. Email is already
// masked; callers can render it directly.
type Shared struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	ShareID   string    `json:"share_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service manages public share tokens on user profiles.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger

	baseURL string
}

// NewService creates a share service. baseURL is the public origin the
// share links are built on.
func NewService(db *gorm.DB, logger *zap.Logger, baseURL string) *Service {
	return &Service{db: db, logger: logger, baseURL: strings.TrimRight(baseURL, "/")}
}

// EnsureShareID returns the user's share link, minting the token on first
// use. Repeated calls return the same link.
func (s *Service) EnsureShareID(ctx context.Context, userID string) (shareID, link string, err error) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).First(&profile, "id = ?", userID).Error; err != nil {
		return "", "", fmt.Errorf("failed to load profile: %w", err)
	}

	if profile.ShareID == nil || *profile.ShareID == "" {
		token := strings.ReplaceAll(uuid.NewString(), "-", "")
		if err := s.db.WithContext(ctx).Model(&profile).Update("share_id", token).Error; err != nil {
			return "", "", fmt.Errorf("failed to store share token: %w", err)
		}
		profile.ShareID = &token
		s.logger.Info("Share link created", zap.String("user_id", userID))
	}

	return *profile.ShareID, s.Link(*profile.ShareID), nil
}

// Revoke clears the user's share token; the old link stops resolving.
func (s *Service) Revoke(ctx context.Context, userID string) error {
	err := s.db.WithContext(ctx).Model(&models.Profile{}).
		Where("id = ?", userID).
		Update("share_id", nil).Error
	if err != nil {
		return fmt.Errorf("failed to revoke share token: %w", err)
	}
	return nil
}

// Resolve maps a share token to its owner's read-only view.
func (s *Service) Resolve(ctx context.Context, token string) (*Shared, error) {
	if token == "" {
		return nil, ErrNotFound
	}

	var profile models.Profile
	err := s.db.WithContext(ctx).Where("share_id = ?", token).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve share token: %w", err)
	}

	return &Shared{
		UserID:    profile.ID,
		Email:     MaskEmail(profile.Email),
		ShareID:   token,
		UpdatedAt: profile.UpdatedAt,
	}, nil
}

// Link builds the public URL for a share token.
func (s *Service) Link(token string) string {
	return s.baseURL + "/share/" + token
}

// MaskEmail hides all but the first three characters of the local part.
// Short local parts are left as-is; inputs without an @ pass through.
func MaskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return email
	}
	local, domain := email[:at], email[at+1:]
	if len(local) > 3 {
		local = local[:3] + strings.Repeat("*", len(local)-3)
	}
	return local + "@" + domain
}
