package auth

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/anhtuan9622/flippl/internal/database"
	"github.com/anhtuan9622/flippl/internal/models"
	"github.com/anhtuan9622/flippl/internal/realtime"
)

type capturedMail struct {
	purpose string
	email   string
	link    string
}

type capturingMailer struct {
	sent []capturedMail
}

func (m *capturingMailer) SendMagicLink(ctx context.Context, email, link string) error {
	m.sent = append(m.sent, capturedMail{"magic_link", email, link})
	return nil
}

func (m *capturingMailer) SendPasswordReset(ctx context.Context, email, link string) error {
	m.sent = append(m.sent, capturedMail{"password_reset", email, link})
	return nil
}

func (m *capturingMailer) SendEmailChange(ctx context.Context, email, link string) error {
	m.sent = append(m.sent, capturedMail{"email_change", email, link})
	return nil
}

type capturingBroadcaster struct {
	events []realtime.Event
}

func (b *capturingBroadcaster) Publish(ctx context.Context, event realtime.Event) error {
	b.events = append(b.events, event)
	return nil
}

func setupAuth(t *testing.T) (*Service, *capturingMailer, *capturingBroadcaster) {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	mailer := &capturingMailer{}
	broadcaster := &capturingBroadcaster{}
	j := JWT{Secret: []byte("test-secret"), TokenTTL: time.Hour}
	svc := NewService(db, zap.NewNop(), j, mailer, broadcaster,
		24*time.Hour, time.Hour, "https://flippl.example")
	return svc, mailer, broadcaster
}

// tokenFromLink pulls the one-time token out of a delivered auth link.
func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	token := u.Query().Get("token")
	require.NotEmpty(t, token)
	return token
}

func TestSignUpSignIn(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		svc, _, _ := setupAuth(t)
		ctx := context.Background()

		created, err := svc.SignUp(ctx, "Trader@Example.com", "hunter22!")
		require.NoError(t, err)
		assert.Equal(t, "trader@example.com", created.Email, "emails are normalized")
		assert.NotEmpty(t, created.AccessToken)
		assert.NotEmpty(t, created.RefreshToken)

		session, err := svc.SignIn(ctx, "trader@example.com", "hunter22!")
		require.NoError(t, err)
		assert.Equal(t, created.UserID, session.UserID)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		svc, _, _ := setupAuth(t)
		ctx := context.Background()

		_, err := svc.SignUp(ctx, "trader@example.com", "hunter22!")
		require.NoError(t, err)
		_, err = svc.SignUp(ctx, "trader@example.com", "different1")
		assert.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		svc, _, _ := setupAuth(t)
		ctx := context.Background()

		_, err := svc.SignUp(ctx, "trader@example.com", "hunter22!")
		require.NoError(t, err)
		_, err = svc.SignIn(ctx, "trader@example.com", "wrong-password")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		svc, _, _ := setupAuth(t)
		_, err := svc.SignIn(context.Background(), "nobody@example.com", "whatever1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("WeakPassword", func(t *testing.T) {
		svc, _, _ := setupAuth(t)
		_, err := svc.SignUp(context.Background(), "trader@example.com", "short")
		assert.ErrorIs(t, err, ErrWeakPassword)
	})
}

func TestMagicLink(t *testing.T) {
	t.Run("RegistersAndSignsIn", func(t *testing.T) {
		svc, mailer, _ := setupAuth(t)
		ctx := context.Background()

		require.NoError(t, svc.RequestMagicLink(ctx, "new@example.com"))
		require.Len(t, mailer.sent, 1)
		assert.Equal(t, "magic_link", mailer.sent[0].purpose)
		assert.True(t, strings.HasPrefix(mailer.sent[0].link, "https://flippl.example/auth/callback?token="))

		session, err := svc.RedeemMagicLink(ctx, tokenFromLink(t, mailer.sent[0].link))
		require.NoError(t, err)
		assert.Equal(t, "new@example.com", session.Email)
	})

	t.Run("TokenSingleUse", func(t *testing.T) {
		svc, mailer, _ := setupAuth(t)
		ctx := context.Background()

		require.NoError(t, svc.RequestMagicLink(ctx, "new@example.com"))
		token := tokenFromLink(t, mailer.sent[0].link)

		_, err := svc.RedeemMagicLink(ctx, token)
		require.NoError(t, err)
		_, err = svc.RedeemMagicLink(ctx, token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("UnknownToken", func(t *testing.T) {
		svc, _, _ := setupAuth(t)
		_, err := svc.RedeemMagicLink(context.Background(), "bogus")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})
}

func TestPasswordReset(t *testing.T) {
	svc, mailer, broadcaster := setupAuth(t)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, "trader@example.com", "original-pass1")
	require.NoError(t, err)

	require.NoError(t, svc.RequestPasswordReset(ctx, "trader@example.com"))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "password_reset", mailer.sent[0].purpose)

	token := tokenFromLink(t, mailer.sent[0].link)
	require.NoError(t, svc.ConfirmPasswordReset(ctx, token, "brand-new-pass1"))

	_, err = svc.SignIn(ctx, "trader@example.com", "original-pass1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.SignIn(ctx, "trader@example.com", "brand-new-pass1")
	assert.NoError(t, err)

	// Other sessions were torn down and told about it.
	require.NotEmpty(t, broadcaster.events)
	assert.Equal(t, realtime.EventSignedOut, broadcaster.events[len(broadcaster.events)-1].Type)
}

func TestPasswordResetUnknownEmailSilent(t *testing.T) {
	svc, mailer, _ := setupAuth(t)
	require.NoError(t, svc.RequestPasswordReset(context.Background(), "ghost@example.com"))
	assert.Empty(t, mailer.sent)
}

func TestEmailChange(t *testing.T) {
	t.Run("Confirmed", func(t *testing.T) {
		svc, mailer, _ := setupAuth(t)
		ctx := context.Background()

		session, err := svc.SignUp(ctx, "old@example.com", "hunter22!")
		require.NoError(t, err)

		require.NoError(t, svc.RequestEmailChange(ctx, session.UserID, "new@example.com"))
		require.Len(t, mailer.sent, 1)
		assert.Equal(t, "new@example.com", mailer.sent[0].email, "confirmation goes to the new address")

		require.NoError(t, svc.ConfirmEmailChange(ctx, tokenFromLink(t, mailer.sent[0].link)))

		_, err = svc.SignIn(ctx, "new@example.com", "hunter22!")
		assert.NoError(t, err)
		_, err = svc.SignIn(ctx, "old@example.com", "hunter22!")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("TakenAddress", func(t *testing.T) {
		svc, _, _ := setupAuth(t)
		ctx := context.Background()

		session, err := svc.SignUp(ctx, "a@example.com", "hunter22!")
		require.NoError(t, err)
		_, err = svc.SignUp(ctx, "b@example.com", "hunter22!")
		require.NoError(t, err)

		err = svc.RequestEmailChange(ctx, session.UserID, "b@example.com")
		assert.ErrorIs(t, err, ErrEmailTaken)
	})
}

func TestRefresh(t *testing.T) {
	t.Run("Rotates", func(t *testing.T) {
		svc, _, _ := setupAuth(t)
		ctx := context.Background()

		session, err := svc.SignUp(ctx, "trader@example.com", "hunter22!")
		require.NoError(t, err)

		next, err := svc.Refresh(ctx, session.RefreshToken)
		require.NoError(t, err)
		assert.NotEqual(t, session.RefreshToken, next.RefreshToken)

		// The old token is dead after rotation.
		_, err = svc.Refresh(ctx, session.RefreshToken)
		assert.ErrorIs(t, err, ErrSessionExpired)

		// The new one works.
		_, err = svc.Refresh(ctx, next.RefreshToken)
		assert.NoError(t, err)
	})

	t.Run("UnknownToken", func(t *testing.T) {
		svc, _, _ := setupAuth(t)
		_, err := svc.Refresh(context.Background(), "bogus")
		assert.ErrorIs(t, err, ErrSessionExpired)
	})

	t.Run("RotationLeavesOneLiveToken", func(t *testing.T) {
		svc, _, _ := setupAuth(t)
		ctx := context.Background()

		session, err := svc.SignUp(ctx, "trader@example.com", "hunter22!")
		require.NoError(t, err)

		next, err := svc.Refresh(ctx, session.RefreshToken)
		require.NoError(t, err)

		// Revocation and replacement commit together, so exactly one
		// unrevoked token exists and it is the one just handed out.
		var live []models.RefreshToken
		err = svc.db.Where("user_id = ? AND revoked_at IS NULL", session.UserID).Find(&live).Error
		require.NoError(t, err)
		require.Len(t, live, 1)
		assert.Equal(t, hashToken(next.RefreshToken), live[0].TokenHash)
	})
}

func TestSignOut(t *testing.T) {
	svc, _, broadcaster := setupAuth(t)
	ctx := context.Background()

	session, err := svc.SignUp(ctx, "trader@example.com", "hunter22!")
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(ctx, session.UserID, session.RefreshToken))

	_, err = svc.Refresh(ctx, session.RefreshToken)
	assert.ErrorIs(t, err, ErrSessionExpired)

	require.Len(t, broadcaster.events, 1)
	assert.Equal(t, realtime.EventSignedOut, broadcaster.events[0].Type)
	assert.Equal(t, session.UserID, broadcaster.events[0].UserID)
}

func TestPurgeExpiredTokens(t *testing.T) {
	svc, mailer, _ := setupAuth(t)
	ctx := context.Background()

	session, err := svc.SignUp(ctx, "trader@example.com", "hunter22!")
	require.NoError(t, err)
	require.NoError(t, svc.RequestPasswordReset(ctx, "trader@example.com"))
	require.Len(t, mailer.sent, 1)

	// Nothing is stale yet.
	purged, err := svc.PurgeExpiredTokens(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(0), purged)

	// Far enough in the future, both the refresh and action tokens expire.
	purged, err = svc.PurgeExpiredTokens(ctx, time.Now().UTC().Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), purged)

	_, err = svc.Refresh(ctx, session.RefreshToken)
	assert.ErrorIs(t, err, ErrSessionExpired)
}
