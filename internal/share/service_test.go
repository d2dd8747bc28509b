package share

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/anhtuan9622/flippl/internal/database"
	"github.com/anhtuan9622/flippl/internal/models"
)

func setupShare(t *testing.T) *Service {
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

	require.NoError(t, db.Create(&models.Profile{ID: "user-1", Email: "trader@example.com"}).Error)
	return NewService(db, zap.NewNop(), "https://flippl.example/")
}

func TestEnsureShareID(t *testing.T) {
	svc := setupShare(t)
	ctx := context.Background()

	shareID, link, err := svc.EnsureShareID(ctx, "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, shareID)
	assert.Equal(t, "https://flippl.example/share/"+shareID, link)

	// Stable across calls.
	again, _, err := svc.EnsureShareID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, shareID, again)
}

func TestResolve(t *testing.T) {
	svc := setupShare(t)
	ctx := context.Background()

	t.Run("MasksOwnerEmail", func(t *testing.T) {
		shareID, _, err := svc.EnsureShareID(ctx, "user-1")
		require.NoError(t, err)

		shared, err := svc.Resolve(ctx, shareID)
		require.NoError(t, err)
		assert.Equal(t, "user-1", shared.UserID)
		assert.Equal(t, "tra***@example.com", shared.Email)
	})

	t.Run("UnknownToken", func(t *testing.T) {
		_, err := svc.Resolve(ctx, "does-not-exist")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("EmptyToken", func(t *testing.T) {
		_, err := svc.Resolve(ctx, "")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestRevoke(t *testing.T) {
	svc := setupShare(t)
	ctx := context.Background()

	shareID, _, err := svc.EnsureShareID(ctx, "user-1")
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, "user-1"))

	_, err = svc.Resolve(ctx, shareID)
	assert.ErrorIs(t, err, ErrNotFound)

	// A fresh link gets a fresh token.
	next, _, err := svc.EnsureShareID(ctx, "user-1")
	require.NoError(t, err)
	assert.NotEqual(t, shareID, next)
}

func TestMaskEmail(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"trader@example.com", "tra***@example.com"},
		{"abcd@example.com", "abc*@example.com"},
		{"abc@example.com", "abc@example.com"}, // 3 chars or fewer kept
		{"ab@example.com", "ab@example.com"},
		{"not-an-email", "not-an-email"},
		{"@example.com", "@example.com"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, MaskEmail(c.in), c.in)
	}
}
