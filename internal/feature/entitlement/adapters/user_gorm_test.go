package adapters

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"crypto_quote_bot/internal/feature/entitlement/domain/entity"
)

// setupTestDB prepares an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to initialize test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&BotUserModel{})
	require.NoError(t, err, "failed to migrate table")

	return db
}

func TestNewUserGorm(t *testing.T) {
	db := setupTestDB(t)

	repo := NewUserGorm(db)

	assert.NotNil(t, repo, "repository is nil")
	assert.NotNil(t, repo.db, "database connection is nil")
}

func TestUserGorm_RecordTier(t *testing.T) {
	t.Run("first contact creates a row", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserGorm(db)
		fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
		repo.now = func() time.Time { return fixed }

		err := repo.RecordTier(context.Background(), "123456789", entity.TierFree)
		require.NoError(t, err)

		var found BotUserModel
		require.NoError(t, db.First(&found, "platform_id = ?", "123456789").Error)
		assert.Equal(t, "free", found.Tier)
		assert.True(t, found.FirstSeen.Equal(fixed))
		assert.True(t, found.LastSeenAt.Equal(fixed))
	})

	t.Run("later contact updates tier and last seen only", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserGorm(db)
		first := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
		second := first.Add(48 * time.Hour)

		repo.now = func() time.Time { return first }
		require.NoError(t, repo.RecordTier(context.Background(), "u1", entity.TierFree))

		repo.now = func() time.Time { return second }
		require.NoError(t, repo.RecordTier(context.Background(), "u1", entity.TierPremium))

		var found BotUserModel
		require.NoError(t, db.First(&found, "platform_id = ?", "u1").Error)
		assert.Equal(t, "premium", found.Tier)
		assert.True(t, found.FirstSeen.Equal(first), "first seen must not move")
		assert.True(t, found.LastSeenAt.Equal(second))

		var count int64
		require.NoError(t, db.Model(&BotUserModel{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})
}
