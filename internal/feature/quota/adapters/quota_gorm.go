package adapters

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	tierentity "crypto_quote_bot/internal/feature/entitlement/domain/entity"
	"crypto_quote_bot/internal/feature/quota/domain/entity"
	"crypto_quote_bot/internal/feature/quota/usecase"
)

// quotaGorm is a GORM implementation of usecase.Store.
// It works on any dialect gorm supports (Postgres in production, SQLite in tests).
type quotaGorm struct {
	db *gorm.DB
}

// Compile-time check to ensure quotaGorm implements Store.
var _ usecase.Store = (*quotaGorm)(nil)

// NewQuotaGorm creates a new instance of quotaGorm.
func NewQuotaGorm(db *gorm.DB) *quotaGorm {
	return &quotaGorm{db: db}
}

// Consume seeds the user's row if absent, then applies the window reset and the
// increment in a single conditional UPDATE. The WHERE clause carries the limit
// check, so concurrent callers can never both pass it on the last unit of headroom.
func (r *quotaGorm) Consume(ctx context.Context, userID string, limit int, window time.Duration, now time.Time) (bool, error) {
	db := r.db.WithContext(ctx)
	// SQLite compares timestamps as text; whole seconds keep the encoding fixed-width.
	now = now.UTC().Truncate(time.Second)

	seed := QuotaRecordModel{
		UserID:      userID,
		WindowStart: now,
		TierLimit:   limit,
		UpdatedAt:   now,
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return false, err
	}

	cutoff := now.Add(-window)
	q := db.Model(&QuotaRecordModel{}).Where("user_id = ?", userID)
	if limit != tierentity.Unlimited {
		q = q.Where("(window_start < ? OR request_count < ?)", cutoff, limit)
	}
	res := q.Updates(map[string]any{
		"request_count": gorm.Expr("CASE WHEN window_start < ? THEN 1 ELSE request_count + 1 END", cutoff),
		"window_start":  gorm.Expr("CASE WHEN window_start < ? THEN ? ELSE window_start END", cutoff, now),
		"tier_limit":    limit,
		"updated_at":    now,
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Find retrieves the quota record for a user.
func (r *quotaGorm) Find(ctx context.Context, userID string) (entity.QuotaRecord, bool, error) {
	var m QuotaRecordModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entity.QuotaRecord{}, false, nil
		}
		return entity.QuotaRecord{}, false, err
	}
	return m.ToEntity(), true, nil
}
