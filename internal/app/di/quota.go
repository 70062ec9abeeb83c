package di

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"crypto_quote_bot/internal/config"
	quotaadapters "crypto_quote_bot/internal/feature/quota/adapters"
	quotausecase "crypto_quote_bot/internal/feature/quota/usecase"
	infradb "crypto_quote_bot/internal/platform/db"
)

// NewQuotaStore selects the quota store backend.
// "pgx" uses a dedicated pgxpool and a single upsert statement; otherwise gorm is used.
// The returned cleanup func is never nil.
func NewQuotaStore(ctx context.Context, cfg *config.Config, db *gorm.DB) (quotausecase.Store, func(), error) {
	if cfg.Quota.Backend != "pgx" {
		return quotaadapters.NewQuotaGorm(db), func() {}, nil
	}

	pool, err := infradb.NewPool(ctx, cfg.DB.URL, cfg.DB.MaxConns)
	if err != nil {
		return nil, nil, fmt.Errorf("quota store: %w", err)
	}
	store := quotaadapters.NewQuotaPgx(pool)
	if cfg.DB.RunMigrations {
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("quota store schema: %w", err)
		}
	}
	slog.Info("quota store backend selected", "backend", "pgx")
	return store, pool.Close, nil
}
