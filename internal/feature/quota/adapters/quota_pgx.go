package adapters

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"crypto_quote_bot/internal/feature/quota/domain/entity"
	"crypto_quote_bot/internal/feature/quota/usecase"
)

// pgxQuerier is the subset of pgxpool.Pool used by quotaPgx.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ pgxQuerier = (*pgxpool.Pool)(nil)

// quotaPgx is a Postgres implementation of usecase.Store that performs the
// whole check-and-increment as one upsert statement.
type quotaPgx struct {
	db pgxQuerier
}

var _ usecase.Store = (*quotaPgx)(nil)

// NewQuotaPgx creates a new instance of quotaPgx.
func NewQuotaPgx(db pgxQuerier) *quotaPgx {
	return &quotaPgx{db: db}
}

// $1 user, $2 now, $3 limit (-1 = unlimited), $4 window cutoff.
// No row is returned when the existing row is inside its window and at the limit.
const consumeSQL = `
INSERT INTO quota_records (user_id, window_start, request_count, tier_limit, updated_at)
VALUES ($1, $2, 1, $3, $2)
ON CONFLICT (user_id) DO UPDATE SET
	request_count = CASE WHEN quota_records.window_start < $4 THEN 1 ELSE quota_records.request_count + 1 END,
	window_start  = CASE WHEN quota_records.window_start < $4 THEN $2 ELSE quota_records.window_start END,
	tier_limit    = $3,
	updated_at    = $2
WHERE quota_records.window_start < $4
	OR $3 < 0
	OR quota_records.request_count < $3
RETURNING request_count`

// Consume applies the window reset and the increment atomically.
func (r *quotaPgx) Consume(ctx context.Context, userID string, limit int, window time.Duration, now time.Time) (bool, error) {
	now = now.UTC()
	var count int
	err := r.db.QueryRow(ctx, consumeSQL, userID, now, limit, now.Add(-window)).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Find retrieves the quota record for a user.
func (r *quotaPgx) Find(ctx context.Context, userID string) (entity.QuotaRecord, bool, error) {
	rec := entity.QuotaRecord{UserID: userID}
	err := r.db.QueryRow(ctx,
		`SELECT window_start, request_count, tier_limit FROM quota_records WHERE user_id = $1`,
		userID,
	).Scan(&rec.WindowStart, &rec.Count, &rec.Limit)
	if errors.Is(err, pgx.ErrNoRows) {
		return entity.QuotaRecord{}, false, nil
	}
	if err != nil {
		return entity.QuotaRecord{}, false, err
	}
	return rec, true, nil
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS quota_records (
	user_id       VARCHAR(64) PRIMARY KEY,
	window_start  TIMESTAMPTZ NOT NULL,
	request_count INTEGER NOT NULL DEFAULT 0,
	tier_limit    INTEGER NOT NULL DEFAULT 0,
	updated_at    TIMESTAMPTZ NOT NULL
)`

// EnsureSchema creates quota_records if it does not exist.
func (r *quotaPgx) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, createTableSQL)
	return err
}
