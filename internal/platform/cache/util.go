package cache

import (
	"time"

	"crypto_quote_bot/internal/feature/quotes/domain/entity"
)

// TimeUntilNextDailyClose は次の日足確定（UTC 0時）までの期間を返します。
func TimeUntilNextDailyClose(now time.Time) time.Duration {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	return next.Sub(now)
}

// sharedTTL returns how long a fetched set may live in the shared tier.
// Ranges that reach the still-forming candle expire at the next daily close at the latest.
func sharedTTL(req entity.QuoteRequest, now time.Time, ttl time.Duration) time.Duration {
	if !req.TimeEnd.IsZero() && req.TimeEnd.Before(now) {
		return ttl
	}
	if until := TimeUntilNextDailyClose(now); until < ttl {
		return until
	}
	return ttl
}
