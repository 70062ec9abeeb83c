package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"crypto_quote_bot/internal/feature/command/usecase"
	"crypto_quote_bot/internal/feature/quotes/domain/entity"
	"crypto_quote_bot/internal/platform/metrics"
)

// CachingMarket decorates a MarketData source with a shared Redis tier, so
// replicas of the bot reuse each other's fetches.
// Only complete QuoteSets are written; failures are never cached.
type CachingMarket struct {
	inner     usecase.MarketData
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
	now       func() time.Time
}

var _ usecase.MarketData = (*CachingMarket)(nil)

// NewCachingMarket decorates inner with Redis caching.
// If ttl is 0, it defaults to 5 minutes. If namespace is empty, it uses "quotes".
// A nil rdb disables the tier and every call goes straight to inner.
func NewCachingMarket(rdb *redis.Client, ttl time.Duration, inner usecase.MarketData, namespace string) *CachingMarket {
	if ttl <= 0 {
		ttl = DefaultQuoteTTL
	}
	if namespace == "" {
		namespace = "quotes"
	}
	return &CachingMarket{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
		now:       time.Now,
	}
}

// Fetch returns the QuoteSet from Redis when present, otherwise from inner.
// The stored value keeps the original FetchedAt, so a replica reading it
// inherits the age of the first fetch instead of starting a new lifetime.
func (c *CachingMarket) Fetch(ctx context.Context, req entity.QuoteRequest) (entity.QuoteSet, error) {
	if c.rdb == nil {
		return c.inner.Fetch(ctx, req)
	}

	key := c.cacheKey(req)

	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out entity.QuoteSet
		if err := json.Unmarshal(b, &out); err == nil && !c.stale(out) {
			metrics.CacheLookups.WithLabelValues("redis", "hit").Inc()
			return out, nil
		}
		if err := c.rdb.Del(ctx, key).Err(); err != nil {
			slog.Warn("failed to delete unusable quote cache entry", "key", key, "error", err)
		}
	}
	metrics.CacheLookups.WithLabelValues("redis", "miss").Inc()

	out, err := c.inner.Fetch(ctx, req)
	if err != nil {
		return entity.QuoteSet{}, err
	}
	if out.FetchedAt.IsZero() {
		out.FetchedAt = c.now().UTC()
	}

	if b, err := json.Marshal(out); err == nil {
		if err := c.rdb.Set(ctx, key, b, sharedTTL(req, c.now(), c.ttl)).Err(); err != nil {
			slog.Warn("failed to store quote cache entry", "key", key, "error", err)
		}
	}
	return out, nil
}

// stale reports whether a stored set is already older than the TTL.
// Redis expiry normally removes it first; this covers clock skew between replicas.
func (c *CachingMarket) stale(set entity.QuoteSet) bool {
	return !set.FetchedAt.IsZero() && !c.now().Before(set.FetchedAt.Add(c.ttl))
}

// cacheKey builds namespace:asset:fingerprint.
func (c *CachingMarket) cacheKey(req entity.QuoteRequest) string {
	n := req.Normalize()
	return fmt.Sprintf("%s:%s:%s", c.namespace, safe(n.AssetID), safe(n.Fingerprint()))
}

// safe escapes characters that are problematic for Redis keys.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
