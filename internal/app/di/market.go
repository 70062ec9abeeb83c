// Package di provides dependency injection factories for creating application components.
package di

import (
	"time"

	"github.com/redis/go-redis/v9"

	"crypto_quote_bot/internal/config"
	"crypto_quote_bot/internal/feature/command/usecase"
	"crypto_quote_bot/internal/platform/cache"
	"crypto_quote_bot/internal/platform/externalapi/coinmarketcap"
	infrahttp "crypto_quote_bot/internal/platform/http"
	"crypto_quote_bot/internal/shared/ratelimiter"
)

// NewMarket creates the CoinMarketCap client with HTTP client and pacer.
// When rdb is non-nil the client is wrapped with the shared Redis quote tier.
func NewMarket(cfg config.MarketConfig, rdb *redis.Client, sharedTTL time.Duration) usecase.MarketData {
	httpClient := infrahttp.NewHTTPClient(cfg.Timeout)
	pacer := ratelimiter.NewPerMinute("coinmarketcap", cfg.RequestsPerMinute)
	client := coinmarketcap.NewClient(coinmarketcap.Config{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Timeout:     cfg.Timeout,
		MaxAttempts: cfg.MaxAttempts,
	}, httpClient, pacer)

	if rdb == nil {
		return client
	}
	return cache.NewCachingMarket(rdb, sharedTTL, client, "quotes")
}
