// Package coinmarketcap provides a client for the CoinMarketCap historical OHLCV API.
package coinmarketcap

import "time"

const (
	// DefaultBaseURL is the production CoinMarketCap Pro API.
	DefaultBaseURL = "https://pro-api.coinmarketcap.com"

	defaultTimeout       = 10 * time.Second
	defaultMaxAttempts   = 3
	defaultBaseDelay     = 500 * time.Millisecond
	defaultMaxDelay      = 5 * time.Second
	defaultMaxRetryAfter = 30 * time.Second
)

// Config holds configuration for the CoinMarketCap API client.
type Config struct {
	APIKey        string        // sent in the X-CMC_PRO_API_KEY header
	BaseURL       string        // e.g. "https://pro-api.coinmarketcap.com"
	Timeout       time.Duration // per-attempt HTTP timeout
	MaxAttempts   int           // total attempts including the first one
	BaseDelay     time.Duration // initial backoff interval
	MaxDelay      time.Duration // backoff interval cap
	MaxRetryAfter time.Duration // upper bound applied to provider Retry-After hints
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = defaultMaxDelay
	}
	if c.MaxRetryAfter <= 0 {
		c.MaxRetryAfter = defaultMaxRetryAfter
	}
	return c
}
