// Package dto defines data transfer objects for the CoinMarketCap API responses.
package dto

import (
	"encoding/json"
	"time"
)

// Status is the envelope status block present on every CoinMarketCap response.
type Status struct {
	Timestamp    string `json:"timestamp"`
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	CreditCount  int    `json:"credit_count"`
}

// OHLCVHistoricalResponse represents the JSON response from /v2/cryptocurrency/ohlcv/historical.
// Data is either a single asset object or a map keyed by asset id, depending on the query.
type OHLCVHistoricalResponse struct {
	Status Status          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// ErrorResponse is the body returned with 4xx/5xx status codes.
type ErrorResponse struct {
	Status Status `json:"status"`
}

// AssetQuotes is the per-asset payload.
type AssetQuotes struct {
	ID     int          `json:"id"`
	Name   string       `json:"name"`
	Symbol string       `json:"symbol"`
	Quotes []QuoteEntry `json:"quotes"`
}

// QuoteEntry is one interval; Quote is keyed by conversion currency.
type QuoteEntry struct {
	TimeOpen  time.Time            `json:"time_open"`
	TimeClose time.Time            `json:"time_close"`
	Quote     map[string]OHLCValue `json:"quote"`
}

// OHLCValue holds the values in one conversion currency.
type OHLCValue struct {
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	MarketCap float64 `json:"market_cap"`
	Timestamp string  `json:"timestamp"`
}
