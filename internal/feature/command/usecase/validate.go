package usecase

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"crypto_quote_bot/internal/feature/command/domain/entity"
	quoteentity "crypto_quote_bot/internal/feature/quotes/domain/entity"
)

// 入力検証のエラー。文言はそのままユーザーに表示される。
var (
	ErrUserRequired    = errors.New("user id is required")
	ErrAssetRequired   = errors.New("asset id is required")
	ErrInvalidInterval = errors.New("interval must be one of daily, weekly, monthly")
	ErrInvalidCurrency = errors.New("convert currency must be 2-10 letters or digits")
	ErrInvalidRange    = errors.New("time start must not be after time end")
)

// 受け付ける時刻の書式
var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// parseCommand validates the raw command and builds a normalized QuoteRequest.
func parseCommand(cmd entity.Command) (quoteentity.QuoteRequest, error) {
	if strings.TrimSpace(cmd.UserID) == "" {
		return quoteentity.QuoteRequest{}, ErrUserRequired
	}

	req := quoteentity.QuoteRequest{
		AssetID:  cmd.AssetID,
		Convert:  cmd.Convert,
		Interval: quoteentity.Interval(cmd.Interval),
	}
	var err error
	if req.TimeStart, err = parseBound("time start", cmd.TimeStart); err != nil {
		return quoteentity.QuoteRequest{}, err
	}
	if req.TimeEnd, err = parseBound("time end", cmd.TimeEnd); err != nil {
		return quoteentity.QuoteRequest{}, err
	}
	req = req.Normalize()

	if req.AssetID == "" {
		return quoteentity.QuoteRequest{}, ErrAssetRequired
	}
	if !req.Interval.Valid() {
		return quoteentity.QuoteRequest{}, ErrInvalidInterval
	}
	if !validCurrency(req.Convert) {
		return quoteentity.QuoteRequest{}, ErrInvalidCurrency
	}
	if !req.TimeStart.IsZero() && !req.TimeEnd.IsZero() && req.TimeStart.After(req.TimeEnd) {
		return quoteentity.QuoteRequest{}, ErrInvalidRange
	}
	return req, nil
}

func parseBound(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%s must be RFC3339 or YYYY-MM-DD", field)
}

func validCurrency(c string) bool {
	if len(c) < 2 || len(c) > 10 {
		return false
	}
	for _, r := range c {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
