package coinmarketcap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"crypto_quote_bot/internal/feature/command/usecase"
	"crypto_quote_bot/internal/feature/quotes/domain"
	"crypto_quote_bot/internal/feature/quotes/domain/entity"
	"crypto_quote_bot/internal/platform/externalapi/coinmarketcap/dto"
	"crypto_quote_bot/internal/platform/metrics"
	"crypto_quote_bot/internal/shared/ratelimiter"
)

const (
	providerName   = "coinmarketcap"
	ohlcvPath      = "/v2/cryptocurrency/ohlcv/historical"
	apiKeyHeader   = "X-CMC_PRO_API_KEY"
	maxBodyBytes   = 8 << 20
	maxErrorDetail = 200
)

// HTTPClient is the subset of *http.Client used by Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client はCoinMarketCap APIから過去OHLCVデータを取得するMarketData実装です。
type Client struct {
	cfg    Config
	client HTTPClient
	pacer  ratelimiter.Pacer
}

// ClientがMarketDataを実装していることをコンパイル時に検証します。
var _ usecase.MarketData = (*Client)(nil)

// NewClient は指定された設定でClientを生成します。pacerがnilの場合は呼び出し頻度を制限しません。
func NewClient(cfg Config, client HTTPClient, pacer ratelimiter.Pacer) *Client {
	if client == nil {
		client = &http.Client{}
	}
	if pacer == nil {
		pacer = ratelimiter.NewPerMinute(providerName, 0)
	}
	return &Client{cfg: cfg.withDefaults(), client: client, pacer: pacer}
}

// hintedBackOff returns the provider's Retry-After hint for the next wait when
// one was recorded, and the exponential schedule otherwise.
type hintedBackOff struct {
	backoff.BackOff
	hint time.Duration
}

func (h *hintedBackOff) NextBackOff() time.Duration {
	if h.hint > 0 {
		d := h.hint
		h.hint = 0
		return d
	}
	return h.BackOff.NextBackOff()
}

// Fetch はOHLCVデータを取得し、時刻昇順のQuoteSetとして返します。
// 失敗は *domain.FetchError として型付けされ、再試行可能な種別のみMaxAttemptsまで再試行します。
func (c *Client) Fetch(ctx context.Context, req entity.QuoteRequest) (entity.QuoteSet, error) {
	n := req.Normalize()
	if err := validate(n); err != nil {
		metrics.UpstreamAttempts.WithLabelValues(providerName, string(domain.KindInvalidRequest)).Inc()
		return entity.QuoteSet{}, err
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.cfg.BaseDelay
	exp.MaxInterval = c.cfg.MaxDelay
	hb := &hintedBackOff{BackOff: exp}

	attempt := 0
	op := func() (entity.QuoteSet, error) {
		attempt++
		set, err := c.fetchOnce(ctx, n)
		if err == nil {
			metrics.UpstreamAttempts.WithLabelValues(providerName, "ok").Inc()
			return set, nil
		}
		if ctx.Err() != nil {
			return entity.QuoteSet{}, backoff.Permanent(ctx.Err())
		}

		var fe *domain.FetchError
		if !errors.As(err, &fe) {
			fe = &domain.FetchError{Kind: domain.KindUpstream, Err: err}
		}
		metrics.UpstreamAttempts.WithLabelValues(providerName, string(fe.Kind)).Inc()

		if !fe.Kind.Retryable() {
			return entity.QuoteSet{}, backoff.Permanent(fe)
		}
		if fe.RetryAfter > 0 {
			hb.hint = min(fe.RetryAfter, c.cfg.MaxRetryAfter)
		}
		slog.Warn("market data attempt failed",
			"asset", n.AssetID, "attempt", attempt, "max_attempts", c.cfg.MaxAttempts,
			"kind", fe.Kind, "status", fe.StatusCode, "error", fe.Err)
		return entity.QuoteSet{}, fe
	}

	set, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(hb),
		backoff.WithMaxTries(uint(c.cfg.MaxAttempts)),
	)
	if err == nil {
		return set, nil
	}

	var fe *domain.FetchError
	switch {
	case errors.As(err, &fe):
		return entity.QuoteSet{}, fe
	case errors.Is(err, context.Canceled):
		return entity.QuoteSet{}, err
	case errors.Is(err, context.DeadlineExceeded):
		return entity.QuoteSet{}, &domain.FetchError{Kind: domain.KindTimeout, Err: err}
	default:
		return entity.QuoteSet{}, &domain.FetchError{Kind: domain.KindUpstream, Err: err}
	}
}

// validate rejects requests that the provider would answer with 400.
func validate(r entity.QuoteRequest) error {
	if r.AssetID == "" {
		return domain.NewFetchError(domain.KindInvalidRequest, 0, "asset id is required")
	}
	if _, err := strconv.ParseUint(r.AssetID, 10, 64); err != nil {
		return domain.NewFetchError(domain.KindInvalidRequest, 0, "asset id %q is not numeric", r.AssetID)
	}
	if !r.Interval.Valid() {
		return domain.NewFetchError(domain.KindInvalidRequest, 0, "unsupported interval %q", r.Interval)
	}
	if !r.TimeStart.IsZero() && !r.TimeEnd.IsZero() && r.TimeEnd.Before(r.TimeStart) {
		return domain.NewFetchError(domain.KindInvalidRequest, 0, "time_end precedes time_start")
	}
	return nil
}

// fetchOnce performs a single HTTP attempt.
func (c *Client) fetchOnce(ctx context.Context, r entity.QuoteRequest) (entity.QuoteSet, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return entity.QuoteSet{}, ctx.Err()
		}
		return entity.QuoteSet{}, &domain.FetchError{Kind: domain.KindTimeout, Err: fmt.Errorf("pacing: %w", err)}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	q := url.Values{}
	q.Set("id", r.AssetID)
	q.Set("convert", r.Convert)
	q.Set("interval", string(r.Interval))
	if !r.TimeStart.IsZero() {
		q.Set("time_start", r.TimeStart.Format(time.RFC3339))
	}
	if !r.TimeEnd.IsZero() {
		q.Set("time_end", r.TimeEnd.Format(time.RFC3339))
	}
	u := fmt.Sprintf("%s%s?%s", strings.TrimRight(c.cfg.BaseURL, "/"), ohlcvPath, q.Encode())

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, u, nil)
	if err != nil {
		return entity.QuoteSet{}, domain.NewFetchError(domain.KindInvalidRequest, 0, "build request: %v", err)
	}
	httpReq.Header.Set(apiKeyHeader, c.cfg.APIKey)
	httpReq.Header.Set("Accept", "application/json")

	res, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return entity.QuoteSet{}, ctx.Err()
		}
		return entity.QuoteSet{}, transportError(err)
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return entity.QuoteSet{}, ctx.Err()
		}
		return entity.QuoteSet{}, transportError(err)
	}

	if res.StatusCode >= 400 {
		var eb dto.ErrorResponse
		_ = json.Unmarshal(body, &eb)
		msg := eb.Status.ErrorMessage
		if msg == "" {
			msg = truncate(string(body))
		}
		fe := domain.NewFetchError(classify(res.StatusCode, eb.Status.ErrorCode, msg), res.StatusCode, "%s", msg)
		fe.RetryAfter = parseRetryAfter(res.Header.Get("Retry-After"), time.Now())
		return entity.QuoteSet{}, fe
	}

	var payload dto.OHLCVHistoricalResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return entity.QuoteSet{}, domain.NewFetchError(domain.KindUpstream, res.StatusCode, "decode response: %v", err)
	}
	if payload.Status.ErrorCode != 0 {
		return entity.QuoteSet{}, domain.NewFetchError(
			classify(res.StatusCode, payload.Status.ErrorCode, payload.Status.ErrorMessage),
			res.StatusCode, "%s", payload.Status.ErrorMessage)
	}

	asset, err := pickAsset(payload.Data, r.AssetID)
	if err != nil {
		return entity.QuoteSet{}, err
	}
	return toQuoteSet(r, asset)
}

// pickAsset decodes data, which is a single asset object or a map keyed by id.
func pickAsset(raw json.RawMessage, id string) (dto.AssetQuotes, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return dto.AssetQuotes{}, domain.NewFetchError(domain.KindNotFound, 0, "no data for asset %s", id)
	}

	var single dto.AssetQuotes
	if err := json.Unmarshal(raw, &single); err == nil && (single.ID != 0 || single.Quotes != nil) {
		return single, nil
	}

	var byID map[string]dto.AssetQuotes
	if err := json.Unmarshal(raw, &byID); err != nil {
		return dto.AssetQuotes{}, domain.NewFetchError(domain.KindUpstream, 0, "decode data: %v", err)
	}
	if a, ok := byID[id]; ok {
		return a, nil
	}
	return dto.AssetQuotes{}, domain.NewFetchError(domain.KindNotFound, 0, "asset %s not in response", id)
}

// toQuoteSet flattens the nested quote map into points in the requested currency.
func toQuoteSet(r entity.QuoteRequest, a dto.AssetQuotes) (entity.QuoteSet, error) {
	if len(a.Quotes) == 0 {
		return entity.QuoteSet{}, domain.NewFetchError(domain.KindNotFound, 0, "no quotes for asset %s in range", r.AssetID)
	}

	points := make([]entity.Point, 0, len(a.Quotes))
	for _, q := range a.Quotes {
		v, ok := lookupCurrency(q.Quote, r.Convert)
		if !ok {
			return entity.QuoteSet{}, domain.NewFetchError(domain.KindInvalidRequest, 0,
				"convert currency %s absent in response", r.Convert)
		}
		points = append(points, entity.Point{
			TimeOpen:  q.TimeOpen.UTC(),
			TimeClose: q.TimeClose.UTC(),
			Open:      v.Open,
			High:      v.High,
			Low:       v.Low,
			Close:     v.Close,
			Volume:    v.Volume,
		})
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].TimeOpen.Before(points[j].TimeOpen)
	})

	assetID := r.AssetID
	if a.ID != 0 {
		assetID = strconv.Itoa(a.ID)
	}
	return entity.QuoteSet{
		AssetID:   assetID,
		Name:      a.Name,
		Symbol:    a.Symbol,
		Currency:  r.Convert,
		Points:    points,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// lookupCurrency matches the exact key first, then a case-insensitive key in sorted order.
func lookupCurrency(m map[string]dto.OHLCValue, currency string) (dto.OHLCValue, bool) {
	if v, ok := m[currency]; ok {
		return v, true
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.EqualFold(k, currency) {
			return m[k], true
		}
	}
	return dto.OHLCValue{}, false
}

// classify maps an HTTP status and a CoinMarketCap status.error_code to a FailureKind.
func classify(httpStatus, errorCode int, msg string) domain.FailureKind {
	switch {
	case errorCode >= 1001 && errorCode <= 1007:
		return domain.KindUnauthorized
	case errorCode >= 1008 && errorCode <= 1011:
		return domain.KindRateLimited
	}

	status := httpStatus
	if status < 400 && errorCode >= 400 && errorCode < 600 {
		status = errorCode
	}
	switch {
	case status == http.StatusBadRequest:
		if mentionsInvalidID(msg) {
			return domain.KindNotFound
		}
		return domain.KindInvalidRequest
	case status == http.StatusUnauthorized, status == http.StatusPaymentRequired, status == http.StatusForbidden:
		return domain.KindUnauthorized
	case status == http.StatusNotFound:
		return domain.KindNotFound
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return domain.KindTimeout
	case status == http.StatusTooManyRequests:
		return domain.KindRateLimited
	case status >= 500:
		return domain.KindUpstream
	case status >= 400:
		return domain.KindInvalidRequest
	}
	return domain.KindUpstream
}

// mentionsInvalidID detects the provider's 400 for an unknown asset, e.g. `Invalid value for "id": "999999"`.
func mentionsInvalidID(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "invalid") && strings.Contains(m, `"id"`)
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func transportError(err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &domain.FetchError{Kind: domain.KindTimeout, Err: err}
	}
	return &domain.FetchError{Kind: domain.KindUpstream, Err: err}
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxErrorDetail {
		return s[:maxErrorDetail]
	}
	return s
}
