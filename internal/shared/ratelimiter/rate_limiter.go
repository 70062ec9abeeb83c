// Package ratelimiter は外部API呼び出しの頻度を制限するペーサーを提供します。
package ratelimiter

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Pacer は外部API呼び出しの前に待機するインターフェースです。
type Pacer interface {
	Wait(ctx context.Context) error
}

// RateLimiter は1分あたりの呼び出し回数を制限します。
// limiterがnilの場合は制限なしとして扱います。
type RateLimiter struct {
	limiter *rate.Limiter
	name    string
}

var _ Pacer = (*RateLimiter)(nil)

// NewPerMinute は1分あたりperMinute回までに制限するRateLimiterを生成します。
// perMinuteが0以下の場合は制限なしになります。
func NewPerMinute(name string, perMinute int) *RateLimiter {
	if perMinute <= 0 {
		return &RateLimiter{name: name}
	}
	every := time.Minute / time.Duration(perMinute)
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Every(every), perMinute),
		name:    name,
	}
}

// Wait は次の呼び出しが許可されるまで待機します。
// ctxがキャンセルされた場合、または待機がデッドラインを超える場合はエラーを返します。
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil || rl.limiter == nil {
		return nil
	}
	if rl.limiter.Tokens() < 1 {
		slog.Debug("rate limit reached, waiting", "limiter", rl.name)
	}
	return rl.limiter.Wait(ctx)
}
