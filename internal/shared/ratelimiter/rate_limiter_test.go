package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewPerMinute_Unlimited は0以下の上限で制限なしになることを検証します。
func TestNewPerMinute_Unlimited(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		perMinute int
	}{
		{"zero", 0},
		{"negative", -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rl := NewPerMinute("test", tt.perMinute)
			for i := 0; i < 100; i++ {
				require.NoError(t, rl.Wait(context.Background()))
			}
		})
	}
}

// TestRateLimiter_BurstThenBlocks はバースト分は即座に許可され、超過分は待機することを検証します。
func TestRateLimiter_BurstThenBlocks(t *testing.T) {
	t.Parallel()

	rl := NewPerMinute("test", 3)
	for i := 0; i < 3; i++ {
		require.NoError(t, rl.Wait(context.Background()))
	}

	// 次のトークンは20秒後なので、短いデッドラインでは待機できない
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, rl.Wait(ctx))
}

// TestRateLimiter_CanceledContext はキャンセル済みのコンテキストでエラーを返すことを検証します。
func TestRateLimiter_CanceledContext(t *testing.T) {
	t.Parallel()

	rl := NewPerMinute("test", 1)
	require.NoError(t, rl.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, rl.Wait(ctx))
}

func TestRateLimiter_NilIsUnlimited(t *testing.T) {
	t.Parallel()

	var rl *RateLimiter
	assert.NoError(t, rl.Wait(context.Background()))
}
