package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewRedisClient はアドレス設定ごとの接続結果を検証します。
func TestNewRedisClient(t *testing.T) {
	t.Parallel()

	t.Run("not configured", func(t *testing.T) {
		t.Parallel()
		rdb, err := NewRedisClient(context.Background(), "", "")
		require.NoError(t, err)
		assert.Nil(t, rdb)
	})

	t.Run("connects", func(t *testing.T) {
		t.Parallel()
		mr := miniredis.RunT(t)
		rdb, err := NewRedisClient(context.Background(), mr.Addr(), "")
		require.NoError(t, err)
		require.NotNil(t, rdb)
		defer rdb.Close()
		assert.NoError(t, rdb.Ping(context.Background()).Err())
	})

	t.Run("wrong password", func(t *testing.T) {
		t.Parallel()
		mr := miniredis.RunT(t)
		mr.RequireAuth("secret")
		rdb, err := NewRedisClient(context.Background(), mr.Addr(), "nope")
		assert.Error(t, err)
		assert.Nil(t, rdb)
	})
}
