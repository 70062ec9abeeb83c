package jwtmw

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewGenerator は各種設定でGeneratorが正しく生成されることを検証します。
func TestNewGenerator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		secret     string
		expiration time.Duration
	}{
		{"standard config", "my-secret-key", time.Hour},
		{"long expiration", "secret", 24 * time.Hour * 30},
		{"short expiration", "s", time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gen, ok := NewGenerator(tt.secret, tt.expiration).(*generator)

			require.True(t, ok)
			assert.Equal(t, tt.secret, string(gen.secret))
			assert.Equal(t, tt.expiration, gen.expiration)
		})
	}
}

// TestGenerator_GenerateToken は生成されたトークンが有効で正しいクレームを含むことを検証します。
func TestGenerator_GenerateToken(t *testing.T) {
	t.Parallel()

	fixed := time.Now().Truncate(time.Second)
	gen := NewGenerator("test-secret", 2*time.Hour).(*generator)
	gen.now = func() time.Time { return fixed }

	tokenStr, err := gen.GenerateToken("discord-gateway")
	require.NoError(t, err)

	token, err := jwt.Parse(tokenStr, func(tok *jwt.Token) (any, error) {
		_, ok := tok.Method.(*jwt.SigningMethodHMAC)
		assert.True(t, ok, "signed with HMAC")
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)

	claims, ok := token.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, "discord-gateway", claims["sub"])
	assert.Equal(t, float64(fixed.Unix()), claims["iat"])
	assert.Equal(t, float64(fixed.Add(2*time.Hour).Unix()), claims["exp"])
}

// TestGenerator_GenerateToken_EmptySubject は空のサブジェクトが拒否されることを検証します。
func TestGenerator_GenerateToken_EmptySubject(t *testing.T) {
	t.Parallel()

	gen := NewGenerator("test-secret", time.Hour)

	for _, sub := range []string{"", "   "} {
		_, err := gen.GenerateToken(sub)
		assert.ErrorIs(t, err, ErrEmptySubject)
	}
}

// TestGenerator_RoundTrip は発行したトークンがミドルウェアで受理されることを検証します。
func TestGenerator_RoundTrip(t *testing.T) {
	t.Parallel()

	gen := NewGenerator("shared", time.Hour)
	tok1, err := gen.GenerateToken("gateway-a")
	require.NoError(t, err)
	tok2, err := gen.GenerateToken("gateway-b")
	require.NoError(t, err)

	assert.NotEqual(t, tok1, tok2)
	assert.Equal(t, "gateway-a", runMiddleware(t, "shared", "Bearer "+tok1).subject)
}
