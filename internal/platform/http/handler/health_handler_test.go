package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func setupRouter(h *HealthHandler) *gin.Engine {
	r := gin.New()
	r.GET("/healthz", h.Health)
	r.HEAD("/healthz", h.Health)
	r.OPTIONS("/healthz", h.Health)
	return r
}

var (
	okPing   = PingFunc(func(ctx context.Context) error { return nil })
	downPing = PingFunc(func(ctx context.Context) error { return errors.New("connection refused") })
)

// TestHealth はメソッドと依存先の状態ごとのレスポンスを検証します。
func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		method         string
		db             Pinger
		redis          Pinger
		expectedStatus int
		expectedBody   string
	}{
		{"GET all healthy", http.MethodGet, okPing, okPing, http.StatusOK, `{"status":"ok"}`},
		{"GET redis not configured", http.MethodGet, okPing, nil, http.StatusOK, `{"status":"ok"}`},
		{"GET database down", http.MethodGet, downPing, okPing, http.StatusServiceUnavailable, `{"status":"unavailable","error":"database: connection refused"}`},
		{"GET redis down", http.MethodGet, okPing, downPing, http.StatusServiceUnavailable, `{"status":"unavailable","error":"redis: connection refused"}`},
		{"HEAD healthy", http.MethodHead, okPing, okPing, http.StatusOK, ""},
		{"HEAD database down", http.MethodHead, downPing, nil, http.StatusServiceUnavailable, ""},
		{"OPTIONS skips checks", http.MethodOptions, downPing, downPing, http.StatusNoContent, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewHealthHandler(0).With("database", tt.db).With("redis", tt.redis)
			router := setupRouter(h)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, "/healthz", nil)

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
			if tt.expectedBody == "" {
				assert.Zero(t, w.Body.Len())
			} else {
				assert.JSONEq(t, tt.expectedBody, w.Body.String())
			}
		})
	}
}

// TestHealth_PingTimeout は疎通確認にタイムアウト付きのコンテキストが渡されることを検証します。
func TestHealth_PingTimeout(t *testing.T) {
	t.Parallel()

	var hadDeadline bool
	h := NewHealthHandler(0).With("database", PingFunc(func(ctx context.Context) error {
		_, hadDeadline = ctx.Deadline()
		return nil
	}))
	w := httptest.NewRecorder()

	setupRouter(h).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, hadDeadline)
}
