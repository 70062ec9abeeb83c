package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseLevel はレベル名の変換を検証します。
func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

// TestNew_JSON はJSON形式とレベルフィルタが適用されることを検証します。
func TestNew_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, closer := newWithStdout(Config{Level: "warn", Format: "json"}, &buf)
	defer closer.Close()

	log.Info("dropped")
	log.Warn("kept", "user_id", "u1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "u1", rec["user_id"])
	assert.Equal(t, "WARN", rec["level"])
}

// TestNew_Text はデフォルトでテキスト形式になることを検証します。
func TestNew_Text(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, _ := newWithStdout(Config{}, &buf)

	log.Info("hello", "k", "v")

	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "k=v")
}

// TestNew_File はファイル出力が有効な場合に両方へ書き込まれることを検証します。
func TestNew_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bot.log")
	var buf bytes.Buffer
	log, closer := newWithStdout(Config{Format: "json", File: path}, &buf)

	log.Error("store unreachable")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "store unreachable")
	assert.Contains(t, buf.String(), "store unreachable")
}
