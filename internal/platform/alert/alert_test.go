package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto_quote_bot/internal/feature/command/domain/entity"
)

// mockPublisher はPublisherインターフェースのモック実装です。
type mockPublisher struct {
	PublishFunc func(ctx context.Context, subject string, data []byte) error
	subjects    []string
	payloads    [][]byte
}

func (m *mockPublisher) Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	m.subjects = append(m.subjects, subject)
	m.payloads = append(m.payloads, data)
	if m.PublishFunc != nil {
		if err := m.PublishFunc(ctx, subject, data); err != nil {
			return nil, err
		}
	}
	return &jetstream.PubAck{Stream: StreamAlerts, Sequence: uint64(len(m.subjects))}, nil
}

// mockNotifier は受け取ったアラートを記録します。
type mockNotifier struct {
	err   error
	calls int
}

func (m *mockNotifier) Notify(ctx context.Context, a entity.Alert) error {
	m.calls++
	return m.err
}

var testAlert = entity.Alert{
	Kind:     entity.AlertConfiguration,
	Message:  "market data provider rejected credentials",
	Detail:   "market data Unauthorized (http 401): This API Key is invalid.",
	Labels:   map[string]string{"asset": "1"},
	RaisedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
}

// TestNATSNotifier_Notify はアラートが種別ごとのサブジェクトにJSONで発行されることを検証します。
func TestNATSNotifier_Notify(t *testing.T) {
	t.Parallel()

	pub := &mockPublisher{
		PublishFunc: func(ctx context.Context, subject string, data []byte) error {
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline, "publish carries its own timeout")
			return nil
		},
	}
	n := NewNATSNotifier(pub, time.Second)

	err := n.Notify(context.Background(), testAlert)

	require.NoError(t, err)
	require.Equal(t, []string{"bot.alerts.configuration"}, pub.subjects)
	var got entity.Alert
	require.NoError(t, json.Unmarshal(pub.payloads[0], &got))
	assert.Equal(t, testAlert, got)
}

func TestNATSNotifier_Notify_PublishError(t *testing.T) {
	t.Parallel()

	pub := &mockPublisher{
		PublishFunc: func(ctx context.Context, subject string, data []byte) error {
			return errors.New("no responders")
		},
	}
	n := NewNATSNotifier(pub, 0)

	err := n.Notify(context.Background(), testAlert)

	assert.ErrorContains(t, err, "publishing to bot.alerts.configuration")
}

// TestLogNotifier_Notify はアラートがERRORレベルで記録されることを検証します。
func TestLogNotifier_Notify(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	n := NewLogNotifier(logger)

	require.NoError(t, n.Notify(context.Background(), testAlert))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "ERROR", rec["level"])
	assert.Equal(t, "operational alert: market data provider rejected credentials", rec["msg"])
	assert.Equal(t, "configuration", rec["kind"])
	assert.Equal(t, "1", rec["label_asset"])
}

// TestMulti_Notify は一部の通知先が失敗しても全ての通知先に送信されることを検証します。
func TestMulti_Notify(t *testing.T) {
	t.Parallel()

	failing := &mockNotifier{err: errors.New("down")}
	ok := &mockNotifier{}
	m := Multi{failing, nil, ok}

	err := m.Notify(context.Background(), testAlert)

	assert.ErrorContains(t, err, "down")
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, ok.calls)
}
