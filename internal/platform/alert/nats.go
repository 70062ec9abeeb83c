package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"crypto_quote_bot/internal/feature/command/domain/entity"
	"crypto_quote_bot/internal/feature/command/usecase"
)

// Stream and subjects used for alerts.
const (
	StreamAlerts  = "BOT_ALERTS"
	SubjectPrefix = "bot.alerts" // bot.alerts.{kind}
)

// Publisher is the subset of jetstream.JetStream used by NATSNotifier.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NATSNotifier publishes alerts as JSON to JetStream so that an operator
// channel (chat relay, pager bridge) can consume them.
type NATSNotifier struct {
	js      Publisher
	timeout time.Duration
}

var _ usecase.AlertNotifier = (*NATSNotifier)(nil)

// NewNATSNotifier creates a NATSNotifier.
func NewNATSNotifier(js Publisher, timeout time.Duration) *NATSNotifier {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &NATSNotifier{js: js, timeout: timeout}
}

// Notify publishes a to bot.alerts.<kind>.
func (n *NATSNotifier) Notify(ctx context.Context, a entity.Alert) error {
	subject := fmt.Sprintf("%s.%s", SubjectPrefix, a.Kind)
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshaling alert for %s: %w", subject, err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	if _, err := n.js.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}

// Client wraps a NATS connection with JetStream support.
type Client struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

// Connect connects to NATS and ensures the alert stream exists.
func Connect(ctx context.Context, url string) (*Client, error) {
	nc, err := nats.Connect(url,
		nats.Name("crypto-quote-bot"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamAlerts,
		Subjects:  []string{SubjectPrefix + ".>"},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("creating stream %s: %w", StreamAlerts, err)
	}

	slog.Info("connected to NATS", "url", url)
	return &Client{conn: nc, js: js}, nil
}

// JetStream returns the JetStream context.
func (c *Client) JetStream() jetstream.JetStream {
	return c.js
}

// Close drains and closes the NATS connection.
func (c *Client) Close() {
	if err := c.conn.Drain(); err != nil {
		slog.Warn("draining NATS connection", "error", err)
	}
}
