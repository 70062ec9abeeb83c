package di

import (
	"context"
	"log/slog"
	"time"

	"crypto_quote_bot/internal/feature/command/usecase"
	"crypto_quote_bot/internal/platform/alert"
)

// NewAlertNotifier always logs alerts and additionally publishes them to
// NATS JetStream when natsURL is set. The cleanup func is never nil.
func NewAlertNotifier(ctx context.Context, natsURL string) (usecase.AlertNotifier, func()) {
	notifiers := alert.Multi{alert.NewLogNotifier(slog.Default())}
	if natsURL == "" {
		return notifiers, func() {}
	}

	client, err := alert.Connect(ctx, natsURL)
	if err != nil {
		slog.Warn("NATS unavailable, alerts will only be logged", "error", err)
		return notifiers, func() {}
	}
	notifiers = append(notifiers, alert.NewNATSNotifier(client.JetStream(), 2*time.Second))
	return notifiers, client.Close
}
