// Package alert delivers operational alerts raised by the command pipeline.
package alert

import (
	"context"
	"errors"
	"log/slog"

	"crypto_quote_bot/internal/feature/command/domain/entity"
	"crypto_quote_bot/internal/feature/command/usecase"
	"crypto_quote_bot/internal/platform/metrics"
)

// LogNotifier writes alerts to the structured log and counts them.
type LogNotifier struct {
	logger *slog.Logger
}

var _ usecase.AlertNotifier = (*LogNotifier)(nil)

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs a at ERROR level.
func (n *LogNotifier) Notify(ctx context.Context, a entity.Alert) error {
	metrics.AlertsTotal.WithLabelValues(string(a.Kind)).Inc()
	attrs := []any{"kind", a.Kind, "detail", a.Detail, "raised_at", a.RaisedAt}
	for k, v := range a.Labels {
		attrs = append(attrs, "label_"+k, v)
	}
	n.logger.ErrorContext(ctx, "operational alert: "+a.Message, attrs...)
	return nil
}

// Multi fans an alert out to every notifier and joins their errors.
type Multi []usecase.AlertNotifier

var _ usecase.AlertNotifier = Multi(nil)

// Notify sends a to all notifiers, even if some fail.
func (m Multi) Notify(ctx context.Context, a entity.Alert) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
