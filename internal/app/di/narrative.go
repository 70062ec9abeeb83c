package di

import (
	"context"
	"log/slog"

	"crypto_quote_bot/internal/config"
	"crypto_quote_bot/internal/feature/command/usecase"
	"crypto_quote_bot/internal/feature/narrative/adapters/gemini"
	narrativeusecase "crypto_quote_bot/internal/feature/narrative/usecase"
)

// NewEnricher creates the narrative enricher, or nil when enrichment is
// disabled or the provider client cannot be created. Enrichment is optional,
// so a failure here only degrades responses.
func NewEnricher(ctx context.Context, cfg config.NarrativeConfig) usecase.NarrativeEnricher {
	if !cfg.Enabled {
		slog.Info("narrative enrichment disabled")
		return nil
	}
	gen, err := gemini.NewGeminiGenerator(ctx, cfg.APIKey, cfg.Model)
	if err != nil {
		slog.Warn("narrative provider unavailable, responses will be degraded", "error", err)
		return nil
	}
	return narrativeusecase.NewEnricher(gen, cfg.Timeout)
}
