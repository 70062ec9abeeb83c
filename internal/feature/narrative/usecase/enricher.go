// Package usecase はQuoteSetの要約文生成（ナラティブ）を実装します。
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"crypto_quote_bot/internal/feature/quotes/domain/entity"
	"crypto_quote_bot/internal/platform/metrics"
)

const (
	// DefaultTimeout は1回の要約生成のタイムアウトです。
	DefaultTimeout = 8 * time.Second
	// MaxPromptPoints はプロンプトに含める直近の区間数です。
	MaxPromptPoints = 31
	// MaxNarrativeRunes は要約文の最大文字数（rune数）です。
	MaxNarrativeRunes = 1200
	// PromptTemplate は要約のプロンプトテンプレートです。
	PromptTemplate = "You are a concise crypto market assistant. In at most three sentences, " +
		"describe the price action of %s (%s) in %s over the %s intervals below. " +
		"Do not give financial advice.\n%s"
)

var (
	// ErrNoData is returned for an empty QuoteSet.
	ErrNoData = errors.New("no quote data to summarize")
	// ErrEmptyNarrative is returned when the provider produced no text.
	ErrEmptyNarrative = errors.New("provider returned empty narrative")
)

// TextGenerator はプロンプトからテキストを生成するリポジトリインターフェースです。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Enricher はQuoteSetの要約文を生成します。失敗は呼び出し元で degraded として扱われます。
type Enricher struct {
	generator TextGenerator
	timeout   time.Duration
}

// NewEnricher は Enricher の新しいインスタンスを生成します。timeoutが0以下の場合はDefaultTimeoutを使用します。
func NewEnricher(generator TextGenerator, timeout time.Duration) *Enricher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Enricher{generator: generator, timeout: timeout}
}

// Summarize は独自のタイムアウト内で要約文を生成します。
func (e *Enricher) Summarize(ctx context.Context, set entity.QuoteSet) (string, error) {
	if set.Len() == 0 {
		metrics.NarrativeResults.WithLabelValues("no_data").Inc()
		return "", ErrNoData
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	text, err := e.generator.Generate(ctx, BuildPrompt(set))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			metrics.NarrativeResults.WithLabelValues("timeout").Inc()
			return "", fmt.Errorf("narrative timed out after %s: %w", e.timeout, err)
		}
		metrics.NarrativeResults.WithLabelValues("error").Inc()
		return "", fmt.Errorf("narrative generation failed: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		metrics.NarrativeResults.WithLabelValues("empty").Inc()
		return "", ErrEmptyNarrative
	}
	metrics.NarrativeResults.WithLabelValues("ok").Inc()
	return truncateRunes(text, MaxNarrativeRunes), nil
}

// BuildPrompt renders the most recent points of set as one line per interval.
func BuildPrompt(set entity.QuoteSet) string {
	points := set.Points
	if len(points) > MaxPromptPoints {
		points = points[len(points)-MaxPromptPoints:]
	}

	var b strings.Builder
	for _, p := range points {
		fmt.Fprintf(&b, "%s open=%g high=%g low=%g close=%g volume=%g\n",
			p.TimeOpen.UTC().Format("2006-01-02"), p.Open, p.High, p.Low, p.Close, p.Volume)
	}
	name := set.Name
	if name == "" {
		name = set.AssetID
	}
	return fmt.Sprintf(PromptTemplate, name, set.Symbol, set.Currency, fmt.Sprint(len(points)), b.String())
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit]) + "…"
}
