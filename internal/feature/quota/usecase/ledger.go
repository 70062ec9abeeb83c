package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tierentity "crypto_quote_bot/internal/feature/entitlement/domain/entity"
	"crypto_quote_bot/internal/feature/quota/domain/entity"
	"crypto_quote_bot/internal/platform/metrics"
)

const (
	// DefaultWindow はクォータの集計期間のデフォルト値です。
	DefaultWindow = 24 * time.Hour
	// DefaultStoreTimeout はストア呼び出し1回あたりのタイムアウトです。
	DefaultStoreTimeout = 2 * time.Second
)

// Store はクォータレコードの永続化レイヤーを抽象化します。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type Store interface {
	// Consume はウィンドウの期限切れリセットと、count < limit の場合のインクリメントを
	// 1回の原子的な操作として行い、消費できたかどうかを返します。
	// limit が Unlimited の場合は上限なしでインクリメントします。
	Consume(ctx context.Context, userID string, limit int, window time.Duration, now time.Time) (bool, error)
	// Find はユーザーのレコードを返します。存在しない場合は found=false を返します。
	Find(ctx context.Context, userID string) (rec entity.QuotaRecord, found bool, err error)
}

// Config はLedgerの動作設定です。
type Config struct {
	Window       time.Duration
	StoreTimeout time.Duration
	// FailOpen が true の場合、ストア到達不能時にリクエストを許可します。
	// デフォルト（false）は拒否します。
	FailOpen bool
}

// Ledger はユーザーごとの利用回数を管理します。
type Ledger struct {
	store    Store
	policies tierentity.Policies
	cfg      Config
	now      func() time.Time
}

// NewLedger は Ledger の新しいインスタンスを生成します。
func NewLedger(store Store, policies tierentity.Policies, cfg Config) *Ledger {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	return &Ledger{store: store, policies: policies, cfg: cfg, now: time.Now}
}

// CheckAndIncrement はティアの上限内であれば利用回数を1つ進めて true を返します。
// 上限に達している場合は回数を変更せず false を返します。
//
// ストアに到達できない場合は ErrStoreUnavailable をラップしたエラーを返し、
// 許可するかどうかは Config.FailOpen に従います。
// ctx 自体がキャンセルされた場合は ctx.Err() をそのまま返し、許可しません。
func (l *Ledger) CheckAndIncrement(ctx context.Context, userID string, tier tierentity.Tier) (bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, ErrInvalidUser
	}
	pol, ok := l.policies.Lookup(tier)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}
	if pol.QuotaLimit == 0 {
		metrics.QuotaDecisions.WithLabelValues(string(tier), "denied").Inc()
		return false, nil
	}

	sctx, cancel := context.WithTimeout(ctx, l.cfg.StoreTimeout)
	defer cancel()

	allowed, err := l.store.Consume(sctx, userID, pol.QuotaLimit, l.cfg.Window, l.now().UTC())
	if err != nil {
		// 呼び出し元のキャンセルはストア障害ではない
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		metrics.QuotaDecisions.WithLabelValues(string(tier), "store_unavailable").Inc()
		slog.Warn("quota store unavailable", "user_id", userID, "fail_open", l.cfg.FailOpen, "error", err)
		return l.cfg.FailOpen, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	result := "allowed"
	if !allowed {
		result = "denied"
	}
	metrics.QuotaDecisions.WithLabelValues(string(tier), result).Inc()
	return allowed, nil
}

// Usage は現在のウィンドウにおける利用状況を返します。
func (l *Ledger) Usage(ctx context.Context, userID string, tier tierentity.Tier) (entity.Usage, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return entity.Usage{}, ErrInvalidUser
	}
	pol, ok := l.policies.Lookup(tier)
	if !ok {
		return entity.Usage{}, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}

	sctx, cancel := context.WithTimeout(ctx, l.cfg.StoreTimeout)
	defer cancel()

	rec, found, err := l.store.Find(sctx, userID)
	if err != nil {
		if ctx.Err() != nil {
			return entity.Usage{}, ctx.Err()
		}
		return entity.Usage{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := l.now().UTC()
	u := entity.Usage{
		UserID:    userID,
		Tier:      string(tier),
		Limit:     pol.QuotaLimit,
		Unlimited: pol.QuotaLimit == tierentity.Unlimited,
	}
	// 期限切れのウィンドウは次の消費時にリセットされるため、未使用として扱う
	if found && !now.After(rec.WindowStart.Add(l.cfg.Window)) {
		u.Used = rec.Count
		u.ResetsAt = rec.WindowStart.Add(l.cfg.Window)
	}
	return u, nil
}
