// Package usecase はクォートコマンドの処理パイプライン（権限判定、利用回数、取得、要約）を実装します。
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"crypto_quote_bot/internal/feature/command/domain/entity"
	tierentity "crypto_quote_bot/internal/feature/entitlement/domain/entity"
	quotaentity "crypto_quote_bot/internal/feature/quota/domain/entity"
	quotausecase "crypto_quote_bot/internal/feature/quota/usecase"
	quotesdomain "crypto_quote_bot/internal/feature/quotes/domain"
	quoteentity "crypto_quote_bot/internal/feature/quotes/domain/entity"
	"crypto_quote_bot/internal/platform/metrics"
)

// ユーザーに表示する文言。内部のエラー詳細は含めない。
const (
	ReasonMisconfigured     = "service misconfigured"
	ReasonLimitReached      = "request limit reached for this period"
	ReasonTierDisabled      = "quotes are not available for your membership tier"
	ReasonUnavailable       = "market data is temporarily unavailable, please try again later"
	ReasonUnknownAsset      = "unknown asset"
	ReasonRejected          = "the quote request could not be processed with these parameters"
	ReasonStoreUnavailable  = "usage tracking is temporarily unavailable, please try again later"
	ReasonCanceled          = "request canceled"
	ReasonNarrativeUnusable = "narrative unavailable"
)

// EntitlementResolver はユーザーのティアを判定します。
type EntitlementResolver interface {
	Resolve(userID string, memberships []string) (tierentity.Tier, error)
}

// QuotaLedger はユーザーごとの利用回数を管理します。
type QuotaLedger interface {
	CheckAndIncrement(ctx context.Context, userID string, tier tierentity.Tier) (bool, error)
	Usage(ctx context.Context, userID string, tier tierentity.Tier) (quotaentity.Usage, error)
}

// QuoteCache はフィンガープリント単位でQuoteSetを保持します。
type QuoteCache interface {
	Get(fingerprint string) (quoteentity.QuoteSet, bool)
	Put(fingerprint string, set quoteentity.QuoteSet)
}

// MarketData は市場データの取得元です。
type MarketData interface {
	Fetch(ctx context.Context, req quoteentity.QuoteRequest) (quoteentity.QuoteSet, error)
}

// NarrativeEnricher はQuoteSetの要約文を生成します。
type NarrativeEnricher interface {
	Summarize(ctx context.Context, set quoteentity.QuoteSet) (string, error)
}

// AlertNotifier は運用者向けの通知を送信します。
type AlertNotifier interface {
	Notify(ctx context.Context, alert entity.Alert) error
}

// TierRecorder は判定したティアをユーザーディレクトリに記録します。
type TierRecorder interface {
	RecordTier(ctx context.Context, userID string, tier tierentity.Tier) error
}

// Deps はOrchestratorの依存関係です。Enricher, Alerts, Users は省略できます。
type Deps struct {
	Resolver EntitlementResolver
	Ledger   QuotaLedger
	Cache    QuoteCache
	Market   MarketData
	Enricher NarrativeEnricher
	Alerts   AlertNotifier
	Users    TierRecorder
	Policies tierentity.Policies
}

// Config はOrchestratorの動作設定です。
type Config struct {
	// EnrichmentEnabled が false の場合、ティアに関わらず要約を行いません。
	EnrichmentEnabled bool
	// StoreTimeout はティア記録の書き込み1回あたりのタイムアウトです。0の場合は2秒です。
	StoreTimeout time.Duration
}

// Orchestrator は1件のコマンドを Received → Authorizing → Fetching → Enriching → Completed の順に処理します。
type Orchestrator struct {
	resolver EntitlementResolver
	ledger   QuotaLedger
	cache    QuoteCache
	market   MarketData
	enricher NarrativeEnricher
	alerts   AlertNotifier
	users    TierRecorder
	policies tierentity.Policies
	cfg      Config

	// 同一フィンガープリントの同時ミスを1回の取得にまとめる
	inflight singleflight.Group
	now      func() time.Time
}

// NewOrchestrator は Orchestrator の新しいインスタンスを生成します。
func NewOrchestrator(d Deps, cfg Config) *Orchestrator {
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = quotausecase.DefaultStoreTimeout
	}
	return &Orchestrator{
		resolver: d.Resolver,
		ledger:   d.Ledger,
		cache:    d.Cache,
		market:   d.Market,
		enricher: d.Enricher,
		alerts:   d.Alerts,
		users:    d.Users,
		policies: d.Policies,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Handle はコマンドを処理し、終端のResponseを返します。エラーは常にResponseとして表現されます。
func (o *Orchestrator) Handle(ctx context.Context, cmd entity.Command) entity.Response {
	start := o.now()
	resp := o.handle(ctx, cmd)
	elapsed := o.now().Sub(start)

	metrics.CommandsTotal.WithLabelValues(string(resp.Status), string(resp.Failure)).Inc()
	metrics.CommandDuration.WithLabelValues(string(resp.Status)).Observe(elapsed.Seconds())
	slog.Info("quote command completed",
		"user_id", cmd.UserID,
		"asset", cmd.AssetID,
		"status", resp.Status,
		"failure", resp.Failure,
		"fetch_kind", resp.FetchKind,
		"duration_ms", elapsed.Milliseconds(),
	)
	return resp
}

func (o *Orchestrator) handle(ctx context.Context, cmd entity.Command) entity.Response {
	// Received
	userID := strings.TrimSpace(cmd.UserID)
	req, err := parseCommand(cmd)
	if err != nil {
		return terminal(entity.StatusError, entity.FailureValidation, err.Error())
	}
	if ctx.Err() != nil {
		return canceled()
	}

	// Authorizing
	tier, err := o.resolver.Resolve(userID, cmd.Memberships)
	if err != nil {
		slog.Warn("membership unavailable, resolving as free", "user_id", userID, "error", err)
	}
	if o.users != nil {
		go o.recordTier(context.WithoutCancel(ctx), userID, tier)
	}

	allowed, err := o.ledger.CheckAndIncrement(ctx, userID, tier)
	if err != nil {
		if resp, stop := o.quotaFailure(ctx, userID, tier, allowed, err); stop {
			return resp
		}
	}
	if !allowed {
		resp := terminal(entity.StatusDenied, entity.FailureDenied, ReasonLimitReached)
		if pol, ok := o.policies.Lookup(tier); ok && pol.QuotaLimit == 0 {
			resp.Reason = ReasonTierDisabled
		}
		resp.Quota = o.snapshot(ctx, userID, tier)
		return resp
	}
	usage := o.snapshot(ctx, userID, tier)
	if ctx.Err() != nil {
		return canceled()
	}

	// Fetching
	set, err := o.fetch(ctx, req)
	if err != nil {
		resp := o.fetchFailure(ctx, userID, req, err)
		resp.Quota = usage
		return resp
	}
	if ctx.Err() != nil {
		return canceled()
	}

	// Enriching
	resp := entity.Response{Status: entity.StatusOK, Quotes: &set, Quota: usage}
	if o.enrichmentAllowed(tier) {
		text, err := o.enricher.Summarize(ctx, set)
		if err != nil || strings.TrimSpace(text) == "" {
			slog.Warn("narrative enrichment failed, degrading response", "user_id", userID, "asset", req.AssetID, "error", err)
			resp.Status = entity.StatusDegraded
			resp.Reason = ReasonNarrativeUnusable
		} else {
			resp.Narrative = text
		}
	}

	// Completed
	return resp
}

// quotaFailure handles a ledger error. stop is true when the command must end here.
func (o *Orchestrator) quotaFailure(ctx context.Context, userID string, tier tierentity.Tier, allowed bool, err error) (entity.Response, bool) {
	if ctx.Err() != nil {
		return canceled(), true
	}
	switch {
	case errors.Is(err, quotausecase.ErrStoreUnavailable):
		o.raise(ctx, entity.Alert{
			Kind:    entity.AlertStore,
			Message: "quota store unavailable",
			Detail:  err.Error(),
			Labels:  map[string]string{"fail_open": fmt.Sprint(allowed)},
		})
		if allowed {
			slog.Warn("quota store unavailable, failing open", "user_id", userID, "error", err)
			return entity.Response{}, false
		}
		return terminal(entity.StatusError, entity.FailureStore, ReasonStoreUnavailable), true
	case errors.Is(err, quotausecase.ErrUnknownTier):
		o.raise(ctx, entity.Alert{
			Kind:    entity.AlertConfiguration,
			Message: "no quota policy configured for tier",
			Detail:  err.Error(),
			Labels:  map[string]string{"tier": string(tier)},
		})
		return terminal(entity.StatusError, entity.FailureConfiguration, ReasonMisconfigured), true
	case errors.Is(err, quotausecase.ErrInvalidUser):
		return terminal(entity.StatusError, entity.FailureValidation, err.Error()), true
	}
	slog.Error("quota check failed", "user_id", userID, "error", err)
	return terminal(entity.StatusError, entity.FailureStore, ReasonStoreUnavailable), true
}

// fetch serves from the cache, or fetches once per fingerprint and stores the result.
// The shared fetch is detached from the caller's cancellation so that other waiters
// and the cache still receive its result.
func (o *Orchestrator) fetch(ctx context.Context, req quoteentity.QuoteRequest) (quoteentity.QuoteSet, error) {
	fp := req.Fingerprint()
	if set, ok := o.cache.Get(fp); ok {
		return set, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := o.inflight.DoChan(fp, func() (any, error) {
		set, err := o.market.Fetch(detached, req)
		if err != nil {
			return nil, err
		}
		o.cache.Put(fp, set)
		return set, nil
	})

	select {
	case <-ctx.Done():
		return quoteentity.QuoteSet{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return quoteentity.QuoteSet{}, r.Err
		}
		return r.Val.(quoteentity.QuoteSet).Clone(), nil
	}
}

// fetchFailure maps a market-data failure to a user-facing terminal response.
func (o *Orchestrator) fetchFailure(ctx context.Context, userID string, req quoteentity.QuoteRequest, err error) entity.Response {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return canceled()
	}

	kind, ok := quotesdomain.KindOf(err)
	if !ok {
		kind = quotesdomain.KindUpstream
	}

	var resp entity.Response
	switch kind {
	case quotesdomain.KindUnauthorized:
		slog.Error("market data provider rejected credentials", "asset", req.AssetID, "error", err)
		o.raise(ctx, entity.Alert{
			Kind:    entity.AlertConfiguration,
			Message: "market data provider rejected credentials",
			Detail:  err.Error(),
			Labels:  map[string]string{"asset": req.AssetID},
		})
		resp = terminal(entity.StatusError, entity.FailureConfiguration, ReasonMisconfigured)
	case quotesdomain.KindNotFound:
		resp = terminal(entity.StatusError, entity.FailureValidation, ReasonUnknownAsset)
	case quotesdomain.KindInvalidRequest:
		resp = terminal(entity.StatusError, entity.FailureValidation, ReasonRejected)
	default:
		slog.Warn("market data unavailable", "user_id", userID, "asset", req.AssetID, "kind", kind, "error", err)
		resp = terminal(entity.StatusError, entity.FailureUpstream, ReasonUnavailable)
	}
	resp.FetchKind = kind
	return resp
}

func (o *Orchestrator) enrichmentAllowed(tier tierentity.Tier) bool {
	if !o.cfg.EnrichmentEnabled || o.enricher == nil {
		return false
	}
	pol, ok := o.policies.Lookup(tier)
	return ok && pol.Enrichment
}

// snapshot returns the caller's quota usage, or nil when it cannot be read.
func (o *Orchestrator) snapshot(ctx context.Context, userID string, tier tierentity.Tier) *entity.QuotaSnapshot {
	u, err := o.ledger.Usage(ctx, userID, tier)
	if err != nil {
		slog.Debug("quota usage unavailable", "user_id", userID, "error", err)
		return nil
	}
	return &entity.QuotaSnapshot{
		Tier:      u.Tier,
		Used:      u.Used,
		Limit:     u.Limit,
		Unlimited: u.Unlimited,
		ResetsAt:  u.ResetsAt,
	}
}

// recordTier is best effort and runs outside the command's critical path.
func (o *Orchestrator) recordTier(ctx context.Context, userID string, tier tierentity.Tier) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.StoreTimeout)
	defer cancel()
	if err := o.users.RecordTier(ctx, userID, tier); err != nil {
		slog.Warn("failed to record user tier", "user_id", userID, "tier", tier, "error", err)
	}
}

// raise sends an alert even if the command's context is already canceled.
func (o *Orchestrator) raise(ctx context.Context, a entity.Alert) {
	if a.RaisedAt.IsZero() {
		a.RaisedAt = o.now().UTC()
	}
	if o.alerts == nil {
		slog.Error("operational alert", "kind", a.Kind, "message", a.Message, "detail", a.Detail)
		return
	}
	if err := o.alerts.Notify(context.WithoutCancel(ctx), a); err != nil {
		slog.Error("failed to send operational alert", "kind", a.Kind, "error", err)
	}
}

func terminal(status entity.Status, kind entity.FailureKind, reason string) entity.Response {
	return entity.Response{Status: status, Failure: kind, Reason: reason}
}

func canceled() entity.Response {
	return terminal(entity.StatusError, entity.FailureCanceled, ReasonCanceled)
}
