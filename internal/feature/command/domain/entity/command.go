// Package entity defines the command pipeline's inbound and terminal types.
package entity

import (
	"time"

	"crypto_quote_bot/internal/feature/quotes/domain"
	"crypto_quote_bot/internal/feature/quotes/domain/entity"
)

// Command はチャットプラットフォームから受け取ったクォート要求です。
// 時刻は未解釈の文字列のまま受け取り、検証はオーケストレーターで行います。
type Command struct {
	UserID      string
	Memberships []string // nil はロール情報が取得できなかったことを表す
	AssetID     string
	Convert     string
	TimeStart   string
	TimeEnd     string
	Interval    string
}

// Status はレスポンスの終端状態です。
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusDenied   Status = "denied"
	StatusError    Status = "error"
)

// FailureKind はユーザー向けに分類した失敗の種別です。
type FailureKind string

const (
	FailureNone          FailureKind = ""
	FailureValidation    FailureKind = "ValidationError"
	FailureDenied        FailureKind = "DeniedError"
	FailureUpstream      FailureKind = "UpstreamUnavailable"
	FailureConfiguration FailureKind = "ConfigurationError"
	FailureStore         FailureKind = "StoreUnavailable"
	FailureCanceled      FailureKind = "Canceled"
)

// QuotaSnapshot is the caller's quota after the command was authorized.
type QuotaSnapshot struct {
	Tier      string
	Used      int
	Limit     int
	Unlimited bool
	ResetsAt  time.Time
}

// Response はコマンドの終端結果です。
// Reason はユーザーに表示してよい短い文言で、プロバイダーの生のエラー文は含みません。
type Response struct {
	Status    Status
	Failure   FailureKind
	FetchKind domain.FailureKind // 市場データ取得が失敗した場合の種別
	Reason    string
	Quotes    *entity.QuoteSet
	Narrative string
	Quota     *QuotaSnapshot
}
