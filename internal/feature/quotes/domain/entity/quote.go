// Package entity defines the market-data domain types shared by the quote pipeline.
package entity

import (
	"fmt"
	"strings"
	"time"
)

// Interval はOHLCVの集計単位です。
type Interval string

const (
	IntervalDaily   Interval = "daily"
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
)

// DefaultConvert は換算通貨が未指定の場合に使用される通貨コードです。
const DefaultConvert = "USD"

// Valid は許可された集計単位かどうかを返します。
func (i Interval) Valid() bool {
	switch i {
	case IntervalDaily, IntervalWeekly, IntervalMonthly:
		return true
	}
	return false
}

// QuoteRequest は過去OHLCVデータの取得条件です。
// TimeStart/TimeEnd のゼロ値は「指定なし」を表します。
type QuoteRequest struct {
	AssetID   string
	Convert   string
	TimeStart time.Time
	TimeEnd   time.Time
	Interval  Interval
}

// Normalize はデフォルト値を補完し、表記ゆれを取り除いたリクエストを返します。
func (r QuoteRequest) Normalize() QuoteRequest {
	out := QuoteRequest{
		AssetID:  strings.TrimSpace(r.AssetID),
		Convert:  strings.ToUpper(strings.TrimSpace(r.Convert)),
		Interval: Interval(strings.ToLower(strings.TrimSpace(string(r.Interval)))),
	}
	if out.Convert == "" {
		out.Convert = DefaultConvert
	}
	if out.Interval == "" {
		out.Interval = IntervalDaily
	}
	if !r.TimeStart.IsZero() {
		out.TimeStart = r.TimeStart.UTC().Truncate(time.Second)
	}
	if !r.TimeEnd.IsZero() {
		out.TimeEnd = r.TimeEnd.UTC().Truncate(time.Second)
	}
	return out
}

// Fingerprint はキャッシュ検索用の決定的なキーを返します。
// 正規化後の全フィールドから生成されるため、表記ゆれのあるリクエスト同士も同じキーになります。
func (r QuoteRequest) Fingerprint() string {
	n := r.Normalize()
	return fmt.Sprintf("id=%s|convert=%s|start=%s|end=%s|interval=%s",
		n.AssetID, n.Convert, formatBound(n.TimeStart), formatBound(n.TimeEnd), n.Interval)
}

func formatBound(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

// Point は1区間分のOHLCVです。
type Point struct {
	TimeOpen  time.Time `json:"time_open"`
	TimeClose time.Time `json:"time_close"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// QuoteSet は時刻昇順に並んだOHLCVの集合です。構築後は変更しません。
type QuoteSet struct {
	AssetID  string  `json:"asset_id"`
	Name     string  `json:"name"`
	Symbol   string  `json:"symbol"`
	Currency string  `json:"currency"`
	Points   []Point `json:"points"`

	// FetchedAt はプロバイダーから取得した時刻です。キャッシュの経過時間はここから数えます。
	FetchedAt time.Time `json:"fetched_at,omitzero"`
}

// Clone は Points を複製したコピーを返します。
func (q QuoteSet) Clone() QuoteSet {
	out := q
	if q.Points != nil {
		out.Points = make([]Point, len(q.Points))
		copy(out.Points, q.Points)
	}
	return out
}

// Len は含まれる区間数を返します。
func (q QuoteSet) Len() int {
	return len(q.Points)
}
