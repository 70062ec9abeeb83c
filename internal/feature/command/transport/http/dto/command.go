// Package dto defines the JSON bodies of the command endpoints.
package dto

// QuoteCommandRequest はゲートウェイから受け取るクォートコマンドです。
// membershipSet が null または省略された場合はロール情報なしとして扱います。
type QuoteCommandRequest struct {
	UserID        string   `json:"userId"`
	MembershipSet []string `json:"membershipSet"`
	AssetID       string   `json:"assetId"`
	Convert       string   `json:"convert,omitempty"`
	TimeStart     string   `json:"timeStart,omitempty"`
	TimeEnd       string   `json:"timeEnd,omitempty"`
	Interval      string   `json:"interval,omitempty"`
}

// CommandResponse はコマンドの終端結果です。
type CommandResponse struct {
	Status    string            `json:"status"`
	Failure   string            `json:"failure,omitempty"`
	FetchKind string            `json:"fetchKind,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Quotes    *QuoteSetResponse `json:"quotes,omitempty"`
	Narrative string            `json:"narrative,omitempty"`
	Quota     *QuotaResponse    `json:"quota,omitempty"`
}

// QuoteSetResponse はOHLCVの集合です。
type QuoteSetResponse struct {
	AssetID  string          `json:"assetId"`
	Name     string          `json:"name"`
	Symbol   string          `json:"symbol"`
	Currency string          `json:"currency"`
	Points   []PointResponse `json:"points"`
}

// PointResponse は1区間分のOHLCVです。
type PointResponse struct {
	TimeOpen  string  `json:"timeOpen"`  // RFC3339
	TimeClose string  `json:"timeClose"` // RFC3339
	Open      float64 `json:"open"`      // 始値
	High      float64 `json:"high"`      // 高値
	Low       float64 `json:"low"`       // 安値
	Close     float64 `json:"close"`     // 終値
	Volume    float64 `json:"volume"`    // 出来高
}

// QuotaResponse は現在のウィンドウの利用状況です。
type QuotaResponse struct {
	UserID    string `json:"userId,omitempty"`
	Tier      string `json:"tier"`
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Unlimited bool   `json:"unlimited"`
	ResetsAt  string `json:"resetsAt,omitempty"`
}

// ErrorResponse はリクエスト自体を処理できなかった場合のレスポンスです。
type ErrorResponse struct {
	Error string `json:"error"`
}
