// Package handler はコマンドフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"crypto_quote_bot/internal/feature/command/domain/entity"
	"crypto_quote_bot/internal/feature/command/transport/http/dto"
	tierentity "crypto_quote_bot/internal/feature/entitlement/domain/entity"
	quotaentity "crypto_quote_bot/internal/feature/quota/domain/entity"
	quotausecase "crypto_quote_bot/internal/feature/quota/usecase"
)

// CommandUsecase はコマンド処理のユースケースインターフェースです。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type CommandUsecase interface {
	Handle(ctx context.Context, cmd entity.Command) entity.Response
}

// QuotaReader は利用状況の読み取りを抽象化します。
type QuotaReader interface {
	Usage(ctx context.Context, userID string, tier tierentity.Tier) (quotaentity.Usage, error)
}

// CommandHandler はゲートウェイからのコマンドを処理します。
type CommandHandler struct {
	uc    CommandUsecase
	quota QuotaReader
}

// NewCommandHandler は CommandHandler の新しいインスタンスを生成します。
func NewCommandHandler(uc CommandUsecase, quota QuotaReader) *CommandHandler {
	return &CommandHandler{uc: uc, quota: quota}
}

// Quote はクォートコマンドを処理し、終端のResponseをJSONで返します。
//
// エンドポイント例:
// POST /v1/commands/quote
// {"userId":"123","membershipSet":["456"],"assetId":"1","convert":"USD","interval":"daily"}
func (h *CommandHandler) Quote(c *gin.Context) {
	var req dto.QuoteCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"})
		return
	}

	resp := h.uc.Handle(c.Request.Context(), entity.Command{
		UserID:      req.UserID,
		Memberships: req.MembershipSet,
		AssetID:     req.AssetID,
		Convert:     req.Convert,
		TimeStart:   req.TimeStart,
		TimeEnd:     req.TimeEnd,
		Interval:    req.Interval,
	})

	c.JSON(httpStatus(resp), toCommandResponse(resp))
}

// Usage は指定ユーザーの現在のウィンドウの利用状況を返します。
//
// エンドポイント例:
// GET /v1/quota/:userId?tier=free
func (h *CommandHandler) Usage(c *gin.Context) {
	tier, ok := tierentity.ParseTier(c.DefaultQuery("tier", string(tierentity.TierFree)))
	if !ok {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "unknown tier"})
		return
	}

	u, err := h.quota.Usage(c.Request.Context(), c.Param("userId"), tier)
	if err != nil {
		switch {
		case errors.Is(err, quotausecase.ErrInvalidUser), errors.Is(err, quotausecase.ErrUnknownTier):
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		default:
			c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "usage tracking unavailable"})
		}
		return
	}

	out := dto.QuotaResponse{
		UserID:    u.UserID,
		Tier:      u.Tier,
		Used:      u.Used,
		Limit:     u.Limit,
		Unlimited: u.Unlimited,
	}
	if !u.ResetsAt.IsZero() {
		out.ResetsAt = u.ResetsAt.UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, out)
}

// httpStatus maps a terminal Response to an HTTP status code for the gateway.
func httpStatus(resp entity.Response) int {
	switch resp.Status {
	case entity.StatusOK, entity.StatusDegraded:
		return http.StatusOK
	case entity.StatusDenied:
		return http.StatusTooManyRequests
	}
	switch resp.Failure {
	case entity.FailureValidation:
		return http.StatusBadRequest
	case entity.FailureUpstream:
		return http.StatusBadGateway
	case entity.FailureCanceled:
		return http.StatusRequestTimeout
	}
	return http.StatusServiceUnavailable
}

func toCommandResponse(resp entity.Response) dto.CommandResponse {
	out := dto.CommandResponse{
		Status:    string(resp.Status),
		Failure:   string(resp.Failure),
		FetchKind: string(resp.FetchKind),
		Reason:    resp.Reason,
		Narrative: resp.Narrative,
	}
	if q := resp.Quotes; q != nil {
		points := make([]dto.PointResponse, 0, len(q.Points))
		for _, p := range q.Points {
			points = append(points, dto.PointResponse{
				TimeOpen:  p.TimeOpen.UTC().Format(time.RFC3339),
				TimeClose: p.TimeClose.UTC().Format(time.RFC3339),
				Open:      p.Open,
				High:      p.High,
				Low:       p.Low,
				Close:     p.Close,
				Volume:    p.Volume,
			})
		}
		out.Quotes = &dto.QuoteSetResponse{
			AssetID:  q.AssetID,
			Name:     q.Name,
			Symbol:   q.Symbol,
			Currency: q.Currency,
			Points:   points,
		}
	}
	if u := resp.Quota; u != nil {
		out.Quota = &dto.QuotaResponse{
			Tier:      u.Tier,
			Used:      u.Used,
			Limit:     u.Limit,
			Unlimited: u.Unlimited,
		}
		if !u.ResetsAt.IsZero() {
			out.Quota.ResetsAt = u.ResetsAt.UTC().Format(time.RFC3339)
		}
	}
	return out
}
