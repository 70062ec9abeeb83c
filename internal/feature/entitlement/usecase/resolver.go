// Package usecase は利用者の権限ティアを判定します。
package usecase

import (
	"errors"
	"strings"

	"crypto_quote_bot/internal/feature/entitlement/domain/entity"
)

// ErrMembershipUnavailable はロール情報が取得できなかったことを示します。
// この場合でも Resolve は free を返します（premium にはしません）。
var ErrMembershipUnavailable = errors.New("membership-unavailable")

// Resolver は設定されたプレミアムロールIDをもとにティアを判定します。
// 状態を持たず、結果は入力のみで決まります。
type Resolver struct {
	premiumRoleID string
}

// NewResolver は Resolver の新しいインスタンスを生成します。
func NewResolver(premiumRoleID string) *Resolver {
	return &Resolver{premiumRoleID: strings.TrimSpace(premiumRoleID)}
}

// Resolve はメンバーシップにプレミアムロールが含まれていれば premium を返します。
// memberships が nil の場合はロール情報なしとみなし、free と ErrMembershipUnavailable を返します。
func (r *Resolver) Resolve(userID string, memberships []string) (entity.Tier, error) {
	if memberships == nil {
		return entity.TierFree, ErrMembershipUnavailable
	}
	if r.premiumRoleID == "" {
		return entity.TierFree, nil
	}
	for _, m := range memberships {
		if strings.TrimSpace(m) == r.premiumRoleID {
			return entity.TierPremium, nil
		}
	}
	return entity.TierFree, nil
}
