// Package adapters はentitlementフィーチャーの永続化実装を提供します。
package adapters

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"crypto_quote_bot/internal/feature/entitlement/domain/entity"
)

// BotUserModel は bot_users テーブルのGORMモデルです。
// 最後に判定したティアを記録するだけで、判定の入力としては読み戻しません。
type BotUserModel struct {
	PlatformID string    `gorm:"primaryKey;size:64"`
	Tier       string    `gorm:"size:16;not null"`
	FirstSeen  time.Time `gorm:"not null"`
	LastSeenAt time.Time `gorm:"index;not null"`
}

// TableName はGORM用のテーブル名を返します。
func (BotUserModel) TableName() string {
	return "bot_users"
}

// UserGorm はユーザーディレクトリのGORM実装です。
type UserGorm struct {
	db  *gorm.DB
	now func() time.Time
}

// NewUserGorm は指定されたgorm.DB接続でUserGormの新しいインスタンスを生成します。
func NewUserGorm(db *gorm.DB) *UserGorm {
	return &UserGorm{db: db, now: time.Now}
}

// RecordTier はユーザーの最新ティアと最終利用時刻をupsertします。
func (r *UserGorm) RecordTier(ctx context.Context, userID string, tier entity.Tier) error {
	now := r.now().UTC()
	m := BotUserModel{
		PlatformID: userID,
		Tier:       string(tier),
		FirstSeen:  now,
		LastSeenAt: now,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "platform_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"tier", "last_seen_at"}),
	}).Create(&m).Error
}
