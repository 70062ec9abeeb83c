// Package adapters provides storage implementations for the quota ledger.
package adapters

import (
	"time"

	"crypto_quote_bot/internal/feature/quota/domain/entity"
)

// QuotaRecordModel is the GORM model for the quota_records table.
// The pgx store writes the same table with hand-written SQL.
type QuotaRecordModel struct {
	UserID       string    `gorm:"primaryKey;size:64"`
	WindowStart  time.Time `gorm:"not null"`
	RequestCount int       `gorm:"not null;default:0"`
	TierLimit    int       `gorm:"not null;default:0"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM.
func (QuotaRecordModel) TableName() string {
	return "quota_records"
}

// ToEntity converts the GORM model to a domain entity.
func (m *QuotaRecordModel) ToEntity() entity.QuotaRecord {
	return entity.QuotaRecord{
		UserID:      m.UserID,
		WindowStart: m.WindowStart,
		Count:       m.RequestCount,
		Limit:       m.TierLimit,
	}
}
