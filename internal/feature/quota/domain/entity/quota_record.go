// Package entity defines the quota ledger's domain types.
package entity

import "time"

// QuotaRecord is a user's usage in the current window.
type QuotaRecord struct {
	UserID      string
	WindowStart time.Time
	Count       int
	Limit       int
}

// Usage is a read-only snapshot of a user's quota for a tier.
type Usage struct {
	UserID    string
	Tier      string
	Used      int
	Limit     int
	Unlimited bool
	ResetsAt  time.Time
}
