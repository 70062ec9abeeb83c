// Package entity defines entitlement tiers and their data-driven policies.
package entity

// Tier is a user's entitlement level.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// Unlimited marks a tier without a quota cap.
const Unlimited = -1

// TierPolicy holds everything that varies by tier.
// QuotaLimit of Unlimited disables the cap; 0 disables the tier entirely.
type TierPolicy struct {
	QuotaLimit int
	Enrichment bool
}

// Policies maps each tier to its policy.
type Policies map[Tier]TierPolicy

// Lookup returns the policy for t.
func (p Policies) Lookup(t Tier) (TierPolicy, bool) {
	pol, ok := p[t]
	return pol, ok
}

// ParseTier converts a string into a known Tier.
func ParseTier(s string) (Tier, bool) {
	switch Tier(s) {
	case TierFree:
		return TierFree, true
	case TierPremium:
		return TierPremium, true
	}
	return "", false
}
