// Package usecase implements the per-user quota ledger.
package usecase

import "errors"

var (
	// ErrStoreUnavailable is returned when the quota store could not be reached.
	// Whether the request was still allowed depends on the fail-open policy.
	ErrStoreUnavailable = errors.New("quota store unavailable")

	// ErrUnknownTier is returned when no policy is configured for the tier.
	ErrUnknownTier = errors.New("no quota policy for tier")

	// ErrInvalidUser is returned for an empty user identifier.
	ErrInvalidUser = errors.New("user id is required")
)
