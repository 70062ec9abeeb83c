// Package domain defines the failure taxonomy of the market-data client.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// FailureKind classifies why a market-data fetch failed.
type FailureKind string

const (
	// KindInvalidRequest indicates malformed parameters. Not retried.
	KindInvalidRequest FailureKind = "InvalidRequest"
	// KindUnauthorized indicates a credential or plan problem. Not retried.
	KindUnauthorized FailureKind = "Unauthorized"
	// KindNotFound indicates an unknown asset identifier. Not retried.
	KindNotFound FailureKind = "NotFound"
	// KindRateLimited indicates the provider quota is exhausted.
	KindRateLimited FailureKind = "RateLimited"
	// KindUpstream indicates a provider-side failure (5xx, malformed body).
	KindUpstream FailureKind = "UpstreamError"
	// KindTimeout indicates the provider did not answer in time.
	KindTimeout FailureKind = "Timeout"
)

// Retryable reports whether a failure of this kind may succeed on a later attempt.
func (k FailureKind) Retryable() bool {
	switch k {
	case KindRateLimited, KindUpstream, KindTimeout:
		return true
	}
	return false
}

// FetchError is the typed failure returned by the market-data client.
// Err carries provider detail for logs and must not be shown to end users.
type FetchError struct {
	Kind       FailureKind
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("market data %s (http %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("market data %s: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError builds a FetchError from a kind and a formatted detail message.
func NewFetchError(kind FailureKind, status int, format string, args ...any) *FetchError {
	return &FetchError{Kind: kind, StatusCode: status, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the FailureKind from err, if err wraps a FetchError.
func KindOf(err error) (FailureKind, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}
