package domain

import (
	"context"
	"errors"
	"fmt"
)

// Match is one candidate returned by a geocoding provider for a free-text query.
type Match struct {
	Label string
	Lat   float64
	Lng   float64
}

// Provider is a single geocoding backend in the fallback chain.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Geocode returns the provider's candidates for query, best first.
	// Failures should be reported as *ProviderError so the cause is classified.
	Geocode(ctx context.Context, query string) ([]Match, error)
}

// FailureKind classifies why a provider could not resolve a query.
type FailureKind string

const (
	FailureNoMatch     FailureKind = "no_match"
	FailureRateLimited FailureKind = "rate_limited"
	FailureAuth        FailureKind = "auth"
	FailureTransport   FailureKind = "transport"
	FailureUpstream    FailureKind = "upstream"
	FailureMalformed   FailureKind = "malformed"
)

// ProviderError is a classified provider failure.
type ProviderError struct {
	Provider string
	Kind     FailureKind
	Err      error
}

// NewProviderError builds a ProviderError for the named provider.
func NewProviderError(provider string, kind FailureKind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// FailureKindOf extracts the failure kind from err. Errors that were not
// classified by the provider are reported as transport failures.
func FailureKindOf(err error) FailureKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return FailureTransport
}
