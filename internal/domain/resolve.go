package domain

import (
	"context"
	"log/slog"
	"math"
	"strings"
)

// GeoResult is the outcome of resolving a location. It is either resolved,
// with both coordinates set, or unresolved with neither.
type GeoResult struct {
	resolved   bool
	Lat        float64
	Lng        float64
	PlaceLabel string
	Provider   string
}

// Resolved builds a resolved GeoResult.
func Resolved(lat, lng float64, label, provider string) GeoResult {
	return GeoResult{resolved: true, Lat: lat, Lng: lng, PlaceLabel: label, Provider: provider}
}

// Unresolved is the result when no provider produced a usable match.
func Unresolved() GeoResult {
	return GeoResult{}
}

// IsResolved reports whether the coordinates are valid.
func (g GeoResult) IsResolved() bool { return g.resolved }

// LatText renders the latitude, or "" when unresolved.
func (g GeoResult) LatText() string {
	if !g.resolved {
		return ""
	}
	return formatCoord(g.Lat)
}

// LngText renders the longitude, or "" when unresolved.
func (g GeoResult) LngText() string {
	if !g.resolved {
		return ""
	}
	return formatCoord(g.Lng)
}

// Status is "resolved" or "unresolved", used for logs and message headers.
func (g GeoResult) Status() string {
	if g.resolved {
		return "resolved"
	}
	return "unresolved"
}

// Resolver walks an ordered chain of providers until one yields a usable match.
type Resolver struct {
	providers []Provider
	logger    *slog.Logger
}

// NewResolver creates a Resolver that tries providers in the given order.
func NewResolver(logger *slog.Logger, providers ...Provider) *Resolver {
	return &Resolver{providers: providers, logger: logger}
}

// Providers returns the names of the chain in priority order.
func (r *Resolver) Providers() []string {
	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name()
	}
	return names
}

// Resolve geocodes query. Only the first candidate of the first successful
// provider is used. Every provider failure is logged and swallowed; when the
// chain is exhausted the result is Unresolved.
func (r *Resolver) Resolve(ctx context.Context, query string) GeoResult {
	if strings.TrimSpace(query) == "" {
		return Unresolved()
	}

	for _, p := range r.providers {
		if ctx.Err() != nil {
			return Unresolved()
		}

		m, err := firstMatch(ctx, p, query)
		if err != nil {
			r.logger.Warn("geocode provider failed, trying next",
				"provider", p.Name(),
				"kind", string(FailureKindOf(err)),
				"location", query,
				"error", err,
			)
			continue
		}
		return Resolved(m.Lat, m.Lng, m.Label, p.Name())
	}

	return Unresolved()
}

func firstMatch(ctx context.Context, p Provider, query string) (Match, error) {
	matches, err := p.Geocode(ctx, query)
	if err != nil {
		return Match{}, err
	}
	if len(matches) == 0 {
		return Match{}, NewProviderError(p.Name(), FailureNoMatch, nil)
	}
	m := matches[0]
	if !validCoordinate(m.Lat, m.Lng) {
		return Match{}, NewProviderError(p.Name(), FailureMalformed, nil)
	}
	return m, nil
}

// validCoordinate reports whether lat/lng form a finite WGS-84 position.
func validCoordinate(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
