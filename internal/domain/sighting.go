package domain

import (
	"strconv"
	"time"
)

// DateLayout is the canonical rendering of sighting and report dates.
const DateLayout = "2006-01-02"

// RawRow is one positional record as tokenized from the input file.
// A short row has fewer elements; absent fields are not empty strings.
type RawRow []string

// field returns the value at index i and whether the row is long enough to hold it.
func (r RawRow) field(i int) (string, bool) {
	if i < 0 || i >= len(r) {
		return "", false
	}
	return r[i], true
}

// Sighting is a parsed candidate record. It only exists when every required
// field parsed; Shape and Duration are always defined, possibly empty.
type Sighting struct {
	SightedAt   time.Time
	ReportedAt  time.Time
	Location    string
	Shape       string
	Duration    string
	Description string
}

// SightingDate renders the sighted date as YYYY-MM-DD.
func (s Sighting) SightingDate() string { return s.SightedAt.Format(DateLayout) }

// ReportingDate renders the reported date as YYYY-MM-DD.
func (s Sighting) ReportingDate() string { return s.ReportedAt.Format(DateLayout) }

// ResolvedSighting is a Sighting enriched with its geocoding outcome, ready for a sink.
type ResolvedSighting struct {
	Sighting
	Geo GeoResult

	// Row is the 1-based position of the source row in the input stream.
	Row int
}

// LatText returns the latitude as text, or "" when the location is unresolved.
func (r ResolvedSighting) LatText() string { return r.Geo.LatText() }

// LngText returns the longitude as text, or "" when the location is unresolved.
func (r ResolvedSighting) LngText() string { return r.Geo.LngText() }

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
