package domain

import (
	"fmt"
	"regexp"
	"time"

	"github.com/rotisserie/eris"
)

// Positional layout of a sighting row.
const (
	colSighted = iota
	colReported
	colLocation
	colShape
	colDuration
	colDescription

	// MinFields is the number of fields a complete row carries.
	MinFields
)

// Field names used in parse failures and reject logs.
const (
	FieldSighted     = "sighted_at"
	FieldReported    = "reported_at"
	FieldLocation    = "location"
	FieldDescription = "description"
)

// Reason classifies why a row could not become a Sighting.
type Reason string

const (
	ReasonInvalidDate  Reason = "invalid_date"
	ReasonMissingField Reason = "missing_required_field"
	ReasonMalformedRow Reason = "malformed_row"
)

// ErrMalformedRow is returned by row readers when a line cannot be tokenized.
// The driver accounts for it like any other rejected row.
var ErrMalformedRow = eris.New("malformed row")

// ParseError reports a row-level parse failure.
type ParseError struct {
	Reason Reason
	Field  string
	Value  string
}

func (e *ParseError) Error() string {
	if e.Reason == ReasonInvalidDate {
		return fmt.Sprintf("%s: %s %q", e.Reason, e.Field, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Field)
}

// compactDateRe matches the eight-digit YYYYMMDD encoding used by the export.
var compactDateRe = regexp.MustCompile(`^[0-9]{8}$`)

// ParseRow turns one raw row into a Sighting. Checks run in column order and
// the first failure is returned as a *ParseError; no partial record is built.
func ParseRow(row RawRow) (Sighting, error) {
	sighted, err := parseDateField(row, colSighted, FieldSighted)
	if err != nil {
		return Sighting{}, err
	}
	reported, err := parseDateField(row, colReported, FieldReported)
	if err != nil {
		return Sighting{}, err
	}

	location, ok := row.field(colLocation)
	if !ok {
		return Sighting{}, &ParseError{Reason: ReasonMissingField, Field: FieldLocation}
	}
	description, ok := row.field(colDescription)
	if !ok {
		return Sighting{}, &ParseError{Reason: ReasonMissingField, Field: FieldDescription}
	}

	// Optional columns fall back to "" when the row is too short.
	shape, _ := row.field(colShape)
	duration, _ := row.field(colDuration)

	return Sighting{
		SightedAt:   sighted,
		ReportedAt:  reported,
		Location:    location,
		Shape:       shape,
		Duration:    duration,
		Description: description,
	}, nil
}

func parseDateField(row RawRow, col int, name string) (time.Time, error) {
	raw, ok := row.field(col)
	if !ok {
		return time.Time{}, &ParseError{Reason: ReasonMissingField, Field: name}
	}
	d, err := ParseCompactDate(raw)
	if err != nil {
		return time.Time{}, &ParseError{Reason: ReasonInvalidDate, Field: name, Value: raw}
	}
	return d, nil
}

// ParseCompactDate parses a YYYYMMDD string into a UTC calendar date.
// Values that are not exactly eight digits or not a real date are rejected.
func ParseCompactDate(s string) (time.Time, error) {
	if !compactDateRe.MatchString(s) {
		return time.Time{}, eris.Errorf("domain: date %q is not YYYYMMDD", s)
	}
	t, err := time.Parse("20060102", s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "domain: date %q", s)
	}
	return t, nil
}
