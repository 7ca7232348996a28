// Package domain models reported UFO sighting records and their geocoding.
//
// # Data Source
//
// Sighting reports come from the National UFO Reporting Center (NUFORC) export,
// distributed as a tab-delimited text file (ufo_awesome.txt). Each line is one
// report; there is no header row and fields are positional.
//
// # Row Layout
//
//	[0] sighted date    YYYYMMDD, e.g. "19951009"
//	[1] reported date   YYYYMMDD, e.g. "19951011"
//	[2] location        free text, usually "City, ST", e.g. "Iowa City, IA"
//	[3] shape           free text, may be blank ("light", "disk", ...)
//	[4] duration        free text, may be blank ("2 min.", "1/2 hour")
//	[5] description     free text narrative
//
// Rows in the wild are often short or carry stray tabs. Shape and duration are
// optional and default to the empty string; the two dates, the location and the
// description are required. See [ParseRow].
//
// Dates are normalized to ISO 8601 calendar dates ("1995-10-09"). An eight-digit
// value that is not a real calendar date (e.g. "19950231") is rejected.
//
// # Geocoding
//
// The location is resolved to WGS-84 coordinates by trying geocoding providers
// in a fixed priority order and keeping the first candidate of the first
// provider that answers with a usable match. Failing to resolve a location is
// an expected outcome, represented as an unresolved [GeoResult] rather than an
// error. See [Resolver].
package domain
