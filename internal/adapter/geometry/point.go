// Package geometry encodes resolved sighting locations for spatial columns.
package geometry

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/wkb"

	"github.com/couchcryptid/ufo-sightings-etl/internal/domain"
)

// SRID of every stored point (WGS 84).
const SRID = 4326

// Point returns the location as a 2D point with X=longitude, Y=latitude, or
// nil when the location is unresolved.
func Point(g domain.GeoResult) *geom.Point {
	if !g.IsResolved() {
		return nil
	}
	return geom.NewPointFlat(geom.XY, []float64{g.Lng, g.Lat}).SetSRID(SRID)
}

// EWKB encodes the location as little-endian EWKB carrying SRID 4326.
// Unresolved locations encode to nil, which binds as SQL NULL.
func EWKB(g domain.GeoResult) ([]byte, error) {
	p := Point(g)
	if p == nil {
		return nil, nil
	}
	data, err := ewkb.Marshal(p, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: encode EWKB")
	}
	return data, nil
}

// WKB encodes the location as plain little-endian WKB, without SRID.
func WKB(g domain.GeoResult) ([]byte, error) {
	p := Point(g)
	if p == nil {
		return nil, nil
	}
	data, err := wkb.Marshal(p, wkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: encode WKB")
	}
	return data, nil
}
