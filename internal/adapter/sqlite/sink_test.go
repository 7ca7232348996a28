package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom/encoding/wkb"

	"github.com/couchcryptid/ufo-sightings-etl/internal/domain"
)

func openWithSchema(t *testing.T) *Sink {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.db.Exec(Schema)
	require.NoError(t, err)
	return s
}

func record(row int, location string, geo domain.GeoResult) domain.ResolvedSighting {
	return domain.ResolvedSighting{
		Sighting: domain.Sighting{
			SightedAt:   time.Date(1995, 10, 9, 0, 0, 0, 0, time.UTC),
			ReportedAt:  time.Date(1995, 10, 10, 0, 0, 0, 0, time.UTC),
			Location:    location,
			Shape:       "disk",
			Duration:    "2 min.",
			Description: `Robert's "lights" '); DROP TABLE sightings; --`,
		},
		Geo: geo,
		Row: row,
	}
}

type storedRow struct {
	sightingDate, reportingDate, location, lat, lng, description, shape, duration string
	geom                                                                          []byte
}

func selectAll(t *testing.T, s *Sink) []storedRow {
	t.Helper()
	rows, err := s.db.Query(`SELECT sighting_date, reporting_date, location, lat, lng,
		description, shape, duration, geom FROM sightings ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close() //nolint:errcheck

	var out []storedRow
	for rows.Next() {
		var r storedRow
		require.NoError(t, rows.Scan(&r.sightingDate, &r.reportingDate, &r.location, &r.lat, &r.lng,
			&r.description, &r.shape, &r.duration, &r.geom))
		out = append(out, r)
	}
	require.NoError(t, rows.Err())
	return out
}

func TestSink_Load(t *testing.T) {
	s := openWithSchema(t)
	ctx := context.Background()

	require.NoError(t, s.Load(ctx, record(1, "Roswell, NM", domain.Resolved(33.3943, -104.523, "Roswell", "google"))))
	require.NoError(t, s.Load(ctx, record(2, "Nowhere", domain.Unresolved())))

	got := selectAll(t, s)
	require.Len(t, got, 2)

	assert.Equal(t, "1995-10-09", got[0].sightingDate)
	assert.Equal(t, "1995-10-10", got[0].reportingDate)
	assert.Equal(t, "Roswell, NM", got[0].location)
	assert.Equal(t, "33.3943", got[0].lat)
	assert.Equal(t, "-104.523", got[0].lng)
	assert.Equal(t, `Robert's "lights" '); DROP TABLE sightings; --`, got[0].description)
	assert.Equal(t, "disk", got[0].shape)
	assert.Equal(t, "2 min.", got[0].duration)

	g, err := wkb.Unmarshal(got[0].geom)
	require.NoError(t, err)
	assert.Equal(t, []float64{-104.523, 33.3943}, g.FlatCoords())

	assert.Empty(t, got[1].lat)
	assert.Empty(t, got[1].lng)
	assert.Nil(t, got[1].geom)
}

func TestSink_Load_MissingTable(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	err = s.Load(context.Background(), record(7, "Roswell, NM", domain.Unresolved()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 7")
}

func TestSink_FileDatabase(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "sightings.db"))
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	require.NoError(t, s.Ping(context.Background()))
}
