// Package sqlite loads resolved sightings into a local SQLite database,
// for runs without a PostgreSQL server.
package sqlite

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/couchcryptid/ufo-sightings-etl/internal/adapter/geometry"
	"github.com/couchcryptid/ufo-sightings-etl/internal/domain"
)

// Schema mirrors the PostgreSQL table. geom holds WKB (lng lat, SRID 4326)
// or NULL when the location was not resolved.
const Schema = `
CREATE TABLE IF NOT EXISTS sightings (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	sighting_date  TEXT NOT NULL,
	reporting_date TEXT NOT NULL,
	location       TEXT NOT NULL,
	lat            TEXT NOT NULL,
	lng            TEXT NOT NULL,
	description    TEXT NOT NULL,
	shape          TEXT NOT NULL,
	duration       TEXT NOT NULL,
	geom           BLOB
);
`

const insertSQL = `INSERT INTO sightings
	(sighting_date, reporting_date, location, lat, lng, description, shape, duration, geom)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Sink writes one row per record.
type Sink struct {
	db *sql.DB
}

// Open opens the database at dsn and configures WAL mode.
func Open(dsn string) (*Sink, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// ":memory:" databases live per connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck,gosec
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &Sink{db: db}, nil
}

// Load inserts rec.
func (s *Sink) Load(ctx context.Context, rec domain.ResolvedSighting) error {
	geom, err := geometry.WKB(rec.Geo)
	if err != nil {
		return eris.Wrapf(err, "sqlite: row %d", rec.Row)
	}
	_, err = s.db.ExecContext(ctx, insertSQL,
		rec.SightingDate(),
		rec.ReportingDate(),
		rec.Location,
		rec.LatText(),
		rec.LngText(),
		rec.Description,
		rec.Shape,
		rec.Duration,
		geom,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert row %d", rec.Row)
	}
	return nil
}

func (s *Sink) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *Sink) Close() error {
	return s.db.Close()
}
