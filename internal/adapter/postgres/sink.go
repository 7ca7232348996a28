// Package postgres loads resolved sightings into a PostGIS-enabled
// PostgreSQL table.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/couchcryptid/ufo-sightings-etl/internal/adapter/geometry"
	"github.com/couchcryptid/ufo-sightings-etl/internal/domain"
)

// Schema is the table the sink writes to. Operators create it; the job
// never creates or migrates tables.
const Schema = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS sightings (
	id             BIGSERIAL PRIMARY KEY,
	sighting_date  DATE NOT NULL,
	reporting_date DATE NOT NULL,
	location       TEXT NOT NULL,
	lat            TEXT NOT NULL,
	lng            TEXT NOT NULL,
	description    TEXT NOT NULL,
	shape          TEXT NOT NULL,
	duration       TEXT NOT NULL,
	geom           geometry(Point, 4326)
);
`

const insertSQL = `INSERT INTO sightings
	(sighting_date, reporting_date, location, lat, lng, description, shape, duration, geom)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, ST_GeomFromEWKB($9))`

// Pool is the subset of pgxpool.Pool used by the sink.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

// Sink writes one row per record.
type Sink struct {
	pool Pool
}

// New wraps an existing pool.
func New(pool Pool) *Sink {
	return &Sink{pool: pool}
}

// Connect opens a pool for databaseURL and verifies connectivity.
func Connect(ctx context.Context, databaseURL string) (*Sink, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return New(pool), nil
}

// Load inserts rec. Every value is bound as a parameter.
func (s *Sink) Load(ctx context.Context, rec domain.ResolvedSighting) error {
	geom, err := geometry.EWKB(rec.Geo)
	if err != nil {
		return eris.Wrapf(err, "postgres: row %d", rec.Row)
	}
	_, err = s.pool.Exec(ctx, insertSQL,
		rec.SightedAt,
		rec.ReportedAt,
		rec.Location,
		rec.LatText(),
		rec.LngText(),
		rec.Description,
		rec.Shape,
		rec.Duration,
		geom,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert row %d", rec.Row)
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *Sink) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *Sink) Close() error {
	s.pool.Close()
	return nil
}
