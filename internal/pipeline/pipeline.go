package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"

	"github.com/couchcryptid/ufo-sightings-etl/internal/checkpoint"
	"github.com/couchcryptid/ufo-sightings-etl/internal/domain"
	"github.com/couchcryptid/ufo-sightings-etl/internal/observability"
)

// RowReader yields input rows in order and io.EOF at the end. An error
// wrapping domain.ErrMalformedRow rejects one row; any other error is fatal.
type RowReader interface {
	Next() (domain.RawRow, error)
}

// Parser turns a raw row into a Sighting.
type Parser interface {
	Parse(row domain.RawRow) (domain.Sighting, error)
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(row domain.RawRow) (domain.Sighting, error)

func (f ParserFunc) Parse(row domain.RawRow) (domain.Sighting, error) { return f(row) }

// GeoResolver maps a free-text location to coordinates. It never fails;
// exhaustion is reported as an unresolved result.
type GeoResolver interface {
	Resolve(ctx context.Context, query string) domain.GeoResult
}

// Loader writes one resolved record to the destination.
type Loader interface {
	Load(ctx context.Context, rec domain.ResolvedSighting) error
}

// Checkpointer persists run progress.
type Checkpointer interface {
	Save(s checkpoint.State) error
}

// RejectSink records rows that were dropped as unparseable.
type RejectSink interface {
	Reject(row int, raw domain.RawRow, cause error) error
}

// Stats are the run counters, reported once at the end of a run.
type Stats struct {
	RowsRead      int `json:"rows_read"`
	RowsSkipped   int `json:"rows_skipped"`
	ParseErrors   int `json:"parse_errors"`
	GeocodeErrors int `json:"geocode_errors"`
	Loaded        int `json:"loaded"`

	// NextOffset is the resume offset that continues after the last finished row.
	NextOffset int `json:"next_offset"`
}

// LoadError is returned when the sink rejects a record. The run stops and
// Row is the offset to resume from.
type LoadError struct {
	Row int
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load row %d (resume offset %d): %v", e.Row, e.Row, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ResumeOffset returns the offset that retries the failed row.
func (e *LoadError) ResumeOffset() int { return e.Row }

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithResumeOffset skips every row numbered below offset.
func WithResumeOffset(offset int) Option {
	return func(p *Pipeline) { p.offset = offset }
}

// WithCheckpoint saves progress to cp every `every` processed rows and when
// the run ends.
func WithCheckpoint(cp Checkpointer, every int) Option {
	return func(p *Pipeline) {
		p.checkpoint = cp
		p.every = every
	}
}

// WithClock replaces the clock used for timings.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithRejects records rejected rows to r.
func WithRejects(r RejectSink) Option {
	return func(p *Pipeline) { p.rejects = r }
}

// WithInputName labels checkpoints with the input being processed.
func WithInputName(name string) Option {
	return func(p *Pipeline) { p.input = name }
}

// Pipeline drives rows through parse, resolve and load, one at a time.
type Pipeline struct {
	reader   RowReader
	parser   Parser
	resolver GeoResolver
	loader   Loader
	logger   *slog.Logger
	metrics  *observability.Metrics

	offset     int
	checkpoint Checkpointer
	every      int
	clock      clockwork.Clock
	rejects    RejectSink
	input      string

	progress atomic.Pointer[Stats]
	started  atomic.Bool
}

// New creates a Pipeline with the given stages and observability. A nil
// metrics counts into an unregistered set.
func New(r RowReader, parser Parser, resolver GeoResolver, l Loader, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	if metrics == nil {
		metrics = observability.NewUnregisteredMetrics()
	}
	p := &Pipeline{
		reader:   r,
		parser:   parser,
		resolver: resolver,
		loader:   l,
		logger:   logger,
		metrics:  metrics,
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.progress.Store(&Stats{NextOffset: p.offset})
	return p
}

// Progress returns a snapshot of the counters. Safe for concurrent use.
func (p *Pipeline) Progress() Stats {
	return *p.progress.Load()
}

// CheckReadiness returns nil once the run has started.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.started.Load() {
		return errors.New("pipeline has not started")
	}
	return nil
}

// Run processes the input until EOF, a sink failure, or cancellation.
// A sink failure returns a *LoadError; cancellation returns ctx.Err().
// In every case the returned Stats carry the offset to resume from.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	p.logger.Info("pipeline started", "resume_offset", p.offset)
	p.started.Store(true)
	p.metrics.RunRunning.Set(1)
	defer p.metrics.RunRunning.Set(0)

	var (
		stats     Stats
		row       int
		sinceSave int
	)
	// finish stamps the resume offset, saves the checkpoint and logs the summary.
	finish := func(next int, runErr error) (Stats, error) {
		stats.NextOffset = max(next, p.offset)
		p.progress.Store(&stats)
		if err := p.save(stats); err != nil {
			p.logger.Error("checkpoint save failed", "error", err, "next_offset", stats.NextOffset)
			if runErr == nil {
				runErr = err
			}
		}
		p.logSummary(stats, runErr)
		return stats, runErr
	}

	for {
		if err := ctx.Err(); err != nil {
			return finish(row+1, err)
		}

		raw, err := p.reader.Next()
		if errors.Is(err, io.EOF) {
			return finish(row+1, nil)
		}
		if err != nil && !errors.Is(err, domain.ErrMalformedRow) {
			return finish(row+1, eris.Wrapf(err, "pipeline: read row %d", row+1))
		}

		row++
		stats.RowsRead++
		p.metrics.RowsRead.Inc()

		if row < p.offset {
			stats.RowsSkipped++
			p.metrics.RowsSkipped.Inc()
			p.publish(stats, row)
			continue
		}

		start := p.clock.Now()
		rec, ok := p.parse(row, raw, err, &stats)
		if ok {
			rec.Geo = p.resolver.Resolve(ctx, rec.Location)
			if err := ctx.Err(); err != nil {
				// The row was not written; the next run must retry it.
				return finish(row, err)
			}
			if rec.Geo.IsResolved() {
				p.metrics.ResolvedBy.WithLabelValues(rec.Geo.Provider).Inc()
			} else {
				stats.GeocodeErrors++
				p.metrics.GeocodeErrors.Inc()
			}

			if err := p.loader.Load(ctx, rec); err != nil {
				p.metrics.LoadErrors.Inc()
				p.logger.Error("load failed, stopping", "row", row, "resume_offset", row, "error", err)
				return finish(row, &LoadError{Row: row, Err: err})
			}
			stats.Loaded++
			p.metrics.RecordsLoaded.Inc()
			p.logger.Info("sighting loaded",
				"row", row,
				"location", rec.Location,
				"lat", rec.LatText(),
				"lng", rec.LngText(),
			)
			p.metrics.RowDuration.Observe(p.clock.Since(start).Seconds())
		}

		p.publish(stats, row)
		sinceSave++
		if p.checkpoint != nil && p.every > 0 && sinceSave >= p.every {
			sinceSave = 0
			snapshot := stats
			snapshot.NextOffset = row + 1
			if err := p.save(snapshot); err != nil {
				p.logger.Warn("checkpoint save failed", "error", err, "row", row)
			}
		}
	}
}

// parse converts raw into a record, or counts and reports the rejection.
// readErr is the reader's malformed-row error, if any.
func (p *Pipeline) parse(row int, raw domain.RawRow, readErr error, stats *Stats) (domain.ResolvedSighting, bool) {
	cause := readErr
	var s domain.Sighting
	if cause == nil {
		s, cause = p.parser.Parse(raw)
	}
	if cause == nil {
		return domain.ResolvedSighting{Sighting: s, Row: row}, true
	}

	stats.ParseErrors++
	reason, field := rejection(cause)
	p.metrics.ParseErrors.WithLabelValues(string(reason)).Inc()
	p.logger.Warn("row rejected", "row", row, "reason", reason, "field", field, "error", cause)
	if p.rejects != nil {
		if err := p.rejects.Reject(row, raw, cause); err != nil {
			p.logger.Warn("reject log write failed", "row", row, "error", err)
		}
	}
	return domain.ResolvedSighting{}, false
}

func (p *Pipeline) publish(stats Stats, row int) {
	stats.NextOffset = max(row+1, p.offset)
	p.progress.Store(&stats)
}

func (p *Pipeline) save(s Stats) error {
	if p.checkpoint == nil {
		return nil
	}
	return p.checkpoint.Save(checkpoint.State{
		NextOffset:    s.NextOffset,
		RowsRead:      s.RowsRead,
		RowsSkipped:   s.RowsSkipped,
		ParseErrors:   s.ParseErrors,
		GeocodeErrors: s.GeocodeErrors,
		Loaded:        s.Loaded,
		Input:         p.input,
	})
}

func (p *Pipeline) logSummary(s Stats, err error) {
	attrs := []any{
		"rows_read", s.RowsRead,
		"skipped", s.RowsSkipped,
		"parse_errors", s.ParseErrors,
		"geocode_errors", s.GeocodeErrors,
		"loaded", s.Loaded,
		"next_offset", s.NextOffset,
	}
	if err != nil {
		p.logger.Error("pipeline stopped", append(attrs, "error", err)...)
		return
	}
	p.logger.Info("pipeline finished", attrs...)
}

func rejection(err error) (domain.Reason, string) {
	var pe *domain.ParseError
	if errors.As(err, &pe) {
		return pe.Reason, pe.Field
	}
	return domain.ReasonMalformedRow, ""
}
