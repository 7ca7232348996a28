package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/rotisserie/eris"

	"github.com/couchcryptid/ufo-sightings-etl/internal/domain"
	"github.com/couchcryptid/ufo-sightings-etl/internal/observability"
)

// Validate is a dry run: it reads and parses every row at or after offset
// and reports rejects, without geocoding or writing anything. Loaded counts
// the rows that would have been sent to the resolver.
func Validate(ctx context.Context, r RowReader, parser Parser, offset int, rejects RejectSink, logger *slog.Logger) (Stats, error) {
	p := &Pipeline{
		parser:  parser,
		logger:  logger,
		offset:  offset,
		rejects: rejects,
		metrics: observability.NewUnregisteredMetrics(),
	}

	var (
		stats Stats
		row   int
	)
	for {
		if err := ctx.Err(); err != nil {
			stats.NextOffset = max(row+1, offset)
			return stats, err
		}

		raw, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !errors.Is(err, domain.ErrMalformedRow) {
			stats.NextOffset = max(row+1, offset)
			return stats, eris.Wrapf(err, "pipeline: read row %d", row+1)
		}

		row++
		stats.RowsRead++
		if row < offset {
			stats.RowsSkipped++
			continue
		}
		if _, ok := p.parse(row, raw, err, &stats); ok {
			stats.Loaded++
		}
	}

	stats.NextOffset = max(row+1, offset)
	logger.Info("validation finished",
		"rows_read", stats.RowsRead,
		"skipped", stats.RowsSkipped,
		"parse_errors", stats.ParseErrors,
		"valid", stats.Loaded,
	)
	return stats, nil
}
