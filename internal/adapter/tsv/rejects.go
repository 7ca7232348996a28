package tsv

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/couchcryptid/ufo-sightings-etl/internal/domain"
)

// RejectWriter appends rejected rows to a TSV file as
// row, reason, field, followed by the original fields.
type RejectWriter struct {
	mu     sync.Mutex
	w      *csv.Writer
	closer io.Closer
}

// NewRejectWriter writes rejects to w.
func NewRejectWriter(w io.Writer) *RejectWriter {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	return &RejectWriter{w: cw}
}

// CreateRejectFile creates (or truncates) the rejects file at path.
func CreateRejectFile(path string) (*RejectWriter, error) {
	f, err := os.Create(path) //nolint:gosec // operator-supplied output path
	if err != nil {
		return nil, eris.Wrapf(err, "tsv: create rejects file %s", path)
	}
	rw := NewRejectWriter(f)
	rw.closer = f
	return rw, nil
}

// Reject records one rejected row and the error that rejected it.
func (rw *RejectWriter) Reject(row int, raw domain.RawRow, cause error) error {
	reason, field := classify(cause)
	rec := make([]string, 0, 3+len(raw))
	rec = append(rec, strconv.Itoa(row), string(reason), field)
	rec = append(rec, raw...)

	rw.mu.Lock()
	defer rw.mu.Unlock()
	if err := rw.w.Write(rec); err != nil {
		return eris.Wrapf(err, "tsv: write reject for row %d", row)
	}
	rw.w.Flush()
	return eris.Wrap(rw.w.Error(), "tsv: flush rejects")
}

// Close flushes and closes the rejects file.
func (rw *RejectWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	rw.w.Flush()
	if err := rw.w.Error(); err != nil {
		return eris.Wrap(err, "tsv: flush rejects")
	}
	if rw.closer == nil {
		return nil
	}
	return rw.closer.Close()
}

func classify(err error) (domain.Reason, string) {
	var pe *domain.ParseError
	if errors.As(err, &pe) {
		return pe.Reason, pe.Field
	}
	return domain.ReasonMalformedRow, ""
}
