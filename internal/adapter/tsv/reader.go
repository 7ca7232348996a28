// Package tsv reads the tab-separated sightings export and records the rows
// the pipeline rejects.
package tsv

import (
	"bufio"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"

	"github.com/couchcryptid/ufo-sightings-etl/internal/domain"
)

// Latin1 selects ISO-8859-1 decoding of the input.
const Latin1 = "latin1"

// maxLineBytes bounds a single input line.
const maxLineBytes = 4 << 20

// Reader yields one domain.RawRow per input line. Fields are split on tabs
// only; quotes carry no meaning. A blank line is an empty row.
type Reader struct {
	sc     *bufio.Scanner
	line   int
	closer io.Closer
}

// NewReader wraps r. When encoding is Latin1 the bytes are decoded from
// ISO-8859-1 to UTF-8 before tokenizing.
func NewReader(r io.Reader, encoding string) *Reader {
	if encoding == Latin1 {
		r = charmap.ISO8859_1.NewDecoder().Reader(r)
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Reader{sc: sc}
}

// Open opens the file at path for reading. The caller must Close it.
func Open(path, encoding string) (*Reader, error) {
	f, err := os.Open(path) //nolint:gosec // operator-supplied input path
	if err != nil {
		return nil, eris.Wrapf(err, "tsv: open %s", path)
	}
	rd := NewReader(f, encoding)
	rd.closer = f
	return rd, nil
}

// Next returns the next row, io.EOF at end of input, or an error wrapping
// domain.ErrMalformedRow when the line is not valid UTF-8. Reading may
// continue after a malformed row.
func (r *Reader) Next() (domain.RawRow, error) {
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return nil, eris.Wrapf(err, "tsv: read line %d", r.line+1)
		}
		return nil, io.EOF
	}
	r.line++

	line := strings.TrimSuffix(r.sc.Text(), "\r")
	if line == "" {
		return domain.RawRow{}, nil
	}
	row := domain.RawRow(strings.Split(line, "\t"))
	if !utf8.ValidString(line) {
		return row, eris.Wrapf(domain.ErrMalformedRow, "tsv: line %d: invalid UTF-8", r.line)
	}
	return row, nil
}

// Close releases the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
