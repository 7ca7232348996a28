package tsv

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/ufo-sightings-etl/internal/domain"
)

func readAll(t *testing.T, r *Reader) []domain.RawRow {
	t.Helper()
	var rows []domain.RawRow
	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			return rows
		}
		require.NoError(t, err)
		rows = append(rows, row)
	}
}

func TestReader_Next(t *testing.T) {
	input := "19950101\t19950102\tRoswell, NM\tdisk\t5 min\tbright light\n" +
		"19950101\t19950102\tAustin, TX\n" +
		"\n" +
		"19950101\t19950102\tTacoma, WA\t\t\tA \"glowing\" orb\r\n"

	rows := readAll(t, NewReader(strings.NewReader(input), ""))

	want := []domain.RawRow{
		{"19950101", "19950102", "Roswell, NM", "disk", "5 min", "bright light"},
		{"19950101", "19950102", "Austin, TX"},
		{},
		{"19950101", "19950102", "Tacoma, WA", "", "", `A "glowing" orb`},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestReader_LeadingQuoteStaysOnItsLine(t *testing.T) {
	input := "19990101\t19990101\tRoswell, NM\tlight\t1 min\t\"Bright\" light in sky\n" +
		"19990102\t19990104\tAustin, TX\tdisk\t2 min\tsecond report\n" +
		"19990105\t19990106\tTacoma, WA\t\"\t\tthird report\n"

	rows := readAll(t, NewReader(strings.NewReader(input), ""))

	require.Len(t, rows, 3)
	assert.Equal(t, `"Bright" light in sky`, rows[0][5])
	assert.Equal(t, "second report", rows[1][5])
	assert.Equal(t, domain.RawRow{"19990105", "19990106", "Tacoma, WA", `"`, "", "third report"}, rows[2])
}

func TestReader_InvalidUTF8(t *testing.T) {
	input := []byte("19950101\t19950102\tMontr\xe9al, QC\tdisk\t1 min\tseen\n" +
		"19950101\t19950102\tAustin, TX\tdisk\t1 min\tseen\n")
	r := NewReader(bytes.NewReader(input), "")

	row, err := r.Next()
	require.ErrorIs(t, err, domain.ErrMalformedRow)
	assert.Contains(t, err.Error(), "line 1")
	assert.Len(t, row, 6)

	row, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "Austin, TX", row[2])

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_LineTooLong(t *testing.T) {
	input := strings.Repeat("x", maxLineBytes+1) + "\n"
	r := NewReader(strings.NewReader(input), "")

	_, err := r.Next()
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrMalformedRow)
	assert.NotErrorIs(t, err, io.EOF)
}

func TestReader_Latin1(t *testing.T) {
	// 0xE9 is é in ISO-8859-1.
	input := []byte("19950101\t19950102\tMontr\xe9al, QC\tdisk\t1 min\tseen\n")

	rows := readAll(t, NewReader(bytes.NewReader(input), Latin1))
	require.Len(t, rows, 1)
	assert.Equal(t, "Montréal, QC", rows[0][2])
}

func TestReader_ReadError(t *testing.T) {
	r := NewReader(iotest.ErrReader(errors.New("disk gone")), "")

	_, err := r.Next()
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
	assert.NotErrorIs(t, err, domain.ErrMalformedRow)
	assert.Contains(t, err.Error(), "disk gone")
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sightings.tsv")
	require.NoError(t, os.WriteFile(path, []byte("a\tb\n"), 0o600))

	r, err := Open(path, "")
	require.NoError(t, err)
	defer r.Close() //nolint:errcheck

	assert.Equal(t, []domain.RawRow{{"a", "b"}}, readAll(t, r))
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.tsv"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.tsv")
}

func TestRejectWriter(t *testing.T) {
	var buf bytes.Buffer
	rw := NewRejectWriter(&buf)

	require.NoError(t, rw.Reject(3, domain.RawRow{"1995", "19950102", "Roswell, NM"},
		&domain.ParseError{Reason: domain.ReasonInvalidDate, Field: domain.FieldSighted, Value: "1995"}))
	require.NoError(t, rw.Reject(7, domain.RawRow{"x"}, domain.ErrMalformedRow))
	require.NoError(t, rw.Close())

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "3\tinvalid_date\tsighted_at\t1995\t19950102\tRoswell, NM", lines[0])
	assert.Equal(t, "7\tmalformed_row\t\tx", lines[1])
}

func TestCreateRejectFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rejects.tsv")

	rw, err := CreateRejectFile(path)
	require.NoError(t, err)
	require.NoError(t, rw.Reject(1, domain.RawRow{"a"},
		&domain.ParseError{Reason: domain.ReasonMissingField, Field: domain.FieldLocation}))
	require.NoError(t, rw.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1\tmissing_required_field\tlocation\ta\n", string(data))
}
