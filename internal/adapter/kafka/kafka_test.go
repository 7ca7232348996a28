package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/ufo-sightings-etl/internal/domain"
)

func record(geo domain.GeoResult) domain.ResolvedSighting {
	return domain.ResolvedSighting{
		Sighting: domain.Sighting{
			SightedAt:   time.Date(1997, 3, 13, 0, 0, 0, 0, time.UTC),
			ReportedAt:  time.Date(1997, 3, 20, 0, 0, 0, 0, time.UTC),
			Location:    "Phoenix, AZ",
			Shape:       "light",
			Duration:    "2 hrs",
			Description: "V-shaped formation of lights",
		},
		Geo: geo,
		Row: 4021,
	}
}

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSerializeToMessage(t *testing.T) {
	msg, err := serializeToMessage(record(domain.Resolved(33.4484, -112.074, "Phoenix, AZ, USA", "google")))
	require.NoError(t, err)

	assert.Equal(t, []byte("4021"), msg.Key)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "source_row", msg.Headers[0].Key)
	assert.Equal(t, []byte("4021"), msg.Headers[0].Value)
	assert.Equal(t, "geo_status", msg.Headers[1].Key)
	assert.Equal(t, []byte("resolved"), msg.Headers[1].Value)

	assert.JSONEq(t, `{
		"row": 4021,
		"sighting_date": "1997-03-13",
		"reporting_date": "1997-03-20",
		"location": "Phoenix, AZ",
		"lat": "33.4484",
		"lng": "-112.074",
		"description": "V-shaped formation of lights",
		"shape": "light",
		"duration": "2 hrs",
		"place_label": "Phoenix, AZ, USA",
		"geo_provider": "google"
	}`, string(msg.Value))
}

func TestSerializeToMessage_Unresolved(t *testing.T) {
	msg, err := serializeToMessage(record(domain.Unresolved()))
	require.NoError(t, err)

	assert.Equal(t, []byte("unresolved"), msg.Headers[1].Value)

	var m Message
	require.NoError(t, json.Unmarshal(msg.Value, &m))
	assert.Empty(t, m.Lat)
	assert.Empty(t, m.Lng)
	assert.Empty(t, m.Provider)
}

func TestWriter_Load(t *testing.T) {
	fw := &fakeWriter{}
	w := &Writer{writer: fw, logger: discardLogger()}

	require.NoError(t, w.Load(context.Background(), record(domain.Unresolved())))
	require.Len(t, fw.msgs, 1)
	assert.Equal(t, []byte("4021"), fw.msgs[0].Key)

	require.NoError(t, w.Close())
	assert.True(t, fw.closed)
}

func TestWriter_Load_Error(t *testing.T) {
	w := &Writer{writer: &fakeWriter{err: errors.New("leader not available")}, logger: discardLogger()}

	err := w.Load(context.Background(), record(domain.Unresolved()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 4021")
	assert.Contains(t, err.Error(), "leader not available")
}
