package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "info", "json")

	logger.Debug("hidden")
	logger.Info("sighting loaded", "location", "Roswell, NM")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "sighting loaded", line["msg"])
	assert.Equal(t, "Roswell, NM", line["location"])
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "debug", "text")

	logger.Debug("visible")

	assert.Contains(t, buf.String(), "msg=visible")
}

func TestObserveGeocode(t *testing.T) {
	m := NewMetricsForTesting()

	m.ObserveGeocode("google", "success", 20*time.Millisecond)
	m.ObserveGeocode("google", "no_match", 10*time.Millisecond)
	m.ObserveGeocode("google", "success", 5*time.Millisecond)

	assert.InDelta(t, 2, testutil.ToFloat64(m.GeocodeRequests.WithLabelValues("google", "success")), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(m.GeocodeRequests.WithLabelValues("google", "no_match")), 0.001)

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.ObserveGeocode("google", "success", time.Second) })
}
