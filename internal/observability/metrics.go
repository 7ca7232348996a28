package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ufo_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL run.
type Metrics struct {
	RowsRead      prometheus.Counter
	RowsSkipped   prometheus.Counter
	ParseErrors   *prometheus.CounterVec // labels: reason
	GeocodeErrors prometheus.Counter
	RecordsLoaded prometheus.Counter
	LoadErrors    prometheus.Counter
	ResolvedBy    *prometheus.CounterVec // labels: provider
	RowDuration   prometheus.Histogram
	RunRunning    prometheus.Gauge

	// Geocoding provider metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: provider, outcome={success,no_match,rate_limited,auth,transport,upstream,malformed}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: provider
}

// NewMetrics creates and registers all ETL metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RowsRead,
		m.RowsSkipped,
		m.ParseErrors,
		m.GeocodeErrors,
		m.RecordsLoaded,
		m.LoadErrors,
		m.ResolvedBy,
		m.RowDuration,
		m.RunRunning,
		m.GeocodeRequests,
		m.GeocodeAPIDuration,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// NewUnregisteredMetrics creates Metrics that are counted but never exported.
func NewUnregisteredMetrics() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_read_total",
			Help:      "Total input rows read, including skipped and rejected rows.",
		}),
		RowsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_skipped_total",
			Help:      "Rows skipped because they precede the resume offset.",
		}),
		ParseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_errors_total",
			Help:      "Rows rejected by the parser, by reason.",
		}, []string{"reason"}),
		GeocodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_errors_total",
			Help:      "Records whose location no provider could resolve.",
		}),
		RecordsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_loaded_total",
			Help:      "Records written to the sink.",
		}),
		LoadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_errors_total",
			Help:      "Sink write failures.",
		}),
		ResolvedBy: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolved_total",
			Help:      "Resolved locations by the provider that answered.",
		}, []string{"provider"}),
		RowDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "row_duration_seconds",
			Help:      "Duration of a complete parse-resolve-load cycle for one row.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		RunRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_running",
			Help:      "1 while the batch run is active, 0 otherwise.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding provider requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Geocoding provider request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"provider"}),
	}
}

// ObserveGeocode records one provider request. A nil receiver is a no-op so
// provider clients can run without metrics.
func (m *Metrics) ObserveGeocode(provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.GeocodeRequests.WithLabelValues(provider, outcome).Inc()
	m.GeocodeAPIDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}
