package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// watch-point engine.
type Metrics struct {
	EventsConsumed   prometheus.Counter
	EventsApplied    prometheus.Counter
	ValidationErrors prometheus.Counter
	ResolutionErrors prometheus.Counter
	StorageErrors    prometheus.Counter
	IngestRunning    prometheus.Gauge

	ApplyDuration prometheus.Histogram
	BatchSize     prometheus.Histogram

	// History store metrics.
	HistoryAppends prometheus.Counter

	// Geocoding metrics.
	GeocodeRequests *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache    *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeDuration prometheus.Histogram
	GeocodeEnabled  prometheus.Gauge

	// Aggregation metrics.
	SnapshotDuration         prometheus.Histogram
	SnapshotAddressesSkipped prometheus.Counter
}

// NewMetrics creates and registers all engine metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.EventsConsumed,
		m.EventsApplied,
		m.ValidationErrors,
		m.ResolutionErrors,
		m.StorageErrors,
		m.IngestRunning,
		m.ApplyDuration,
		m.BatchSize,
		m.HistoryAppends,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeDuration,
		m.GeocodeEnabled,
		m.SnapshotDuration,
		m.SnapshotAddressesSkipped,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		EventsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smoke_watch",
			Name:      "events_consumed_total",
			Help:      "Total raw notifications read from the delivery channel.",
		}),
		EventsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smoke_watch",
			Name:      "events_applied_total",
			Help:      "Total normalized events applied to the registry.",
		}),
		ValidationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smoke_watch",
			Name:      "validation_errors_total",
			Help:      "Total notifications discarded as malformed.",
		}),
		ResolutionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smoke_watch",
			Name:      "resolution_errors_total",
			Help:      "Total notifications discarded because geocoding failed.",
		}),
		StorageErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smoke_watch",
			Name:      "storage_errors_total",
			Help:      "Total history-store failures.",
		}),
		IngestRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "smoke_watch",
			Name:      "ingest_running",
			Help:      "1 when the ingest loop is active, 0 when shut down.",
		}),
		ApplyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "smoke_watch",
			Name:      "apply_duration_seconds",
			Help:      "Duration of one registry apply, including geocoding and append.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "smoke_watch",
			Name:      "batch_size",
			Help:      "Number of notifications per batch extracted from the channel.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		HistoryAppends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smoke_watch",
			Name:      "history_appends_total",
			Help:      "Total alert entries appended to the history store.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smoke_watch",
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smoke_watch",
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "smoke_watch",
			Name:      "geocode_duration_seconds",
			Help:      "Geocoding API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "smoke_watch",
			Name:      "geocode_enabled",
			Help:      "1 when the external geocoder is configured, 0 otherwise.",
		}),
		SnapshotDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "smoke_watch",
			Name:      "snapshot_duration_seconds",
			Help:      "Duration of a full aggregate snapshot scan.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}),
		SnapshotAddressesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smoke_watch",
			Name:      "snapshot_addresses_skipped_total",
			Help:      "Addresses skipped during aggregation because their history was unreadable.",
		}),
	}
}
