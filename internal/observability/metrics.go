package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dispatch"

// Metrics holds the Prometheus counters, histograms, and gauges for the dispatch service.
type Metrics struct {
	PipelineRunning prometheus.Gauge

	// Batch metrics.
	Batches                prometheus.Counter
	BatchErrors            prometheus.Counter
	BatchDuration          prometheus.Histogram
	OrdersRanked           prometheus.Counter
	OrdersUnroutable       prometheus.Counter
	OrdersWithoutDistances prometheus.Counter

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,empty,error}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all dispatch metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the dispatch loop is active, 0 when shut down.",
		}),
		Batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Dispatch batches published.",
		}),
		BatchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_errors_total",
			Help:      "Dispatch batches that failed to load or publish.",
		}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Duration of a complete load-dispatch-publish cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		OrdersRanked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_ranked_total",
			Help:      "Orders evaluated by the dispatch core.",
		}),
		OrdersUnroutable: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_unroutable_total",
			Help:      "Orders no single restaurant can fully prepare.",
		}),
		OrdersWithoutDistances: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_without_distances_total",
			Help:      "Orders whose customer address could not be geocoded.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoder lookups by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocode cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Geocoder API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when the external geocoder is enabled, 0 otherwise.",
		}),
	}

	prometheus.MustRegister(
		m.PipelineRunning,
		m.Batches,
		m.BatchErrors,
		m.BatchDuration,
		m.OrdersRanked,
		m.OrdersUnroutable,
		m.OrdersWithoutDistances,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		PipelineRunning:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "pipeline_running"}),
		Batches:                prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "batches_total"}),
		BatchErrors:            prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "batch_errors_total"}),
		BatchDuration:          prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "batch_duration_seconds"}),
		OrdersRanked:           prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "orders_ranked_total"}),
		OrdersUnroutable:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "orders_unroutable_total"}),
		OrdersWithoutDistances: prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "orders_without_distances_total"}),
		GeocodeRequests:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "geocode_requests_total"}, []string{"outcome"}),
		GeocodeCache:           prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "geocode_cache_total"}, []string{"result"}),
		GeocodeAPIDuration:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "geocode_api_duration_seconds"}),
		GeocodeEnabled:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "geocode_enabled"}),
	}
}
