package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// reporting service and the CEP resolution pipeline.
type Metrics struct {
	ReportsSubmitted *prometheus.CounterVec // labels: type={no_power,no_water,unknown}, outcome={accepted,invalid,no_coverage,rate_limited}
	ReportsStored    prometheus.Gauge

	Resolutions *prometheus.CounterVec // labels: tier={static,fallback}, outcome={hit,miss}

	// Geometry store metrics.
	GeometryLookups    *prometheus.CounterVec // labels: kind={name,point}, result={hit,miss}
	GeometryIndexReady prometheus.Gauge

	// External CEP fallback metrics.
	FallbackRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	FallbackAPIDuration prometheus.Histogram
	FallbackCache       *prometheus.CounterVec // labels: result={hit,miss}

	PublishErrors prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ReportsSubmitted,
		m.ReportsStored,
		m.Resolutions,
		m.GeometryLookups,
		m.GeometryIndexReady,
		m.FallbackRequests,
		m.FallbackAPIDuration,
		m.FallbackCache,
		m.PublishErrors,
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
		ReportsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outage_map",
			Name:      "reports_submitted_total",
			Help:      "Report submissions by incident type and outcome.",
		}, []string{"type", "outcome"}),
		ReportsStored: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "outage_map",
			Name:      "reports_stored",
			Help:      "Reports currently inside the retention window.",
		}),
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outage_map",
			Name:      "resolutions_total",
			Help:      "CEP resolutions by data tier and outcome.",
		}, []string{"tier", "outcome"}),
		GeometryLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outage_map",
			Name:      "geometry_lookups_total",
			Help:      "District boundary lookups by kind and result.",
		}, []string{"kind", "result"}),
		GeometryIndexReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "outage_map",
			Name:      "geometry_index_ready",
			Help:      "1 when the district boundary index loaded, 0 otherwise.",
		}),
		FallbackRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outage_map",
			Name:      "cep_fallback_requests_total",
			Help:      "External CEP API requests by outcome.",
		}, []string{"outcome"}),
		FallbackAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "outage_map",
			Name:      "cep_fallback_duration_seconds",
			Help:      "External CEP API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		FallbackCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outage_map",
			Name:      "cep_fallback_cache_total",
			Help:      "External CEP lookup cache results.",
		}, []string{"result"}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "outage_map",
			Name:      "publish_errors_total",
			Help:      "Failed report event publishes (absorbed, never user-facing).",
		}),
	}
}
