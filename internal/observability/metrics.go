package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cambridge_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	RecordsRead     *prometheus.CounterVec // labels: family
	RecordsWritten  *prometheus.CounterVec // labels: family
	RecordsSkipped  *prometheus.CounterVec // labels: family, reason={malformed,missing_join,strict_accident_type,unreadable}
	PipelineRunning prometheus.Gauge
	LastRunSuccess  prometheus.Gauge

	FamilyDuration *prometheus.HistogramVec // labels: family

	// Neighborhood resolution metrics.
	RegionLookups *prometheus.CounterVec // labels: outcome={found,not_found,no_coordinates,no_locator}
	LocatorCache  *prometheus.CounterVec // labels: result={hit,miss}
}

func newMetrics() *Metrics {
	return &Metrics{
		RecordsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_read_total",
			Help:      "Source rows read, by family.",
		}, []string{"family"}),
		RecordsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_written_total",
			Help:      "Canonical records emitted, by family.",
		}, []string{"family"}),
		RecordsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Source rows not emitted, by family and reason.",
		}, []string{"family", "reason"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 when the last run wrote every family, 0 otherwise.",
		}),
		FamilyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "family_duration_seconds",
			Help:      "Time to normalize, enrich, classify and sort one family.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"family"}),
		RegionLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "region_lookups_total",
			Help:      "Neighborhood resolutions by outcome.",
		}, []string{"outcome"}),
		LocatorCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locator_cache_total",
			Help:      "Locator cache lookups by result.",
		}, []string{"result"}),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RecordsRead,
		m.RecordsWritten,
		m.RecordsSkipped,
		m.PipelineRunning,
		m.LastRunSuccess,
		m.FamilyDuration,
		m.RegionLookups,
		m.LocatorCache,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
