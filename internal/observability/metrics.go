package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quake_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the catalog pipeline.
type Metrics struct {
	EventsFetched   prometheus.Counter
	RowsTabulated   prometheus.Counter
	RecordsSkipped  prometheus.Counter
	FetchErrors     prometheus.Counter
	PipelineRunning prometheus.Gauge

	RunDuration   prometheus.Histogram
	RunsCompleted *prometheus.CounterVec // labels: outcome={success,error}
	SinkErrors    *prometheus.CounterVec // labels: sink={kafka,sqlite,s3}

	// Geocoding metrics.
	GeocodeRequests *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache    *prometheus.CounterVec // labels: result={hit,miss}

	// Waveform listing metrics.
	WaveformFiles *prometheus.CounterVec // labels: outcome={read,failed}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.EventsFetched,
		m.RowsTabulated,
		m.RecordsSkipped,
		m.FetchErrors,
		m.PipelineRunning,
		m.RunDuration,
		m.RunsCompleted,
		m.SinkErrors,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.WaveformFiles,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		EventsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_fetched_total",
			Help:      "Total events returned by the catalog service.",
		}),
		RowsTabulated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_tabulated_total",
			Help:      "Total rows written to the event table.",
		}),
		RecordsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Total catalog entries skipped for missing origin or magnitude.",
		}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Total failed catalog queries.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is in progress, 0 otherwise.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch-tabulate-render run.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		RunsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Failed writes to optional sinks.",
		}, []string{"sink"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		WaveformFiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "waveform_files_total",
			Help:      "Waveform files inspected by outcome.",
		}, []string{"outcome"}),
	}
}
