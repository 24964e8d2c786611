package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL
// stages and the layer API.
type Metrics struct {
	// Download metrics.
	FilesDownloaded prometheus.Counter
	BytesDownloaded prometheus.Counter
	DownloadErrors  prometheus.Counter

	// Parsing and cleaning metrics.
	RowsParsed   *prometheus.CounterVec // labels: dataset={stations,daily,fire_points,fire_perimeters,predictions}
	RowsDropped  *prometheus.CounterVec // labels: reason={malformed,unknown_element,no_station,outside_grid,bad_geometry}
	YearsSkipped prometheus.Counter

	// Stage metrics.
	StageDuration     *prometheus.HistogramVec // labels: stage
	HexRecordsWritten prometheus.Counter
	RecordsPublished  prometheus.Counter
	PipelineRunning   prometheus.Gauge

	// Layer API metrics.
	LayerRequests *prometheus.CounterVec // labels: field, policy
	LayerCache    *prometheus.CounterVec // labels: result={hit,miss}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FilesDownloaded,
		m.BytesDownloaded,
		m.DownloadErrors,
		m.RowsParsed,
		m.RowsDropped,
		m.YearsSkipped,
		m.StageDuration,
		m.HexRecordsWritten,
		m.RecordsPublished,
		m.PipelineRunning,
		m.LayerRequests,
		m.LayerCache,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid "already
// registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FilesDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wildfire_etl",
			Name:      "files_downloaded_total",
			Help:      "Total files downloaded from upstream sources.",
		}),
		BytesDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wildfire_etl",
			Name:      "download_bytes_total",
			Help:      "Total bytes written to the raw zone.",
		}),
		DownloadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wildfire_etl",
			Name:      "download_errors_total",
			Help:      "Total failed downloads.",
		}),
		RowsParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wildfire_etl",
			Name:      "rows_parsed_total",
			Help:      "Rows parsed from raw inputs by dataset.",
		}, []string{"dataset"}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wildfire_etl",
			Name:      "rows_dropped_total",
			Help:      "Rows dropped during cleaning by reason.",
		}, []string{"reason"}),
		YearsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wildfire_etl",
			Name:      "years_skipped_total",
			Help:      "Yearly daily files skipped because they could not be read.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wildfire_etl",
			Name:      "stage_duration_seconds",
			Help:      "Duration of a pipeline stage.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		}, []string{"stage"}),
		HexRecordsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wildfire_etl",
			Name:      "hex_records_written_total",
			Help:      "Curated hex records written to Parquet.",
		}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wildfire_etl",
			Name:      "records_published_total",
			Help:      "Hex records published to Kafka.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wildfire_etl",
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is active, 0 otherwise.",
		}),
		LayerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wildfire_etl",
			Name:      "layer_requests_total",
			Help:      "Layer renders by field and normalization policy.",
		}, []string{"field", "policy"}),
		LayerCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wildfire_etl",
			Name:      "layer_cache_total",
			Help:      "Hex table cache lookups by result.",
		}, []string{"result"}),
	}
}
