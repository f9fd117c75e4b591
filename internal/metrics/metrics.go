package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videorelay_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Selection Metrics
	SelectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videorelay_selections_total",
			Help: "Format selections by outcome",
		},
		[]string{"outcome"},
	)

	// Download Metrics
	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videorelay_downloads_total",
			Help: "Backend downloads by outcome",
		},
		[]string{"outcome"},
	)

	DownloadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "videorelay_download_duration_seconds",
			Help:    "Time spent fetching and merging streams",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		},
	)

	DownloadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "videorelay_download_size_bytes",
			Help:    "Size of merged files",
			Buckets: prometheus.ExponentialBuckets(1024*1024, 2, 14), // 1MB to 8GB
		},
	)

	// Transfer Metrics
	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videorelay_transfers_total",
			Help: "Response body transfers by terminal state",
		},
		[]string{"state"},
	)

	TransferBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "videorelay_transfer_bytes_total",
			Help: "Bytes written to clients",
		},
	)

	ActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "videorelay_active_jobs",
			Help: "Jobs currently holding a temp directory",
		},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint, status string) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
}

// RecordSelection records a format selection outcome
func RecordSelection(outcome string) {
	SelectionsTotal.WithLabelValues(outcome).Inc()
}

// RecordDownload records a finished backend download
func RecordDownload(outcome string, durationSeconds float64, sizeBytes int64) {
	DownloadsTotal.WithLabelValues(outcome).Inc()
	DownloadDuration.Observe(durationSeconds)
	if sizeBytes > 0 {
		DownloadSizeBytes.Observe(float64(sizeBytes))
	}
}

// RecordTransfer records a finished response body
func RecordTransfer(state string, bytesSent int64) {
	TransfersTotal.WithLabelValues(state).Inc()
	TransferBytesTotal.Add(float64(bytesSent))
}

// SetActiveJobs updates the active job gauge
func SetActiveJobs(n int) {
	ActiveJobs.Set(float64(n))
}
