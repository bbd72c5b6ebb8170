package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framelab_sessions_created_total",
		Help: "Total number of sessions created",
	})

	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framelab_uploads_total",
		Help: "Total number of video uploads, by outcome",
	}, []string{"outcome"})

	UploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framelab_upload_bytes_total",
		Help: "Total number of video bytes stored",
	})

	ExtractionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framelab_extractions_total",
		Help: "Total number of extractions finished, by status",
	}, []string{"status"})

	ExtractionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "framelab_extraction_duration_seconds",
		Help:    "Duration of extraction pipeline stages",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
	}, []string{"stage"})

	RawFramesScannedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framelab_raw_frames_scanned_total",
		Help: "Total number of decoded source frames scanned",
	})

	FramesSampledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framelab_frames_sampled_total",
		Help: "Total number of sampled frames written across all sessions",
	})

	ActiveExtractions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "framelab_active_extractions",
		Help: "Number of extractions currently running",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framelab_retry_total",
		Help: "Total number of extraction retries",
	}, []string{"attempt"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framelab_http_requests_total",
		Help: "Total number of HTTP requests, by method and status code",
	}, []string{"method", "code"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "framelab_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)
