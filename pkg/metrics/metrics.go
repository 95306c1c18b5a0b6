// Package metrics provides Prometheus metrics for the transcription gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "transcribe_gateway"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	UpstreamRetries prometheus.Counter
	UpstreamLatency prometheus.Histogram

	TempFilesCreated prometheus.Counter
	TempFilesRemoved prometheus.Counter

	UploadBytes prometheus.Counter
}

// Default is the global metrics instance.
var Default = New()

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of transcription requests",
		}, []string{"source", "outcome"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "End-to-end transcription request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"source"}),

		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of URL transcriptions served from cache",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of URL transcriptions not found in cache",
		}),

		UpstreamRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_retries_total",
			Help:      "Total number of retried transcription API calls",
		}),
		UpstreamLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_latency_seconds",
			Help:      "Transcription API call latency in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),

		TempFilesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "temp_files_created_total",
			Help:      "Total number of scratch files created",
		}),
		TempFilesRemoved: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "temp_files_removed_total",
			Help:      "Total number of scratch files removed",
		}),

		UploadBytes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Total bytes received in multipart uploads",
		}),
	}
}

// RecordRequest records a completed transcription request.
func (m *Metrics) RecordRequest(source, outcome string, durationSeconds float64) {
	m.RequestsTotal.WithLabelValues(source, outcome).Inc()
	m.RequestDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordCacheLookup records a response-cache lookup.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if hit {
		m.CacheHits.Inc()
	} else {
		m.CacheMisses.Inc()
	}
}

// RecordUpstreamCall records a transcription API call.
func (m *Metrics) RecordUpstreamCall(durationSeconds float64) {
	m.UpstreamLatency.Observe(durationSeconds)
}

// RecordRetry records a retried transcription API call.
func (m *Metrics) RecordRetry() {
	m.UpstreamRetries.Inc()
}
