package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "presensi"

// Metrics holds the service collectors. A nil *Metrics records nothing.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	CheckInsTotal *prometheus.CounterVec

	SheetSyncAttempts   *prometheus.CounterVec
	SheetSyncOutcomes   *prometheus.CounterVec
	SheetSyncDuration   *prometheus.HistogramVec
	SheetSyncQueueDepth prometheus.Gauge

	JobsProcessed *prometheus.CounterVec
}

// NewWithRegistry registers the collectors with registerer.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "endpoint"},
		),
		CheckInsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checkins_total",
				Help:      "Check-ins by outcome",
			},
			[]string{"status"},
		),
		SheetSyncAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sheet_sync_attempts_total",
				Help:      "Spreadsheet sync attempts by job kind and result",
			},
			[]string{"kind", "result"},
		),
		SheetSyncOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sheet_sync_jobs_total",
				Help:      "Finished spreadsheet sync jobs by kind and final state",
			},
			[]string{"kind", "state"},
		),
		SheetSyncDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sheet_sync_duration_seconds",
				Help:      "Wall time of a spreadsheet sync job including retries",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"kind"},
		),
		SheetSyncQueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sheet_sync_queue_depth",
				Help:      "Spreadsheet sync jobs waiting or running",
			},
		),
		JobsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "worker_jobs_total",
				Help:      "Background jobs handled by the worker",
			},
			[]string{"type", "result"},
		),
	}
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, categorizeStatus(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordCheckIn counts a check-in outcome.
func (m *Metrics) RecordCheckIn(status string) {
	if m == nil {
		return
	}
	m.CheckInsTotal.WithLabelValues(status).Inc()
}

// RecordSyncAttempt counts one attempt of a sync job.
func (m *Metrics) RecordSyncAttempt(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.SheetSyncAttempts.WithLabelValues(kind, result).Inc()
}

// RecordSyncJob records a finished job.
func (m *Metrics) RecordSyncJob(kind, state string, duration time.Duration) {
	if m == nil {
		return
	}
	m.SheetSyncOutcomes.WithLabelValues(kind, state).Inc()
	m.SheetSyncDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// SyncQueued moves the queue depth gauge by delta.
func (m *Metrics) SyncQueued(delta int) {
	if m == nil {
		return
	}
	m.SheetSyncQueueDepth.Add(float64(delta))
}

// RecordJob counts a worker job.
func (m *Metrics) RecordJob(jobType string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.JobsProcessed.WithLabelValues(jobType, result).Inc()
}

// ShouldSkipEndpoint excludes scrape and health-check paths from request metrics.
func ShouldSkipEndpoint(path string) bool {
	return path == "/metrics" || path == "/healthz"
}

func categorizeStatus(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
