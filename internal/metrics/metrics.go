// Package metrics exposes the daemon's Prometheus collectors.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "minutes"

// Label values for the status dimension.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var (
	// stageDuration is a histogram of pipeline stage duration in seconds.
	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Histogram of pipeline stage duration in seconds",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 900},
		},
		[]string{"stage"},
	)

	// stagesTotal is a counter of stage executions by outcome.
	stagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stages_total",
			Help:      "Total number of stage executions",
		},
		[]string{"stage", "status"}, // status: success, error
	)

	// jobsEnqueuedTotal is a counter of jobs accepted for processing.
	jobsEnqueuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_enqueued_total",
			Help:      "Total number of jobs accepted for processing",
		},
	)

	// providerRequestDuration is a histogram of provider API call duration,
	// measured across the full retry budget of one logical call.
	providerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of provider API calls in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"operation"},
	)

	// providerRequestsTotal is a counter of provider API calls.
	providerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total number of provider API calls",
		},
		[]string{"operation", "status"}, // status: success, error
	)

	// httpRequestsTotal is a counter of served API requests.
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP API requests",
		},
		[]string{"method", "route", "code"},
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		stageDuration,
		stagesTotal,
		jobsEnqueuedTotal,
		providerRequestDuration,
		providerRequestsTotal,
		httpRequestsTotal,
	}
)

// RecordStage records one stage execution.
func RecordStage(stage, status string, durationSeconds float64) {
	stageDuration.WithLabelValues(stage).Observe(durationSeconds)
	stagesTotal.WithLabelValues(stage, status).Inc()
}

// RecordJobEnqueued records a job accepted for processing.
func RecordJobEnqueued() {
	jobsEnqueuedTotal.Inc()
}

// RecordProviderRequest records one provider API call.
func RecordProviderRequest(operation, status string, durationSeconds float64) {
	providerRequestDuration.WithLabelValues(operation).Observe(durationSeconds)
	providerRequestsTotal.WithLabelValues(operation, status).Inc()
}

// RecordHTTPRequest records a served API request.
func RecordHTTPRequest(method, route string, code int) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}

// StatusFor maps an error outcome to the status label value.
func StatusFor(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}
