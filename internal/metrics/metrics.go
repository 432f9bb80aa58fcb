// Package metrics exposes Prometheus counters/histograms for HTTP and
// Queue Processor throughput, grounded on the sibling services' promauto
// registration style.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	intentsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intents_submitted_total",
			Help: "Total number of purchase intents accepted by intake",
		},
		[]string{"event_id"},
	)

	intentsResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intents_resolved_total",
			Help: "Total number of purchase intents reaching a terminal status",
		},
		[]string{"status"},
	)

	allocationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "allocation_duration_seconds",
			Help:    "Duration of a single Allocator transaction",
			Buckets: prometheus.DefBuckets,
		},
	)

	queueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Number of WAITING intents currently queued for an event",
		},
		[]string{"event_id"},
	)

	dependencyHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dependency_health",
			Help: "Health status of dependencies (1 = healthy, 0 = unhealthy)",
		},
		[]string{"dependency"},
	)
)

// RecordHTTPRequest records HTTP request metrics.
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

// RecordIntentSubmitted increments the intake counter for one event.
func RecordIntentSubmitted(eventID string) {
	intentsSubmittedTotal.WithLabelValues(eventID).Inc()
}

// RecordIntentResolved increments the terminal-status counter.
func RecordIntentResolved(status string) {
	intentsResolvedTotal.WithLabelValues(status).Inc()
}

// ObserveAllocationDuration records how long one Allocator transaction took.
func ObserveAllocationDuration(d time.Duration) {
	allocationDuration.Observe(d.Seconds())
}

// SetQueueDepth reports the current WAITING count for an event.
func SetQueueDepth(eventID string, depth int) {
	queueDepth.WithLabelValues(eventID).Set(float64(depth))
}

// SetDependencyHealth sets the health status of a dependency.
func SetDependencyHealth(dependency string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	dependencyHealth.WithLabelValues(dependency).Set(value)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
