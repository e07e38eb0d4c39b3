package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_gateway_http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_gateway_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	activeRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_gateway_http_active_requests",
			Help: "Number of HTTP requests in progress",
		},
	)

	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_gateway_transitions_total",
			Help: "Lead transitions by action and final state",
		},
		[]string{"action", "state"},
	)

	upstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_gateway_upstream_request_duration_seconds",
			Help:    "Duration of calls to the CRM backend in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	upstreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_gateway_upstream_errors_total",
			Help: "Failed calls to the CRM backend",
		},
		[]string{"operation", "kind"},
	)

	snapshotLeads = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_gateway_snapshot_leads",
			Help: "Number of leads in the current snapshot",
		},
	)

	rejectedLeads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_gateway_rejected_leads_total",
			Help: "Fetched leads dropped for violating lead invariants",
		},
	)
)

// RequestStarted tracks an in-progress request and returns its completion func
func RequestStarted() func() {
	activeRequests.Inc()
	return activeRequests.Dec
}

func RecordHTTPRequest(method, route, status string, seconds float64) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(seconds)
}

func RecordTransition(action, state string) {
	transitionsTotal.WithLabelValues(action, state).Inc()
}

func RecordUpstreamCall(operation string, seconds float64) {
	upstreamRequestDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordUpstreamError counts a failed backend call. kind is "transport" or
// the HTTP status class such as "4xx".
func RecordUpstreamError(operation, kind string) {
	upstreamErrors.WithLabelValues(operation, kind).Inc()
}

func RecordSnapshot(leads int, rejected int) {
	snapshotLeads.Set(float64(leads))
	rejectedLeads.Add(float64(rejected))
}
