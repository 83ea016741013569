package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Provisioning metrics
	SignupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_signups_total",
			Help: "Total number of tenant signup attempts",
		},
		[]string{"status"}, // status: success, failed
	)

	ProvisioningFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_provisioning_failures_total",
			Help: "Provisioning step failures that triggered rollback",
		},
		[]string{"step"},
	)

	// Connection cache metrics
	CachedTenantPools = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tenant_connection_pools_cached",
			Help: "Number of tenant database pools held by the connection cache",
		},
	)

	// Live update metrics
	LiveUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_updates_total",
			Help: "Live update payloads handled, by delivery path",
		},
		[]string{"tenant_id", "path"}, // path: local, transport, mirrored
	)

	LiveUpdatesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_updates_dropped_total",
			Help: "Live updates dropped because a listener buffer was full",
		},
		[]string{"tenant_id"},
	)

	TransportFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_update_transport_failures_total",
			Help: "Cross-process publish failures (logged and swallowed)",
		},
		[]string{"tenant_id"},
	)

	OpenStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "live_update_streams_open",
			Help: "Currently open server-sent-event connections",
		},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// IncrementSignups increments the signup attempt counter.
func IncrementSignups(status string) {
	SignupsTotal.WithLabelValues(status).Inc()
}

// IncrementProvisioningFailures records a rolled-back provisioning step.
func IncrementProvisioningFailures(step string) {
	ProvisioningFailuresTotal.WithLabelValues(step).Inc()
}

// SetCachedTenantPools updates the connection-cache size gauge.
func SetCachedTenantPools(n float64) {
	CachedTenantPools.Set(n)
}

// IncrementLiveUpdates records one handled live update payload.
func IncrementLiveUpdates(tenantID, path string) {
	LiveUpdatesTotal.WithLabelValues(tenantID, path).Inc()
}

// IncrementDroppedUpdates records a payload lost to a full listener buffer.
func IncrementDroppedUpdates(tenantID string) {
	LiveUpdatesDroppedTotal.WithLabelValues(tenantID).Inc()
}

// IncrementTransportFailures records a swallowed cross-process publish error.
func IncrementTransportFailures(tenantID string) {
	TransportFailuresTotal.WithLabelValues(tenantID).Inc()
}

// StreamOpened / StreamClosed track open SSE connections.
func StreamOpened() {
	OpenStreams.Inc()
}

func StreamClosed() {
	OpenStreams.Dec()
}

// IncrementAPIRequests increments the API request counter.
func IncrementAPIRequests(method, endpoint, statusCode string) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
}

// RecordAPIRequestDuration records API request duration.
func RecordAPIRequestDuration(method, endpoint string, duration float64) {
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}
