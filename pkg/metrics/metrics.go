// Package metrics provides the Prometheus registry and HTTP metrics for the
// aggregator. Domain metrics are defined in their own packages (layer,
// cache, builder, transport) to keep packages independent.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the aggregator.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

var (
	// HTTPRequests counts served requests by route and status.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "amd_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"route", "status"},
	)

	// HTTPDuration observes request latency by route.
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "amd_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

// Handler returns the /metrics handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRequest records one served request.
func ObserveRequest(route string, status int, elapsed time.Duration) {
	HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// Metrics Documentation
//
// Layer Cache Metrics (pkg/layer):
//   - amd_layer_cache_hits_total (Counter): In-memory layer hits
//   - amd_layer_cache_misses_total (Counter): Misses that loaded or built
//   - amd_layer_shared_builds_total (Counter): Callers served by another caller's build
//   - amd_layer_builds_total{result} (Counter): Builds by result (success, error, discarded)
//   - amd_layer_build_duration_seconds (Histogram): Layer build time
//   - amd_layer_cache_entries (Gauge): Cached layers
//
// Store Metrics (pkg/cache):
//   - amd_layer_store_hits_total (Counter): Layers restored from Redis
//   - amd_layer_store_misses_total (Counter): Store misses
//   - amd_layer_store_written_bytes_total (Counter): Bytes written to Redis
//   - amd_layer_store_errors_total{operation} (Counter): Store errors
//
// Module Metrics (pkg/builder):
//   - amd_module_builds_total{result} (Counter): Module builds by result
//   - amd_module_build_duration_seconds (Histogram): Module build time
//
// Request Metrics (pkg/transport, pkg/metrics):
//   - amd_request_decode_errors_total{param} (Counter): Rejected requests by parameter
//   - amd_loader_extension_contributions (Gauge): Registered loader extension snippets
//   - amd_http_requests_total{route, status} (Counter): Served requests
//   - amd_http_request_duration_seconds{route} (Histogram): Request latency
//
// Example Prometheus Queries:
//
//   # Layer Cache Hit Rate
//   sum(rate(amd_layer_cache_hits_total[5m])) /
//   (sum(rate(amd_layer_cache_hits_total[5m])) + sum(rate(amd_layer_cache_misses_total[5m])))
//
//   # Build Failure Rate
//   rate(amd_layer_builds_total{result="error"}[5m])
//
//   # P95 Build Latency
//   histogram_quantile(0.95, rate(amd_layer_build_duration_seconds_bucket[5m]))
