package layer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts GetLayer calls served from the in-memory map.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "amd_layer_cache_hits_total",
		Help: "Total number of layer cache hits",
	})

	// CacheMisses counts GetLayer calls that had to load or build.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "amd_layer_cache_misses_total",
		Help: "Total number of layer cache misses",
	})

	// SharedBuilds counts callers that received the result of a build
	// started by another caller.
	SharedBuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "amd_layer_shared_builds_total",
		Help: "Total number of callers served by an in-flight build for the same key",
	})

	// Builds counts layer builds by result.
	Builds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amd_layer_builds_total",
		Help: "Total number of layer builds by result",
	}, []string{"result"}) // "success", "error", "discarded"

	// BuildDuration observes layer build time.
	BuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "amd_layer_build_duration_seconds",
		Help:    "Layer build duration in seconds",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	// CacheEntries tracks the number of cached layers.
	CacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "amd_layer_cache_entries",
		Help: "Current number of layers in the cache",
	})
)
