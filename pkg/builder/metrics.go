package builder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	moduleBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amd_module_builds_total",
		Help: "Total number of module builds by result",
	}, []string{"result"})

	moduleBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "amd_module_build_duration_seconds",
		Help:    "Module build duration in seconds",
		Buckets: prometheus.DefBuckets,
	})
)
