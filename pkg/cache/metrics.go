package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreHits tracks layers restored from Redis
	StoreHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "amd_layer_store_hits_total",
			Help: "Total number of layers restored from the Redis store",
		},
	)

	// StoreMisses tracks Redis lookups that found no usable layer
	StoreMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "amd_layer_store_misses_total",
			Help: "Total number of Redis store misses",
		},
	)

	// StoreBytes tracks bytes written to the store
	StoreBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "amd_layer_store_written_bytes_total",
			Help: "Total bytes of layer entries written to the Redis store",
		},
	)

	// StoreErrors tracks store operation errors
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "amd_layer_store_errors_total",
			Help: "Total number of layer store operation errors",
		},
		[]string{"operation"}, // "load", "save", "delete", "flush"
	)
)
