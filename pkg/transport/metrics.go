package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decodeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amd_request_decode_errors_total",
		Help: "Total number of rejected aggregator requests by offending parameter",
	}, []string{"param"})

	loaderExtensionContributions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "amd_loader_extension_contributions",
		Help: "Number of loader extension JavaScript contributions currently registered",
	})
)
