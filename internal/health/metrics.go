package health

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	backendUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gwconsole_backend_up",
			Help: "Whether the last health check of a backing system succeeded (1) or not (0).",
		},
		[]string{"system"},
	)
	backendState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gwconsole_backend_connection_state",
			Help: "Connection state of a backing system: 0 disconnected, 1 connecting, 2 connected.",
		},
		[]string{"system"},
	)
	backendCheckDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gwconsole_backend_check_duration_seconds",
			Help:    "Time taken by a health check of a backing system.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"system"},
	)
	reconnectTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gwconsole_backend_reconnect_total",
			Help: "Number of reconnect attempts by system and result.",
		},
		[]string{"system", "result"},
	)
)

func init() {
	metrics.Registry.MustRegister(backendUp, backendState, backendCheckDuration, reconnectTotal)
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func stateValue(s State) float64 {
	switch s {
	case StateConnecting:
		return 1
	case StateConnected:
		return 2
	default:
		return 0
	}
}
