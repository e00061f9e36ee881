package retry

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	retryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gwconsole_retry_attempts_total",
			Help: "Number of attempts made per retried operation.",
		},
		[]string{"operation"},
	)
	retryExhaustedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gwconsole_retry_exhausted_total",
			Help: "Number of operations that failed after using every attempt of their policy.",
		},
		[]string{"operation"},
	)
)

func init() {
	metrics.Registry.MustRegister(retryAttemptsTotal, retryExhaustedTotal)
}
