package controllers

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"

	consolev1 "github.com/anvil-platform/gateway-console/api/v1"
	"github.com/anvil-platform/gateway-console/internal/apperr"
)

var (
	gwconsoleOperationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gwconsole_operation_total",
			Help: "Number of API operations by kind, operation and result code.",
		},
		[]string{"kind", "operation", "code"},
	)
	gwconsoleOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gwconsole_operation_duration_seconds",
			Help:    "Time taken by API operations, including retries.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind", "operation"},
	)
	snapshotPartialTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gwconsole_snapshot_partial_total",
			Help: "Number of initial-state snapshots served with at least one kind missing.",
		},
	)
)

func init() {
	metrics.Registry.MustRegister(
		gwconsoleOperationTotal,
		gwconsoleOperationDuration,
		snapshotPartialTotal,
	)
}

func observe(kind consolev1.Kind, op string, start time.Time, errp *error) {
	code := "OK"
	if errp != nil && *errp != nil {
		code = apperr.Code(*errp)
	}
	gwconsoleOperationTotal.WithLabelValues(string(kind), op, code).Inc()
	gwconsoleOperationDuration.WithLabelValues(string(kind), op).Observe(time.Since(start).Seconds())
}
