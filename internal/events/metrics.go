package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	subscribersGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gwconsole_event_subscribers",
			Help: "Number of connected event subscribers.",
		},
	)
	eventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gwconsole_events_published_total",
			Help: "Number of events published by type.",
		},
		[]string{"type"},
	)
	eventsDeliveredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gwconsole_events_delivered_total",
			Help: "Number of events written to subscriber transports by type.",
		},
		[]string{"type"},
	)
	eventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gwconsole_events_dropped_total",
			Help: "Number of events not delivered to a subscriber, by type and reason.",
		},
		[]string{"type", "reason"},
	)
)

func init() {
	metrics.Registry.MustRegister(subscribersGauge, eventsPublishedTotal, eventsDeliveredTotal, eventsDroppedTotal)
}
