package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	GuardRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadgate_guard_rejections_total",
			Help: "Requests rejected by a protection filter",
		},
		[]string{"filter"}, // throttle | anomaly | circuit_breaker
	)

	BreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadgate_breaker_transitions_total",
			Help: "Circuit breaker state transitions by endpoint",
		},
		[]string{"endpoint", "to"},
	)

	EventsEmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadgate_events_emitted_total",
			Help: "Domain events accepted for webhook fan-out",
		},
		[]string{"event"},
	)

	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadgate_deliveries_total",
			Help: "Webhook delivery attempts by outcome",
		},
		[]string{"outcome", "event"}, // success|failure
	)

	DeliveryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leadgate_delivery_duration_seconds",
			Help:    "Webhook POST round-trip time",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		GuardRejectionsTotal,
		BreakerTransitionsTotal,
		EventsEmittedTotal,
		DeliveriesTotal,
		DeliveryDuration,
	)
}
