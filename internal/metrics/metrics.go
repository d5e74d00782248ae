// Package metrics holds the Prometheus instruments shared across the
// server's components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the collectors for session tracking and observer fan-out
type Metrics struct {
	EventsPublished     *prometheus.CounterVec
	EventsDelivered     prometheus.Counter
	DeliveryFailures    prometheus.Counter
	SessionsSwept       prometheus.Counter
	ActiveSessions      prometheus.Gauge
	ObserverConnections prometheus.Gauge
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snake_events_published_total",
			Help: "Observer events published, by event type.",
		}, []string{"type"}),
		EventsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snake_events_delivered_total",
			Help: "Event frames handed to observer connections.",
		}),
		DeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snake_delivery_failures_total",
			Help: "Observer connections dropped for failing to keep up.",
		}),
		SessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snake_sessions_swept_total",
			Help: "Sessions evicted by the liveness sweeper.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "snake_active_sessions",
			Help: "Live game sessions currently registered.",
		}),
		ObserverConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "snake_observer_connections",
			Help: "Open observer websocket connections.",
		}),
	}

	reg.MustRegister(
		m.EventsPublished,
		m.EventsDelivered,
		m.DeliveryFailures,
		m.SessionsSwept,
		m.ActiveSessions,
		m.ObserverConnections,
	)
	return m
}
