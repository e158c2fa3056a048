// Package metrics exposes Prometheus counters for the booking engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus instruments.
type Metrics struct {
	TransitionsTotal    *prometheus.CounterVec
	BookingsCreated     *prometheus.CounterVec
	CompletedEvents     prometheus.Counter
	AccrualsTotal       *prometheus.CounterVec
	ConcurrencyConflict prometheus.Counter
	HTTPDuration        *prometheus.HistogramVec
}

// New registers and returns the engine metrics.
func New() *Metrics {
	return &Metrics{
		TransitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "concierge_booking_transitions_total",
			Help: "Status transitions by booking kind, target status and outcome",
		}, []string{"kind", "target", "outcome"}),

		BookingsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "concierge_bookings_created_total",
			Help: "Bookings created by kind",
		}, []string{"kind"}),

		CompletedEvents: promauto.NewCounter(prometheus.CounterOpts{
			Name: "concierge_booking_completed_events_total",
			Help: "Completed events published on the in-process bus",
		}),

		AccrualsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "concierge_loyalty_accruals_total",
			Help: "Loyalty accrual attempts by outcome (awarded, duplicate, skipped, error)",
		}, []string{"outcome"}),

		ConcurrencyConflict: promauto.NewCounter(prometheus.CounterOpts{
			Name: "concierge_booking_version_conflicts_total",
			Help: "Optimistic-concurrency conflicts on booking updates",
		}),

		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "concierge_http_request_duration_seconds",
			Help:    "HTTP request duration by route and method",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}
