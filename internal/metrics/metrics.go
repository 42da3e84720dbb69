// Package metrics exposes Prometheus collectors for the session server
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shiller_sessions_created_total",
			Help: "Total number of training sessions created",
		},
	)

	SessionsClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiller_sessions_closed_total",
			Help: "Total number of training sessions closed, by reason",
		},
		[]string{"reason"},
	)

	ValueUpdates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shiller_value_updates_total",
			Help: "Total number of vitals updates published",
		},
	)

	CodeCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shiller_code_collisions_total",
			Help: "Total number of join code collisions during session creation",
		},
	)

	SweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiller_sweep_runs_total",
			Help: "Total number of expiration sweeps, by result",
		},
		[]string{"result"},
	)

	Subscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shiller_subscribers",
			Help: "Number of display clients currently subscribed to a session",
		},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiller_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)
)

// SetSubscribers records the live subscriber count; it matches the
// broadcast hub's OnChange signature.
func SetSubscribers(total int) {
	Subscribers.Set(float64(total))
}
