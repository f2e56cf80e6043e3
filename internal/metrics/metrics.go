// Package metrics holds the Prometheus collectors of the messaging and
// notification core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActiveConnections counts live connections currently registered.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coachlink_live_connections",
		Help: "Number of registered live connections.",
	})

	// FramesBroadcast counts frames handed to live connections, by frame type.
	FramesBroadcast = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coachlink_frames_broadcast_total",
		Help: "Frames delivered to live connections.",
	}, []string{"type"})

	// BroadcastFailures counts per-connection send failures during fan-out.
	BroadcastFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coachlink_broadcast_failures_total",
		Help: "Per-connection send failures during broadcast.",
	})

	// MessagesPersisted counts chat messages committed to the store.
	MessagesPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coachlink_messages_persisted_total",
		Help: "Chat messages committed to the store.",
	})

	// SchedulerRuns counts scheduler runs by outcome (completed, locked, error).
	SchedulerRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coachlink_scheduler_runs_total",
		Help: "Reminder scheduler runs.",
	}, []string{"outcome"})

	// NotificationsCreated counts outbox rows created by producers.
	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coachlink_notifications_created_total",
		Help: "Outbox notifications created.",
	}, []string{"type"})

	// SchedulerUserErrors counts users whose processing failed in a run.
	SchedulerUserErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coachlink_scheduler_user_errors_total",
		Help: "Per-user failures inside scheduler runs.",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
