// Package metrics exposes engine counters to Prometheus.
// Every recorder is safe on a nil *Metrics so components can run without metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "presence"

// Metrics engine counters.
type Metrics struct {
	registry *prometheus.Registry

	sessionsOpened     *prometheus.CounterVec // verification
	sessionsClosed     *prometheus.CounterVec // status, verification
	conflicts          *prometheus.CounterVec // operation
	remindersCreated   *prometheus.CounterVec // origin: probe, escalation
	remindersResponded *prometheus.CounterVec // response_type
	dispatches         *prometheus.CounterVec // channel, outcome
	degradedThresholds prometheus.Counter
	sweeps             *prometheus.CounterVec // kind: due, stale
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		sessionsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_opened_total",
			Help:      "Presence sessions opened, by verification channel.",
		}, []string{"verification"}),
		sessionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_closed_total",
			Help:      "Presence sessions closed, by resulting status and verification channel.",
		}, []string{"status", "verification"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflicts_total",
			Help:      "Guarded writes rejected, by operation.",
		}, []string{"operation"}),
		remindersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_created_total",
			Help:      "Checkout reminders created, by origin.",
		}, []string{"origin"}),
		remindersResponded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminder_responses_total",
			Help:      "Reminder responses recorded, by response type.",
		}, []string{"response_type"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Notification dispatch attempts, by channel and outcome.",
		}, []string{"channel", "outcome"}),
		degradedThresholds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "late_threshold_degraded_total",
			Help:      "Late-threshold resolutions that fell back to hard-coded cutoffs.",
		}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeper_deliveries_total",
			Help:      "Reminders handed to delivery by the sweeper, by kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(
		m.sessionsOpened,
		m.sessionsClosed,
		m.conflicts,
		m.remindersCreated,
		m.remindersResponded,
		m.dispatches,
		m.degradedThresholds,
		m.sweeps,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) RecordSessionOpened(verification string) {
	if m == nil {
		return
	}
	m.sessionsOpened.WithLabelValues(verification).Inc()
}

func (m *Metrics) RecordSessionClosed(status, verification string) {
	if m == nil {
		return
	}
	m.sessionsClosed.WithLabelValues(status, verification).Inc()
}

func (m *Metrics) RecordConflict(operation string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(operation).Inc()
}

func (m *Metrics) RecordReminderCreated(origin string) {
	if m == nil {
		return
	}
	m.remindersCreated.WithLabelValues(origin).Inc()
}

func (m *Metrics) RecordReminderResponse(responseType string) {
	if m == nil {
		return
	}
	m.remindersResponded.WithLabelValues(responseType).Inc()
}

func (m *Metrics) RecordDispatch(channel string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	m.dispatches.WithLabelValues(channel, outcome).Inc()
}

func (m *Metrics) RecordDegradedThreshold() {
	if m == nil {
		return
	}
	m.degradedThresholds.Inc()
}

func (m *Metrics) RecordSweep(kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.sweeps.WithLabelValues(kind).Add(float64(n))
}
