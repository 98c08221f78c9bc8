package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for reminder activity.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	saved        *prometheus.CounterVec
	fired        *prometheus.CounterVec
	authFailures *prometheus.CounterVec
	mealEvents   prometheus.Counter
}

// MustNewMetrics registers the collectors with reg and panics on duplicates.
// Tests pass a fresh prometheus.NewRegistry().
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		saved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "glucodiary",
				Subsystem: "reminders",
				Name:      "saved_total",
				Help:      "Reminders created, updated or deleted through the API.",
			},
			[]string{"op", "kind"},
		),
		fired: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "glucodiary",
				Subsystem: "reminders",
				Name:      "fired_total",
				Help:      "Reminder deliveries by kind and outcome.",
			},
			[]string{"kind", "status"},
		),
		authFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "glucodiary",
				Subsystem: "auth",
				Name:      "failures_total",
				Help:      "Requests rejected by the init data check.",
			},
			[]string{"reason"},
		),
		mealEvents: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "glucodiary",
				Subsystem: "events",
				Name:      "meals_total",
				Help:      "Meals logged that may trigger after-meal reminders.",
			},
		),
	}
	reg.MustRegister(m.saved, m.fired, m.authFailures, m.mealEvents)
	return m
}

func (m *Metrics) ReminderSaved(op, kind string) {
	if m == nil {
		return
	}
	m.saved.WithLabelValues(op, kind).Inc()
}

func (m *Metrics) ReminderFired(kind, status string) {
	if m == nil {
		return
	}
	m.fired.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) AuthFailed(reason string) {
	if m == nil {
		return
	}
	m.authFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) MealLogged() {
	if m == nil {
		return
	}
	m.mealEvents.Inc()
}
