package reminders

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the reminder job.
type Metrics struct {
	// RemindersTotal counts reminders by outcome.
	RemindersTotal *prometheus.CounterVec

	// RemindersDue is the size of the last selection.
	RemindersDue prometheus.Gauge

	ReminderSendDuration prometheus.Histogram

	ReminderRetries prometheus.Counter

	// RateLimitWaits counts sends that had to wait for the limiter.
	RateLimitWaits prometheus.Counter
}

// NewMetrics creates and registers the reminder metrics with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RemindersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reminders_total",
				Help:      "Reminders processed by outcome",
			},
			[]string{"outcome"},
		),

		RemindersDue: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "reminders_due",
				Help:      "Appointments selected by the last reminder run",
			},
		),

		ReminderSendDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "reminder_send_duration_seconds",
				Help:      "Time to deliver a reminder, retries included",
				Buckets:   []float64{.01, .05, .1, .5, 1, 2, 5, 30},
			},
		),

		ReminderRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reminder_retries_total",
				Help:      "Total number of retry attempts",
			},
		),

		RateLimitWaits: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reminder_rate_limit_waits_total",
				Help:      "Total number of rate limit waits",
			},
		),
	}
}

func (m *Metrics) inc(outcome Outcome) {
	if m == nil {
		return
	}
	m.RemindersTotal.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) setDue(n int) {
	if m == nil {
		return
	}
	m.RemindersDue.Set(float64(n))
}

func (m *Metrics) observeSend(seconds float64) {
	if m == nil {
		return
	}
	m.ReminderSendDuration.Observe(seconds)
}

func (m *Metrics) incRetries() {
	if m == nil {
		return
	}
	m.ReminderRetries.Inc()
}

func (m *Metrics) incRateLimitWaits() {
	if m == nil {
		return
	}
	m.RateLimitWaits.Inc()
}
