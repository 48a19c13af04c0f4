// Package metrics holds the bot-wide Prometheus collectors.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "barberbot"

var (
	once sync.Once

	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Conversation turns by channel and outcome.",
		},
		[]string{"channel", "outcome"},
	)

	turnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Time to handle one conversation turn.",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2, 5},
		},
		[]string{"channel"},
	)

	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Dialog transitions by source and target state.",
		},
		[]string{"from", "to"},
	)

	appointmentEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointments_total",
			Help:      "Appointments booked, cancelled and rescheduled.",
		},
		[]string{"action"},
	)

	suggestionCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "slot_suggestions",
			Help:      "Number of slots returned per availability search.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8},
		},
	)

	outboundMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_messages_total",
			Help:      "Messages pushed to channels by status.",
		},
		[]string{"channel", "status"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(turnsTotal, turnDuration, stateTransitions, appointmentEvents, suggestionCount, outboundMessages)
	})
}

func ObserveTurn(channel, outcome string, elapsed time.Duration) {
	turnsTotal.WithLabelValues(channel, outcome).Inc()
	turnDuration.WithLabelValues(channel).Observe(elapsed.Seconds())
}

func IncTransition(from, to string) {
	stateTransitions.WithLabelValues(from, to).Inc()
}

func IncAppointment(action string) {
	appointmentEvents.WithLabelValues(action).Inc()
}

func ObserveSuggestions(n int) {
	suggestionCount.Observe(float64(n))
}

func IncOutbound(channel, status string) {
	outboundMessages.WithLabelValues(channel, status).Inc()
}
