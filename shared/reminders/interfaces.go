package reminders

import (
	"context"
	"time"

	"barberbot/internal/model"
)

// Store provides the appointments due for a reminder.
type Store interface {
	// ListDueReminders returns scheduled, not yet reminded appointments starting in [from, to).
	ListDueReminders(ctx context.Context, from, to time.Time) ([]model.AppointmentDetail, error)

	// MarkReminderSent stamps the appointment so it is not reminded twice.
	MarkReminderSent(ctx context.Context, appointmentID int64) error
}

// Notifier delivers a message to a client key on its own channel.
type Notifier interface {
	Send(ctx context.Context, key, text string, buttons []model.Button) error
}

// Outcome of one reminder.
type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// RunStats summarises a reminder run.
type RunStats struct {
	Total   int
	Sent    int
	Skipped int
	Failed  int
}
