package conversation

import (
	"context"
	"time"

	"barberbot/internal/dialog"
	"barberbot/internal/events"
	"barberbot/internal/metrics"
	"barberbot/internal/model"
	"barberbot/internal/slots"
)

// Publisher receives appointment events.
type Publisher interface {
	Publish(event events.Event)
}

// PublishingAppointments publishes an event after each successful write.
type PublishingAppointments struct {
	dialog.Appointments
	publisher Publisher
}

func NewPublishingAppointments(next dialog.Appointments, publisher Publisher) *PublishingAppointments {
	return &PublishingAppointments{Appointments: next, publisher: publisher}
}

func (p *PublishingAppointments) Create(ctx context.Context, a model.NewAppointment) (int64, error) {
	id, err := p.Appointments.Create(ctx, a)
	if err != nil {
		return 0, err
	}
	metrics.IncAppointment("created")
	p.publisher.Publish(events.Event{Type: events.AppointmentCreated, AppointmentID: id})
	return id, nil
}

func (p *PublishingAppointments) Cancel(ctx context.Context, id int64) error {
	if err := p.Appointments.Cancel(ctx, id); err != nil {
		return err
	}
	metrics.IncAppointment("cancelled")
	p.publisher.Publish(events.Event{Type: events.AppointmentCancelled, AppointmentID: id})
	return nil
}

func (p *PublishingAppointments) Reschedule(ctx context.Context, oldID int64, a model.NewAppointment) (int64, error) {
	id, err := p.Appointments.Reschedule(ctx, oldID, a)
	if err != nil {
		return 0, err
	}
	metrics.IncAppointment("rescheduled")
	p.publisher.Publish(events.Event{Type: events.AppointmentRescheduled, AppointmentID: id, PreviousID: oldID})
	return id, nil
}

type measuredSuggester struct {
	next dialog.Suggester
}

// MeasureSuggester records the size of every availability answer.
func MeasureSuggester(next dialog.Suggester) dialog.Suggester {
	return measuredSuggester{next: next}
}

func (m measuredSuggester) Suggest(ctx context.Context, req slots.Request) ([]time.Time, error) {
	out, err := m.next.Suggest(ctx, req)
	if err == nil {
		metrics.ObserveSuggestions(len(out))
	}
	return out, err
}
