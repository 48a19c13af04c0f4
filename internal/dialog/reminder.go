package dialog

import (
	"context"
	"errors"
	"strconv"

	"barberbot/internal/model"
	"barberbot/internal/nlu"
)

// Reminder button payloads carry the appointment id: REMINDER_KEEP_<id>.
const (
	reminderKeepPrefix   = "REMINDER_KEEP_"
	reminderCancelPrefix = "REMINDER_CANCEL_"
)

// ReminderButtons are the quick replies attached to a day-before reminder.
func ReminderButtons(appointmentID int64) []model.Button {
	id := strconv.FormatInt(appointmentID, 10)
	return []model.Button{
		{ID: reminderKeepPrefix + id, Label: "SIM"},
		{ID: reminderCancelPrefix + id, Label: "NÃO"},
	}
}

// handleReminderButton answers a tap on a reminder button. It works from any state
// and leaves the state and context of an ongoing flow untouched.
func (m *Machine) handleReminderButton(ctx context.Context, state State, c Context, in input) (Reply, bool) {
	keepID, keep := buttonID(in.text, reminderKeepPrefix)
	cancelID, cancel := buttonID(in.text, reminderCancelPrefix)
	if !keep && !cancel {
		return Reply{}, false
	}
	id := keepID
	if cancel {
		id = cancelID
	}
	resume := func(text string) Reply {
		r := Reply{Text: text, State: state, Context: c}
		if state == Start {
			r.Context = Context{}
		}
		return r
	}

	appt, ok, err := m.ownUpcoming(ctx, c.ClientKey, id)
	if err != nil {
		return m.dataFailure("get reminded appointment", err), true
	}
	if !ok {
		return resume(msgReminderGone), true
	}
	if keep {
		m.logger.Info().Int64("appointment_id", appt.ID).Msg("reminder confirmed")
		return resume(msgReminderKept), true
	}

	err = m.appts.Cancel(ctx, appt.ID)
	if errors.Is(err, model.ErrNotFound) {
		return resume(msgReminderGone), true
	}
	if err != nil {
		return m.dataFailure("cancel appointment", err), true
	}
	m.logger.Info().Int64("appointment_id", appt.ID).Msg("appointment cancelled from reminder")
	return resume(msgCancelled), true
}

// ownUpcoming loads id and checks it is a scheduled, future appointment of the client
// behind key.
func (m *Machine) ownUpcoming(ctx context.Context, key string, id int64) (model.Appointment, bool, error) {
	client, found, err := m.resolveClient(ctx, key)
	if err != nil || !found {
		return model.Appointment{}, false, err
	}
	appt, err := m.appts.Get(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return model.Appointment{}, false, nil
	}
	if err != nil {
		return model.Appointment{}, false, err
	}
	if appt.ClientID != client.ID || appt.Status != model.StatusScheduled || appt.StartAt.Before(m.now()) {
		return model.Appointment{}, false, nil
	}
	return appt, true, nil
}

// handleReminderAnswer treats a bare yes or no typed in Start as the answer to the
// last reminder. A no goes through the usual cancel confirmation.
func (m *Machine) handleReminderAnswer(ctx context.Context, c Context, in input) (Reply, bool) {
	if in.intent != nlu.Unknown {
		return Reply{}, false
	}
	yes, no := isAffirmative(in.text, in.intent), isNegative(in.text, in.intent)
	if yes == no {
		return Reply{}, false
	}

	client, found, err := m.resolveClient(ctx, c.ClientKey)
	if err != nil {
		return m.dataFailure("find client", err), true
	}
	if !found {
		return Reply{}, false
	}
	appts, err := m.upcoming(ctx, client.ID)
	if err != nil {
		return m.dataFailure("list client appointments", err), true
	}
	if len(appts) == 0 {
		return Reply{}, false
	}
	target := appts[0]
	for _, a := range appts {
		if a.ReminderSentAt != nil {
			target = a
			break
		}
	}

	if yes {
		m.logger.Info().Int64("appointment_id", target.ID).Msg("reminder confirmed")
		return Reply{Text: msgReminderKept, State: Start}, true
	}
	return m.selectAppointment(ctx, c.fresh(), OpCancel, target), true
}
