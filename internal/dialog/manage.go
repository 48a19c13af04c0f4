package dialog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"barberbot/internal/calendar"
	"barberbot/internal/model"
	"barberbot/internal/nlu"
)

// beginManage starts a cancel or remark flow from Start.
func (m *Machine) beginManage(ctx context.Context, c Context, op Operation) Reply {
	client, found, err := m.resolveClient(ctx, c.ClientKey)
	if err != nil {
		return m.dataFailure("find client", err)
	}
	if !found {
		return Reply{Text: msgNoAppointments, State: Start, Buttons: startButtons}
	}
	appts, err := m.upcoming(ctx, client.ID)
	if err != nil {
		return m.dataFailure("list client appointments", err)
	}

	switch len(appts) {
	case 0:
		return Reply{Text: msgNoAppointments, State: Start, Buttons: startButtons}
	case 1:
		return m.selectAppointment(ctx, c, op, appts[0])
	}

	c.Operation = op
	c.PickableAppointmentIDs = make([]int64, 0, len(appts))
	for _, a := range appts {
		c.PickableAppointmentIDs = append(c.PickableAppointmentIDs, a.ID)
	}
	buttons, err := m.appointmentButtons(ctx, appts)
	if err != nil {
		return m.dataFailure("describe appointments", err)
	}
	text := msgPickCancel
	if op == OpRemark {
		text = msgPickRemark
	}
	return Reply{Text: text, State: WaitAppointmentPick, Context: c, Buttons: buttons}
}

func (m *Machine) appointmentButtons(ctx context.Context, appts []model.Appointment) ([]model.Button, error) {
	names := make(map[int64]string)
	out := make([]model.Button, 0, len(appts))
	for _, a := range appts {
		name, ok := names[a.BarberID]
		if !ok {
			b, err := m.catalog.FindBarberByID(ctx, a.BarberID)
			if err != nil {
				return nil, err
			}
			name = b.Name
			names[a.BarberID] = name
		}
		start := a.StartAt.In(m.location)
		out = append(out, model.Button{
			ID:    apptButtonPrefix + strconv.FormatInt(a.ID, 10),
			Label: fmt.Sprintf("%s %s - %s", start.Format("02/01"), start.Format("15:04"), name),
		})
	}
	return out, nil
}

// describe renders an existing appointment for confirmation prompts.
func (m *Machine) describe(ctx context.Context, a model.Appointment) (string, error) {
	barber, err := m.catalog.FindBarberByID(ctx, a.BarberID)
	if err != nil {
		return "", err
	}
	service, err := m.catalog.FindServiceByID(ctx, a.ServiceID)
	if err != nil {
		return "", err
	}
	start := a.StartAt.In(m.location)
	return summary(barber.Name, service.Name, start, calendar.ClockOf(start)), nil
}

// selectAppointment moves a chosen appointment into its confirmation or remark step.
func (m *Machine) selectAppointment(ctx context.Context, c Context, op Operation, a model.Appointment) Reply {
	c.Operation = op
	c.PickableAppointmentIDs = nil

	switch op {
	case OpCancel:
		text, err := m.describe(ctx, a)
		if err != nil {
			return m.dataFailure("describe appointment", err)
		}
		c.CancelAppointmentID = a.ID
		return Reply{
			Text:    fmt.Sprintf(msgConfirmCancel, text),
			State:   WaitCancelConfirmation,
			Context: c,
			Buttons: yesNoButtons,
		}
	case OpRemark:
		barber, err := m.catalog.FindBarberByID(ctx, a.BarberID)
		if err != nil {
			return m.dataFailure("find barber", err)
		}
		service, err := m.catalog.FindServiceByID(ctx, a.ServiceID)
		if err != nil {
			return m.dataFailure("find service", err)
		}
		c.RemarkAppointmentID = a.ID
		c.BarberID, c.BarberName = barber.ID, barber.Name
		c.ServiceID, c.ServiceName, c.ServiceDuration = service.ID, service.Name, service.DurationMinutes
		return Reply{
			Text:    fmt.Sprintf(msgRemarkAskDate, barber.Name, service.Name),
			State:   WaitRemarkDate,
			Context: c,
		}
	default:
		return m.lostContext("appointment selected without operation")
	}
}

func parseAppointmentPick(text string) (int64, bool) {
	if id, ok := buttonID(text, apptButtonPrefix); ok {
		return id, true
	}
	id, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	return id, err == nil && id > 0
}

func (m *Machine) handleAppointmentPick(ctx context.Context, c Context, in input) Reply {
	if in.intent == nlu.CancelAppointment {
		return m.abort()
	}
	if c.Operation != OpCancel && c.Operation != OpRemark {
		return m.lostContext("appointment pick without operation")
	}
	id, ok := parseAppointmentPick(in.text)
	if !ok || !containsID(c.PickableAppointmentIDs, id) {
		return m.repromptAppointments(ctx, c)
	}

	appt, err := m.appts.Get(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return m.lostContext("picked appointment disappeared")
	}
	if err != nil {
		return m.dataFailure("get appointment", err)
	}
	if appt.Status != model.StatusScheduled {
		return m.lostContext("picked appointment no longer scheduled")
	}
	return m.selectAppointment(ctx, c, c.Operation, appt)
}

func (m *Machine) repromptAppointments(ctx context.Context, c Context) Reply {
	appts := make([]model.Appointment, 0, len(c.PickableAppointmentIDs))
	for _, id := range c.PickableAppointmentIDs {
		a, err := m.appts.Get(ctx, id)
		if errors.Is(err, model.ErrNotFound) {
			continue
		}
		if err != nil {
			return m.dataFailure("get appointment", err)
		}
		appts = append(appts, a)
	}
	buttons, err := m.appointmentButtons(ctx, appts)
	if err != nil {
		return m.dataFailure("describe appointments", err)
	}
	return Reply{Text: msgInvalidPick, State: WaitAppointmentPick, Context: c, Buttons: buttons}
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (m *Machine) handleCancelConfirmation(ctx context.Context, c Context, in input) Reply {
	if !isAffirmative(in.text, in.intent) && in.intent != nlu.CancelAppointment {
		return Reply{Text: msgCancelKept, State: Start, Buttons: startButtons}
	}
	if c.CancelAppointmentID == 0 {
		return m.lostContext("cancel confirmation without target")
	}

	err := m.appts.Cancel(ctx, c.CancelAppointmentID)
	if errors.Is(err, model.ErrNotFound) {
		return m.lostContext("cancel target not found")
	}
	if err != nil {
		return m.dataFailure("cancel appointment", err)
	}
	m.logger.Info().Int64("appointment_id", c.CancelAppointmentID).Msg("appointment cancelled")
	return Reply{Text: msgCancelled, State: Start}
}

func (m *Machine) handleRemarkConfirmation(ctx context.Context, c Context, in input) Reply {
	switch {
	case isAffirmative(in.text, in.intent) || in.intent == nlu.RemarkAppointment:
	case isNegative(in.text, in.intent):
		return Reply{Text: msgRemarkKept, State: Start, Buttons: startButtons}
	default:
		return Reply{Text: msgAskYesNo, State: WaitRemarkConfirmation, Context: c, Buttons: yesNoButtons}
	}

	if c.RemarkAppointmentID == 0 || !c.BookingComplete() {
		return m.lostContext("remark confirmation with incomplete context")
	}
	client, found, err := m.resolveClient(ctx, c.ClientKey)
	if err != nil {
		return m.dataFailure("find client", err)
	}
	if !found {
		return m.lostContext("remark confirmation without client")
	}

	newID, err := m.appts.Reschedule(ctx, c.RemarkAppointmentID, m.newAppointment(c, client.ID))
	switch {
	case errors.Is(err, model.ErrSlotTaken):
		return Reply{Text: msgSlotTaken, State: Start, Buttons: startButtons}
	case errors.Is(err, model.ErrNotFound):
		return m.lostContext("remark target not found")
	case err != nil:
		return m.dataFailure("reschedule appointment", err)
	}

	m.logger.Info().
		Int64("old_appointment_id", c.RemarkAppointmentID).
		Int64("appointment_id", newID).
		Msg("appointment rescheduled")
	return Reply{Text: fmt.Sprintf(msgRemarked, contextSummary(c)), State: Start}
}
