package dialog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"barberbot/internal/calendar"
	"barberbot/internal/model"
	"barberbot/internal/nlu"
)

func (m *Machine) offerBarbers(ctx context.Context, c Context, text string) Reply {
	barbers, err := m.catalog.ListActiveBarbers(ctx)
	if err != nil {
		return m.dataFailure("list barbers", err)
	}
	if len(barbers) == 0 {
		return Reply{Text: msgNoBarbers, State: Start}
	}
	return Reply{Text: text, State: WaitBarber, Context: c, Buttons: barberButtons(barbers)}
}

func (m *Machine) offerServices(ctx context.Context, c Context, text string) Reply {
	services, err := m.catalog.ListActiveServices(ctx)
	if err != nil {
		return m.dataFailure("list services", err)
	}
	if len(services) == 0 {
		return Reply{Text: msgNoServices, State: Start}
	}
	return Reply{Text: text, State: WaitService, Context: c, Buttons: serviceButtons(services)}
}

func (m *Machine) resolveBarber(ctx context.Context, text string) (model.Barber, error) {
	if id, ok := buttonID(text, barberButtonPrefix); ok {
		b, err := m.catalog.FindBarberByID(ctx, id)
		if err != nil {
			return model.Barber{}, err
		}
		if !b.IsActive {
			return model.Barber{}, model.ErrNotFound
		}
		return b, nil
	}
	return m.catalog.FindBarberByName(ctx, text)
}

func (m *Machine) resolveService(ctx context.Context, text string) (model.Service, error) {
	if id, ok := buttonID(text, serviceButtonPrefix); ok {
		s, err := m.catalog.FindServiceByID(ctx, id)
		if err != nil {
			return model.Service{}, err
		}
		if !s.IsActive {
			return model.Service{}, model.ErrNotFound
		}
		return s, nil
	}
	return m.catalog.FindServiceByName(ctx, serviceNameFromLabel(text))
}

func (m *Machine) handleBarber(ctx context.Context, c Context, in input) Reply {
	if in.intent == nlu.CancelAppointment {
		return m.abort()
	}
	barber, err := m.resolveBarber(ctx, in.text)
	if errors.Is(err, model.ErrNotFound) {
		return m.offerBarbers(ctx, c, msgBarberNotFound)
	}
	if err != nil {
		return m.dataFailure("find barber", err)
	}

	c.BarberID = barber.ID
	c.BarberName = barber.Name
	return m.offerServices(ctx, c, fmt.Sprintf(msgChooseService, barber.Name))
}

func (m *Machine) handleService(ctx context.Context, c Context, in input) Reply {
	if in.intent == nlu.CancelAppointment {
		return m.abort()
	}
	service, err := m.resolveService(ctx, in.text)
	if errors.Is(err, model.ErrNotFound) {
		return m.offerServices(ctx, c, msgServiceNotFound)
	}
	if err != nil {
		return m.dataFailure("find service", err)
	}

	c.ServiceID = service.ID
	c.ServiceName = service.Name
	c.ServiceDuration = service.DurationMinutes
	return Reply{Text: msgAskDate, State: WaitDate, Context: c}
}

// handleDate serves WaitDate and WaitRemarkDate.
func (m *Machine) handleDate(c Context, in input, remark bool) Reply {
	current, next := WaitDate, WaitTimePref
	if remark {
		current, next = WaitRemarkDate, WaitRemarkTimePref
	}
	if in.intent == nlu.CancelAppointment {
		return m.abort()
	}
	date, ok := calendar.ParseDate(in.text, m.today())
	if !ok {
		return Reply{Text: msgInvalidDate, State: current, Context: c}
	}

	c.Date = date
	c.TimePref = nil
	c.SelectedSlot = nil
	return Reply{Text: msgAskTime, State: next, Context: c}
}

// noSlots sends the client back to choosing a day.
func noSlots(c Context, remark bool) Reply {
	state := WaitDate
	if remark {
		state = WaitRemarkDate
	}
	text := fmt.Sprintf(msgNoSlots, formatDate(c.Date))
	c.Date, c.TimePref, c.SelectedSlot = time.Time{}, nil, nil
	return Reply{Text: text, State: state, Context: c}
}

func (m *Machine) confirmationPrompt(c Context, remark bool) Reply {
	if remark {
		return Reply{
			Text:    fmt.Sprintf(msgConfirmRemark, contextSummary(c)),
			State:   WaitRemarkConfirmation,
			Context: c,
			Buttons: yesNoButtons,
		}
	}
	return Reply{
		Text:    fmt.Sprintf(msgConfirmBooking, contextSummary(c)),
		State:   WaitConfirmation,
		Context: c,
		Buttons: yesNoButtons,
	}
}

// handleTimePref serves WaitTimePref and WaitRemarkTimePref.
func (m *Machine) handleTimePref(ctx context.Context, c Context, in input, remark bool) Reply {
	current, pick := WaitTimePref, WaitSlotPick
	if remark {
		current, pick = WaitRemarkTimePref, WaitRemarkSlotPick
	}
	if in.intent == nlu.CancelAppointment {
		return m.abort()
	}
	preferred, ok := calendar.ParseTime(stripButtonPrefix(in.text))
	if !ok {
		return Reply{Text: msgInvalidTime, State: current, Context: c}
	}
	if !c.hasSearchInputs() {
		return m.lostContext("time preference without date, barber or duration")
	}

	suggestions, err := m.suggest(ctx, c, preferred, m.maxSugg)
	if err != nil {
		return m.dataFailure("suggest slots", err)
	}
	if len(suggestions) == 0 {
		return noSlots(c, remark)
	}

	c.TimePref = &preferred
	if calendar.ClockOf(suggestions[0]) == preferred {
		c.SelectedSlot = &preferred
		return m.confirmationPrompt(c, remark)
	}
	return Reply{
		Text:    fmt.Sprintf(msgNearest, preferred),
		State:   pick,
		Context: c,
		Buttons: slotButtons(suggestions),
	}
}

// handleSlotPick serves WaitSlotPick and WaitRemarkSlotPick.
func (m *Machine) handleSlotPick(ctx context.Context, c Context, in input, remark bool) Reply {
	current := WaitSlotPick
	if remark {
		current = WaitRemarkSlotPick
	}
	if in.intent == nlu.CancelAppointment {
		return m.abort()
	}
	chosen, ok := calendar.ParseTime(stripButtonPrefix(in.text))
	if !ok {
		return m.repromptSlots(ctx, c, current)
	}
	if !c.hasSearchInputs() || c.ServiceID == 0 {
		return m.lostContext("slot pick without date, barber or service")
	}

	suggestions, err := m.suggest(ctx, c, chosen, m.maxSugg)
	if err != nil {
		return m.dataFailure("suggest slots", err)
	}
	if len(suggestions) > 0 && calendar.ClockOf(suggestions[0]) == chosen {
		c.SelectedSlot = &chosen
		if remark {
			return m.confirmationPrompt(c, true)
		}
		client, found, err := m.resolveClient(ctx, c.ClientKey)
		if err != nil {
			return m.dataFailure("find client", err)
		}
		if !found {
			return m.confirmationPrompt(c, false)
		}
		return m.book(ctx, c, client)
	}

	if len(suggestions) > 2 {
		suggestions = suggestions[:2]
	}
	if len(suggestions) == 0 {
		return noSlots(c, remark)
	}
	return Reply{
		Text:    fmt.Sprintf(msgNearest, chosen),
		State:   current,
		Context: c,
		Buttons: slotButtons(suggestions),
	}
}

// repromptSlots re-lists the options around the stored preference after bad input.
func (m *Machine) repromptSlots(ctx context.Context, c Context, state State) Reply {
	reply := Reply{Text: msgInvalidTime, State: state, Context: c}
	if c.TimePref == nil || !c.hasSearchInputs() {
		return reply
	}
	suggestions, err := m.suggest(ctx, c, *c.TimePref, m.maxSugg)
	if err != nil {
		return m.dataFailure("suggest slots", err)
	}
	reply.Buttons = slotButtons(suggestions)
	return reply
}

func (m *Machine) handleConfirmation(ctx context.Context, c Context, in input) Reply {
	switch {
	case isAffirmative(in.text, in.intent):
		if !c.BookingComplete() {
			return m.lostContext("confirmation with incomplete booking")
		}
		client, found, err := m.resolveClient(ctx, c.ClientKey)
		if err != nil {
			return m.dataFailure("find client", err)
		}
		if !found {
			return m.lostContext("confirmation without client")
		}
		return m.book(ctx, c, client)
	case isNegative(in.text, in.intent):
		keep := Context{ClientKey: c.ClientKey, BarberID: c.BarberID, BarberName: c.BarberName}
		return m.offerBarbers(ctx, keep, msgChooseBarberAgain)
	default:
		return Reply{Text: msgAskYesNo, State: WaitConfirmation, Context: c, Buttons: yesNoButtons}
	}
}

// newAppointment builds the booking for the context's slot.
func (m *Machine) newAppointment(c Context, clientID int64) model.NewAppointment {
	start := c.SelectedSlot.On(c.Date, m.location)
	return model.NewAppointment{
		ClientID:  clientID,
		BarberID:  c.BarberID,
		ServiceID: c.ServiceID,
		StartAt:   start,
		EndAt:     start.Add(c.Duration()),
	}
}

func (m *Machine) book(ctx context.Context, c Context, client model.Client) Reply {
	appt := m.newAppointment(c, client.ID)
	id, err := m.appts.Create(ctx, appt)
	if errors.Is(err, model.ErrSlotTaken) {
		m.logger.Info().Int64("barber_id", c.BarberID).Time("start", appt.StartAt).Msg("slot taken before booking")
		return Reply{Text: msgSlotTaken, State: Start, Buttons: startButtons}
	}
	if err != nil {
		return m.dataFailure("create appointment", err)
	}

	m.logger.Info().
		Int64("appointment_id", id).
		Int64("client_id", client.ID).
		Int64("barber_id", c.BarberID).
		Time("start", appt.StartAt).
		Msg("appointment booked")
	return Reply{Text: fmt.Sprintf(msgBooked, contextSummary(c)), State: Confirmed, Context: c}
}
