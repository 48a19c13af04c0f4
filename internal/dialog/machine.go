// Package dialog drives the booking conversation: given the persisted state, the
// context and one inbound message it computes the reply, the next state, the next
// context and the quick-reply buttons.
package dialog

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"barberbot/internal/calendar"
	"barberbot/internal/model"
	"barberbot/internal/nlu"
	"barberbot/internal/slots"
)

// Catalog reads barbers and services.
type Catalog interface {
	ListActiveBarbers(ctx context.Context) ([]model.Barber, error)
	FindBarberByName(ctx context.Context, name string) (model.Barber, error)
	FindBarberByID(ctx context.Context, id int64) (model.Barber, error)
	ListActiveServices(ctx context.Context) ([]model.Service, error)
	FindServiceByName(ctx context.Context, name string) (model.Service, error)
	FindServiceByID(ctx context.Context, id int64) (model.Service, error)
}

// Appointments is the appointment store. Create and Reschedule fail with
// model.ErrSlotTaken when the interval overlaps a scheduled booking.
type Appointments interface {
	Create(ctx context.Context, a model.NewAppointment) (int64, error)
	Get(ctx context.Context, id int64) (model.Appointment, error)
	Cancel(ctx context.Context, id int64) error
	Reschedule(ctx context.Context, oldID int64, a model.NewAppointment) (int64, error)
	ListForClient(ctx context.Context, clientID int64, status model.Status) ([]model.Appointment, error)
}

// Clients resolves channel keys to client records.
type Clients interface {
	FindClientByKey(ctx context.Context, key string) (model.Client, error)
}

// Suggester proposes free start times.
type Suggester interface {
	Suggest(ctx context.Context, req slots.Request) ([]time.Time, error)
}

// Config tunes the machine.
type Config struct {
	Location       *time.Location
	Now            func() time.Time
	MaxSuggestions int
}

// Reply is the outcome of one turn.
type Reply struct {
	Text    string
	State   State
	Context Context
	Buttons []model.Button
}

// Machine is the dialog state machine. It is stateless between calls and safe for
// concurrent use.
type Machine struct {
	catalog   Catalog
	appts     Appointments
	clients   Clients
	suggester Suggester
	location  *time.Location
	now       func() time.Time
	maxSugg   int
	logger    zerolog.Logger
}

// NewMachine wires the machine to its data sources.
func NewMachine(catalog Catalog, appts Appointments, clients Clients, suggester Suggester, cfg Config, logger zerolog.Logger) *Machine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxSuggestions <= 0 {
		cfg.MaxSuggestions = slots.DefaultMaxSuggestions
	}
	return &Machine{
		catalog:   catalog,
		appts:     appts,
		clients:   clients,
		suggester: suggester,
		location:  cfg.Location,
		now:       cfg.Now,
		maxSugg:   cfg.MaxSuggestions,
		logger:    logger.With().Str("component", "dialog").Logger(),
	}
}

type input struct {
	text   string
	intent nlu.Intent
}

// Handle processes one message. It never fails: every error path degrades to a
// well-formed reply, usually a reset to Start.
func (m *Machine) Handle(ctx context.Context, state State, c Context, message string) Reply {
	in := input{text: strings.TrimSpace(message)}
	in.intent = nlu.Classify(in.text)

	if state.Valid() {
		if r, ok := m.handleReminderButton(ctx, state, c, in); ok {
			return r
		}
	}

	switch state {
	case Start:
		return m.handleStart(ctx, c, in)
	case WaitBarber:
		return m.handleBarber(ctx, c, in)
	case WaitService:
		return m.handleService(ctx, c, in)
	case WaitDate:
		return m.handleDate(c, in, false)
	case WaitTimePref:
		return m.handleTimePref(ctx, c, in, false)
	case WaitSlotPick:
		return m.handleSlotPick(ctx, c, in, false)
	case WaitConfirmation:
		return m.handleConfirmation(ctx, c, in)
	case WaitClarification, Confirmed:
		return Reply{Text: msgFollowUp, State: Start, Buttons: startButtons}
	case WaitAppointmentPick:
		return m.handleAppointmentPick(ctx, c, in)
	case WaitCancelConfirmation:
		return m.handleCancelConfirmation(ctx, c, in)
	case WaitRemarkDate:
		return m.handleDate(c, in, true)
	case WaitRemarkTimePref:
		return m.handleTimePref(ctx, c, in, true)
	case WaitRemarkSlotPick:
		return m.handleSlotPick(ctx, c, in, true)
	case WaitRemarkConfirmation:
		return m.handleRemarkConfirmation(ctx, c, in)
	default:
		m.logger.Warn().Uint8("state", uint8(state)).Msg("unknown dialog state, resetting")
		return Reply{Text: msgUnknown, State: Start, Buttons: startButtons}
	}
}

func (m *Machine) handleStart(ctx context.Context, c Context, in input) Reply {
	switch in.intent {
	case nlu.Greeting:
		return Reply{Text: msgWelcome, State: Start, Buttons: startButtons}
	case nlu.BookAppointment:
		return m.offerBarbers(ctx, c.fresh(), msgChooseBarber)
	case nlu.CancelAppointment:
		return m.beginManage(ctx, c.fresh(), OpCancel)
	case nlu.RemarkAppointment:
		return m.beginManage(ctx, c.fresh(), OpRemark)
	default:
		if r, ok := m.handleReminderAnswer(ctx, c, in); ok {
			return r
		}
		return Reply{Text: msgClarify, State: Start, Buttons: startButtons}
	}
}

// abort is the escape hatch out of the booking flow.
func (m *Machine) abort() Reply {
	return Reply{Text: msgAborted, State: Start}
}

// Reset answers a turn whose stored state or context could not be restored.
func (m *Machine) Reset(reason string) Reply {
	return m.lostContext(reason)
}

func (m *Machine) lostContext(reason string) Reply {
	m.logger.Info().Str("reason", reason).Msg("conversation context lost, resetting")
	return Reply{Text: msgLostContext, State: Start, Buttons: startButtons}
}

func (m *Machine) dataFailure(op string, err error) Reply {
	m.logger.Error().Err(err).Str("op", op).Msg("data access failed during turn")
	return Reply{Text: msgTryAgain, State: Start, Buttons: startButtons}
}

func (m *Machine) today() time.Time {
	return calendar.DateOf(m.now().In(m.location))
}

// suggest runs the availability search for the context's barber, day and service.
func (m *Machine) suggest(ctx context.Context, c Context, preferred calendar.Clock, limit int) ([]time.Time, error) {
	req := slots.Request{
		Date:      c.Date,
		BarberID:  c.BarberID,
		Duration:  c.Duration(),
		Preferred: preferred,
		Max:       limit,
	}
	if c.Operation == OpRemark {
		req.ExcludeAppointmentID = c.RemarkAppointmentID
	}
	return m.suggester.Suggest(ctx, req)
}

// resolveClient looks up the client behind the context key. A missing key or record
// is reported as found=false.
func (m *Machine) resolveClient(ctx context.Context, key string) (model.Client, bool, error) {
	if key == "" {
		return model.Client{}, false, nil
	}
	client, err := m.clients.FindClientByKey(ctx, key)
	if errors.Is(err, model.ErrNotFound) {
		return model.Client{}, false, nil
	}
	if err != nil {
		return model.Client{}, false, err
	}
	return client, true, nil
}

// upcoming returns scheduled appointments of the client that have not started yet,
// earliest first.
func (m *Machine) upcoming(ctx context.Context, clientID int64) ([]model.Appointment, error) {
	all, err := m.appts.ListForClient(ctx, clientID, model.StatusScheduled)
	if err != nil {
		return nil, err
	}
	now := m.now()
	out := make([]model.Appointment, 0, len(all))
	for _, a := range all {
		if a.Status == model.StatusScheduled && !a.StartAt.Before(now) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}
