package dialog

import (
	"encoding/json"
	"fmt"
	"time"

	"barberbot/internal/calendar"
)

// Operation tags a cancel or remark flow.
type Operation string

const (
	OpNone   Operation = ""
	OpCancel Operation = "cancel"
	OpRemark Operation = "remark"
)

// Context is what the dialog remembers between turns. Zero values mean "not set";
// ids are always positive once assigned.
type Context struct {
	ClientKey string

	BarberID   int64
	BarberName string

	ServiceID       int64
	ServiceName     string
	ServiceDuration int // minutes

	Date         time.Time
	TimePref     *calendar.Clock
	SelectedSlot *calendar.Clock

	Operation           Operation
	CancelAppointmentID int64
	RemarkAppointmentID int64
	// PickableAppointmentIDs are the appointments offered in WaitAppointmentPick.
	PickableAppointmentIDs []int64
}

// BookingComplete reports whether every field needed to create an appointment is set.
func (c Context) BookingComplete() bool {
	return c.BarberID != 0 && c.ServiceID != 0 && !c.Date.IsZero() && c.SelectedSlot != nil
}

// hasSearchInputs reports whether an availability search can run.
func (c Context) hasSearchInputs() bool {
	return !c.Date.IsZero() && c.BarberID != 0 && c.ServiceDuration > 0
}

// Duration returns the chosen service length.
func (c Context) Duration() time.Duration {
	return time.Duration(c.ServiceDuration) * time.Minute
}

// IsEmpty reports whether nothing has been collected yet.
func (c Context) IsEmpty() bool {
	return c.ClientKey == "" && c.BarberID == 0 && c.ServiceID == 0 && c.Date.IsZero() &&
		c.TimePref == nil && c.SelectedSlot == nil && c.Operation == OpNone &&
		c.CancelAppointmentID == 0 && c.RemarkAppointmentID == 0 && len(c.PickableAppointmentIDs) == 0
}

// fresh starts a new flow, keeping only the client identity.
func (c Context) fresh() Context {
	return Context{ClientKey: c.ClientKey}
}

// wireContext is the persisted JSON shape.
type wireContext struct {
	ClientKey       string  `json:"client_key,omitempty"`
	BarberID        int64   `json:"barber_id,omitempty"`
	BarberName      string  `json:"barber_name,omitempty"`
	ServiceID       int64   `json:"service_id,omitempty"`
	ServiceName     string  `json:"service_name,omitempty"`
	ServiceDuration int     `json:"service_duration_minutes,omitempty"`
	Date            string  `json:"date,omitempty"`
	TimePref        string  `json:"time_pref,omitempty"`
	SelectedSlot    string  `json:"selected_slot,omitempty"`
	Operation       string  `json:"operation,omitempty"`
	CancelApptID    int64   `json:"cancel_appt_id,omitempty"`
	RemarkApptID    int64   `json:"remark_appt_id,omitempty"`
	PickableApptIDs []int64 `json:"pickable_appt_ids,omitempty"`
}

// EncodeContext serializes c for the client record.
func EncodeContext(c Context) ([]byte, error) {
	w := wireContext{
		ClientKey:       c.ClientKey,
		BarberID:        c.BarberID,
		BarberName:      c.BarberName,
		ServiceID:       c.ServiceID,
		ServiceName:     c.ServiceName,
		ServiceDuration: c.ServiceDuration,
		Operation:       string(c.Operation),
		CancelApptID:    c.CancelAppointmentID,
		RemarkApptID:    c.RemarkAppointmentID,
		PickableApptIDs: c.PickableAppointmentIDs,
	}
	if !c.Date.IsZero() {
		w.Date = calendar.FormatISODate(c.Date)
	}
	if c.TimePref != nil {
		w.TimePref = c.TimePref.String()
	}
	if c.SelectedSlot != nil {
		w.SelectedSlot = c.SelectedSlot.String()
	}
	return json.Marshal(w)
}

// DecodeContext parses a stored context. Empty input yields an empty context.
func DecodeContext(data []byte, loc *time.Location) (Context, error) {
	var c Context
	if len(data) == 0 {
		return c, nil
	}
	var w wireContext
	if err := json.Unmarshal(data, &w); err != nil {
		return c, fmt.Errorf("decode context: %w", err)
	}

	c = Context{
		ClientKey:              w.ClientKey,
		BarberID:               w.BarberID,
		BarberName:             w.BarberName,
		ServiceID:              w.ServiceID,
		ServiceName:            w.ServiceName,
		ServiceDuration:        w.ServiceDuration,
		CancelAppointmentID:    w.CancelApptID,
		RemarkAppointmentID:    w.RemarkApptID,
		PickableAppointmentIDs: w.PickableApptIDs,
	}

	switch Operation(w.Operation) {
	case OpNone, OpCancel, OpRemark:
		c.Operation = Operation(w.Operation)
	default:
		return Context{}, fmt.Errorf("decode context: unknown operation %q", w.Operation)
	}

	if w.Date != "" {
		d, err := calendar.ParseISODate(w.Date, loc)
		if err != nil {
			return Context{}, fmt.Errorf("decode context date: %w", err)
		}
		c.Date = d
	}
	if w.TimePref != "" {
		t, ok := calendar.ParseTime(w.TimePref)
		if !ok {
			return Context{}, fmt.Errorf("decode context: bad time_pref %q", w.TimePref)
		}
		c.TimePref = &t
	}
	if w.SelectedSlot != "" {
		t, ok := calendar.ParseTime(w.SelectedSlot)
		if !ok {
			return Context{}, fmt.Errorf("decode context: bad selected_slot %q", w.SelectedSlot)
		}
		c.SelectedSlot = &t
	}
	return c, nil
}
