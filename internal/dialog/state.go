package dialog

// State is a step of the conversation. The set is closed: values outside the
// constants below are treated as lost context.
type State uint8

const (
	Start State = iota
	WaitBarber
	WaitService
	WaitDate
	WaitTimePref
	WaitSlotPick
	WaitConfirmation
	WaitClarification
	Confirmed
	WaitAppointmentPick
	WaitCancelConfirmation
	WaitRemarkDate
	WaitRemarkTimePref
	WaitRemarkSlotPick
	WaitRemarkConfirmation
)

var stateNames = [...]string{
	Start:                  "START",
	WaitBarber:             "WAIT_BARBER",
	WaitService:            "WAIT_SERVICE",
	WaitDate:               "WAIT_DATE",
	WaitTimePref:           "WAIT_TIME_PREF",
	WaitSlotPick:           "WAIT_SLOT_PICK",
	WaitConfirmation:       "WAIT_CONFIRMATION",
	WaitClarification:      "WAIT_CLARIFICATION",
	Confirmed:              "CONFIRMED",
	WaitAppointmentPick:    "WAIT_APPOINTMENT_PICK",
	WaitCancelConfirmation: "WAIT_CANCEL_CONFIRMATION",
	WaitRemarkDate:         "WAIT_REMARK_DATE",
	WaitRemarkTimePref:     "WAIT_REMARK_TIME_PREF",
	WaitRemarkSlotPick:     "WAIT_REMARK_SLOT_PICK",
	WaitRemarkConfirmation: "WAIT_REMARK_CONFIRMATION",
}

// States lists every valid state in declaration order.
func States() []State {
	out := make([]State, len(stateNames))
	for i := range stateNames {
		out[i] = State(i)
	}
	return out
}

// Valid reports whether s is one of the declared states.
func (s State) Valid() bool {
	return int(s) < len(stateNames)
}

// String returns the persisted name of the state.
func (s State) String() string {
	if !s.Valid() {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// ParseState maps a persisted name back to a State. An empty name is Start.
func ParseState(name string) (State, bool) {
	if name == "" {
		return Start, true
	}
	for i, n := range stateNames {
		if n == name {
			return State(i), true
		}
	}
	return Start, false
}
