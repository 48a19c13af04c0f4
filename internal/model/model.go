package model

import (
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrInactive  = errors.New("inactive")
	ErrSlotTaken = errors.New("slot is already booked")
)

// Status of an appointment.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCancelled Status = "cancelled"
)

// Client is one conversation participant, keyed by a channel-specific identifier.
type Client struct {
	ID        int64
	Key       string
	Name      string
	State     string
	Context   []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Barber struct {
	ID       int64
	Name     string
	IsActive bool
}

type Service struct {
	ID              int64
	Name            string
	DurationMinutes int
	PriceCents      int
	IsActive        bool
}

// Duration returns the service length.
func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

type Appointment struct {
	ID             int64
	ClientID       int64
	BarberID       int64
	ServiceID      int64
	StartAt        time.Time
	EndAt          time.Time
	Status         Status
	ReminderSentAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewAppointment holds the fields required to book a slot.
type NewAppointment struct {
	ClientID  int64
	BarberID  int64
	ServiceID int64
	StartAt   time.Time
	EndAt     time.Time
}

// Button is a quick-reply option rendered by the channel adapters.
type Button struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// AppointmentDetail joins an appointment with display names, for reminders and exports.
type AppointmentDetail struct {
	Appointment
	ClientKey   string
	BarberName  string
	ServiceName string
}
