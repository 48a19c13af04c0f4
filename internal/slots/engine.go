// Package slots proposes free appointment start times for a barber on a given day.
package slots

import (
	"context"
	"errors"
	"fmt"
	"time"

	"barberbot/internal/calendar"
	"barberbot/internal/model"
)

const (
	DefaultStep           = 30 * time.Minute
	DefaultMaxSuggestions = 3
)

// Schedule holds the business window of a working day.
type Schedule struct {
	BusinessStart calendar.Clock
	BusinessEnd   calendar.Clock
	LunchStart    calendar.Clock
	LunchEnd      calendar.Clock
	Step          time.Duration
}

// HasLunch reports whether a lunch break is configured.
func (s Schedule) HasLunch() bool {
	return s.LunchStart.Before(s.LunchEnd)
}

// Validate rejects windows that can never yield a slot.
func (s Schedule) Validate() error {
	if !s.BusinessStart.Before(s.BusinessEnd) {
		return fmt.Errorf("business start %s must be before end %s", s.BusinessStart, s.BusinessEnd)
	}
	if s.HasLunch() && (s.LunchStart.Before(s.BusinessStart) || s.BusinessEnd.Before(s.LunchEnd)) {
		return fmt.Errorf("lunch %s-%s outside business hours", s.LunchStart, s.LunchEnd)
	}
	if s.Step < 0 {
		return errors.New("step must be positive")
	}
	return nil
}

// BookingSource lists scheduled appointments of a barber on a day.
type BookingSource interface {
	ListForBarberOnDate(ctx context.Context, barberID int64, date time.Time) ([]model.Appointment, error)
}

// Request describes one availability lookup.
type Request struct {
	Date      time.Time
	BarberID  int64
	Duration  time.Duration
	Preferred calendar.Clock
	// Max defaults to DefaultMaxSuggestions.
	Max int
	// ExcludeAppointmentID ignores one booking, used when moving it.
	ExcludeAppointmentID int64
}

// Engine suggests start times around a preferred time.
type Engine struct {
	bookings BookingSource
	schedule Schedule
	location *time.Location
	now      func() time.Time
}

// NewEngine creates an engine. A nil now disables the past-slot filter.
func NewEngine(bookings BookingSource, schedule Schedule, loc *time.Location, now func() time.Time) *Engine {
	if schedule.Step <= 0 {
		schedule.Step = DefaultStep
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{
		bookings: bookings,
		schedule: schedule,
		location: loc,
		now:      now,
	}
}

// Schedule returns the configured day window.
func (e *Engine) Schedule() Schedule {
	return e.schedule
}

type interval struct {
	start time.Time
	end   time.Time
}

// Suggest returns up to req.Max valid start times, preferred time first and then
// alternating earlier/later by one step at a time.
func (e *Engine) Suggest(ctx context.Context, req Request) ([]time.Time, error) {
	if req.Duration <= 0 {
		return nil, fmt.Errorf("invalid duration %s", req.Duration)
	}
	limit := req.Max
	if limit <= 0 {
		limit = DefaultMaxSuggestions
	}

	appts, err := e.bookings.ListForBarberOnDate(ctx, req.BarberID, req.Date)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	busy := make([]interval, 0, len(appts))
	for _, a := range appts {
		if a.Status != model.StatusScheduled || a.ID == req.ExcludeAppointmentID && a.ID != 0 {
			continue
		}
		busy = append(busy, interval{start: a.StartAt, end: a.EndAt})
	}

	open := e.schedule.BusinessStart.On(req.Date, e.location)
	closeAt := e.schedule.BusinessEnd.On(req.Date, e.location)
	var lunch *interval
	if e.schedule.HasLunch() {
		lunch = &interval{
			start: e.schedule.LunchStart.On(req.Date, e.location),
			end:   e.schedule.LunchEnd.On(req.Date, e.location),
		}
	}
	var notBefore time.Time
	if e.now != nil {
		notBefore = e.now()
	}

	valid := func(start time.Time) bool {
		end := start.Add(req.Duration)
		if start.Before(open) || end.After(closeAt) {
			return false
		}
		if !notBefore.IsZero() && start.Before(notBefore) {
			return false
		}
		if lunch != nil && Overlaps(start, end, lunch.start, lunch.end) {
			return false
		}
		for _, b := range busy {
			if Overlaps(start, end, b.start, b.end) {
				return false
			}
		}
		return true
	}

	preferred := req.Preferred.On(req.Date, e.location)
	var out []time.Time
	seen := make(map[calendar.Clock]struct{})
	add := func(start time.Time) {
		key := calendar.ClockOf(start)
		if _, dup := seen[key]; dup {
			return
		}
		if valid(start) {
			seen[key] = struct{}{}
			out = append(out, start)
		}
	}

	add(preferred)
	for k := 1; len(out) < limit; k++ {
		offset := time.Duration(k) * e.schedule.Step
		minus := preferred.Add(-offset)
		plus := preferred.Add(offset)

		add(minus)
		if len(out) >= limit {
			break
		}
		add(plus)

		if minus.Before(open) && plus.Add(req.Duration).After(closeAt) {
			break
		}
	}

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Overlaps reports whether half-open intervals [aStart,aEnd) and [bStart,bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
