// Package calendar parses loosely formatted dates and times typed by clients.
package calendar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // civil zone must resolve on hosts without zoneinfo
)

// DefaultTimezone is the civil zone every appointment is expressed in.
const DefaultTimezone = "America/Sao_Paulo"

// Clock is a time of day with minute precision.
type Clock struct {
	Hour   int
	Minute int
}

// NewClock validates hour and minute.
func NewClock(hour, minute int) (Clock, bool) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return Clock{}, false
	}
	return Clock{Hour: hour, Minute: minute}, true
}

// ClockOf extracts the time of day of t in its own location.
func ClockOf(t time.Time) Clock {
	return Clock{Hour: t.Hour(), Minute: t.Minute()}
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Minutes returns minutes since midnight.
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

// On places the clock on the calendar date of day, in loc.
func (c Clock) On(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, loc)
}

// Before reports whether c is earlier than o.
func (c Clock) Before(o Clock) bool {
	return c.Minutes() < o.Minutes()
}

// MustParseClock parses "HH:MM" and panics on failure. Meant for constants and tests.
func MustParseClock(s string) Clock {
	c, ok := ParseTime(s)
	if !ok {
		panic(fmt.Sprintf("calendar: invalid clock %q", s))
	}
	return c
}

var (
	dateRe = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})(?:/(\d{4}))?$`)
	timeRe = regexp.MustCompile(`^(\d{1,2})(?::(\d{1,2})?)?$`)
)

// ParseDate accepts DD/MM or DD/MM/YYYY. Without a year the date resolves to its next
// occurrence on or after today.
func ParseDate(text string, today time.Time) (time.Time, bool) {
	m := dateRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	loc := today.Location()
	todayDate := DateOf(today)

	year := todayDate.Year()
	explicitYear := m[3] != ""
	if explicitYear {
		year, _ = strconv.Atoi(m[3])
	}

	d, ok := makeDate(year, month, day, loc)
	if !ok {
		return time.Time{}, false
	}
	if !explicitYear && d.Before(todayDate) {
		d, ok = makeDate(year+1, month, day, loc)
		if !ok {
			return time.Time{}, false
		}
	}
	return d, true
}

func makeDate(year, month, day int, loc *time.Location) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	// time.Date normalizes 31/02 into March.
	if d.Day() != day || int(d.Month()) != month {
		return time.Time{}, false
	}
	return d, true
}

// ParseTime accepts "14", "14:30", "14h" and "14h30".
func ParseTime(text string) (Clock, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.Replace(s, "h", ":", 1)
	m := timeRe.FindStringSubmatch(s)
	if m == nil {
		return Clock{}, false
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	return NewClock(hour, minute)
}

// DateOf truncates t to midnight in its location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DayBounds returns [midnight, next midnight) of day in loc.
func DayBounds(day time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// LoadLocation resolves name, falling back to DefaultTimezone when empty.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", name, err)
	}
	return loc, nil
}

// FormatISODate renders a date as YYYY-MM-DD.
func FormatISODate(t time.Time) string {
	return t.Format("2006-01-02")
}

// ParseISODate parses YYYY-MM-DD in loc.
func ParseISODate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, loc)
}
