package calendar

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	loc := time.UTC
	tests := []struct {
		name  string
		input string
		today time.Time
		want  string
		ok    bool
	}{
		{"after date rolls to next year", "20/01", time.Date(2025, 1, 21, 10, 0, 0, 0, loc), "2026-01-20", true},
		{"before date keeps year", "20/01", time.Date(2025, 1, 19, 10, 0, 0, 0, loc), "2025-01-20", true},
		{"today is valid", "20/01", time.Date(2025, 1, 20, 23, 0, 0, 0, loc), "2025-01-20", true},
		{"explicit year is kept", "05/03/2024", time.Date(2025, 6, 1, 0, 0, 0, 0, loc), "2024-03-05", true},
		{"single digits", "5/3", time.Date(2025, 1, 1, 0, 0, 0, 0, loc), "2025-03-05", true},
		{"surrounding spaces", "  10/10 ", time.Date(2025, 1, 1, 0, 0, 0, 0, loc), "2025-10-10", true},
		{"month out of range", "10/13", time.Date(2025, 1, 1, 0, 0, 0, 0, loc), "", false},
		{"day out of range", "32/01", time.Date(2025, 1, 1, 0, 0, 0, 0, loc), "", false},
		{"day zero", "00/01", time.Date(2025, 1, 1, 0, 0, 0, 0, loc), "", false},
		{"impossible february", "30/02", time.Date(2025, 1, 1, 0, 0, 0, 0, loc), "", false},
		{"garbage", "amanhã", time.Date(2025, 1, 1, 0, 0, 0, 0, loc), "", false},
		{"iso format rejected", "2025-01-20", time.Date(2025, 1, 1, 0, 0, 0, 0, loc), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.input, tt.today)
			if ok != tt.ok {
				t.Fatalf("ParseDate(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && FormatISODate(got) != tt.want {
				t.Errorf("ParseDate(%q) = %s, want %s", tt.input, FormatISODate(got), tt.want)
			}
		})
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"14", "14:00", true},
		{"14:30", "14:30", true},
		{"14h", "14:00", true},
		{"14h30", "14:30", true},
		{"14H30", "14:30", true},
		{"9", "09:00", true},
		{"09:05", "09:05", true},
		{"0", "00:00", true},
		{"23:59", "23:59", true},
		{"25:00", "", false},
		{"24", "", false},
		{"12:60", "", false},
		{"meio-dia", "", false},
		{"", "", false},
		{"14:30:00", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseTime(tt.input)
		if ok != tt.ok {
			t.Errorf("ParseTime(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			continue
		}
		if ok && got.String() != tt.want {
			t.Errorf("ParseTime(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestParseTimeSeparatorsAgree(t *testing.T) {
	a, okA := ParseTime("14h30")
	b, okB := ParseTime("14:30")
	if !okA || !okB || a != b {
		t.Errorf("expected 14h30 and 14:30 to match, got %v/%v %v/%v", a, okA, b, okB)
	}
}

func TestClockOn(t *testing.T) {
	loc, err := LoadLocation("")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, loc)
	got := MustParseClock("14:30").On(day, loc)
	if got.Hour() != 14 || got.Minute() != 30 || got.Day() != 10 || got.Location() != loc {
		t.Errorf("unexpected time %v", got)
	}
	if ClockOf(got) != (Clock{Hour: 14, Minute: 30}) {
		t.Errorf("ClockOf round trip failed: %v", ClockOf(got))
	}
}
