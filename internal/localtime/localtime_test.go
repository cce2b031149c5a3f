package localtime

import (
	"errors"
	"testing"
	"time"
)

func TestAtRoundTripsWithDateOf(t *testing.T) {
	t.Parallel()
	zones := []time.Duration{0, 7 * time.Hour, -(3*time.Hour + 30*time.Minute), 14 * time.Hour}
	dates := []Date{
		{2026, time.January, 1},
		{2026, time.August, 31},
		{2026, time.December, 31},
	}
	times := []string{"00:00", "09:00", "12:30", "23:59"}

	for _, off := range zones {
		z := NewZone(off)
		for _, d := range dates {
			for _, hhmm := range times {
				at, err := z.At(d, hhmm)
				if err != nil {
					t.Fatalf("At(%v, %q) error: %v", d, hhmm, err)
				}
				if got := z.DateOf(at); got != d {
					t.Fatalf("DateOf(At(%v, %q)) = %v with offset %v", d, hhmm, got, off)
				}
			}
		}
	}
}

func TestDateOfCrossesUTCBoundary(t *testing.T) {
	t.Parallel()
	z := NewZone(7 * time.Hour)
	// 23:30 UTC is already the next day at UTC+7.
	instant := time.Date(2026, time.March, 10, 23, 30, 0, 0, time.UTC)
	if got := z.DateOf(instant); got != (Date{2026, time.March, 11}) {
		t.Fatalf("DateOf = %v, want 2026-03-11", got)
	}
}

func TestAtRejectsMalformedTimes(t *testing.T) {
	t.Parallel()
	z := NewZone(0)
	bad := []string{"", "9", "24:00", "12:60", "ab:cd", "12:3x", "12-30", "12:30:00"}
	for _, s := range bad {
		if _, err := z.At(Date{2026, time.May, 1}, s); !errors.Is(err, ErrInvalidTime) {
			t.Fatalf("At(%q) error = %v, want ErrInvalidTime", s, err)
		}
	}
}

func TestDateNext(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want Date
	}{
		{Date{2026, time.August, 31}, Date{2026, time.September, 1}},
		{Date{2026, time.December, 31}, Date{2027, time.January, 1}},
		{Date{2028, time.February, 28}, Date{2028, time.February, 29}},
	}
	for _, tt := range tests {
		if got := tt.in.Next(); got != tt.want {
			t.Fatalf("%v.Next() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseOffset(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want time.Duration
		ok   bool
	}{
		{"+07:00", 7 * time.Hour, true},
		{"-03:30", -(3*time.Hour + 30*time.Minute), true},
		{"Z", 0, true},
		{"", 0, true},
		{"07:00", 7 * time.Hour, true},
		{"+15:00", 0, false},
		{"+7", 0, false},
	}
	for _, tt := range tests {
		got, err := ParseOffset(tt.raw)
		if tt.ok && err != nil {
			t.Fatalf("ParseOffset(%q) error: %v", tt.raw, err)
		}
		if !tt.ok {
			if err == nil {
				t.Fatalf("ParseOffset(%q) expected error", tt.raw)
			}
			continue
		}
		if got != tt.want {
			t.Fatalf("ParseOffset(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
