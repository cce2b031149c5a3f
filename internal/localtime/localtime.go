package localtime

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTime reports a wall-clock string that is not a valid "HH:MM"
// value in [00:00, 23:59].
var ErrInvalidTime = errors.New("invalid time of day, expected HH:MM")

// Date is a calendar date in the deployment's business timezone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Next returns the following calendar date.
func (d Date) Next() Date {
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Zone converts between absolute instants and the deployment's local
// business time. The offset is fixed for the whole deployment; there are
// no DST rules.
type Zone struct {
	loc *time.Location
}

// NewZone builds a fixed-offset zone. Offsets are truncated to whole seconds.
func NewZone(offset time.Duration) Zone {
	secs := int(offset / time.Second)
	name := fmt.Sprintf("UTC%+03d:%02d", secs/3600, abs(secs/60%60))
	return Zone{loc: time.FixedZone(name, secs)}
}

// Location exposes the underlying fixed-offset location (e.g. for cron).
func (z Zone) Location() *time.Location {
	if z.loc == nil {
		return time.UTC
	}
	return z.loc
}

// DateOf returns the local business date the instant falls on.
func (z Zone) DateOf(t time.Time) Date {
	lt := t.In(z.Location())
	return Date{Year: lt.Year(), Month: lt.Month(), Day: lt.Day()}
}

// At returns the absolute instant of hhmm ("HH:MM") on the given local date.
// Round-trips with DateOf: DateOf(At(d, t)) == d for any valid t.
func (z Zone) At(d Date, hhmm string) (time.Time, error) {
	h, m, err := ParseHHMM(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year, d.Month, d.Day, h, m, 0, 0, z.Location()), nil
}

// Midnight returns the start of the given local date.
func (z Zone) Midnight(d Date) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, z.Location())
}

// ParseHHMM validates and splits a 24h wall-clock string.
func ParseHHMM(s string) (hour int, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("%w: bad hour in %q", ErrInvalidTime, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("%w: bad minute in %q", ErrInvalidTime, s)
	}
	return h, m, nil
}

// ParseOffset parses a fixed UTC offset like "+07:00", "-03:30" or "Z".
func ParseOffset(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "Z") || strings.EqualFold(s, "UTC") {
		return 0, nil
	}
	sign := time.Duration(1)
	switch s[0] {
	case '+':
		s = s[1:]
	case '-':
		sign = -1
		s = s[1:]
	}
	h, m, err := ParseHHMM(s)
	if err != nil {
		return 0, fmt.Errorf("invalid utc offset %q: %w", s, err)
	}
	if h > 14 {
		return 0, fmt.Errorf("invalid utc offset %q: out of range", s)
	}
	return sign * (time.Duration(h)*time.Hour + time.Duration(m)*time.Minute), nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
