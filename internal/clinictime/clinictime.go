// Package clinictime holds the single date and time-of-day grammar used by
// availability listing, booking validation, and the chat assistant.
package clinictime

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var (
	// ErrInvalidDate is returned when a date is not a real YYYY-MM-DD calendar date.
	ErrInvalidDate = errors.New("clinictime: invalid date")

	// ErrInvalidClock is returned when a time of day cannot be parsed.
	ErrInvalidClock = errors.New("clinictime: invalid time of day")
)

// FixedZone returns the clinic-local zone for a fixed UTC offset in hours.
func FixedZone(offsetHours int) *time.Location {
	if offsetHours == 0 {
		return time.UTC
	}
	sign := "+"
	abs := offsetHours
	if offsetHours < 0 {
		sign = "-"
		abs = -offsetHours
	}
	return time.FixedZone(fmt.Sprintf("UTC%s%d", sign, abs), offsetHours*3600)
}

// Date is a civil calendar date without a time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a strict YYYY-MM-DD date.
func ParseDate(raw string) (Date, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) != len(dateLayout) {
		return Date{}, ErrInvalidDate
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return DateOf(t), nil
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Today returns the current date as seen in loc.
func Today(now time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(now.In(loc))
}

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// At combines the date with a time of day in loc.
func (d Date) At(c Clock, loc *time.Location) time.Time {
	return d.In(loc).Add(time.Duration(c) * time.Second)
}

func (d Date) Weekday() time.Weekday {
	return d.In(time.UTC).Weekday()
}

// AddDays returns the date n days later (n may be negative).
func (d Date) AddDays(n int) Date {
	return DateOf(d.In(time.UTC).AddDate(0, 0, n))
}

func (d Date) Before(other Date) bool {
	return d.In(time.UTC).Before(other.In(time.UTC))
}

func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Clock is a time of day with second resolution, stored as seconds since midnight.
type Clock int

// NewClock builds a Clock from its components.
func NewClock(hour, minute, second int) Clock {
	return Clock(hour*3600 + minute*60 + second)
}

// ClockOf returns the time of day of t in t's own location.
func ClockOf(t time.Time) Clock {
	return NewClock(t.Hour(), t.Minute(), t.Second())
}

// clockLayouts is the accepted grammar, tried in order. 12-hour forms are
// matched after upper-casing the input.
var clockLayouts = []string{
	"15:04:05",
	"15:04",
	"3:04 PM",
	"3:04PM",
	"3:04:05 PM",
}

// ParseClock accepts "H:MM AM/PM", "HH:MM:SS" and "HH:MM".
func ParseClock(raw string) (Clock, error) {
	raw = strings.ToUpper(strings.Join(strings.Fields(raw), " "))
	if raw == "" {
		return 0, ErrInvalidClock
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return ClockOf(t), nil
		}
	}
	return 0, ErrInvalidClock
}

func (c Clock) Hour() int   { return int(c) / 3600 }
func (c Clock) Minute() int { return (int(c) % 3600) / 60 }
func (c Clock) Second() int { return int(c) % 60 }

// Add shifts the clock by d. The result is not wrapped at midnight.
func (c Clock) Add(d time.Duration) Clock {
	return c + Clock(d/time.Second)
}

// Sub returns c-other as a duration.
func (c Clock) Sub(other Clock) time.Duration {
	return time.Duration(c-other) * time.Second
}

// String renders the 24-hour storage form, e.g. "09:30:00".
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour(), c.Minute(), c.Second())
}

// Label renders the display form used in slot listings, e.g. "09:30 AM".
func (c Clock) Label() string {
	h := c.Hour()
	suffix := "AM"
	if h >= 12 {
		suffix = "PM"
	}
	dh := h % 12
	if dh == 0 {
		dh = 12
	}
	return fmt.Sprintf("%02d:%02d %s", dh, c.Minute(), suffix)
}

func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Clock) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
