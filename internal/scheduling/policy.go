// Package scheduling implements the clinic's slot availability listing and
// booking rule validation. Both are pure functions over a caller-supplied
// snapshot of the active appointment start times for one date.
package scheduling

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarkKevinCanonoy/Web-Project/internal/clinictime"
)

// Policy describes clinic operating rules. Hours are clinic-local.
type Policy struct {
	Location      *time.Location
	OpenHour      int
	CloseHour     int
	LunchHour     int
	ClosedWeekday time.Weekday
	// SlotInterval is the spacing of listed candidate starts.
	SlotInterval time.Duration
	// Occupancy is the window, anchored at an existing start, in which no
	// listed slot may begin.
	Occupancy time.Duration
	// MinSeparation is the symmetric distance a new start must keep from
	// every existing start at validation time.
	MinSeparation time.Duration
}

// DefaultPolicy returns the canonical clinic policy: 08:00-17:00 with a
// 12:00 lunch hour, closed Sundays, UTC+8, half-hour slots, one-hour visits.
func DefaultPolicy() Policy {
	return Policy{
		Location:      clinictime.FixedZone(8),
		OpenHour:      8,
		CloseHour:     17,
		LunchHour:     12,
		ClosedWeekday: time.Sunday,
		SlotInterval:  30 * time.Minute,
		Occupancy:     time.Hour,
		MinSeparation: time.Hour,
	}
}

// Check reports configuration mistakes that would make every booking fail.
func (p Policy) Check() error {
	switch {
	case p.OpenHour < 0 || p.OpenHour > 23:
		return fmt.Errorf("scheduling: open hour %d out of range", p.OpenHour)
	case p.CloseHour <= p.OpenHour || p.CloseHour > 24:
		return fmt.Errorf("scheduling: close hour %d must be after open hour %d", p.CloseHour, p.OpenHour)
	case p.LunchHour < 0 || p.LunchHour > 23:
		return fmt.Errorf("scheduling: lunch hour %d out of range", p.LunchHour)
	case p.ClosedWeekday < time.Sunday || p.ClosedWeekday > time.Saturday:
		return fmt.Errorf("scheduling: closed weekday %d out of range", int(p.ClosedWeekday))
	case p.SlotInterval <= 0:
		return errors.New("scheduling: slot interval must be positive")
	case p.Occupancy <= 0 || p.MinSeparation <= 0:
		return errors.New("scheduling: appointment length must be positive")
	}
	return nil
}

// Candidates returns every listed slot start in ascending order, skipping
// the lunch hour.
func (p Policy) Candidates() []clinictime.Clock {
	open := clinictime.NewClock(p.OpenHour, 0, 0)
	closing := clinictime.NewClock(p.CloseHour, 0, 0)
	lunchStart := clinictime.NewClock(p.LunchHour, 0, 0)
	lunchEnd := lunchStart.Add(time.Hour)

	var out []clinictime.Clock
	for c := open; c < closing; c = c.Add(p.SlotInterval) {
		if c >= lunchStart && c < lunchEnd {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// ParseWeekday maps a day name ("sunday", "Sun") to a time.Weekday.
func ParseWeekday(raw string) (time.Weekday, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if raw == name || (len(raw) >= 3 && strings.HasPrefix(name, raw)) {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("scheduling: unknown weekday %q", raw)
}

// hourLabel renders an hour as "5:00 PM" for user-facing messages.
func hourLabel(hour int) string {
	return time.Date(2000, 1, 1, hour, 0, 0, 0, time.UTC).Format("3:04 PM")
}
