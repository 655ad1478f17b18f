package scheduling

import (
	"fmt"
	"time"

	"github.com/MarkKevinCanonoy/Web-Project/internal/clinictime"
)

// Slot is a validated booking position.
type Slot struct {
	Date clinictime.Date
	Time clinictime.Clock
}

// Calendar applies a Policy. It keeps no state between calls.
type Calendar struct {
	policy Policy
	now    func() time.Time
}

// NewCalendar builds a calendar. now defaults to time.Now.
func NewCalendar(policy Policy, now func() time.Time) *Calendar {
	if now == nil {
		now = time.Now
	}
	return &Calendar{policy: policy, now: now}
}

func (c *Calendar) Policy() Policy {
	return c.policy
}

// Today returns the clinic-local current date.
func (c *Calendar) Today() clinictime.Date {
	return clinictime.Today(c.now(), c.policy.location())
}

// Now returns the current instant in clinic-local time.
func (c *Calendar) Now() time.Time {
	return c.now().In(c.policy.location())
}

// AvailableSlots lists bookable slot labels ("08:30 AM") for date in
// ascending order. occupied holds the start times of the date's active
// appointments. A malformed date yields an empty list.
func (c *Calendar) AvailableSlots(date string, occupied []clinictime.Clock, now time.Time) []string {
	d, err := clinictime.ParseDate(date)
	if err != nil {
		return []string{}
	}
	open := c.OpenClocks(d, occupied, now)
	labels := make([]string, 0, len(open))
	for _, s := range open {
		labels = append(labels, s.Label())
	}
	return labels
}

// OpenClocks is AvailableSlots over a parsed date, returning raw clocks.
func (c *Calendar) OpenClocks(d clinictime.Date, occupied []clinictime.Clock, now time.Time) []clinictime.Clock {
	local := now.In(c.policy.location())
	isToday := clinictime.DateOf(local) == d
	current := clinictime.ClockOf(local)

	out := []clinictime.Clock{}
	for _, s := range c.policy.Candidates() {
		if c.occupiedAt(s, occupied) {
			continue
		}
		if isToday && s <= current {
			continue
		}
		out = append(out, s)
	}
	return out
}

// occupiedAt reports whether s falls inside [t, t+Occupancy) for some
// occupied start t. The window only extends forward from t.
func (c *Calendar) occupiedAt(s clinictime.Clock, occupied []clinictime.Clock) bool {
	for _, t := range occupied {
		if t <= s && s < t.Add(c.policy.Occupancy) {
			return true
		}
	}
	return false
}

// Validate checks a proposed booking against clinic policy and the start
// times of the date's active appointments. A *Rejection is returned for
// the first failing rule.
func (c *Calendar) Validate(date, tm string, existing []clinictime.Clock) (Slot, error) {
	p := c.policy

	d, err := clinictime.ParseDate(date)
	if err != nil {
		return Slot{}, reject(ReasonInvalidDate, "Invalid date format. Please use YYYY-MM-DD.")
	}
	if d.Before(c.Today()) {
		return Slot{}, reject(ReasonPastDate, "You cannot book appointments in the past.")
	}
	if d.Weekday() == p.ClosedWeekday {
		return Slot{}, reject(ReasonClosedWeekday, fmt.Sprintf("The clinic is closed on %ss.", p.ClosedWeekday))
	}

	t, err := clinictime.ParseClock(tm)
	if err != nil {
		return Slot{}, reject(ReasonInvalidTime, "Invalid time format. Please use HH:MM or H:MM AM/PM.")
	}
	switch h := t.Hour(); {
	case h == p.LunchHour:
		return Slot{}, reject(ReasonLunchClosed, fmt.Sprintf("The clinic is closed for lunch from %s to %s.", hourLabel(p.LunchHour), hourLabel(p.LunchHour+1)))
	case h >= p.CloseHour:
		return Slot{}, reject(ReasonAfterHours, fmt.Sprintf("The clinic is closed after %s.", hourLabel(p.CloseHour)))
	case h < p.OpenHour:
		return Slot{}, reject(ReasonBeforeHours, fmt.Sprintf("The clinic opens at %s.", hourLabel(p.OpenHour)))
	}

	if err := c.CheckSeparation(t, existing); err != nil {
		return Slot{}, err
	}
	return Slot{Date: d, Time: t}, nil
}

// CheckSeparation applies only the conflict rule. It is used when an
// already-validated appointment becomes active again.
func (c *Calendar) CheckSeparation(t clinictime.Clock, existing []clinictime.Clock) error {
	if Conflicts(t, existing, c.policy.MinSeparation) {
		return reject(ReasonConflict, fmt.Sprintf("That time conflicts with another appointment. Please pick a time at least %s apart.", spanLabel(c.policy.MinSeparation)))
	}
	return nil
}

// Conflicts reports whether any existing start lies strictly closer than
// sep to t, in either direction.
func Conflicts(t clinictime.Clock, existing []clinictime.Clock, sep time.Duration) bool {
	for _, e := range existing {
		diff := e.Sub(t)
		if diff < 0 {
			diff = -diff
		}
		if diff < sep {
			return true
		}
	}
	return false
}

func spanLabel(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "1 hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", d/time.Hour)
	default:
		return fmt.Sprintf("%d minutes", d/time.Minute)
	}
}
