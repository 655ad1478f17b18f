package scheduling

import "errors"

// Reason is the closed set of booking rejection codes.
type Reason string

const (
	ReasonInvalidDate   Reason = "invalid_date"
	ReasonPastDate      Reason = "past_date"
	ReasonClosedWeekday Reason = "closed_weekday"
	ReasonInvalidTime   Reason = "invalid_time"
	ReasonLunchClosed   Reason = "lunch_closed"
	ReasonAfterHours    Reason = "after_hours"
	ReasonBeforeHours   Reason = "before_hours"
	ReasonConflict      Reason = "conflict"
)

// Rejection is returned by Validate when a booking breaks clinic policy.
// Message is shown to the end user verbatim.
type Rejection struct {
	Reason  Reason `json:"reason"`
	Message string `json:"detail"`
}

func (r *Rejection) Error() string {
	return r.Message
}

func reject(reason Reason, msg string) *Rejection {
	return &Rejection{Reason: reason, Message: msg}
}

// AsRejection unwraps a policy rejection from err.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// IsReason reports whether err is a rejection with the given reason.
func IsReason(err error, reason Reason) bool {
	r, ok := AsRejection(err)
	return ok && r.Reason == reason
}

// DateRelated reports whether the rejection concerns the date rather than
// the time of day.
func (r Reason) DateRelated() bool {
	switch r {
	case ReasonInvalidDate, ReasonPastDate, ReasonClosedWeekday:
		return true
	}
	return false
}
