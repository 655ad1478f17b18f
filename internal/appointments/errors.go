package appointments

import "errors"

var (
	// ErrNotFound is returned when an appointment does not exist.
	ErrNotFound = errors.New("appointment not found")

	// ErrForbidden is returned when the caller may not act on an appointment.
	ErrForbidden = errors.New("not allowed to modify this appointment")

	// ErrDuplicatePending is returned when the requester already has a
	// pending request at the same urgency.
	ErrDuplicatePending = errors.New("duplicate pending request")

	// ErrInvalidStatus is returned for unknown status names.
	ErrInvalidStatus = errors.New("invalid appointment status")

	// ErrInvalidTransition is returned when a status change is not allowed.
	ErrInvalidTransition = errors.New("appointment status cannot change that way")

	// ErrMissingName is returned when a booking has no student name.
	ErrMissingName = errors.New("student name is required")

	// ErrMissingDiagnosis is returned when a diagnosis is blank.
	ErrMissingDiagnosis = errors.New("diagnosis is required")

	// ErrInvalidUrgency is returned for unknown urgency levels.
	ErrInvalidUrgency = errors.New("urgency must be Low, Normal or High")
)
