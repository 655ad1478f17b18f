package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MarkKevinCanonoy/Web-Project/internal/auth"
	"github.com/MarkKevinCanonoy/Web-Project/internal/clinictime"
	"github.com/MarkKevinCanonoy/Web-Project/internal/live"
	"github.com/MarkKevinCanonoy/Web-Project/internal/notify"
	"github.com/MarkKevinCanonoy/Web-Project/internal/observability/metrics"
	"github.com/MarkKevinCanonoy/Web-Project/internal/scheduling"
	"github.com/MarkKevinCanonoy/Web-Project/pkg/logging"
)

var appointmentsTracer = otel.Tracer("clinic.internal.appointments")

// Notifier emails students about staff decisions.
type Notifier interface {
	AppointmentApproved(ctx context.Context, a notify.AppointmentNotice) error
	AppointmentRejected(ctx context.Context, a notify.AppointmentNotice) error
}

// Auditor records staff decisions on appointments.
type Auditor interface {
	LogStatusChanged(ctx context.Context, actor auth.Principal, appointmentID int64, from, to, note string) error
	LogDiagnosisRecorded(ctx context.Context, actor auth.Principal, appointmentID int64, from string) error
	LogDeleted(ctx context.Context, actor auth.Principal, appointmentID int64) error
}

// Publisher receives appointment change events.
type Publisher interface {
	Publish(evt live.Event)
}

// Service owns appointment booking and lifecycle rules.
type Service struct {
	repo      Repository
	calendar  *scheduling.Calendar
	logger    *logging.Logger
	notifier  Notifier
	publisher Publisher
	auditor   Auditor
	metrics   *metrics.BookingMetrics
}

// Option configures optional Service collaborators.
type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithAuditor(a Auditor) Option {
	return func(s *Service) { s.auditor = a }
}

func WithMetrics(m *metrics.BookingMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService constructs an appointments service.
func NewService(repo Repository, calendar *scheduling.Calendar, logger *logging.Logger, opts ...Option) *Service {
	if repo == nil {
		panic("appointments: repository required")
	}
	if calendar == nil {
		calendar = scheduling.NewCalendar(scheduling.DefaultPolicy(), nil)
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{repo: repo, calendar: calendar, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Calendar exposes the policy calendar used for validation.
func (s *Service) Calendar() *scheduling.Calendar {
	return s.calendar
}

// Slots lists open slot labels for date. A malformed date yields an empty list.
func (s *Service) Slots(ctx context.Context, date string) ([]string, error) {
	d, err := clinictime.ParseDate(date)
	if err != nil {
		return []string{}, nil
	}
	occupied, err := s.repo.ActiveTimes(ctx, d)
	if err != nil {
		return nil, err
	}
	slots := s.calendar.AvailableSlots(date, occupied, s.calendar.Now())
	s.metrics.ObserveSlotQuery(len(slots))
	return slots, nil
}

// BookRequest is a new appointment request.
type BookRequest struct {
	StudentName  string      `json:"student_name"`
	StudentEmail string      `json:"student_email"`
	Date         string      `json:"appointment_date"`
	Time         string      `json:"appointment_time"`
	ServiceType  string      `json:"service_type"`
	Urgency      string      `json:"urgency"`
	Reason       string      `json:"reason"`
	Mode         BookingMode `json:"-"`
}

// Book validates and stores a pending appointment. Students book for
// themselves; staff may book walk-ins by name.
func (s *Service) Book(ctx context.Context, actor auth.Principal, req BookRequest) (*Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.date", req.Date),
		attribute.String("clinic.time", req.Time),
		attribute.String("clinic.booking_mode", string(req.Mode)),
	)

	a, err := s.draft(actor, req)
	if err != nil {
		return nil, s.fail(span, "book", err)
	}

	dup := Filter{Status: StatusPending, Urgency: a.Urgency}
	if a.OwnerID != nil {
		dup.OwnerID = a.OwnerID
	} else {
		dup.StudentName = a.StudentName
	}
	pending, err := s.repo.List(ctx, dup)
	if err != nil {
		return nil, s.fail(span, "book", err)
	}
	if len(pending) > 0 {
		return nil, s.fail(span, "book", ErrDuplicatePending)
	}

	// Non-conflict rules do not depend on stored state; reject early
	// without taking the date lock.
	slot, err := s.calendar.Validate(req.Date, req.Time, nil)
	if err != nil {
		return nil, s.fail(span, "book", err)
	}

	start := time.Now()
	err = s.repo.WithDateLock(ctx, slot.Date, func(tx DateTx) error {
		existing, err := tx.ActiveTimes(ctx, 0)
		if err != nil {
			return err
		}
		slot, err := s.calendar.Validate(req.Date, req.Time, existing)
		if err != nil {
			return err
		}
		a.Date, a.Time = slot.Date, slot.Time
		return tx.Insert(ctx, a)
	})
	s.metrics.ObserveLockDuration(time.Since(start).Seconds())
	if err != nil {
		return nil, s.fail(span, "book", err)
	}

	s.metrics.ObserveAttempt("book", "success", "")
	span.SetAttributes(attribute.Int64("clinic.appointment_id", a.ID))
	s.logger.Info("appointment booked", "id", a.ID, "date", a.Date, "time", a.Time, "mode", a.BookingMode)
	s.publish(live.EventCreated, a)
	return a, nil
}

func (s *Service) draft(actor auth.Principal, req BookRequest) (*Appointment, error) {
	a := &Appointment{
		StudentName:  strings.TrimSpace(req.StudentName),
		StudentEmail: strings.TrimSpace(req.StudentEmail),
		ServiceType:  normalizeService(req.ServiceType),
		Reason:       strings.TrimSpace(req.Reason),
		BookingMode:  req.Mode,
		Status:       StatusPending,
	}
	if a.BookingMode == "" {
		a.BookingMode = ModeStandard
	}
	urgency, ok := NormalizeUrgency(req.Urgency)
	if !ok {
		return nil, ErrInvalidUrgency
	}
	a.Urgency = urgency

	if actor.UserID != 0 && !actor.Role.Staff() {
		id := actor.UserID
		a.OwnerID = &id
		if a.StudentName == "" {
			a.StudentName = actor.Name
		}
		if a.StudentEmail == "" {
			a.StudentEmail = actor.Email
		}
	}
	if a.StudentName == "" {
		return nil, ErrMissingName
	}
	return a, nil
}

func normalizeService(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Services[0]
	}
	for _, svc := range Services {
		if strings.EqualFold(svc, raw) {
			return svc
		}
	}
	return raw
}

// Reschedule moves an appointment to a new slot and resets it to pending.
// The appointment's own current slot does not count as a conflict.
func (s *Service) Reschedule(ctx context.Context, actor auth.Principal, id int64, date, tm string) (*Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.reschedule")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("clinic.appointment_id", id),
		attribute.String("clinic.date", date),
		attribute.String("clinic.time", tm),
	)

	if _, err := s.authorized(ctx, actor, id); err != nil {
		return nil, s.fail(span, "reschedule", err)
	}
	slot, err := s.calendar.Validate(date, tm, nil)
	if err != nil {
		return nil, s.fail(span, "reschedule", err)
	}

	var a *Appointment
	start := time.Now()
	err = s.repo.WithDateLock(ctx, slot.Date, func(tx DateTx) error {
		current, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if current.Status == StatusCompleted {
			return ErrInvalidTransition
		}
		existing, err := tx.ActiveTimes(ctx, id)
		if err != nil {
			return err
		}
		slot, err := s.calendar.Validate(date, tm, existing)
		if err != nil {
			return err
		}
		current.Date, current.Time = slot.Date, slot.Time
		current.Status = StatusPending
		if err := tx.Move(ctx, current); err != nil {
			return err
		}
		a = current
		return nil
	})
	s.metrics.ObserveLockDuration(time.Since(start).Seconds())
	if err != nil {
		return nil, s.fail(span, "reschedule", err)
	}

	s.metrics.ObserveAttempt("reschedule", "success", "")
	s.logger.Info("appointment rescheduled", "id", a.ID, "date", a.Date, "time", a.Time)
	s.publish(live.EventRescheduled, a)
	return a, nil
}

// UpdateStatus applies a staff decision. Doctors may only mark no-shows.
// Reactivating an inactive appointment re-checks separation.
func (s *Service) UpdateStatus(ctx context.Context, actor auth.Principal, id int64, status Status, note string) (*Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.update_status")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("clinic.appointment_id", id),
		attribute.String("clinic.status", string(status)),
	)

	if !actor.Role.Staff() {
		return nil, s.fail(span, "", ErrForbidden)
	}
	if actor.Role == auth.RoleDoctor && status != StatusNoShow {
		return nil, s.fail(span, "", ErrForbidden)
	}
	note = strings.TrimSpace(note)

	var previous Status
	operation := ""
	a, err := s.locked(ctx, id, func(tx DateTx, a *Appointment) error {
		if a.Status == StatusCompleted && status != StatusCompleted {
			return ErrInvalidTransition
		}
		previous = a.Status
		if !previous.Active() && status.Active() {
			operation = "reactivate"
			existing, err := tx.ActiveTimes(ctx, a.ID)
			if err != nil {
				return err
			}
			if err := s.calendar.CheckSeparation(a.Time, existing); err != nil {
				return err
			}
		}
		a.Status = status
		if note != "" || status == StatusRejected {
			a.AdminNote = note
		}
		return tx.SetOutcome(ctx, a)
	})
	if err != nil {
		return nil, s.fail(span, operation, err)
	}

	s.metrics.ObserveTransition(string(status))
	s.logger.Info("appointment status updated", "id", a.ID, "status", status, "by", actor.UserID)
	s.audit(a.ID, func() error {
		return s.auditor.LogStatusChanged(ctx, actor, a.ID, string(previous), string(status), a.AdminNote)
	})
	s.publish(live.EventStatus, a)
	s.notifyDecision(ctx, a)
	return a, nil
}

// Cancel marks an appointment canceled. Owners and staff may cancel.
func (s *Service) Cancel(ctx context.Context, actor auth.Principal, id int64) (*Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.cancel")
	defer span.End()
	span.SetAttributes(attribute.Int64("clinic.appointment_id", id))

	if _, err := s.authorized(ctx, actor, id); err != nil {
		return nil, s.fail(span, "", err)
	}
	changed := false
	a, err := s.locked(ctx, id, func(tx DateTx, a *Appointment) error {
		switch a.Status {
		case StatusCompleted:
			return ErrInvalidTransition
		case StatusCanceled:
			return nil
		}
		a.Status = StatusCanceled
		changed = true
		return tx.SetOutcome(ctx, a)
	})
	if err != nil {
		return nil, s.fail(span, "", err)
	}
	if !changed {
		return a, nil
	}
	s.metrics.ObserveTransition(string(StatusCanceled))
	s.logger.Info("appointment canceled", "id", a.ID, "by", actor.UserID)
	s.publish(live.EventStatus, a)
	return a, nil
}

// Diagnose records the doctor's findings and completes the visit.
func (s *Service) Diagnose(ctx context.Context, actor auth.Principal, id int64, diagnosis string) (*Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.diagnose")
	defer span.End()
	span.SetAttributes(attribute.Int64("clinic.appointment_id", id))

	if !actor.HasRole(auth.RoleDoctor, auth.RoleAdmin) {
		return nil, s.fail(span, "", ErrForbidden)
	}
	diagnosis = strings.TrimSpace(diagnosis)
	if diagnosis == "" {
		return nil, s.fail(span, "", ErrMissingDiagnosis)
	}
	var previous Status
	a, err := s.locked(ctx, id, func(tx DateTx, a *Appointment) error {
		if !a.Status.Active() && a.Status != StatusCompleted {
			return ErrInvalidTransition
		}
		previous = a.Status
		a.Diagnosis = diagnosis
		a.Status = StatusCompleted
		return tx.SetOutcome(ctx, a)
	})
	if err != nil {
		return nil, s.fail(span, "", err)
	}
	s.metrics.ObserveTransition(string(StatusCompleted))
	s.logger.Info("appointment completed", "id", a.ID, "by", actor.UserID)
	s.audit(a.ID, func() error {
		return s.auditor.LogDiagnosisRecorded(ctx, actor, a.ID, string(previous))
	})
	s.publish(live.EventStatus, a)
	return a, nil
}

// errRowMoved means the row left the locked date before it was re-read.
var errRowMoved = errors.New("appointments: appointment moved to another date")

const maxLockAttempts = 3

// locked runs fn on the current row under the lock for the row's date.
// A reschedule that lands between the unlocked lookup and the lock sends
// the loop around again with the new date.
func (s *Service) locked(ctx context.Context, id int64, fn func(tx DateTx, a *Appointment) error) (*Appointment, error) {
	for attempt := 0; attempt < maxLockAttempts; attempt++ {
		seen, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		var current *Appointment
		err = s.repo.WithDateLock(ctx, seen.Date, func(tx DateTx) error {
			a, err := tx.Get(ctx, id)
			if err != nil {
				return err
			}
			if a.Date != seen.Date {
				return errRowMoved
			}
			if err := fn(tx, a); err != nil {
				return err
			}
			current = a
			return nil
		})
		if errors.Is(err, errRowMoved) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return current, nil
	}
	return nil, errRowMoved
}

// Get returns one appointment the caller may see.
func (s *Service) Get(ctx context.Context, actor auth.Principal, id int64) (*Appointment, error) {
	return s.authorized(ctx, actor, id)
}

// List returns appointments visible to the caller. Students only see their own.
func (s *Service) List(ctx context.Context, actor auth.Principal, filter Filter) ([]*Appointment, error) {
	if !actor.Role.Staff() {
		id := actor.UserID
		filter.OwnerID = &id
	}
	return s.repo.List(ctx, filter)
}

// Delete removes an appointment. Admin only.
func (s *Service) Delete(ctx context.Context, actor auth.Principal, id int64) error {
	if actor.Role != auth.RoleAdmin {
		return ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("appointment deleted", "id", id, "by", actor.UserID)
	s.audit(id, func() error { return s.auditor.LogDeleted(ctx, actor, id) })
	s.publish(live.EventDeleted, &Appointment{ID: id})
	return nil
}

func (s *Service) authorized(ctx context.Context, actor auth.Principal, id int64) (*Appointment, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role.Staff() || a.OwnedBy(actor.UserID, actor.Email) {
		return a, nil
	}
	// Hide other students' appointments entirely.
	return nil, ErrNotFound
}

func (s *Service) fail(span trace.Span, operation string, err error) error {
	span.RecordError(err)
	if operation == "" {
		return err
	}
	if r, ok := scheduling.AsRejection(err); ok {
		s.metrics.ObserveAttempt(operation, "rejected", string(r.Reason))
		s.logger.Debug("booking rejected", "operation", operation, "reason", r.Reason)
		return err
	}
	switch {
	case errors.Is(err, ErrDuplicatePending):
		s.metrics.ObserveAttempt(operation, "rejected", "duplicate_pending")
	case errors.Is(err, ErrInvalidUrgency), errors.Is(err, ErrMissingName),
		errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidTransition):
		s.metrics.ObserveAttempt(operation, "rejected", "invalid_request")
	default:
		s.metrics.ObserveAttempt(operation, "error", "")
		s.logger.Error("appointment operation failed", "operation", operation, "error", err)
	}
	return err
}

func (s *Service) publish(eventType string, a *Appointment) {
	if s.publisher == nil {
		return
	}
	evt := live.Event{Type: eventType, AppointmentID: a.ID, Status: string(a.Status)}
	if !a.Date.IsZero() {
		evt.Date = a.Date.String()
		evt.Time = a.Time.String()
	}
	s.publisher.Publish(evt)
}

// audit runs one auditor call. A failed write is logged; the decision
// itself already stands.
func (s *Service) audit(id int64, record func() error) {
	if s.auditor == nil {
		return
	}
	if err := record(); err != nil {
		s.logger.Error("audit write failed", "id", id, "error", err)
	}
}

func (s *Service) notifyDecision(ctx context.Context, a *Appointment) {
	if s.notifier == nil {
		return
	}
	notice := notify.AppointmentNotice{
		ID:           a.ID,
		StudentName:  a.StudentName,
		StudentEmail: a.StudentEmail,
		Date:         a.Date.String(),
		TimeLabel:    a.Time.Label(),
		ServiceType:  a.ServiceType,
		Note:         a.AdminNote,
	}
	var err error
	switch a.Status {
	case StatusApproved:
		err = s.notifier.AppointmentApproved(ctx, notice)
	case StatusRejected:
		err = s.notifier.AppointmentRejected(ctx, notice)
	default:
		return
	}
	if err != nil {
		s.logger.Warn("appointment email not sent", "id", a.ID, "error", err)
	}
}

// Describe renders an appointment for chat replies.
func Describe(a *Appointment) string {
	return fmt.Sprintf("#%d %s on %s at %s (%s)", a.ID, a.ServiceType, a.Date, a.Time.Label(), a.Status)
}
