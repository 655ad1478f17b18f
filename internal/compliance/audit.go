// Package compliance keeps an append-only trail of staff decisions on
// student health records: status changes, recorded diagnoses and deletions.
package compliance

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/MarkKevinCanonoy/Web-Project/internal/auth"
)

// AuditEventType represents the type of audited decision.
type AuditEventType string

const (
	// EventStatusChanged is logged when staff approve, reject, cancel or
	// otherwise move an appointment between statuses.
	EventStatusChanged AuditEventType = "appointment.status_changed"
	// EventDiagnosisRecorded is logged when a doctor completes a visit.
	EventDiagnosisRecorded AuditEventType = "appointment.diagnosis_recorded"
	// EventAppointmentDeleted is logged when an admin removes a record.
	EventAppointmentDeleted AuditEventType = "appointment.deleted"
)

// AuditEvent represents an immutable audit record.
type AuditEvent struct {
	ID            string          `json:"id"`
	EventType     AuditEventType  `json:"event_type"`
	AppointmentID int64           `json:"appointment_id"`
	ActorID       int64           `json:"actor_id"`
	ActorRole     string          `json:"actor_role"`
	Details       json.RawMessage `json:"details,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// AuditDetails contains event-specific details.
type AuditDetails struct {
	FromStatus string `json:"from_status,omitempty"`
	ToStatus   string `json:"to_status,omitempty"`
	Note       string `json:"note,omitempty"`
	// Diagnosis text stays on the appointment; the trail only records
	// that one was written.
	DiagnosisRedacted bool `json:"diagnosis_redacted,omitempty"`
}

// AuditFilter specifies criteria for querying audit events.
type AuditFilter struct {
	AppointmentID int64
	EventType     AuditEventType
	StartTime     time.Time
	Limit         int
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event AuditEvent) error
	Query(ctx context.Context, filter AuditFilter) ([]AuditEvent, error)
}

// ErrInvalidEvent is returned for events missing a type or appointment.
var ErrInvalidEvent = errors.New("compliance: event type and appointment are required")

// AuditService handles audit logging.
type AuditService struct {
	store Store
	now   func() time.Time
}

// NewAuditService creates a new audit service.
func NewAuditService(store Store) *AuditService {
	if store == nil {
		store = NewMemoryStore()
	}
	return &AuditService{store: store, now: time.Now}
}

// LogEvent records an audit event, filling ID and timestamp when unset.
func (s *AuditService) LogEvent(ctx context.Context, event AuditEvent) error {
	if event.EventType == "" || event.AppointmentID == 0 {
		return ErrInvalidEvent
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now().UTC()
	}
	return s.store.Append(ctx, event)
}

// LogStatusChanged records a staff status decision.
func (s *AuditService) LogStatusChanged(ctx context.Context, actor auth.Principal, appointmentID int64, from, to, note string) error {
	return s.log(ctx, EventStatusChanged, actor, appointmentID, AuditDetails{
		FromStatus: from,
		ToStatus:   to,
		Note:       note,
	})
}

// LogDiagnosisRecorded records that a diagnosis was written.
func (s *AuditService) LogDiagnosisRecorded(ctx context.Context, actor auth.Principal, appointmentID int64, from string) error {
	return s.log(ctx, EventDiagnosisRecorded, actor, appointmentID, AuditDetails{
		FromStatus:        from,
		ToStatus:          "completed",
		DiagnosisRedacted: true,
	})
}

// LogDeleted records an admin deletion.
func (s *AuditService) LogDeleted(ctx context.Context, actor auth.Principal, appointmentID int64) error {
	return s.log(ctx, EventAppointmentDeleted, actor, appointmentID, AuditDetails{})
}

func (s *AuditService) log(ctx context.Context, eventType AuditEventType, actor auth.Principal, appointmentID int64, details AuditDetails) error {
	detailsJSON, _ := json.Marshal(details)
	return s.LogEvent(ctx, AuditEvent{
		EventType:     eventType,
		AppointmentID: appointmentID,
		ActorID:       actor.UserID,
		ActorRole:     string(actor.Role),
		Details:       detailsJSON,
	})
}

// History returns an appointment's trail, newest first.
func (s *AuditService) History(ctx context.Context, appointmentID int64) ([]AuditEvent, error) {
	return s.store.Query(ctx, AuditFilter{AppointmentID: appointmentID})
}

// QueryEvents retrieves audit events with filters.
func (s *AuditService) QueryEvents(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	return s.store.Query(ctx, filter)
}
