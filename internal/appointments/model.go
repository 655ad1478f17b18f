package appointments

import (
	"strings"
	"time"

	"github.com/MarkKevinCanonoy/Web-Project/internal/clinictime"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCanceled  Status = "canceled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "noshow"
)

// Active reports whether the appointment occupies its slot.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusApproved
}

// ParseStatus normalises a status name.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusPending, StatusApproved, StatusRejected, StatusCanceled, StatusCompleted, StatusNoShow:
		return s, nil
	case "cancelled":
		return StatusCanceled, nil
	case "no_show", "no-show":
		return StatusNoShow, nil
	}
	return "", ErrInvalidStatus
}

// BookingMode records which channel created the appointment.
type BookingMode string

const (
	ModeStandard BookingMode = "standard"
	ModeChatbot  BookingMode = "ai_chatbot"
)

// Services offered by the clinic.
var Services = []string{
	"Medical Consultation",
	"Dental Check-up",
	"Medical Certificate",
	"Vaccination",
	"First Aid",
}

// Urgency levels, lowest first.
var Urgencies = []string{"Low", "Normal", "High"}

// NormalizeUrgency maps free-form urgency input onto Urgencies; blank is Normal.
func NormalizeUrgency(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "Normal", true
	}
	for _, u := range Urgencies {
		if strings.EqualFold(u, raw) {
			return u, true
		}
	}
	return "", false
}

// Appointment is a booked clinic visit.
type Appointment struct {
	ID           int64            `json:"id"`
	OwnerID      *int64           `json:"owner_id,omitempty"`
	StudentName  string           `json:"student_name"`
	StudentEmail string           `json:"student_email,omitempty"`
	Date         clinictime.Date  `json:"appointment_date"`
	Time         clinictime.Clock `json:"appointment_time"`
	ServiceType  string           `json:"service_type"`
	Urgency      string           `json:"urgency"`
	Reason       string           `json:"reason"`
	BookingMode  BookingMode      `json:"booking_mode"`
	Status       Status           `json:"status"`
	AdminNote    string           `json:"admin_note,omitempty"`
	Diagnosis    string           `json:"diagnosis,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func (a *Appointment) clone() *Appointment {
	if a == nil {
		return nil
	}
	c := *a
	if a.OwnerID != nil {
		id := *a.OwnerID
		c.OwnerID = &id
	}
	return &c
}

// OwnedBy reports whether the appointment belongs to the given user.
func (a *Appointment) OwnedBy(userID int64, email string) bool {
	if a.OwnerID != nil {
		return *a.OwnerID == userID
	}
	return email != "" && strings.EqualFold(a.StudentEmail, email)
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	OwnerID      *int64
	StudentEmail string
	StudentName  string
	Status       Status
	Urgency      string
	Date         *clinictime.Date
}

func (f Filter) matches(a *Appointment) bool {
	if f.OwnerID != nil && (a.OwnerID == nil || *a.OwnerID != *f.OwnerID) {
		return false
	}
	if f.StudentEmail != "" && !strings.EqualFold(a.StudentEmail, f.StudentEmail) {
		return false
	}
	if f.StudentName != "" && !strings.EqualFold(a.StudentName, f.StudentName) {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Urgency != "" && !strings.EqualFold(a.Urgency, f.Urgency) {
		return false
	}
	if f.Date != nil && a.Date != *f.Date {
		return false
	}
	return true
}
