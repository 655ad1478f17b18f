package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/MarkKevinCanonoy/Web-Project/pkg/logging"
)

// AppointmentNotice carries what a patient email needs to describe a visit.
type AppointmentNotice struct {
	ID           int64
	StudentName  string
	StudentEmail string
	Date         string // YYYY-MM-DD
	TimeLabel    string // 09:30 AM
	ServiceType  string
	Note         string
}

// Notifier emails students when staff act on their appointment requests.
type Notifier struct {
	email      EmailSender
	clinicName string
	logger     *logging.Logger
}

// NewNotifier creates a notifier. A nil sender disables email.
func NewNotifier(email EmailSender, clinicName string, logger *logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(clinicName) == "" {
		clinicName = defaultFromName
	}
	return &Notifier{email: email, clinicName: clinicName, logger: logger}
}

// AppointmentApproved tells the student their request was confirmed.
func (n *Notifier) AppointmentApproved(ctx context.Context, a AppointmentNotice) error {
	if !n.enabled() {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", greetingName(a.StudentName))
	fmt.Fprintf(&b, "Your appointment request has been approved.\n\n")
	fmt.Fprintf(&b, "Ticket: #%d\n", a.ID)
	fmt.Fprintf(&b, "Date: %s\n", a.Date)
	fmt.Fprintf(&b, "Time: %s\n", a.TimeLabel)
	if a.ServiceType != "" {
		fmt.Fprintf(&b, "Service: %s\n", a.ServiceType)
	}
	if a.Note != "" {
		fmt.Fprintf(&b, "\nNote from the clinic: %s\n", a.Note)
	}
	fmt.Fprintf(&b, "\nPlease arrive a few minutes early and bring your school ID.\n\n%s", n.clinicName)
	return n.send(ctx, a, "appointment-approved", fmt.Sprintf("Appointment #%d approved", a.ID), b.String())
}

// AppointmentRejected tells the student their request was declined, with
// the staff note when one was given.
func (n *Notifier) AppointmentRejected(ctx context.Context, a AppointmentNotice) error {
	if !n.enabled() {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", greetingName(a.StudentName))
	fmt.Fprintf(&b, "We could not accept your appointment request #%d for %s at %s.\n", a.ID, a.Date, a.TimeLabel)
	if a.Note != "" {
		fmt.Fprintf(&b, "\nReason: %s\n", a.Note)
	}
	fmt.Fprintf(&b, "\nYou are welcome to book another time.\n\n%s", n.clinicName)
	return n.send(ctx, a, "appointment-rejected", fmt.Sprintf("Appointment #%d not approved", a.ID), b.String())
}

func (n *Notifier) send(ctx context.Context, a AppointmentNotice, tag, subject, body string) error {
	if strings.TrimSpace(a.StudentEmail) == "" {
		n.logger.Debug("notify: no email on appointment, skipping", "appointment_id", a.ID)
		return nil
	}
	err := n.email.Send(ctx, EmailMessage{
		To:      a.StudentEmail,
		ToName:  a.StudentName,
		Subject: subject,
		Body:    body,
		Tag:     tag,
	})
	if err != nil {
		n.logger.Error("notify: appointment email failed", "error", err, "appointment_id", a.ID)
		return fmt.Errorf("notify: send appointment email: %w", err)
	}
	return nil
}

func (n *Notifier) enabled() bool {
	return n != nil && n.email != nil
}

func greetingName(name string) string {
	if name = strings.TrimSpace(name); name == "" {
		return "there"
	}
	return name
}
