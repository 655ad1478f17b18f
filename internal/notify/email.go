package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/MarkKevinCanonoy/Web-Project/pkg/logging"
)

const defaultFromName = "School Clinic"

// ErrNoRecipient is returned when a message has no To address.
var ErrNoRecipient = errors.New("notify: message has no recipient")

// EmailSender delivers a single email. SendGrid, SES and the stub
// implement it.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is one outbound email. Tag groups messages of one kind
// ("appointment-approved") in provider analytics.
type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	Body    string
	HTML    string
	Tag     string
}

func (m EmailMessage) validate() error {
	if strings.TrimSpace(m.To) == "" {
		return ErrNoRecipient
	}
	return nil
}

// Sender identifies the clinic mailbox.
type Sender struct {
	FromEmail string
	FromName  string
	ReplyTo   string
}

func (s Sender) withDefaults() Sender {
	if s.FromName == "" {
		s.FromName = defaultFromName
	}
	return s
}

// SendGridConfig holds configuration for SendGrid.
type SendGridConfig struct {
	APIKey string
	Sender
}

// SendGridSender sends emails via the SendGrid v3 API.
type SendGridSender struct {
	client *sendgrid.Client
	from   Sender
	logger *logging.Logger
}

// NewSendGridSender returns nil without an API key.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SendGridSender{
		client: sendgrid.NewSendClient(cfg.APIKey),
		from:   cfg.Sender.withDefaults(),
		logger: logger,
	}
}

// buildSendGridMessage maps msg onto a v3 mail payload. The HTML part is
// only attached when the message has one.
func buildSendGridMessage(from Sender, msg EmailMessage) *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(from.FromName, from.FromEmail))
	m.Subject = msg.Subject

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(msg.ToName, msg.To))
	m.AddPersonalizations(p)

	m.AddContent(mail.NewContent("text/plain", msg.Body))
	if msg.HTML != "" {
		m.AddContent(mail.NewContent("text/html", msg.HTML))
	}
	if from.ReplyTo != "" {
		m.SetReplyTo(mail.NewEmail(from.FromName, from.ReplyTo))
	}
	if msg.Tag != "" {
		m.AddCategories(msg.Tag)
	}
	return m
}

// Send delivers msg through SendGrid. Any 4xx/5xx response is an error.
func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}
	if err := msg.validate(); err != nil {
		return err
	}

	resp, err := s.client.SendWithContext(ctx, buildSendGridMessage(s.from, msg))
	if err != nil {
		s.logger.Error("sendgrid send failed", "error", err, "tag", msg.Tag)
		return fmt.Errorf("notify: sendgrid send failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		s.logger.Error("sendgrid rejected message", "status", resp.StatusCode, "body", resp.Body, "tag", msg.Tag)
		return fmt.Errorf("notify: sendgrid returned status %d", resp.StatusCode)
	}

	s.logger.Info("email sent", "provider", "sendgrid", "tag", msg.Tag, "status", resp.StatusCode)
	return nil
}

// StubEmailSender logs instead of sending and keeps every message so
// developers and tests can inspect them.
type StubEmailSender struct {
	logger *logging.Logger
	mu     sync.Mutex
	sent   []EmailMessage
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	if err := msg.validate(); err != nil {
		return err
	}
	s.logger.Info("email not sent (stub provider)", "to", msg.To, "subject", msg.Subject, "tag", msg.Tag)
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()
	return nil
}

// Sent returns a copy of every message passed to Send.
func (s *StubEmailSender) Sent() []EmailMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]EmailMessage(nil), s.sent...)
}
