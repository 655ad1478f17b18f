// Package assistant implements the conversational booking assistant: an
// LLM receptionist when a model is configured, and a guided slot-filling
// flow otherwise or when the model fails.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/MarkKevinCanonoy/Web-Project/internal/appointments"
	"github.com/MarkKevinCanonoy/Web-Project/internal/auth"
	"github.com/MarkKevinCanonoy/Web-Project/internal/clinictime"
	"github.com/MarkKevinCanonoy/Web-Project/internal/observability/metrics"
	"github.com/MarkKevinCanonoy/Web-Project/internal/scheduling"
	"github.com/MarkKevinCanonoy/Web-Project/pkg/logging"
)

var assistantTracer = otel.Tracer("clinic.internal.assistant")

// maxStoredHistory bounds the history kept in a session.
const maxStoredHistory = 20

// ErrEmptyMessage is returned for blank chat input.
var ErrEmptyMessage = errors.New("assistant: message is empty")

// Appointments is the booking surface the assistant drives.
type Appointments interface {
	Slots(ctx context.Context, date string) ([]string, error)
	Book(ctx context.Context, actor auth.Principal, req appointments.BookRequest) (*appointments.Appointment, error)
	Cancel(ctx context.Context, actor auth.Principal, id int64) (*appointments.Appointment, error)
	Reschedule(ctx context.Context, actor auth.Principal, id int64, date, tm string) (*appointments.Appointment, error)
}

// Reply is the chat response for one turn.
type Reply struct {
	Response  string `json:"response"`
	Refresh   bool   `json:"refresh"`
	SessionID string `json:"session_id"`
}

// Service runs chat turns.
type Service struct {
	appts    Appointments
	store    SessionStore
	calendar *scheduling.Calendar
	llm      LLMClient
	logger   *logging.Logger
	metrics  *metrics.ChatMetrics
	newID    func() string
}

type Option func(*Service)

// WithLLM enables model-driven replies. Without it every turn is guided.
func WithLLM(client LLMClient) Option {
	return func(s *Service) { s.llm = client }
}

func WithMetrics(m *metrics.ChatMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(appts Appointments, store SessionStore, calendar *scheduling.Calendar, logger *logging.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if store == nil {
		store = NewMemorySessionStore(0)
	}
	if calendar == nil {
		calendar = scheduling.NewCalendar(scheduling.DefaultPolicy(), nil)
	}
	s := &Service{
		appts:    appts,
		store:    store,
		calendar: calendar,
		logger:   logger,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reply handles one user message. An unknown or foreign session id starts
// a fresh session.
func (s *Service) Reply(ctx context.Context, actor auth.Principal, sessionID, message string) (Reply, error) {
	ctx, span := assistantTracer.Start(ctx, "assistant.reply")
	defer span.End()

	message = strings.TrimSpace(message)
	if message == "" {
		return Reply{}, ErrEmptyMessage
	}
	sess := s.session(ctx, actor, sessionID)
	span.SetAttributes(attribute.String("clinic.chat_session", sess.ID), attribute.String("clinic.chat_state", string(sess.State)))

	now := s.calendar.Now()
	today := clinictime.DateOf(now)

	var (
		reply Reply
		mode  = "guided"
		err   error
	)
	if s.llm != nil && sess.State == StateIdle {
		mode = "llm"
		reply, err = s.llmTurn(ctx, actor, sess, message, now, today)
		if err != nil {
			span.RecordError(err)
			s.logger.Warn("llm turn failed, using guided flow", "provider", s.llm.Provider(), "error", err)
			mode = "fallback"
		}
	}
	if mode != "llm" {
		sess, reply = s.guidedTurn(ctx, actor, sess, message, today)
	}
	s.metrics.ObserveTurn(mode, outcome(reply))

	sess.History = append(sess.History,
		Message{Role: RoleUser, Content: message},
		Message{Role: RoleAssistant, Content: reply.Response},
	)
	if len(sess.History) > maxStoredHistory {
		sess.History = sess.History[len(sess.History)-maxStoredHistory:]
	}
	sess.UpdatedAt = now.UTC()
	if err := s.store.Save(ctx, sess); err != nil {
		span.RecordError(err)
		s.logger.Error("failed to save chat session", "session_id", sess.ID, "error", err)
	}
	reply.SessionID = sess.ID
	return reply, nil
}

func (s *Service) session(ctx context.Context, actor auth.Principal, id string) Session {
	if id != "" {
		sess, err := s.store.Load(ctx, id)
		switch {
		case err == nil && sess.OwnerID == actor.UserID:
			return sess
		case err != nil && !errors.Is(err, ErrSessionNotFound):
			s.logger.Warn("failed to load chat session", "session_id", id, "error", err)
		}
	}
	return Session{ID: s.newID(), OwnerID: actor.UserID, State: StateIdle}
}

func (s *Service) guidedTurn(ctx context.Context, actor auth.Principal, sess Session, msg string, today clinictime.Date) (Session, Reply) {
	next, turn := Step(sess, msg, today)

	switch {
	case turn.CancelID != 0:
		return next, s.cancel(ctx, actor, turn.CancelID)
	case turn.Intent != nil:
		a, err := s.appts.Book(ctx, actor, appointments.BookRequest{
			Date:        turn.Intent.Date,
			Time:        turn.Intent.Time,
			ServiceType: turn.Intent.ServiceType,
			Urgency:     turn.Intent.Urgency,
			Reason:      turn.Intent.Reason,
			Mode:        appointments.ModeChatbot,
		})
		settled, text := Settle(next, err)
		if err == nil {
			return settled, Reply{Response: bookedMessage(a), Refresh: true}
		}
		if _, ok := scheduling.AsRejection(err); !ok {
			s.logger.Warn("guided booking failed", "error", err)
		}
		return settled, Reply{Response: s.withSlotsText(ctx, settled, text)}
	}
	return next, Reply{Response: s.withSlotsText(ctx, next, turn.Reply)}
}

// withSlotsText appends open times when the flow is asking for a time.
func (s *Service) withSlotsText(ctx context.Context, sess Session, text string) string {
	if sess.State != StateAskingTime || sess.Draft.Date == "" {
		return text
	}
	slots, err := s.appts.Slots(ctx, sess.Draft.Date)
	if err != nil {
		s.logger.Warn("failed to load slots for chat", "date", sess.Draft.Date, "error", err)
		return text
	}
	if len(slots) == 0 {
		return text + " There are no open times left that day, so you may want to choose another date."
	}
	return text + " Open times: " + strings.Join(slots, ", ") + "."
}

func (s *Service) llmTurn(ctx context.Context, actor auth.Principal, sess Session, msg string, now time.Time, today clinictime.Date) (Reply, error) {
	var slotInfo string
	if d, ok := ExtractDate(msg, today); ok {
		if slots, err := s.appts.Slots(ctx, d.String()); err == nil {
			slotInfo = SlotInfo(d.String(), slots)
		}
	}

	start := time.Now()
	resp, err := s.llm.Complete(ctx, LLMRequest{
		System:      SystemPrompt(appointments.Services, now, slotInfo),
		Messages:    BuildMessages(sess.History, msg),
		MaxTokens:   1024,
		Temperature: 0.3,
	})
	s.metrics.ObserveLLM(s.llm.Provider(), err == nil, time.Since(start).Seconds())
	if err != nil {
		return Reply{}, err
	}

	action, ok := ParseAction(resp.Text)
	if !ok {
		return Reply{Response: resp.Text}, nil
	}
	return s.execute(ctx, actor, action, today), nil
}

// execute runs a model action through the appointments service, so chat
// bookings get the same validation as the form.
func (s *Service) execute(ctx context.Context, actor auth.Principal, a Action, today clinictime.Date) Reply {
	switch a.Action {
	case ActionBook:
		req := appointments.BookRequest{
			Date:        ResolveDate(a.Date, today),
			Time:        a.Time,
			ServiceType: a.ServiceType,
			Urgency:     a.Urgency,
			Reason:      a.Reason,
			Mode:        appointments.ModeChatbot,
		}
		if actor.Role.Staff() {
			req.StudentName = strings.TrimSpace(a.StudentName)
			if req.StudentName == "" {
				req.StudentName = "Walk-in Student"
			}
		}
		appt, err := s.appts.Book(ctx, actor, req)
		if err != nil {
			return Reply{Response: failureMessage(err)}
		}
		text := bookedMessage(appt)
		if advice := strings.TrimSpace(a.Advice); advice != "" {
			text += "\n" + advice
		}
		return Reply{Response: text, Refresh: true}
	case ActionCancel:
		if a.AppointmentID <= 0 {
			return Reply{Response: "Which appointment should I cancel? Please give me its ticket number."}
		}
		return s.cancel(ctx, actor, int64(a.AppointmentID))
	case ActionReschedule:
		if a.AppointmentID <= 0 {
			return Reply{Response: "Which appointment should I move? Please give me its ticket number."}
		}
		appt, err := s.appts.Reschedule(ctx, actor, int64(a.AppointmentID), ResolveDate(a.NewDate, today), a.NewTime)
		if err != nil {
			return Reply{Response: failureMessage(err)}
		}
		return Reply{
			Response: fmt.Sprintf("Rescheduled #%d to %s at %s. It is pending approval again.", appt.ID, appt.Date, appt.Time.Label()),
			Refresh:  true,
		}
	}
	return Reply{Response: "Sorry, I didn't understand that request."}
}

func (s *Service) cancel(ctx context.Context, actor auth.Principal, id int64) Reply {
	if _, err := s.appts.Cancel(ctx, actor, id); err != nil {
		if errors.Is(err, appointments.ErrNotFound) {
			return Reply{Response: fmt.Sprintf("I couldn't find appointment #%d.", id)}
		}
		return Reply{Response: failureMessage(err)}
	}
	return Reply{Response: fmt.Sprintf("Appointment #%d canceled.", id), Refresh: true}
}

func bookedMessage(a *appointments.Appointment) string {
	return fmt.Sprintf("You're booked for %s at %s (%s). Your ticket number is #%d; the clinic will review it shortly.",
		a.Date, a.Time.Label(), a.ServiceType, a.ID)
}

func failureMessage(err error) string {
	if r, ok := scheduling.AsRejection(err); ok {
		return r.Message
	}
	switch {
	case errors.Is(err, appointments.ErrDuplicatePending):
		return "You already have a pending request."
	case errors.Is(err, appointments.ErrNotFound):
		return "I couldn't find that appointment."
	case errors.Is(err, appointments.ErrForbidden):
		return "You can only change your own appointments."
	case errors.Is(err, appointments.ErrInvalidTransition):
		return "That appointment can no longer be changed."
	case errors.Is(err, appointments.ErrInvalidUrgency), errors.Is(err, appointments.ErrMissingName):
		return "I need a little more information: " + err.Error() + "."
	}
	return "Sorry, something went wrong on our side. Please try again."
}

func outcome(r Reply) string {
	if r.Refresh {
		return "action"
	}
	return "reply"
}
