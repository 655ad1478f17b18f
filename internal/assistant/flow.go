package assistant

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarkKevinCanonoy/Web-Project/internal/appointments"
	"github.com/MarkKevinCanonoy/Web-Project/internal/clinictime"
	"github.com/MarkKevinCanonoy/Web-Project/internal/scheduling"
)

// State is the guided booking step a session is in.
type State string

const (
	StateIdle          State = "idle"
	StateAskingService State = "asking_service"
	StateAskingDate    State = "asking_date"
	StateAskingTime    State = "asking_time"
	StateAskingUrgency State = "asking_urgency"
	StateAskingReason  State = "asking_reason"
	StateSaving        State = "saving"
)

// Draft holds the booking fields collected so far.
type Draft struct {
	ServiceType string `json:"service_type,omitempty"`
	Date        string `json:"date,omitempty"`
	Time        string `json:"time,omitempty"`
	Urgency     string `json:"urgency,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Session is one user's conversation, persisted by a SessionStore between
// turns.
type Session struct {
	ID        string    `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	State     State     `json:"state"`
	Draft     Draft     `json:"draft"`
	History   []Message `json:"history,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Intent is a complete booking request ready for validation.
type Intent struct {
	Date        string
	Time        string
	ServiceType string
	Urgency     string
	Reason      string
}

// Turn is the outcome of one guided step.
type Turn struct {
	Reply  string
	Intent *Intent
	// CancelID is set when the user asked to cancel an existing appointment.
	CancelID int64
}

var abortWords = []string{"stop", "nevermind", "never mind", "forget it", "start over", "reset", "quit", "abort"}

var bookingWords = []string{"book", "appointment", "schedule", "reserve", "visit", "see the nurse", "see a doctor", "check-up", "checkup"}

// Step advances the guided booking flow by one user message. It is pure:
// the caller persists the returned session.
func Step(s Session, msg string, today clinictime.Date) (Session, Turn) {
	if s.State == "" {
		s.State = StateIdle
	}
	text := strings.TrimSpace(msg)
	lower := strings.ToLower(text)

	if s.State != StateIdle && isAbort(lower) {
		s.State, s.Draft = StateIdle, Draft{}
		return s, Turn{Reply: "No problem, I've stopped that booking. Let me know whenever you want to book again."}
	}

	switch s.State {
	case StateIdle:
		if strings.HasPrefix(lower, "cancel") {
			if id, ok := extractID(lower); ok {
				return s, Turn{CancelID: id}
			}
			return s, Turn{Reply: "Which appointment should I cancel? Please give me its ticket number."}
		}
		if !containsAny(lower, bookingWords...) && !hasBookingDetail(text, today) {
			return s, Turn{Reply: "Hi! I'm the clinic assistant. I can book an appointment for you; just say \"book an appointment\"."}
		}
		s.Draft = Draft{}
		fill(&s.Draft, text, today)
	case StateAskingService:
		svc, ok := MatchService(text)
		if !ok {
			return s, Turn{Reply: "Sorry, I didn't catch the service. " + servicePrompt()}
		}
		s.Draft.ServiceType = svc
		fill(&s.Draft, text, today)
	case StateAskingDate:
		d, ok := ExtractDate(text, today)
		if !ok {
			return s, Turn{Reply: "Please give me a date like 2025-06-10, \"tomorrow\", or a weekday such as \"Monday\"."}
		}
		s.Draft.Date = d.String()
		if tm, ok := ExtractTime(text); ok {
			s.Draft.Time = tm.String()
		}
	case StateAskingTime:
		tm, ok := ExtractTime(text)
		if !ok {
			tm, ok = bareHour(text)
		}
		if !ok {
			return s, Turn{Reply: "What time works for you? For example \"9:30 AM\" or \"2pm\"."}
		}
		s.Draft.Time = tm.String()
	case StateAskingUrgency:
		u, ok := MatchUrgency(text)
		if !ok {
			return s, Turn{Reply: "How urgent is it: Low, Normal, or High?"}
		}
		s.Draft.Urgency = u
	case StateAskingReason:
		if text == "" {
			return s, Turn{Reply: "Please tell me briefly why you're visiting."}
		}
		s.Draft.Reason = text
	case StateSaving:
		// A previous save never settled; retry it.
	}

	return advance(s)
}

// advance moves to the first missing field, or to saving when complete.
func advance(s Session) (Session, Turn) {
	d := s.Draft
	switch {
	case d.ServiceType == "":
		s.State = StateAskingService
		return s, Turn{Reply: "Sure, let's book you in. " + servicePrompt()}
	case d.Date == "":
		s.State = StateAskingDate
		return s, Turn{Reply: fmt.Sprintf("%s it is. Which date would you like to come in?", d.ServiceType)}
	case d.Time == "":
		s.State = StateAskingTime
		return s, Turn{Reply: fmt.Sprintf("What time on %s works for you?", d.Date)}
	case d.Urgency == "":
		s.State = StateAskingUrgency
		return s, Turn{Reply: "How urgent is it: Low, Normal, or High?"}
	case d.Reason == "":
		s.State = StateAskingReason
		return s, Turn{Reply: "Lastly, what's the reason for your visit?"}
	}
	s.State = StateSaving
	return s, Turn{Intent: &Intent{
		Date:        d.Date,
		Time:        d.Time,
		ServiceType: d.ServiceType,
		Urgency:     d.Urgency,
		Reason:      d.Reason,
	}}
}

// Settle applies the result of saving an Intent. Date rejections send the
// user back to pick a date; time and conflict rejections back to pick a
// time.
func Settle(s Session, err error) (Session, string) {
	if err == nil {
		s.State, s.Draft = StateIdle, Draft{}
		return s, ""
	}
	if r, ok := scheduling.AsRejection(err); ok {
		if r.Reason.DateRelated() {
			s.State = StateAskingDate
			s.Draft.Date, s.Draft.Time = "", ""
			return s, r.Message + " Which date would you like instead?"
		}
		s.State = StateAskingTime
		s.Draft.Time = ""
		return s, r.Message + " What time would you like instead?"
	}
	s.State, s.Draft = StateIdle, Draft{}
	if errors.Is(err, appointments.ErrDuplicatePending) {
		return s, "You already have a pending request. Please wait for the clinic to review it."
	}
	return s, "Sorry, I couldn't save your appointment right now. Please try again in a moment."
}

// fill copies any details already present in msg into empty draft fields.
func fill(d *Draft, msg string, today clinictime.Date) {
	if d.ServiceType == "" {
		if svc, ok := MatchService(msg); ok {
			d.ServiceType = svc
		}
	}
	if d.Date == "" {
		if dt, ok := ExtractDate(msg, today); ok {
			d.Date = dt.String()
		}
	}
	if d.Time == "" {
		if tm, ok := ExtractTime(msg); ok {
			d.Time = tm.String()
		}
	}
	if d.Urgency == "" {
		if u, ok := MatchUrgency(msg); ok {
			d.Urgency = u
		}
	}
}

// isAbort only matches short replies so reasons like "bleeding won't stop"
// are not mistaken for giving up.
func isAbort(lower string) bool {
	if len(strings.Fields(lower)) > 3 {
		return false
	}
	return lower == "cancel" || containsAny(lower, abortWords...)
}

func hasBookingDetail(msg string, today clinictime.Date) bool {
	_, ok := ExtractDate(msg, today)
	return ok
}

func servicePrompt() string {
	var b strings.Builder
	b.WriteString("Which service do you need?")
	for i, svc := range appointments.Services {
		fmt.Fprintf(&b, " %d) %s", i+1, svc)
	}
	return b.String()
}
