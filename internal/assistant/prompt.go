package assistant

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// historyWindow is how many past turns are sent to the model.
const historyWindow = 6

const receptionistPrompt = `You are the school clinic receptionist.
Be warm, caring and efficient. If a student says they are unwell, acknowledge it kindly.

Your job is to book, cancel and reschedule clinic appointments.

Availability:
- The system checks the schedule for you and appends a [SYSTEM INFO] line with open slots.
- Offer only slots listed there. If there is no [SYSTEM INFO], ask which date they want to check.

Appointment numbers:
- Students may write an appointment number as "23" or "#23". Accept either.

Actions. When you have everything you need, reply with exactly one JSON object:
- Booking needs date, time, service, urgency and reason.
  {"action": "book_appointment", "student_name": "Juan Dela Cruz", "date": "YYYY-MM-DD", "time": "HH:MM:00", "reason": "short reason", "service_type": "Medical Consultation", "urgency": "Normal", "ai_advice": "Tip: ..."}
- Canceling needs the appointment number.
  {"action": "cancel_appointment", "appointment_id": 123}
- Rescheduling needs the appointment number and the new date and time.
  {"action": "reschedule_appointment", "appointment_id": 123, "new_date": "YYYY-MM-DD", "new_time": "HH:MM:00"}

Services: %s.
Urgency: Low, Normal or High.
If you give health advice, start it with "Tip: " and never diagnose.`

// Action is a structured command emitted by the model.
type Action struct {
	Action        string `json:"action"`
	StudentName   string `json:"student_name,omitempty"`
	Date          string `json:"date,omitempty"`
	Time          string `json:"time,omitempty"`
	Reason        string `json:"reason,omitempty"`
	ServiceType   string `json:"service_type,omitempty"`
	Urgency       string `json:"urgency,omitempty"`
	Advice        string `json:"ai_advice,omitempty"`
	AppointmentID flexID `json:"appointment_id,omitempty"`
	NewDate       string `json:"new_date,omitempty"`
	NewTime       string `json:"new_time,omitempty"`
}

const (
	ActionBook       = "book_appointment"
	ActionCancel     = "cancel_appointment"
	ActionReschedule = "reschedule_appointment"
)

// flexID accepts 23, "23" or "#23".
type flexID int64

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "#")))
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("assistant: appointment id %q: %w", b, err)
	}
	*f = flexID(n)
	return nil
}

// SystemPrompt assembles the instruction block for one turn: the persona,
// today's clinic-local date, and slot availability when known.
func SystemPrompt(services []string, now time.Time, slotInfo string) string {
	var b strings.Builder
	fmt.Fprintf(&b, receptionistPrompt, strings.Join(services, ", "))
	fmt.Fprintf(&b, "\n\nToday's date (clinic time): %s", now.Format("2006-01-02, Monday"))
	if slotInfo != "" {
		b.WriteString("\n")
		b.WriteString(slotInfo)
	}
	return b.String()
}

// SlotInfo renders the [SYSTEM INFO] line for a date.
func SlotInfo(date string, slots []string) string {
	if len(slots) == 0 {
		return fmt.Sprintf("[SYSTEM INFO] No slots for %s.", date)
	}
	return fmt.Sprintf("[SYSTEM INFO] Available slots for %s: %s", date, strings.Join(slots, ", "))
}

// BuildMessages returns the trailing history window followed by msg.
func BuildMessages(history []Message, msg string) []Message {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	out := make([]Message, 0, len(history)+1)
	out = append(out, history...)
	return append(out, Message{Role: RoleUser, Content: msg})
}

// ParseAction extracts the JSON object spanning the first '{' to the last
// '}' of a model reply. ok is false when the reply carries no known action.
func ParseAction(text string) (Action, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Action{}, false
	}
	var a Action
	if err := json.Unmarshal([]byte(text[start:end+1]), &a); err != nil {
		return Action{}, false
	}
	switch a.Action {
	case ActionBook, ActionCancel, ActionReschedule:
		return a, true
	}
	return Action{}, false
}
