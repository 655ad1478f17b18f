package assistant

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarkKevinCanonoy/Web-Project/internal/appointments"
	"github.com/MarkKevinCanonoy/Web-Project/internal/auth"
	"github.com/MarkKevinCanonoy/Web-Project/internal/clinictime"
	"github.com/MarkKevinCanonoy/Web-Project/internal/observability/metrics"
	"github.com/MarkKevinCanonoy/Web-Project/internal/scheduling"
	"github.com/MarkKevinCanonoy/Web-Project/pkg/logging"
)

var (
	student = auth.Principal{UserID: 10, Role: auth.RoleStudent, Name: "Ana Reyes", Email: "ana@example.edu"}
	other   = auth.Principal{UserID: 11, Role: auth.RoleStudent, Name: "Ben Cruz", Email: "ben@example.edu"}
	nurse   = auth.Principal{UserID: 2, Role: auth.RoleNurse, Name: "Nurse Joy"}
)

type fakeLLM struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []LLMRequest
}

func (f *fakeLLM) Provider() string { return "fake" }

func (f *fakeLLM) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return LLMResponse{}, f.err
	}
	if len(f.replies) == 0 {
		return LLMResponse{}, errors.New("fake llm: no reply queued")
	}
	text := f.replies[0]
	f.replies = f.replies[1:]
	return LLMResponse{Text: text}, nil
}

type chatFixture struct {
	svc   *Service
	appts *appointments.Service
	repo  *appointments.MemoryRepository
	store *MemorySessionStore
	reg   *prometheus.Registry
}

// Monday 2025-06-09 10:00 at the clinic.
func newChat(t *testing.T, llm *fakeLLM) *chatFixture {
	t.Helper()
	now := time.Date(2025, 6, 9, 10, 0, 0, 0, clinictime.FixedZone(8))
	cal := scheduling.NewCalendar(scheduling.DefaultPolicy(), func() time.Time { return now })

	repo := appointments.NewMemoryRepository()
	appts := appointments.NewService(repo, cal, logging.Discard())
	store := NewMemorySessionStore(time.Hour)
	reg := prometheus.NewRegistry()

	opts := []Option{WithMetrics(metrics.NewChatMetrics(reg))}
	if llm != nil {
		opts = append(opts, WithLLM(llm))
	}
	return &chatFixture{
		svc:   NewService(appts, store, cal, logging.Discard(), opts...),
		appts: appts,
		repo:  repo,
		store: store,
		reg:   reg,
	}
}

func (f *chatFixture) say(t *testing.T, actor auth.Principal, sessionID, msg string) Reply {
	t.Helper()
	r, err := f.svc.Reply(t.Context(), actor, sessionID, msg)
	require.NoError(t, err)
	require.NotEmpty(t, r.SessionID)
	return r
}

func (f *chatFixture) all(t *testing.T) []*appointments.Appointment {
	t.Helper()
	list, err := f.repo.List(t.Context(), appointments.Filter{})
	require.NoError(t, err)
	return list
}

func (f *chatFixture) turns(t *testing.T, mode string) float64 {
	t.Helper()
	families, err := f.reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != "clinic_assistant_turns_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "mode" && l.GetValue() == mode {
					total += m.GetCounter().GetValue()
				}
			}
		}
	}
	return total
}

func (f *chatFixture) book(t *testing.T, actor auth.Principal, date, tm string) *appointments.Appointment {
	t.Helper()
	a, err := f.appts.Book(t.Context(), actor, appointments.BookRequest{
		Date: date, Time: tm, ServiceType: "First Aid", Urgency: "Normal", Reason: "scrape",
	})
	require.NoError(t, err)
	return a
}

func TestGuidedBookingEndToEnd(t *testing.T) {
	f := newChat(t, nil)

	r := f.say(t, student, "", "I want to book an appointment")
	assert.Contains(t, r.Response, "Which service do you need?")
	sid := r.SessionID

	r = f.say(t, student, sid, "2")
	assert.Contains(t, r.Response, "Which date")

	r = f.say(t, student, sid, "tomorrow")
	assert.Contains(t, r.Response, "What time on 2025-06-10 works for you?")
	assert.Contains(t, r.Response, "Open times: 08:00 AM, 08:30 AM")

	f.say(t, student, sid, "9:30 am")
	f.say(t, student, sid, "normal")
	r = f.say(t, student, sid, "toothache")
	assert.True(t, r.Refresh)
	assert.Contains(t, r.Response, "ticket number is #1")
	assert.Equal(t, sid, r.SessionID)

	list := f.all(t)
	require.Len(t, list, 1)
	a := list[0]
	assert.Equal(t, appointments.ModeChatbot, a.BookingMode)
	assert.Equal(t, "Dental Check-up", a.ServiceType)
	assert.Equal(t, "Ana Reyes", a.StudentName)
	require.NotNil(t, a.OwnerID)
	assert.Equal(t, int64(10), *a.OwnerID)
	assert.Equal(t, "09:30:00", a.Time.String())

	sess, err := f.store.Load(t.Context(), sid)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, sess.State)
	assert.Equal(t, Draft{}, sess.Draft)
	assert.Len(t, sess.History, 12)
	assert.Equal(t, float64(6), f.turns(t, "guided"))
}

func TestGuidedConflictAsksForAnotherTime(t *testing.T) {
	f := newChat(t, nil)
	f.book(t, other, "2025-06-10", "10:00")

	r := f.say(t, student, "", "book a first aid visit tomorrow at 10:30am")
	sid := r.SessionID
	f.say(t, student, sid, "high")
	r = f.say(t, student, sid, "twisted ankle")

	assert.False(t, r.Refresh)
	assert.Contains(t, r.Response, "conflicts with another appointment")
	assert.Contains(t, r.Response, "What time would you like instead?")
	assert.Contains(t, r.Response, "11:00 AM")
	assert.NotContains(t, r.Response, "10:30 AM")

	sess, err := f.store.Load(t.Context(), sid)
	require.NoError(t, err)
	assert.Equal(t, StateAskingTime, sess.State)
	assert.Equal(t, "2025-06-10", sess.Draft.Date)

	r = f.say(t, student, sid, "11am")
	assert.True(t, r.Refresh)
	assert.Len(t, f.all(t), 2)
}

func TestGuidedDuplicatePending(t *testing.T) {
	f := newChat(t, nil)
	f.book(t, student, "2025-06-11", "09:00")

	// Pending requests only count as duplicates at the same urgency.
	r := f.say(t, student, "", "book first aid tomorrow at 2pm")
	f.say(t, student, r.SessionID, "normal")
	r = f.say(t, student, r.SessionID, "small cut")
	assert.Contains(t, r.Response, "You already have a pending request")
	assert.Len(t, f.all(t), 1)
}

func TestGuidedCancel(t *testing.T) {
	f := newChat(t, nil)
	mine := f.book(t, student, "2025-06-10", "09:00")
	theirs := f.book(t, other, "2025-06-10", "14:00")

	r := f.say(t, student, "", "cancel #99")
	assert.Equal(t, "I couldn't find appointment #99.", r.Response)

	// Other students' appointments are indistinguishable from missing ones.
	r = f.say(t, student, r.SessionID, "cancel #"+itoa(theirs.ID))
	assert.Equal(t, "I couldn't find appointment #"+itoa(theirs.ID)+".", r.Response)
	assert.False(t, r.Refresh)

	r = f.say(t, student, r.SessionID, "cancel #"+itoa(mine.ID))
	assert.Equal(t, "Appointment #"+itoa(mine.ID)+" canceled.", r.Response)
	assert.True(t, r.Refresh)

	got, err := f.repo.Get(t.Context(), mine.ID)
	require.NoError(t, err)
	assert.Equal(t, appointments.StatusCanceled, got.Status)
}

func TestLLMBookingUsesSlotInfoAndPrincipalName(t *testing.T) {
	llm := &fakeLLM{replies: []string{
		`Booking it now. {"action": "book_appointment", "student_name": "Someone Else", "date": "tomorrow", "time": "09:00:00", "service_type": "Vaccination", "urgency": "Low", "reason": "flu shot", "ai_advice": "Tip: drink plenty of water."}`,
	}}
	f := newChat(t, llm)

	r := f.say(t, student, "", "please book a vaccination tomorrow at 9am")
	assert.True(t, r.Refresh)
	assert.Contains(t, r.Response, "#1")
	assert.True(t, strings.HasSuffix(r.Response, "\nTip: drink plenty of water."))

	require.Len(t, llm.requests, 1)
	req := llm.requests[0]
	assert.Contains(t, req.System, "[SYSTEM INFO] Available slots for 2025-06-10: 08:00 AM")
	assert.Contains(t, req.System, "2025-06-09, Monday")
	assert.Equal(t, []Message{{Role: RoleUser, Content: "please book a vaccination tomorrow at 9am"}}, req.Messages)

	list := f.all(t)
	require.Len(t, list, 1)
	assert.Equal(t, "Ana Reyes", list[0].StudentName)
	assert.Equal(t, "2025-06-10", list[0].Date.String())
	assert.Equal(t, appointments.ModeChatbot, list[0].BookingMode)
	assert.Equal(t, float64(1), f.turns(t, "llm"))
}

func TestLLMStaffBooksWalkIn(t *testing.T) {
	llm := &fakeLLM{replies: []string{
		`{"action": "book_appointment", "student_name": "Juan Dela Cruz", "date": "2025-06-10", "time": "13:00:00", "service_type": "First Aid", "urgency": "High", "reason": "sprain"}`,
		`{"action": "book_appointment", "date": "2025-06-10", "time": "15:00:00", "service_type": "First Aid", "urgency": "High", "reason": "sprain"}`,
	}}
	f := newChat(t, llm)

	r := f.say(t, nurse, "", "walk-in for Juan")
	require.True(t, r.Refresh, r.Response)
	r = f.say(t, nurse, r.SessionID, "another walk-in")
	require.True(t, r.Refresh, r.Response)

	list := f.all(t)
	require.Len(t, list, 2)
	names := []string{list[0].StudentName, list[1].StudentName}
	assert.ElementsMatch(t, []string{"Juan Dela Cruz", "Walk-in Student"}, names)
	assert.Nil(t, list[0].OwnerID)
}

func TestLLMRejectionIsRelayed(t *testing.T) {
	llm := &fakeLLM{replies: []string{
		`{"action": "book_appointment", "date": "2025-06-15", "time": "10:00:00", "service_type": "Medical Consultation", "urgency": "Normal", "reason": "fever"}`,
	}}
	f := newChat(t, llm)

	r := f.say(t, student, "", "sunday 10am please")
	assert.False(t, r.Refresh)
	assert.Equal(t, "The clinic is closed on Sundays.", r.Response)
	assert.Empty(t, f.all(t))
}

func TestLLMConversationKeepsHistory(t *testing.T) {
	llm := &fakeLLM{replies: []string{"Which date would you like?", "Sure, anything else?"}}
	f := newChat(t, llm)

	r1 := f.say(t, student, "", "hi")
	assert.Equal(t, "Which date would you like?", r1.Response)
	assert.False(t, r1.Refresh)

	r2 := f.say(t, student, r1.SessionID, "what's open?")
	assert.Equal(t, r1.SessionID, r2.SessionID)
	require.Len(t, llm.requests, 2)
	assert.Equal(t, []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "Which date would you like?"},
		{Role: RoleUser, Content: "what's open?"},
	}, llm.requests[1].Messages)
}

func TestLLMRescheduleAndCancel(t *testing.T) {
	llm := &fakeLLM{}
	f := newChat(t, llm)
	a := f.book(t, student, "2025-06-10", "09:00")
	id := itoa(a.ID)

	llm.replies = []string{
		`{"action": "reschedule_appointment", "appointment_id": "#` + id + `", "new_date": "2025-06-11", "new_time": "14:00:00"}`,
		`{"action": "cancel_appointment", "appointment_id": ` + id + `}`,
		`{"action": "cancel_appointment"}`,
	}

	r := f.say(t, student, "", "move my appointment to wednesday 2pm")
	assert.True(t, r.Refresh)
	assert.Equal(t, "Rescheduled #"+id+" to 2025-06-11 at 02:00 PM. It is pending approval again.", r.Response)

	r = f.say(t, student, r.SessionID, "actually cancel it")
	assert.Equal(t, "Appointment #"+id+" canceled.", r.Response)

	got, err := f.repo.Get(t.Context(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, appointments.StatusCanceled, got.Status)
	assert.Equal(t, "2025-06-11", got.Date.String())

	r = f.say(t, student, r.SessionID, "cancel")
	assert.Contains(t, r.Response, "ticket number")
}

func TestLLMFailureFallsBackToGuidedFlow(t *testing.T) {
	llm := &fakeLLM{err: errors.New("quota exceeded")}
	f := newChat(t, llm)

	r := f.say(t, student, "", "book an appointment")
	assert.Contains(t, r.Response, "Which service do you need?")
	assert.Equal(t, float64(1), f.turns(t, "fallback"))

	// Mid-flow turns stay guided and skip the model.
	f.say(t, student, r.SessionID, "1")
	assert.Len(t, llm.requests, 1)
	assert.Equal(t, float64(1), f.turns(t, "guided"))
}

func TestForeignSessionStartsFresh(t *testing.T) {
	f := newChat(t, nil)
	r := f.say(t, student, "", "book an appointment")

	theirs := f.say(t, other, r.SessionID, "hello")
	assert.NotEqual(t, r.SessionID, theirs.SessionID)
	assert.Contains(t, theirs.Response, "clinic assistant")

	sess, err := f.store.Load(t.Context(), r.SessionID)
	require.NoError(t, err)
	assert.Equal(t, StateAskingService, sess.State, "owner's session is untouched")
}

func TestHistoryIsBounded(t *testing.T) {
	f := newChat(t, nil)
	r := f.say(t, student, "", "hello")
	for i := 0; i < 15; i++ {
		f.say(t, student, r.SessionID, "hello")
	}
	sess, err := f.store.Load(t.Context(), r.SessionID)
	require.NoError(t, err)
	assert.Len(t, sess.History, maxStoredHistory)
}

func TestEmptyMessage(t *testing.T) {
	f := newChat(t, nil)
	_, err := f.svc.Reply(t.Context(), student, "", "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
