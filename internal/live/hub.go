// Package live pushes appointment changes to dashboard websocket clients.
package live

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/MarkKevinCanonoy/Web-Project/pkg/logging"
)

// Event types.
const (
	EventCreated     = "appointment.created"
	EventRescheduled = "appointment.rescheduled"
	EventStatus      = "appointment.status"
	EventDeleted     = "appointment.deleted"
)

// Event describes one appointment change.
type Event struct {
	Type          string    `json:"type"`
	AppointmentID int64     `json:"appointment_id"`
	Date          string    `json:"date,omitempty"`
	Time          string    `json:"time,omitempty"`
	Status        string    `json:"status,omitempty"`
	At            time.Time `json:"at"`
}

const sendBuffer = 64

type subscriber struct {
	send chan []byte
}

// Hub fans events out to subscribers. A subscriber whose buffer is full is
// dropped and its channel closed.
type Hub struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	logger *logging.Logger
	now    func() time.Time
}

func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		subs:   make(map[*subscriber]struct{}),
		logger: logger,
		now:    time.Now,
	}
}

func (h *Hub) subscribe() *subscriber {
	s := &subscriber{send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *Hub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	close(s.send)
}

// Publish broadcasts evt. It never blocks on a subscriber.
func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	if evt.At.IsZero() {
		evt.At = h.now().UTC()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("live: marshal event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.send <- data:
		default:
			delete(h.subs, s)
			close(s.send)
			h.logger.Warn("live: dropped slow subscriber")
		}
	}
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
