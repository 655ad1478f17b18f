package compliance

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps audit events in process; used without a database.
type MemoryStore struct {
	mu     sync.RWMutex
	events []AuditEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Append(ctx context.Context, event AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MemoryStore) Query(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []AuditEvent{}
	for i := len(m.events) - 1; i >= 0; i-- {
		e := m.events[i]
		if filter.AppointmentID != 0 && e.AppointmentID != filter.AppointmentID {
			continue
		}
		if filter.EventType != "" && e.EventType != filter.EventType {
			continue
		}
		if !filter.StartTime.IsZero() && e.CreatedAt.Before(filter.StartTime) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
