package appointments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MarkKevinCanonoy/Web-Project/internal/clinictime"
)

// DateTx is the view of one date's appointments held under that date's
// exclusive lock. Writes become visible when the enclosing WithDateLock
// returns nil.
type DateTx interface {
	// ActiveTimes returns start times of pending/approved appointments on
	// the locked date, skipping excludeID (0 skips nothing).
	ActiveTimes(ctx context.Context, excludeID int64) ([]clinictime.Clock, error)
	// Get reads the current row by id, whatever its date. Postgres holds
	// the row lock until the transaction ends.
	Get(ctx context.Context, id int64) (*Appointment, error)
	Insert(ctx context.Context, a *Appointment) error
	// Move writes only the date, time and status of a.
	Move(ctx context.Context, a *Appointment) error
	// SetOutcome writes only the status, admin note and diagnosis of a.
	SetOutcome(ctx context.Context, a *Appointment) error
}

// Repository persists appointments.
type Repository interface {
	// WithDateLock runs fn while holding the exclusive lock for date. Two
	// calls for the same date never overlap.
	WithDateLock(ctx context.Context, date clinictime.Date, fn func(tx DateTx) error) error
	// ActiveTimes is an unlocked snapshot used for availability listing.
	ActiveTimes(ctx context.Context, date clinictime.Date) ([]clinictime.Clock, error)
	Get(ctx context.Context, id int64) (*Appointment, error)
	List(ctx context.Context, filter Filter) ([]*Appointment, error)
	Delete(ctx context.Context, id int64) error
}

// MemoryRepository keeps appointments in process memory.
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]*Appointment
	now    func() time.Time

	locksMu   sync.Mutex
	dateLocks map[clinictime.Date]*sync.Mutex
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		rows:      make(map[int64]*Appointment),
		now:       time.Now,
		dateLocks: make(map[clinictime.Date]*sync.Mutex),
	}
}

func (r *MemoryRepository) dateLock(d clinictime.Date) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	m, ok := r.dateLocks[d]
	if !ok {
		m = &sync.Mutex{}
		r.dateLocks[d] = m
	}
	return m
}

func (r *MemoryRepository) WithDateLock(ctx context.Context, date clinictime.Date, fn func(tx DateTx) error) error {
	lock := r.dateLock(date)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memoryTx{repo: r, date: date}
	if err := fn(tx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, apply := range tx.writes {
		apply(r.rows)
	}
	return nil
}

func (r *MemoryRepository) ActiveTimes(ctx context.Context, date clinictime.Date) ([]clinictime.Clock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeTimesLocked(date, 0), nil
}

func (r *MemoryRepository) activeTimesLocked(date clinictime.Date, excludeID int64) []clinictime.Clock {
	var out []clinictime.Clock
	for _, a := range r.rows {
		if a.ID == excludeID || a.Date != date || !a.Status.Active() {
			continue
		}
		out = append(out, a.Time)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *MemoryRepository) Get(ctx context.Context, id int64) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a.clone(), nil
}

// List returns matches newest date/time first, like the dashboards expect.
func (r *MemoryRepository) List(ctx context.Context, filter Filter) ([]*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Appointment, 0)
	for _, a := range r.rows {
		if filter.matches(a) {
			out = append(out, a.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[j].Date.Before(out[i].Date)
		}
		if out[i].Time != out[j].Time {
			return out[i].Time > out[j].Time
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

// memoryTx buffers writes until the lock holder returns nil. Updates
// merge their own columns into whatever row is stored at commit time.
type memoryTx struct {
	repo   *MemoryRepository
	date   clinictime.Date
	writes []func(rows map[int64]*Appointment)
}

func (t *memoryTx) ActiveTimes(ctx context.Context, excludeID int64) ([]clinictime.Clock, error) {
	t.repo.mu.RLock()
	defer t.repo.mu.RUnlock()
	return t.repo.activeTimesLocked(t.date, excludeID), nil
}

func (t *memoryTx) Get(ctx context.Context, id int64) (*Appointment, error) {
	return t.repo.Get(ctx, id)
}

func (t *memoryTx) Insert(ctx context.Context, a *Appointment) error {
	t.repo.mu.Lock()
	t.repo.nextID++
	a.ID = t.repo.nextID
	t.repo.mu.Unlock()

	now := t.repo.now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	row := a.clone()
	t.writes = append(t.writes, func(rows map[int64]*Appointment) {
		rows[row.ID] = row
	})
	return nil
}

func (t *memoryTx) Move(ctx context.Context, a *Appointment) error {
	date, tm, status := a.Date, a.Time, a.Status
	return t.update(a, func(row *Appointment) {
		row.Date, row.Time, row.Status = date, tm, status
	})
}

func (t *memoryTx) SetOutcome(ctx context.Context, a *Appointment) error {
	status, note, diagnosis := a.Status, a.AdminNote, a.Diagnosis
	return t.update(a, func(row *Appointment) {
		row.Status, row.AdminNote, row.Diagnosis = status, note, diagnosis
	})
}

func (t *memoryTx) update(a *Appointment, merge func(row *Appointment)) error {
	t.repo.mu.RLock()
	_, ok := t.repo.rows[a.ID]
	t.repo.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	a.UpdatedAt = t.repo.now().UTC()
	updatedAt := a.UpdatedAt
	id := a.ID
	t.writes = append(t.writes, func(rows map[int64]*Appointment) {
		row, ok := rows[id]
		if !ok {
			// Deleted while the lock was held.
			return
		}
		merge(row)
		row.UpdatedAt = updatedAt
	})
	return nil
}
