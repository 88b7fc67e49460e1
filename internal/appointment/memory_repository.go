package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository with the same uniqueness and
// conditional-write guarantees as the Postgres schema.
type MemoryRepository struct {
	mu            sync.RWMutex
	professionals map[uuid.UUID]Professional
	owners        map[uuid.UUID]Owner
	animals       map[uuid.UUID]uuid.UUID // animal ID -> owner ID
	appointments  map[uuid.UUID]Appointment
	events        []EventLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		professionals: make(map[uuid.UUID]Professional),
		owners:        make(map[uuid.UUID]Owner),
		animals:       make(map[uuid.UUID]uuid.UUID),
		appointments:  make(map[uuid.UUID]Appointment),
	}
}

// Seeding

func (r *MemoryRepository) PutProfessional(p Professional) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.professionals[p.ID] = p
}

func (r *MemoryRepository) PutOwner(o Owner, animalIDs ...uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners[o.ID] = o
	for _, id := range animalIDs {
		r.animals[id] = o.ID
	}
}

// PutAppointment stores a as is, bypassing uniqueness checks.
func (r *MemoryRepository) PutAppointment(a Appointment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appointments[a.ID] = a.clone()
}

func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]EventLog(nil), r.events...)
}

// Interface methods

func (r *MemoryRepository) GetProfessionalByID(ctx context.Context, id uuid.UUID) (*Professional, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.professionals[id]
	if !ok {
		return nil, ErrProfessionalNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) GetOwnerByID(ctx context.Context, id uuid.UUID) (*Owner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.owners[id]
	if !ok {
		return nil, ErrOwnerNotFound
	}
	return &o, nil
}

func (r *MemoryRepository) CountAnimalsOwnedBy(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, id := range ids {
		if r.animals[id] == ownerID {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	c := a.clone()
	return &c, nil
}

func (r *MemoryRepository) ListAppointmentsForParty(ctx context.Context, role Role, userID uuid.UUID, limit, offset int) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Appointment
	for _, a := range r.appointments {
		if (role == RolePro && a.ProID == userID) || (role == RoleOwner && a.OwnerID == userID) {
			out = append(out, a.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MainSlot.After(out[j].MainSlot) })

	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) ListBlockingBetween(ctx context.Context, proID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inRange := func(t time.Time) bool { return !t.Before(from) && t.Before(to) }

	var out []Appointment
	for _, a := range r.appointments {
		if a.ProID != proID || !a.Status.Blocking() {
			continue
		}
		for _, s := range a.Slots() {
			if inRange(s) {
				out = append(out, a.clone())
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MainSlot.Before(out[j].MainSlot) })
	return out, nil
}

func (r *MemoryRepository) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if r.slotHeldLocked(a) {
		return nil, ErrSlotTaken
	}

	r.appointments[a.ID] = a.clone()
	c := a.clone()
	return &c, nil
}

func (r *MemoryRepository) UpdateAppointment(ctx context.Context, a Appointment, expectedStatus AppointmentStatus, expectedUpdatedAt time.Time) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.appointments[a.ID]
	if !ok || cur.Status != expectedStatus || !cur.UpdatedAt.Equal(expectedUpdatedAt) {
		return nil, ErrStaleWrite
	}
	if r.slotHeldLocked(a) {
		return nil, ErrSlotTaken
	}

	// Only mutable columns are written, mirroring the SQL UPDATE.
	cur.MainSlot = a.MainSlot
	cur.AlternativeSlots = append([]time.Time(nil), a.AlternativeSlots...)
	cur.ConfirmedSlot = a.ConfirmedSlot
	cur.Status = a.Status
	cur.Report = a.Report
	cur.ReportUpdatedAt = a.ReportUpdatedAt
	cur.UpdatedAt = a.UpdatedAt
	r.appointments[a.ID] = cur

	c := cur.clone()
	return &c, nil
}

func (r *MemoryRepository) FindElapsedConfirmed(ctx context.Context, now time.Time, proID *uuid.UUID) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Appointment
	for _, a := range r.appointments {
		if a.Status != StatusConfirmed || !a.EndsAt().Before(now) {
			continue
		}
		if proID != nil && a.ProID != *proID {
			continue
		}
		out = append(out, a.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MainSlot.Before(out[j].MainSlot) })
	return out, nil
}

func (r *MemoryRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}

// slotHeldLocked mirrors the partial unique index on (pro_id, main_slot) for
// blocking statuses. Caller holds r.mu.
func (r *MemoryRepository) slotHeldLocked(a Appointment) bool {
	if !a.Status.Blocking() {
		return false
	}
	for id, other := range r.appointments {
		if id == a.ID || other.ProID != a.ProID || !other.Status.Blocking() {
			continue
		}
		if other.MainSlot.Equal(a.MainSlot) {
			return true
		}
	}
	return false
}
