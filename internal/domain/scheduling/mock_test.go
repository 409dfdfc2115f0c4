package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gpcare/practice/internal/platform/events"
)

type scoped[T any] struct {
	practiceID uuid.UUID
	value      T
}

// memRepo is an in-memory Repository that applies the same practice
// filtering as the Postgres implementation.
type memRepo struct {
	mu         sync.Mutex
	appts      map[uuid.UUID]*Appointment
	patients   map[uuid.UUID]scoped[PatientSummary]
	clinicians map[uuid.UUID]scoped[ClinicianSummary]
	rooms      map[uuid.UUID]scoped[RoomSummary]
	timezones  map[uuid.UUID]string
	events     []events.Event
}

func newMemRepo() *memRepo {
	return &memRepo{
		appts:      make(map[uuid.UUID]*Appointment),
		patients:   make(map[uuid.UUID]scoped[PatientSummary]),
		clinicians: make(map[uuid.UUID]scoped[ClinicianSummary]),
		rooms:      make(map[uuid.UUID]scoped[RoomSummary]),
		timezones:  make(map[uuid.UUID]string),
	}
}

func (m *memRepo) addPatient(practiceID uuid.UUID, name string) uuid.UUID {
	id := uuid.New()
	m.patients[id] = scoped[PatientSummary]{practiceID, PatientSummary{ID: id, Name: name}}
	return id
}

func (m *memRepo) addClinician(practiceID uuid.UUID, name string) uuid.UUID {
	id := uuid.New()
	m.clinicians[id] = scoped[ClinicianSummary]{practiceID, ClinicianSummary{ID: id, Name: name, Role: "GP"}}
	return id
}

func (m *memRepo) addRoom(practiceID uuid.UUID, name string) uuid.UUID {
	id := uuid.New()
	m.rooms[id] = scoped[RoomSummary]{practiceID, RoomSummary{ID: id, Name: name}}
	return id
}

// seed stores an appointment directly, bypassing the service.
func (m *memRepo) seed(practiceID, clinicianID uuid.UUID, start time.Time, minutes int, status Status) *Appointment {
	a := &Appointment{
		ID:             uuid.New(),
		PracticeID:     practiceID,
		PatientID:      uuid.New(),
		ClinicianID:    clinicianID,
		Type:           TypeGPConsultation,
		ScheduledStart: start.UTC(),
		ScheduledEnd:   start.UTC().Add(time.Duration(minutes) * time.Minute),
		Duration:       minutes,
		Status:         status,
	}
	m.appts[a.ID] = a
	return a
}

func (m *memRepo) eventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

func (m *memRepo) Atomic(_ context.Context, fn func(tx Repository) error) error {
	return fn(m)
}

func (m *memRepo) Create(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *memRepo) GetByID(_ context.Context, practiceID, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok || a.PracticeID != practiceID {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memRepo) UpdateStatus(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.appts[a.ID]
	if !ok || cur.PracticeID != a.PracticeID {
		return ErrNotFound
	}
	cur.Status = a.Status
	cur.CancellationReason = a.CancellationReason
	cur.ArrivedAt, cur.StartedAt, cur.CompletedAt = a.ArrivedAt, a.StartedAt, a.CompletedAt
	return nil
}

func (m *memRepo) UpdateTimes(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.appts[a.ID]
	if !ok || cur.PracticeID != a.PracticeID {
		return ErrNotFound
	}
	cur.ScheduledStart, cur.ScheduledEnd, cur.Duration = a.ScheduledStart, a.ScheduledEnd, a.Duration
	return nil
}

func (m *memRepo) Search(_ context.Context, practiceID uuid.UUID, f SearchFilter, limit, offset int) ([]*Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*Appointment
	for _, a := range m.appts {
		if a.PracticeID != practiceID {
			continue
		}
		if f.ClinicianID != nil && a.ClinicianID != *f.ClinicianID {
			continue
		}
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, a.Status) {
			continue
		}
		if f.From != nil && a.ScheduledStart.Before(*f.From) {
			continue
		}
		if f.To != nil && !a.ScheduledStart.Before(*f.To) {
			continue
		}
		cp := *a
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ScheduledStart.Before(matched[j].ScheduledStart) })
	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (m *memRepo) HasConflict(_ context.Context, practiceID, clinicianID uuid.UUID, start, end time.Time, exclude *uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.appts {
		if a.PracticeID != practiceID || a.ClinicianID != clinicianID || a.Status == StatusCancelled {
			continue
		}
		if exclude != nil && a.ID == *exclude {
			continue
		}
		if Overlaps(start, end, a.ScheduledStart, a.ScheduledEnd) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) ListBusy(_ context.Context, practiceID, clinicianID uuid.UUID, from, to time.Time) ([]BusySlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []BusySlot
	for _, a := range m.appts {
		if a.PracticeID != practiceID || a.ClinicianID != clinicianID || a.Status == StatusCancelled {
			continue
		}
		if Overlaps(from, to, a.ScheduledStart, a.ScheduledEnd) {
			out = append(out, BusySlot{AppointmentID: a.ID, Start: a.ScheduledStart, End: a.ScheduledEnd, Status: a.Status})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *memRepo) CountByStatus(_ context.Context, practiceID uuid.UUID, from, to time.Time, statuses []Status) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.appts {
		if a.PracticeID != practiceID || a.ScheduledStart.Before(from) || !a.ScheduledStart.Before(to) {
			continue
		}
		if statuses != nil && !containsStatus(statuses, a.Status) {
			continue
		}
		n++
	}
	return n, nil
}

func (m *memRepo) AppendEvent(_ context.Context, evt events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *memRepo) PatientSummary(_ context.Context, practiceID, id uuid.UUID) (*PatientSummary, error) {
	p, ok := m.patients[id]
	if !ok || p.practiceID != practiceID {
		return nil, errPatientNotFound
	}
	v := p.value
	return &v, nil
}

func (m *memRepo) ClinicianSummary(_ context.Context, practiceID, id uuid.UUID) (*ClinicianSummary, error) {
	c, ok := m.clinicians[id]
	if !ok || c.practiceID != practiceID {
		return nil, errClinicianNotFound
	}
	v := c.value
	return &v, nil
}

func (m *memRepo) RoomSummary(_ context.Context, practiceID, id uuid.UUID) (*RoomSummary, error) {
	r, ok := m.rooms[id]
	if !ok || r.practiceID != practiceID {
		return nil, errRoomNotFound
	}
	v := r.value
	return &v, nil
}

func (m *memRepo) PracticeTimezone(_ context.Context, practiceID uuid.UUID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timezones[practiceID], nil
}
