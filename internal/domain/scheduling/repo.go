package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gpcare/practice/internal/platform/events"
)

// Repository persists appointments. Every method takes the practice id and
// never returns rows belonging to another practice.
type Repository interface {
	// Atomic runs fn against a repository bound to a single serializable
	// transaction. Nested calls reuse the outer transaction.
	Atomic(ctx context.Context, fn func(tx Repository) error) error

	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, practiceID, id uuid.UUID) (*Appointment, error)
	UpdateStatus(ctx context.Context, a *Appointment) error
	UpdateTimes(ctx context.Context, a *Appointment) error
	Search(ctx context.Context, practiceID uuid.UUID, f SearchFilter, limit, offset int) ([]*Appointment, int, error)

	// HasConflict reports whether a non-cancelled appointment for the
	// clinician overlaps [start,end), ignoring exclude when set.
	HasConflict(ctx context.Context, practiceID, clinicianID uuid.UUID, start, end time.Time, exclude *uuid.UUID) (bool, error)
	ListBusy(ctx context.Context, practiceID, clinicianID uuid.UUID, from, to time.Time) ([]BusySlot, error)
	// CountByStatus counts appointments starting in [from,to). A nil
	// statuses slice counts every status.
	CountByStatus(ctx context.Context, practiceID uuid.UUID, from, to time.Time, statuses []Status) (int, error)

	AppendEvent(ctx context.Context, evt events.Event) error

	PatientSummary(ctx context.Context, practiceID, id uuid.UUID) (*PatientSummary, error)
	ClinicianSummary(ctx context.Context, practiceID, id uuid.UUID) (*ClinicianSummary, error)
	RoomSummary(ctx context.Context, practiceID, id uuid.UUID) (*RoomSummary, error)
	PracticeTimezone(ctx context.Context, practiceID uuid.UUID) (string, error)
}
