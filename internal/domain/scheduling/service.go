package scheduling

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gpcare/practice/internal/platform/apperr"
	"github.com/gpcare/practice/internal/platform/events"
	"github.com/gpcare/practice/internal/platform/tenant"
)

const dateLayout = "2006-01-02"

type Service struct {
	repo Repository
	loc  *time.Location
	now  func() time.Time
}

// NewService builds the scheduling service. loc is used when a practice has
// no usable timezone of its own.
func NewService(repo Repository, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, loc: loc, now: time.Now}
}

// CreateRequest is the booking payload.
type CreateRequest struct {
	PatientID      uuid.UUID       `json:"patient_id"`
	ClinicianID    uuid.UUID       `json:"clinician_id"`
	RoomID         *uuid.UUID      `json:"room_id,omitempty"`
	Type           AppointmentType `json:"appointment_type"`
	ScheduledStart time.Time       `json:"scheduled_start"`
	Duration       int             `json:"duration,omitempty"`
	IsUrgent       bool            `json:"is_urgent"`
	Reason         string          `json:"reason,omitempty"`
	Notes          string          `json:"notes,omitempty"`

	localStart bool // ScheduledStart arrived without an offset
}

func (r CreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.PatientID, validation.Required, validation.By(notNilUUID)),
		validation.Field(&r.ClinicianID, validation.Required, validation.By(notNilUUID)),
		validation.Field(&r.Type, validation.Required, validation.By(validType)),
		validation.Field(&r.ScheduledStart, validation.Required),
		validation.Field(&r.Duration, validation.When(r.Duration != 0, validation.Min(MinDuration), validation.Max(MaxDuration))),
		validation.Field(&r.Reason, validation.Length(0, 2000)),
		validation.Field(&r.Notes, validation.Length(0, 4000)),
	)
}

// RescheduleRequest moves an appointment. A zero Duration keeps the
// current length.
type RescheduleRequest struct {
	ScheduledStart time.Time `json:"scheduled_start"`
	Duration       int       `json:"duration,omitempty"`

	localStart bool
}

func (r RescheduleRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ScheduledStart, validation.Required),
		validation.Field(&r.Duration, validation.When(r.Duration != 0, validation.Min(MinDuration), validation.Max(MaxDuration))),
	)
}

func notNilUUID(v interface{}) error {
	if id, ok := v.(uuid.UUID); ok && id == uuid.Nil {
		return errors.New("must be a valid id")
	}
	return nil
}

func validType(v interface{}) error {
	if t, ok := v.(AppointmentType); ok && !t.Valid() {
		return errors.New("unknown appointment type")
	}
	return nil
}

// Create books an appointment. The reference lookups, conflict check and
// insert run in one serializable transaction.
func (s *Service) Create(ctx context.Context, scope tenant.Scope, req CreateRequest) (*Appointment, error) {
	if err := req.Validate(); err != nil {
		return nil, apperr.Validation(err)
	}
	duration := req.Duration
	if duration == 0 {
		duration = req.Type.DefaultDuration()
	}
	start := s.startTime(ctx, scope, req.ScheduledStart, req.localStart)

	var out *Appointment
	err := s.repo.Atomic(ctx, func(tx Repository) error {
		a := &Appointment{
			ID:             uuid.New(),
			PracticeID:     scope.PracticeID,
			PatientID:      req.PatientID,
			ClinicianID:    req.ClinicianID,
			RoomID:         req.RoomID,
			Type:           req.Type,
			ScheduledStart: start,
			ScheduledEnd:   start.Add(time.Duration(duration) * time.Minute),
			Duration:       duration,
			Status:         StatusBooked,
			IsUrgent:       req.IsUrgent,
			Reason:         req.Reason,
			Notes:          req.Notes,
			CreatedBy:      scope.UserID,
		}
		if err := s.attachSummaries(ctx, tx, a); err != nil {
			return err
		}

		conflict, err := tx.HasConflict(ctx, scope.PracticeID, a.ClinicianID, a.ScheduledStart, a.ScheduledEnd, nil)
		if err != nil {
			return err
		}
		if conflict {
			return ErrConflict
		}
		if err := tx.Create(ctx, a); err != nil {
			return err
		}
		if err := appendEvent(ctx, tx, a, events.AppointmentBooked, bookedPayload(a)); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// attachSummaries resolves the referenced patient, clinician and room in the
// practice. A missing reference is a client error, not a 404.
func (s *Service) attachSummaries(ctx context.Context, tx Repository, a *Appointment) error {
	patient, err := tx.PatientSummary(ctx, a.PracticeID, a.PatientID)
	if err != nil {
		return asInvalid(err)
	}
	clinician, err := tx.ClinicianSummary(ctx, a.PracticeID, a.ClinicianID)
	if err != nil {
		return asInvalid(err)
	}
	a.Patient = patient
	a.Clinician = clinician
	if a.RoomID != nil {
		room, err := tx.RoomSummary(ctx, a.PracticeID, *a.RoomID)
		if err != nil {
			return asInvalid(err)
		}
		a.Room = room
	}
	return nil
}

func asInvalid(err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.Invalid(err.Error() + " in this practice")
	}
	return err
}

func (s *Service) Get(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, scope.PracticeID, id)
}

func (s *Service) Search(ctx context.Context, scope tenant.Scope, f SearchFilter, limit, offset int) ([]*Appointment, int, error) {
	for _, st := range f.Statuses {
		if !st.Valid() {
			return nil, 0, apperr.Invalid("unknown status " + string(st))
		}
	}
	if f.Date != "" {
		from, to, err := s.dayBounds(ctx, scope, f.Date)
		if err != nil {
			return nil, 0, err
		}
		f.From, f.To = &from, &to
	}
	return s.repo.Search(ctx, scope.PracticeID, f, limit, offset)
}

// Reschedule moves a booked or confirmed appointment, checking the new
// range against the clinician's other appointments.
func (s *Service) Reschedule(ctx context.Context, scope tenant.Scope, id uuid.UUID, req RescheduleRequest) (*Appointment, error) {
	if err := req.Validate(); err != nil {
		return nil, apperr.Validation(err)
	}

	var out *Appointment
	err := s.repo.Atomic(ctx, func(tx Repository) error {
		a, err := tx.GetByID(ctx, scope.PracticeID, id)
		if err != nil {
			return err
		}
		if !a.Status.Reschedulable() {
			return ErrNotReschedulable
		}
		duration := req.Duration
		if duration == 0 {
			duration = a.Duration
		}
		prevStart := a.ScheduledStart
		a.ScheduledStart = s.startTime(ctx, scope, req.ScheduledStart, req.localStart)
		a.ScheduledEnd = a.ScheduledStart.Add(time.Duration(duration) * time.Minute)
		a.Duration = duration

		conflict, err := tx.HasConflict(ctx, scope.PracticeID, a.ClinicianID, a.ScheduledStart, a.ScheduledEnd, &a.ID)
		if err != nil {
			return err
		}
		if conflict {
			return ErrConflict
		}
		if err := tx.UpdateTimes(ctx, a); err != nil {
			return err
		}
		payload := map[string]interface{}{
			"appointment_id":  a.ID,
			"clinician_id":    a.ClinicianID,
			"patient_id":      a.PatientID,
			"previous_start":  prevStart,
			"scheduled_start": a.ScheduledStart,
			"scheduled_end":   a.ScheduledEnd,
		}
		if err := appendEvent(ctx, tx, a, events.AppointmentRescheduled, payload); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Confirm(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*Appointment, error) {
	return s.setStatus(ctx, scope, id, StatusConfirmed, "")
}

func (s *Service) CheckIn(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*Appointment, error) {
	return s.setStatus(ctx, scope, id, StatusArrived, "")
}

func (s *Service) Start(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*Appointment, error) {
	return s.setStatus(ctx, scope, id, StatusInProgress, "")
}

func (s *Service) Complete(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*Appointment, error) {
	return s.setStatus(ctx, scope, id, StatusCompleted, "")
}

func (s *Service) Cancel(ctx context.Context, scope tenant.Scope, id uuid.UUID, reason string) (*Appointment, error) {
	return s.setStatus(ctx, scope, id, StatusCancelled, reason)
}

func (s *Service) MarkDNA(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*Appointment, error) {
	return s.setStatus(ctx, scope, id, StatusDNA, "")
}

// UpdateStatus applies any status permitted by the transitions table.
func (s *Service) UpdateStatus(ctx context.Context, scope tenant.Scope, id uuid.UUID, status Status) (*Appointment, error) {
	status = Status(strings.ToUpper(strings.TrimSpace(string(status))))
	if !status.Valid() {
		return nil, apperr.Invalid("unknown status " + string(status))
	}
	return s.setStatus(ctx, scope, id, status, "")
}

func (s *Service) setStatus(ctx context.Context, scope tenant.Scope, id uuid.UUID, to Status, reason string) (*Appointment, error) {
	var out *Appointment
	err := s.repo.Atomic(ctx, func(tx Repository) error {
		a, err := tx.GetByID(ctx, scope.PracticeID, id)
		if err != nil {
			return err
		}
		if a.Status == to {
			out = a
			return nil
		}
		if !CanTransition(a.Status, to) {
			return &TransitionError{From: a.Status, To: to}
		}

		from := a.Status
		now := s.now().UTC()
		a.Status = to
		switch to {
		case StatusArrived:
			a.ArrivedAt = &now
		case StatusInProgress:
			a.StartedAt = &now
		case StatusCompleted:
			a.CompletedAt = &now
		case StatusCancelled:
			if reason != "" {
				a.CancellationReason = &reason
			}
		}
		if err := tx.UpdateStatus(ctx, a); err != nil {
			return err
		}
		payload := map[string]interface{}{
			"appointment_id": a.ID,
			"clinician_id":   a.ClinicianID,
			"patient_id":     a.PatientID,
			"from":           from,
			"to":             to,
			"changed_by":     scope.UserID,
			"changed_at":     now,
		}
		if err := appendEvent(ctx, tx, a, events.AppointmentStatusChanged, payload); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Availability lists the clinician's busy intervals on a practice-local day.
func (s *Service) Availability(ctx context.Context, scope tenant.Scope, clinicianID uuid.UUID, date string) (*Availability, error) {
	if _, err := s.repo.ClinicianSummary(ctx, scope.PracticeID, clinicianID); err != nil {
		return nil, err
	}
	loc := s.location(ctx, scope)
	if date == "" {
		date = s.now().In(loc).Format(dateLayout)
	}
	from, to, err := dayBoundsIn(date, loc)
	if err != nil {
		return nil, err
	}
	busy, err := s.repo.ListBusy(ctx, scope.PracticeID, clinicianID, from, to)
	if err != nil {
		return nil, err
	}
	if busy == nil {
		busy = []BusySlot{}
	}
	return &Availability{ClinicianID: clinicianID, Date: date, Timezone: loc.String(), Busy: busy}, nil
}

// DashboardStats counts today's and this month's appointments in the
// practice timezone. The four counts run concurrently.
func (s *Service) DashboardStats(ctx context.Context, scope tenant.Scope) (*DashboardStats, error) {
	loc := s.location(ctx, scope)
	now := s.now().In(loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)

	var stats DashboardStats
	g, gctx := errgroup.WithContext(ctx)
	count := func(dst *int, from, to time.Time, statuses []Status) {
		g.Go(func() error {
			n, err := s.repo.CountByStatus(gctx, scope.PracticeID, from, to, statuses)
			*dst = n
			return err
		})
	}
	count(&stats.TodayTotal, dayStart, dayEnd, nil)
	count(&stats.TodayPending, dayStart, dayEnd, []Status{StatusBooked, StatusConfirmed})
	count(&stats.MonthMissed, monthStart, dayEnd, []Status{StatusDNA})
	count(&stats.MonthCancelled, monthStart, dayEnd, []Status{StatusCancelled})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	stats.TodayCompleted = stats.TodayTotal - stats.TodayPending
	return &stats, nil
}

// location returns the practice's timezone, or the service default when the
// practice has none or it cannot be loaded.
func (s *Service) location(ctx context.Context, scope tenant.Scope) *time.Location {
	tz, err := s.repo.PracticeTimezone(ctx, scope.PracticeID)
	if err != nil || tz == "" {
		return s.loc
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return s.loc
	}
	return loc
}

// startTime normalises a requested start to UTC. Zone-less input is wall
// clock time in the practice timezone.
func (s *Service) startTime(ctx context.Context, scope tenant.Scope, t time.Time, local bool) time.Time {
	if local {
		t = wallClock{t: t, local: true}.in(s.location(ctx, scope))
	}
	return t.UTC()
}

func (s *Service) dayBounds(ctx context.Context, scope tenant.Scope, date string) (time.Time, time.Time, error) {
	return dayBoundsIn(date, s.location(ctx, scope))
}

func dayBoundsIn(date string, loc *time.Location) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, apperr.Invalid("date must be YYYY-MM-DD")
	}
	return day, day.AddDate(0, 0, 1), nil
}

func bookedPayload(a *Appointment) map[string]interface{} {
	return map[string]interface{}{
		"appointment_id":   a.ID,
		"patient_id":       a.PatientID,
		"clinician_id":     a.ClinicianID,
		"appointment_type": a.Type,
		"scheduled_start":  a.ScheduledStart,
		"scheduled_end":    a.ScheduledEnd,
		"is_urgent":        a.IsUrgent,
	}
}

func appendEvent(ctx context.Context, tx Repository, a *Appointment, eventType string, payload interface{}) error {
	evt, err := events.New(a.PracticeID, "appointment", a.ID, eventType, payload)
	if err != nil {
		return err
	}
	return tx.AppendEvent(ctx, evt)
}
