package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gpcare/practice/internal/platform/apperr"
	"github.com/gpcare/practice/internal/platform/events"
	"github.com/gpcare/practice/internal/platform/tenant"
)

type fixture struct {
	svc       *Service
	repo      *memRepo
	scope     tenant.Scope
	patient   uuid.UUID
	clinician uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemRepo()
	practiceID := uuid.New()
	f := &fixture{
		svc:       NewService(repo, time.UTC),
		repo:      repo,
		scope:     tenant.For(practiceID, "user-1", "RECEPTIONIST"),
		patient:   repo.addPatient(practiceID, "Ada Lovelace"),
		clinician: repo.addClinician(practiceID, "Dr Grace Hopper"),
	}
	return f
}

func (f *fixture) book(t *testing.T, start time.Time, minutes int) (*Appointment, error) {
	t.Helper()
	return f.svc.Create(context.Background(), f.scope, CreateRequest{
		PatientID:      f.patient,
		ClinicianID:    f.clinician,
		Type:           TypeGPConsultation,
		ScheduledStart: start,
		Duration:       minutes,
	})
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v
}

func TestService_Create(t *testing.T) {
	f := newFixture(t)
	room := f.repo.addRoom(f.scope.PracticeID, "Room 1")

	a, err := f.svc.Create(context.Background(), f.scope, CreateRequest{
		PatientID:      f.patient,
		ClinicianID:    f.clinician,
		RoomID:         &room,
		Type:           TypeHomeVisit,
		ScheduledStart: mustTime(t, "2026-03-01T09:00:00Z"),
		IsUrgent:       true,
		Reason:         "chest pain",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != StatusBooked {
		t.Errorf("expected BOOKED, got %s", a.Status)
	}
	if a.Duration != 30 {
		t.Errorf("expected default duration 30, got %d", a.Duration)
	}
	if !a.ScheduledEnd.Equal(mustTime(t, "2026-03-01T09:30:00Z")) {
		t.Errorf("unexpected end %s", a.ScheduledEnd)
	}
	if a.Patient == nil || a.Patient.Name != "Ada Lovelace" {
		t.Errorf("expected patient summary, got %+v", a.Patient)
	}
	if a.Clinician == nil || a.Clinician.Name != "Dr Grace Hopper" {
		t.Errorf("expected clinician summary, got %+v", a.Clinician)
	}
	if a.Room == nil || a.Room.Name != "Room 1" {
		t.Errorf("expected room summary, got %+v", a.Room)
	}
	if a.CreatedBy != "user-1" {
		t.Errorf("expected created_by user-1, got %q", a.CreatedBy)
	}
	if got := f.repo.eventTypes(); len(got) != 1 || got[0] != events.AppointmentBooked {
		t.Errorf("expected one booked event, got %v", got)
	}
}

func TestService_Create_Validation(t *testing.T) {
	f := newFixture(t)
	start := mustTime(t, "2026-03-01T09:00:00Z")

	tests := []struct {
		name string
		req  CreateRequest
	}{
		{"missing patient", CreateRequest{ClinicianID: f.clinician, Type: TypeGPConsultation, ScheduledStart: start}},
		{"missing start", CreateRequest{PatientID: f.patient, ClinicianID: f.clinician, Type: TypeGPConsultation}},
		{"unknown type", CreateRequest{PatientID: f.patient, ClinicianID: f.clinician, Type: "SURGERY", ScheduledStart: start}},
		{"duration too short", CreateRequest{PatientID: f.patient, ClinicianID: f.clinician, Type: TypeVideo, ScheduledStart: start, Duration: 2}},
		{"duration too long", CreateRequest{PatientID: f.patient, ClinicianID: f.clinician, Type: TypeVideo, ScheduledStart: start, Duration: 300}},
		{"patient in other practice", CreateRequest{PatientID: f.repo.addPatient(uuid.New(), "Other"), ClinicianID: f.clinician, Type: TypeVideo, ScheduledStart: start}},
		{"unknown clinician", CreateRequest{PatientID: f.patient, ClinicianID: uuid.New(), Type: TypeVideo, ScheduledStart: start}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), f.scope, tt.req)
			if !errors.Is(err, apperr.ErrInvalid) {
				t.Fatalf("expected invalid input error, got %v", err)
			}
		})
	}
	if len(f.repo.appts) != 0 {
		t.Errorf("expected nothing persisted, got %d", len(f.repo.appts))
	}
}

func TestService_Create_Conflict(t *testing.T) {
	f := newFixture(t)
	if _, err := f.book(t, mustTime(t, "2026-03-01T09:00:00Z"), 15); err != nil {
		t.Fatalf("first booking: %v", err)
	}

	_, err := f.book(t, mustTime(t, "2026-03-01T09:10:00Z"), 15)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err.Error() != "clinician already has an appointment in this time range" {
		t.Errorf("unexpected message %q", err.Error())
	}

	if _, err := f.book(t, mustTime(t, "2026-03-01T09:15:00Z"), 15); err != nil {
		t.Errorf("back-to-back booking should be allowed: %v", err)
	}
}

func TestService_Create_OtherClinicianNotBlocked(t *testing.T) {
	f := newFixture(t)
	other := f.repo.addClinician(f.scope.PracticeID, "Nurse Nightingale")
	if _, err := f.book(t, mustTime(t, "2026-03-01T09:00:00Z"), 15); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	_, err := f.svc.Create(context.Background(), f.scope, CreateRequest{
		PatientID: f.patient, ClinicianID: other, Type: TypeNurseAppointment,
		ScheduledStart: mustTime(t, "2026-03-01T09:00:00Z"),
	})
	if err != nil {
		t.Fatalf("expected no conflict for another clinician, got %v", err)
	}
}

func TestService_Create_CancelledDoesNotBlock(t *testing.T) {
	f := newFixture(t)
	first, err := f.book(t, mustTime(t, "2026-03-01T09:00:00Z"), 15)
	if err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if _, err := f.svc.Cancel(context.Background(), f.scope, first.ID, "patient called"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := f.book(t, mustTime(t, "2026-03-01T09:00:00Z"), 15); err != nil {
		t.Fatalf("expected cancelled slot to be bookable, got %v", err)
	}
}

func TestService_TenantIsolation(t *testing.T) {
	f := newFixture(t)
	a, err := f.book(t, mustTime(t, "2026-03-01T09:00:00Z"), 15)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	other := tenant.For(uuid.New(), "intruder", "ADMIN")

	if _, err := f.svc.Get(context.Background(), other, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get: expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.CheckIn(context.Background(), other, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("CheckIn: expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.Cancel(context.Background(), other, a.ID, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("Cancel: expected ErrNotFound, got %v", err)
	}
	items, total, err := f.svc.Search(context.Background(), other, SearchFilter{}, 20, 0)
	if err != nil || total != 0 || len(items) != 0 {
		t.Errorf("Search: expected nothing for other practice, got %d (%v)", total, err)
	}

	got, err := f.svc.Get(context.Background(), f.scope, a.ID)
	if err != nil || got.Status != StatusBooked {
		t.Errorf("owner lookup failed: %v", err)
	}
}

func TestService_CancelTwice(t *testing.T) {
	f := newFixture(t)
	a, _ := f.book(t, mustTime(t, "2026-03-01T09:00:00Z"), 15)

	first, err := f.svc.Cancel(context.Background(), f.scope, a.ID, "unwell")
	if err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	second, err := f.svc.Cancel(context.Background(), f.scope, a.ID, "")
	if err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if first.Status != StatusCancelled || second.Status != StatusCancelled {
		t.Errorf("expected CANCELLED both times, got %s and %s", first.Status, second.Status)
	}
	if second.CancellationReason == nil || *second.CancellationReason != "unwell" {
		t.Errorf("expected original reason kept, got %v", second.CancellationReason)
	}
	changes := 0
	for _, typ := range f.repo.eventTypes() {
		if typ == events.AppointmentStatusChanged {
			changes++
		}
	}
	if changes != 1 {
		t.Errorf("expected a single status_changed event, got %d", changes)
	}
}

func TestService_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.book(t, mustTime(t, "2026-03-01T09:00:00Z"), 15)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if a.Status != StatusBooked {
		t.Fatalf("expected BOOKED, got %s", a.Status)
	}

	if _, err := f.book(t, mustTime(t, "2026-03-01T09:10:00Z"), 15); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	a, err = f.svc.CheckIn(ctx, f.scope, a.ID)
	if err != nil {
		t.Fatalf("check in: %v", err)
	}
	if a.Status != StatusArrived || a.ArrivedAt == nil {
		t.Fatalf("expected ARRIVED with arrived_at, got %s", a.Status)
	}

	a, err = f.svc.Complete(ctx, f.scope, a.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if a.Status != StatusCompleted || a.CompletedAt == nil {
		t.Fatalf("expected COMPLETED with completed_at, got %s", a.Status)
	}
}

func TestService_FullConsultationFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, _ := f.book(t, mustTime(t, "2026-03-01T10:00:00Z"), 10)

	steps := []struct {
		op   func(context.Context, tenant.Scope, uuid.UUID) (*Appointment, error)
		want Status
	}{
		{f.svc.Confirm, StatusConfirmed},
		{f.svc.CheckIn, StatusArrived},
		{f.svc.Start, StatusInProgress},
		{f.svc.Complete, StatusCompleted},
	}
	for _, s := range steps {
		got, err := s.op(ctx, f.scope, a.ID)
		if err != nil {
			t.Fatalf("transition to %s: %v", s.want, err)
		}
		if got.Status != s.want {
			t.Fatalf("expected %s, got %s", s.want, got.Status)
		}
	}
	stored, _ := f.repo.GetByID(ctx, f.scope.PracticeID, a.ID)
	if stored.StartedAt == nil || stored.CompletedAt == nil {
		t.Error("expected started_at and completed_at to be persisted")
	}
}

func TestService_InvalidTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, _ := f.book(t, mustTime(t, "2026-03-01T09:00:00Z"), 15)
	if _, err := f.svc.MarkDNA(ctx, f.scope, a.ID); err != nil {
		t.Fatalf("mark dna: %v", err)
	}

	_, err := f.svc.CheckIn(ctx, f.scope, a.ID)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if !errors.Is(err, apperr.ErrConflict) {
		t.Error("expected transition errors to map to conflict")
	}
	if err.Error() != "cannot change appointment status from DNA to ARRIVED" {
		t.Errorf("unexpected message %q", err.Error())
	}

	b, _ := f.book(t, mustTime(t, "2026-03-01T11:00:00Z"), 15)
	if _, err := f.svc.Start(ctx, f.scope, b.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected BOOKED -> IN_PROGRESS to be rejected, got %v", err)
	}
}

func TestService_UpdateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, _ := f.book(t, mustTime(t, "2026-03-01T09:00:00Z"), 15)

	got, err := f.svc.UpdateStatus(ctx, f.scope, a.ID, "confirmed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusConfirmed {
		t.Errorf("expected CONFIRMED, got %s", got.Status)
	}
	if _, err := f.svc.UpdateStatus(ctx, f.scope, a.ID, "LOST"); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected invalid status error, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, f.scope, uuid.New(), StatusArrived); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_Reschedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, _ := f.book(t, mustTime(t, "2026-03-01T09:00:00Z"), 15)
	b, _ := f.book(t, mustTime(t, "2026-03-01T10:00:00Z"), 15)

	moved, err := f.svc.Reschedule(ctx, f.scope, a.ID, RescheduleRequest{ScheduledStart: mustTime(t, "2026-03-01T09:05:00Z")})
	if err != nil {
		t.Fatalf("overlapping its own slot should be allowed: %v", err)
	}
	if moved.Duration != 15 || !moved.ScheduledEnd.Equal(mustTime(t, "2026-03-01T09:20:00Z")) {
		t.Errorf("unexpected times %s-%s (%d)", moved.ScheduledStart, moved.ScheduledEnd, moved.Duration)
	}

	_, err = f.svc.Reschedule(ctx, f.scope, a.ID, RescheduleRequest{ScheduledStart: mustTime(t, "2026-03-01T09:50:00Z"), Duration: 20})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected conflict with %s, got %v", b.ID, err)
	}

	if _, err := f.svc.CheckIn(ctx, f.scope, b.ID); err != nil {
		t.Fatalf("check in: %v", err)
	}
	_, err = f.svc.Reschedule(ctx, f.scope, b.ID, RescheduleRequest{ScheduledStart: mustTime(t, "2026-03-01T14:00:00Z")})
	if !errors.Is(err, ErrNotReschedulable) {
		t.Errorf("expected ErrNotReschedulable, got %v", err)
	}
}

func TestService_DashboardStats(t *testing.T) {
	f := newFixture(t)
	london, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	f.repo.timezones[f.scope.PracticeID] = "Europe/London"
	f.svc.now = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, london) }

	today := time.Date(2026, 3, 15, 9, 0, 0, 0, london)
	for i, st := range []Status{StatusBooked, StatusBooked, StatusArrived, StatusCompleted, StatusCancelled} {
		f.repo.seed(f.scope.PracticeID, f.clinician, today.Add(time.Duration(i)*20*time.Minute), 15, st)
	}
	f.repo.seed(f.scope.PracticeID, f.clinician, time.Date(2026, 3, 2, 9, 0, 0, 0, london), 15, StatusDNA)
	f.repo.seed(f.scope.PracticeID, f.clinician, time.Date(2026, 3, 3, 9, 0, 0, 0, london), 15, StatusDNA)
	f.repo.seed(f.scope.PracticeID, f.clinician, time.Date(2026, 3, 4, 9, 0, 0, 0, london), 15, StatusCancelled)
	f.repo.seed(f.scope.PracticeID, f.clinician, time.Date(2026, 2, 27, 9, 0, 0, 0, london), 15, StatusDNA)
	f.repo.seed(f.scope.PracticeID, f.clinician, time.Date(2026, 3, 16, 9, 0, 0, 0, london), 15, StatusBooked)
	f.repo.seed(uuid.New(), uuid.New(), today, 15, StatusBooked)

	stats, err := f.svc.DashboardStats(context.Background(), f.scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := DashboardStats{TodayTotal: 5, TodayPending: 2, TodayCompleted: 3, MonthMissed: 2, MonthCancelled: 2}
	if *stats != want {
		t.Errorf("expected %+v, got %+v", want, *stats)
	}
}

func TestService_DashboardStats_PracticeMidnight(t *testing.T) {
	f := newFixture(t)
	london, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	f.repo.timezones[f.scope.PracticeID] = "Europe/London"
	// 00:30 BST on 1 June is still 31 May in UTC.
	f.svc.now = func() time.Time { return time.Date(2026, 6, 1, 0, 30, 0, 0, london) }
	f.repo.seed(f.scope.PracticeID, f.clinician, time.Date(2026, 6, 1, 8, 0, 0, 0, london), 10, StatusDNA)
	f.repo.seed(f.scope.PracticeID, f.clinician, time.Date(2026, 5, 31, 23, 0, 0, 0, london), 10, StatusDNA)

	stats, err := f.svc.DashboardStats(context.Background(), f.scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TodayTotal != 1 || stats.MonthMissed != 1 {
		t.Errorf("expected only the 1 June appointment, got %+v", *stats)
	}
}

func TestService_Availability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, _ := f.book(t, mustTime(t, "2026-03-01T09:00:00Z"), 15)
	b, _ := f.book(t, mustTime(t, "2026-03-01T11:00:00Z"), 20)
	f.book(t, mustTime(t, "2026-03-02T09:00:00Z"), 15)
	f.svc.Cancel(ctx, f.scope, b.ID, "")

	av, err := f.svc.Availability(ctx, f.scope, f.clinician, "2026-03-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(av.Busy) != 1 || av.Busy[0].AppointmentID != a.ID {
		t.Errorf("expected only the live 09:00 booking, got %+v", av.Busy)
	}
	if av.Timezone != "UTC" {
		t.Errorf("expected service default timezone, got %s", av.Timezone)
	}

	if _, err := f.svc.Availability(ctx, f.scope, f.clinician, "01/03/2026"); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected invalid date error, got %v", err)
	}
	if _, err := f.svc.Availability(ctx, f.scope, uuid.New(), "2026-03-01"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected unknown clinician to be not found, got %v", err)
	}
}

func TestService_Search(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, _ := f.book(t, mustTime(t, "2026-03-01T09:00:00Z"), 15)
	f.book(t, mustTime(t, "2026-03-01T10:00:00Z"), 15)
	f.book(t, mustTime(t, "2026-03-02T09:00:00Z"), 15)
	f.svc.Confirm(ctx, f.scope, a.ID)

	items, total, err := f.svc.Search(ctx, f.scope, SearchFilter{Date: "2026-03-01"}, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Errorf("expected 2 on 2026-03-01, got %d", total)
	}
	if !items[0].ScheduledStart.Before(items[1].ScheduledStart) {
		t.Error("expected results ordered by start")
	}

	_, total, _ = f.svc.Search(ctx, f.scope, SearchFilter{Statuses: []Status{StatusConfirmed}}, 20, 0)
	if total != 1 {
		t.Errorf("expected 1 confirmed, got %d", total)
	}

	if _, _, err := f.svc.Search(ctx, f.scope, SearchFilter{Statuses: []Status{"LOST"}}, 20, 0); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected invalid status error, got %v", err)
	}
	if _, _, err := f.svc.Search(ctx, f.scope, SearchFilter{Date: "yesterday"}, 20, 0); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected invalid date error, got %v", err)
	}
}
