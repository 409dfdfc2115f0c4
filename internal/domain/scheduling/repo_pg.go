package scheduling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gpcare/practice/internal/platform/apperr"
	"github.com/gpcare/practice/internal/platform/db"
	"github.com/gpcare/practice/internal/platform/events"
)

type repoPG struct {
	pool   *pgxpool.Pool // nil once bound to a transaction
	q      db.Querier
	outbox *events.OutboxRepo
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool, q: pool, outbox: events.NewOutboxRepo()}
}

func (r *repoPG) Atomic(ctx context.Context, fn func(tx Repository) error) error {
	if r.pool == nil {
		return fn(r)
	}
	return db.Serializable(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&repoPG{q: tx, outbox: r.outbox})
	})
}

const apptCols = `a.id, a.practice_id, a.patient_id, a.clinician_id, a.room_id, a.appointment_type,
	a.scheduled_start, a.scheduled_end, a.duration, a.status, a.is_urgent,
	COALESCE(a.reason, ''), COALESCE(a.notes, ''), a.cancellation_reason,
	a.arrived_at, a.started_at, a.completed_at, COALESCE(a.created_by, ''), a.created_at, a.updated_at,
	p.first_name || ' ' || p.last_name, p.nhs_number,
	s.first_name || ' ' || s.last_name, s.role,
	r.name`

const apptFrom = ` FROM appointment a
	JOIN patient p ON p.id = a.patient_id
	JOIN staff s ON s.id = a.clinician_id
	LEFT JOIN room r ON r.id = a.room_id`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var patient PatientSummary
	var clinician ClinicianSummary
	var roomName *string
	err := row.Scan(&a.ID, &a.PracticeID, &a.PatientID, &a.ClinicianID, &a.RoomID, &a.Type,
		&a.ScheduledStart, &a.ScheduledEnd, &a.Duration, &a.Status, &a.IsUrgent,
		&a.Reason, &a.Notes, &a.CancellationReason,
		&a.ArrivedAt, &a.StartedAt, &a.CompletedAt, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt,
		&patient.Name, &patient.NHSNumber,
		&clinician.Name, &clinician.Role,
		&roomName)
	if err != nil {
		return nil, err
	}
	patient.ID = a.PatientID
	clinician.ID = a.ClinicianID
	a.Patient = &patient
	a.Clinician = &clinician
	if a.RoomID != nil && roomName != nil {
		a.Room = &RoomSummary{ID: *a.RoomID, Name: *roomName}
	}
	return &a, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	err := r.q.QueryRow(ctx, `
		INSERT INTO appointment (id, practice_id, patient_id, clinician_id, room_id, appointment_type,
			scheduled_start, scheduled_end, duration, status, is_urgent, reason, notes, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at`,
		a.ID, a.PracticeID, a.PatientID, a.ClinicianID, a.RoomID, a.Type,
		a.ScheduledStart, a.ScheduledEnd, a.Duration, a.Status, a.IsUrgent,
		nullable(a.Reason), nullable(a.Notes), nullable(a.CreatedBy),
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return translate(err)
}

func (r *repoPG) GetByID(ctx context.Context, practiceID, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(r.q.QueryRow(ctx,
		`SELECT `+apptCols+apptFrom+` WHERE a.practice_id = $1 AND a.id = $2`, practiceID, id))
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *repoPG) UpdateStatus(ctx context.Context, a *Appointment) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE appointment SET status = $3, cancellation_reason = $4,
			arrived_at = $5, started_at = $6, completed_at = $7, updated_at = NOW()
		WHERE practice_id = $1 AND id = $2`,
		a.PracticeID, a.ID, a.Status, a.CancellationReason, a.ArrivedAt, a.StartedAt, a.CompletedAt)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) UpdateTimes(ctx context.Context, a *Appointment) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE appointment SET scheduled_start = $3, scheduled_end = $4, duration = $5, updated_at = NOW()
		WHERE practice_id = $1 AND id = $2`,
		a.PracticeID, a.ID, a.ScheduledStart, a.ScheduledEnd, a.Duration)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Search(ctx context.Context, practiceID uuid.UUID, f SearchFilter, limit, offset int) ([]*Appointment, int, error) {
	where := ` WHERE a.practice_id = $1`
	args := []interface{}{practiceID}
	idx := 2

	if f.ClinicianID != nil {
		where += fmt.Sprintf(` AND a.clinician_id = $%d`, idx)
		args = append(args, *f.ClinicianID)
		idx++
	}
	if f.PatientID != nil {
		where += fmt.Sprintf(` AND a.patient_id = $%d`, idx)
		args = append(args, *f.PatientID)
		idx++
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		where += fmt.Sprintf(` AND a.status = ANY($%d)`, idx)
		args = append(args, statuses)
		idx++
	}
	if f.From != nil {
		where += fmt.Sprintf(` AND a.scheduled_start >= $%d`, idx)
		args = append(args, *f.From)
		idx++
	}
	if f.To != nil {
		where += fmt.Sprintf(` AND a.scheduled_start < $%d`, idx)
		args = append(args, *f.To)
		idx++
	}

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM appointment a`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + apptCols + apptFrom + where +
		fmt.Sprintf(` ORDER BY a.scheduled_start, a.id LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *repoPG) HasConflict(ctx context.Context, practiceID, clinicianID uuid.UUID, start, end time.Time, exclude *uuid.UUID) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointment
			WHERE practice_id = $1 AND clinician_id = $2
			  AND status <> 'CANCELLED'
			  AND scheduled_start < $4 AND $3 < scheduled_end
			  AND ($5::uuid IS NULL OR id <> $5)
		)`, practiceID, clinicianID, start, end, exclude).Scan(&exists)
	return exists, err
}

func (r *repoPG) ListBusy(ctx context.Context, practiceID, clinicianID uuid.UUID, from, to time.Time) ([]BusySlot, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, scheduled_start, scheduled_end, status FROM appointment
		WHERE practice_id = $1 AND clinician_id = $2
		  AND status <> 'CANCELLED'
		  AND scheduled_start < $4 AND $3 < scheduled_end
		ORDER BY scheduled_start`, practiceID, clinicianID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BusySlot
	for rows.Next() {
		var b BusySlot
		if err := rows.Scan(&b.AppointmentID, &b.Start, &b.End, &b.Status); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *repoPG) CountByStatus(ctx context.Context, practiceID uuid.UUID, from, to time.Time, statuses []Status) (int, error) {
	query := `SELECT COUNT(*) FROM appointment WHERE practice_id = $1 AND scheduled_start >= $2 AND scheduled_start < $3`
	args := []interface{}{practiceID, from, to}
	if statuses != nil {
		names := make([]string, len(statuses))
		for i, s := range statuses {
			names[i] = string(s)
		}
		query += ` AND status = ANY($4)`
		args = append(args, names)
	}
	var n int
	err := r.q.QueryRow(ctx, query, args...).Scan(&n)
	return n, err
}

func (r *repoPG) AppendEvent(ctx context.Context, evt events.Event) error {
	return r.outbox.Insert(ctx, r.q, evt)
}

func (r *repoPG) PatientSummary(ctx context.Context, practiceID, id uuid.UUID) (*PatientSummary, error) {
	var p PatientSummary
	err := r.q.QueryRow(ctx, `
		SELECT id, first_name || ' ' || last_name, nhs_number FROM patient
		WHERE practice_id = $1 AND id = $2 AND active`, practiceID, id,
	).Scan(&p.ID, &p.Name, &p.NHSNumber)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, errPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) ClinicianSummary(ctx context.Context, practiceID, id uuid.UUID) (*ClinicianSummary, error) {
	var c ClinicianSummary
	err := r.q.QueryRow(ctx, `
		SELECT id, first_name || ' ' || last_name, role FROM staff
		WHERE practice_id = $1 AND id = $2 AND active AND role IN ('GP', 'NURSE')`, practiceID, id,
	).Scan(&c.ID, &c.Name, &c.Role)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, errClinicianNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *repoPG) RoomSummary(ctx context.Context, practiceID, id uuid.UUID) (*RoomSummary, error) {
	var rm RoomSummary
	err := r.q.QueryRow(ctx, `SELECT id, name FROM room WHERE practice_id = $1 AND id = $2 AND active`,
		practiceID, id).Scan(&rm.ID, &rm.Name)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, errRoomNotFound
		}
		return nil, err
	}
	return &rm, nil
}

func (r *repoPG) PracticeTimezone(ctx context.Context, practiceID uuid.UUID) (string, error) {
	var tz string
	err := r.q.QueryRow(ctx, `SELECT timezone FROM practice WHERE id = $1`, practiceID).Scan(&tz)
	if db.IsNotFound(err) {
		return "", apperr.New(apperr.ErrNotFound, "practice not found")
	}
	return strings.TrimSpace(tz), err
}

// translate maps constraint violations raised by appointment writes.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsExclusionViolation(err):
		return ErrConflict
	case db.IsForeignKeyViolation(err):
		return apperr.Invalid("appointment references a record outside this practice")
	}
	return err
}
