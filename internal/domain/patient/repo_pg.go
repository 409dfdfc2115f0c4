package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gpcare/practice/internal/platform/db"
)

type repoPG struct{ q db.Querier }

func NewRepoPG(q db.Querier) Repository { return &repoPG{q: q} }

const patientCols = `id, practice_id, nhs_number, first_name, last_name,
	to_char(date_of_birth, 'YYYY-MM-DD'), gender, phone, email, address, active, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.PracticeID, &p.NHSNumber, &p.FirstName, &p.LastName,
		&p.DateOfBirth, &p.Gender, &p.Phone, &p.Email, &p.Address, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := r.q.QueryRow(ctx, `
		INSERT INTO patient (id, practice_id, nhs_number, first_name, last_name, date_of_birth,
			gender, phone, email, address, active)
		VALUES ($1,$2,$3,$4,$5,$6::date,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		p.ID, p.PracticeID, p.NHSNumber, p.FirstName, p.LastName, p.DateOfBirth,
		p.Gender, p.Phone, p.Email, p.Address, p.Active,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return translate(err)
}

func (r *repoPG) GetByID(ctx context.Context, practiceID, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.q.QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE practice_id = $1 AND id = $2`, practiceID, id))
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	err := r.q.QueryRow(ctx, `
		UPDATE patient SET nhs_number=$3, first_name=$4, last_name=$5, date_of_birth=$6::date,
			gender=$7, phone=$8, email=$9, address=$10, active=$11, updated_at=NOW()
		WHERE practice_id = $1 AND id = $2
		RETURNING created_at, updated_at`,
		p.PracticeID, p.ID, p.NHSNumber, p.FirstName, p.LastName, p.DateOfBirth,
		p.Gender, p.Phone, p.Email, p.Address, p.Active,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return translate(err)
}

func (r *repoPG) Delete(ctx context.Context, practiceID, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM patient WHERE practice_id = $1 AND id = $2`, practiceID, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Search(ctx context.Context, practiceID uuid.UUID, f Filter, limit, offset int) ([]*Patient, int, error) {
	where := ` WHERE practice_id = $1`
	args := []interface{}{practiceID}
	idx := 2

	if f.Query != "" {
		where += fmt.Sprintf(` AND (first_name ILIKE $%d OR last_name ILIKE $%d OR nhs_number = $%d)`, idx, idx, idx+1)
		args = append(args, "%"+f.Query+"%", NormalizeNHSNumber(f.Query))
		idx += 2
	}
	if f.Active != nil {
		where += fmt.Sprintf(` AND active = $%d`, idx)
		args = append(args, *f.Active)
		idx++
	}

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM patient`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + patientCols + ` FROM patient` + where +
		fmt.Sprintf(` ORDER BY last_name, first_name, id LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsNotFound(err):
		return ErrNotFound
	case db.IsUniqueViolation(err):
		return ErrDuplicateNHSNumber
	case db.IsForeignKeyViolation(err):
		return ErrHasAppointments
	}
	return err
}
