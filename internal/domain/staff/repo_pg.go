package staff

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gpcare/practice/internal/platform/db"
)

type repoPG struct{ q db.Querier }

func NewRepoPG(q db.Querier) Repository { return &repoPG{q: q} }

const staffCols = `id, practice_id, email, first_name, last_name, role, active, created_at, updated_at`

func scanMember(row pgx.Row) (*Member, error) {
	var m Member
	if err := row.Scan(&m.ID, &m.PracticeID, &m.Email, &m.FirstName, &m.LastName, &m.Role,
		&m.Active, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repoPG) Create(ctx context.Context, m *Member) error {
	m.ID = uuid.New()
	err := r.q.QueryRow(ctx, `
		INSERT INTO staff (id, practice_id, email, first_name, last_name, role, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		m.ID, m.PracticeID, m.Email, m.FirstName, m.LastName, m.Role, m.Active,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	return translate(err)
}

func (r *repoPG) GetByID(ctx context.Context, practiceID, id uuid.UUID) (*Member, error) {
	m, err := scanMember(r.q.QueryRow(ctx,
		`SELECT `+staffCols+` FROM staff WHERE practice_id = $1 AND id = $2`, practiceID, id))
	if err != nil {
		return nil, translate(err)
	}
	return m, nil
}

func (r *repoPG) Update(ctx context.Context, m *Member) error {
	err := r.q.QueryRow(ctx, `
		UPDATE staff SET email=$3, first_name=$4, last_name=$5, role=$6, active=$7, updated_at=NOW()
		WHERE practice_id = $1 AND id = $2
		RETURNING created_at, updated_at`,
		m.PracticeID, m.ID, m.Email, m.FirstName, m.LastName, m.Role, m.Active,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	return translate(err)
}

func (r *repoPG) Delete(ctx context.Context, practiceID, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM staff WHERE practice_id = $1 AND id = $2`, practiceID, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Search(ctx context.Context, practiceID uuid.UUID, f Filter, limit, offset int) ([]*Member, int, error) {
	where := ` WHERE practice_id = $1`
	args := []interface{}{practiceID}
	idx := 2

	if len(f.Roles) > 0 {
		where += fmt.Sprintf(` AND role = ANY($%d)`, idx)
		args = append(args, f.Roles)
		idx++
	}
	if f.Active != nil {
		where += fmt.Sprintf(` AND active = $%d`, idx)
		args = append(args, *f.Active)
		idx++
	}
	if f.Query != "" {
		where += fmt.Sprintf(` AND (first_name ILIKE $%d OR last_name ILIKE $%d OR email ILIKE $%d)`, idx, idx, idx)
		args = append(args, "%"+f.Query+"%")
		idx++
	}

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM staff`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + staffCols + ` FROM staff` + where +
		fmt.Sprintf(` ORDER BY last_name, first_name, id LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
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
		return ErrDuplicateEmail
	case db.IsForeignKeyViolation(err):
		return ErrHasAppointments
	}
	return err
}
