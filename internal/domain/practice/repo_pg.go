package practice

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gpcare/practice/internal/platform/db"
)

type repoPG struct{ q db.Querier }

func NewRepoPG(q db.Querier) Repository { return &repoPG{q: q} }

const practiceCols = `id, name, ods_code, address, phone, email, timezone, created_at, updated_at`

func scanPractice(row pgx.Row) (*Practice, error) {
	var p Practice
	if err := row.Scan(&p.ID, &p.Name, &p.ODSCode, &p.Address, &p.Phone, &p.Email,
		&p.Timezone, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Practice) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO practice (id, name, ods_code, address, phone, email, timezone)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.ODSCode, p.Address, p.Phone, p.Email, p.Timezone,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return translatePractice(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Practice, error) {
	p, err := scanPractice(r.q.QueryRow(ctx, `SELECT `+practiceCols+` FROM practice WHERE id = $1`, id))
	if err != nil {
		return nil, translatePractice(err)
	}
	return p, nil
}

func (r *repoPG) Update(ctx context.Context, p *Practice) error {
	err := r.q.QueryRow(ctx, `
		UPDATE practice SET name=$2, ods_code=$3, address=$4, phone=$5, email=$6, timezone=$7, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.ODSCode, p.Address, p.Phone, p.Email, p.Timezone,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return translatePractice(err)
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Practice, int, error) {
	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM practice`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.q.Query(ctx, `SELECT `+practiceCols+` FROM practice ORDER BY name, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Practice
	for rows.Next() {
		p, err := scanPractice(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

const roomCols = `id, practice_id, name, active, created_at, updated_at`

func scanRoom(row pgx.Row) (*Room, error) {
	var rm Room
	if err := row.Scan(&rm.ID, &rm.PracticeID, &rm.Name, &rm.Active, &rm.CreatedAt, &rm.UpdatedAt); err != nil {
		return nil, err
	}
	return &rm, nil
}

func (r *repoPG) CreateRoom(ctx context.Context, rm *Room) error {
	rm.ID = uuid.New()
	err := r.q.QueryRow(ctx, `
		INSERT INTO room (id, practice_id, name, active) VALUES ($1,$2,$3,$4)
		RETURNING created_at, updated_at`,
		rm.ID, rm.PracticeID, rm.Name, rm.Active,
	).Scan(&rm.CreatedAt, &rm.UpdatedAt)
	return translateRoom(err)
}

func (r *repoPG) GetRoom(ctx context.Context, practiceID, id uuid.UUID) (*Room, error) {
	rm, err := scanRoom(r.q.QueryRow(ctx,
		`SELECT `+roomCols+` FROM room WHERE practice_id = $1 AND id = $2`, practiceID, id))
	if err != nil {
		return nil, translateRoom(err)
	}
	return rm, nil
}

func (r *repoPG) UpdateRoom(ctx context.Context, rm *Room) error {
	err := r.q.QueryRow(ctx, `
		UPDATE room SET name=$3, active=$4, updated_at=NOW()
		WHERE practice_id = $1 AND id = $2
		RETURNING created_at, updated_at`,
		rm.PracticeID, rm.ID, rm.Name, rm.Active,
	).Scan(&rm.CreatedAt, &rm.UpdatedAt)
	return translateRoom(err)
}

func (r *repoPG) DeleteRoom(ctx context.Context, practiceID, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM room WHERE practice_id = $1 AND id = $2`, practiceID, id)
	if err != nil {
		return translateRoom(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (r *repoPG) ListRooms(ctx context.Context, practiceID uuid.UUID, activeOnly bool) ([]*Room, error) {
	query := `SELECT ` + roomCols + ` FROM room WHERE practice_id = $1`
	if activeOnly {
		query += ` AND active`
	}
	rows, err := r.q.Query(ctx, query+` ORDER BY name`, practiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Room
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rm)
	}
	return items, rows.Err()
}

func translatePractice(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsNotFound(err):
		return ErrNotFound
	case db.IsUniqueViolation(err):
		return ErrDuplicateODSCode
	}
	return err
}

func translateRoom(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsNotFound(err):
		return ErrRoomNotFound
	case db.IsUniqueViolation(err):
		return ErrDuplicateRoom
	case db.IsForeignKeyViolation(err):
		return ErrRoomInUse
	}
	return err
}
