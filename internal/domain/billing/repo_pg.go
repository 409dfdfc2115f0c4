package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

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
	return db.InTx(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(&repoPG{q: tx, outbox: r.outbox})
	})
}

// NextNumber bumps the practice's invoice counter. The row lock taken by the
// upsert serialises concurrent callers until their transaction ends.
func (r *repoPG) NextNumber(ctx context.Context, practiceID uuid.UUID) (int64, error) {
	var n int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO invoice_sequence (practice_id, last_value) VALUES ($1, 1)
		ON CONFLICT (practice_id) DO UPDATE SET last_value = invoice_sequence.last_value + 1
		RETURNING last_value`, practiceID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("next invoice number: %w", err)
	}
	return n, nil
}

const invoiceCols = `id, practice_id, patient_id, number, status, issued_at, due_at,
	total_pence, notes, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	if err := row.Scan(&inv.ID, &inv.PracticeID, &inv.PatientID, &inv.Number, &inv.Status,
		&inv.IssuedAt, &inv.DueAt, &inv.TotalPence, &inv.Notes, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *repoPG) Create(ctx context.Context, inv *Invoice) error {
	inv.ID = uuid.New()
	err := r.q.QueryRow(ctx, `
		INSERT INTO invoice (id, practice_id, patient_id, number, status, issued_at, due_at, total_pence, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		inv.ID, inv.PracticeID, inv.PatientID, inv.Number, inv.Status, inv.IssuedAt, inv.DueAt,
		inv.TotalPence, inv.Notes,
	).Scan(&inv.CreatedAt, &inv.UpdatedAt)
	return translate(err)
}

func (r *repoPG) GetByID(ctx context.Context, practiceID, id uuid.UUID) (*Invoice, error) {
	return r.get(ctx, `SELECT `+invoiceCols+` FROM invoice WHERE practice_id = $1 AND id = $2`, practiceID, id)
}

func (r *repoPG) GetForUpdate(ctx context.Context, practiceID, id uuid.UUID) (*Invoice, error) {
	return r.get(ctx, `SELECT `+invoiceCols+` FROM invoice WHERE practice_id = $1 AND id = $2 FOR UPDATE`, practiceID, id)
}

func (r *repoPG) get(ctx context.Context, query string, practiceID, id uuid.UUID) (*Invoice, error) {
	inv, err := scanInvoice(r.q.QueryRow(ctx, query, practiceID, id))
	if err != nil {
		return nil, translate(err)
	}
	items, err := r.items(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.Items = items
	return inv, nil
}

func (r *repoPG) items(ctx context.Context, invoiceID uuid.UUID) ([]Item, error) {
	rows, err := r.q.Query(ctx, `
		SELECT description, quantity, unit_pence FROM invoice_item
		WHERE invoice_id = $1 ORDER BY position`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.Description, &it.Quantity, &it.UnitPence); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *repoPG) UpdateDraft(ctx context.Context, inv *Invoice) error {
	err := r.q.QueryRow(ctx, `
		UPDATE invoice SET due_at=$3, total_pence=$4, notes=$5, updated_at=NOW()
		WHERE practice_id = $1 AND id = $2 AND status = 'DRAFT'
		RETURNING updated_at`,
		inv.PracticeID, inv.ID, inv.DueAt, inv.TotalPence, inv.Notes,
	).Scan(&inv.UpdatedAt)
	if db.IsNotFound(err) {
		return ErrNotEditable
	}
	return translate(err)
}

func (r *repoPG) SetStatus(ctx context.Context, inv *Invoice, from Status) error {
	err := r.q.QueryRow(ctx, `
		UPDATE invoice SET status=$4, issued_at=$5, due_at=$6, updated_at=NOW()
		WHERE practice_id = $1 AND id = $2 AND status = $3
		RETURNING updated_at`,
		inv.PracticeID, inv.ID, from, inv.Status, inv.IssuedAt, inv.DueAt,
	).Scan(&inv.UpdatedAt)
	if db.IsNotFound(err) {
		return ErrStatusChanged
	}
	return translate(err)
}

func (r *repoPG) ReplaceItems(ctx context.Context, invoiceID uuid.UUID, items []Item) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM invoice_item WHERE invoice_id = $1`, invoiceID); err != nil {
		return fmt.Errorf("clear invoice items: %w", err)
	}
	for i, it := range items {
		if _, err := r.q.Exec(ctx, `
			INSERT INTO invoice_item (invoice_id, position, description, quantity, unit_pence)
			VALUES ($1,$2,$3,$4,$5)`,
			invoiceID, i, it.Description, it.Quantity, it.UnitPence); err != nil {
			return fmt.Errorf("insert invoice item %d: %w", i, err)
		}
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, practiceID, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM invoice WHERE practice_id = $1 AND id = $2`, practiceID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Search(ctx context.Context, practiceID uuid.UUID, f Filter, limit, offset int) ([]*Invoice, int, error) {
	where := ` WHERE practice_id = $1`
	args := []interface{}{practiceID}
	idx := 2
	if f.PatientID != nil {
		where += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, *f.PatientID)
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM invoice`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + invoiceCols + ` FROM invoice` + where +
		fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	rows.Close()

	byInvoice, err := r.itemsFor(ctx, out)
	if err != nil {
		return nil, 0, err
	}
	attachItems(out, byInvoice)
	return out, total, nil
}

// itemsFor loads the lines of every invoice in invs with one query.
func (r *repoPG) itemsFor(ctx context.Context, invs []*Invoice) (map[uuid.UUID][]Item, error) {
	if len(invs) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, len(invs))
	for i, inv := range invs {
		ids[i] = inv.ID
	}
	rows, err := r.q.Query(ctx, `
		SELECT invoice_id, description, quantity, unit_pence FROM invoice_item
		WHERE invoice_id = ANY($1) ORDER BY invoice_id, position`, ids)
	if err != nil {
		return nil, fmt.Errorf("list invoice items: %w", err)
	}
	defer rows.Close()
	out := make(map[uuid.UUID][]Item, len(invs))
	for rows.Next() {
		var id uuid.UUID
		var it Item
		if err := rows.Scan(&id, &it.Description, &it.Quantity, &it.UnitPence); err != nil {
			return nil, err
		}
		out[id] = append(out[id], it)
	}
	return out, rows.Err()
}

// attachItems sets each invoice's lines, leaving an empty slice rather than
// nil for invoices without any.
func attachItems(invs []*Invoice, byInvoice map[uuid.UUID][]Item) {
	for _, inv := range invs {
		if items, ok := byInvoice[inv.ID]; ok {
			inv.Items = items
		} else {
			inv.Items = []Item{}
		}
	}
}

func (r *repoPG) PatientExists(ctx context.Context, practiceID, patientID uuid.UUID) (bool, error) {
	var ok bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patient WHERE practice_id = $1 AND id = $2)`,
		practiceID, patientID).Scan(&ok)
	return ok, err
}

func (r *repoPG) AppendEvent(ctx context.Context, evt events.Event) error {
	return r.outbox.Insert(ctx, r.q, evt)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsNotFound(err):
		return ErrNotFound
	case db.IsUniqueViolation(err):
		return ErrDuplicateNumber
	}
	return err
}
