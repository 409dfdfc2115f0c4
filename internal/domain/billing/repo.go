package billing

import (
	"context"

	"github.com/google/uuid"

	"github.com/gpcare/practice/internal/platform/events"
)

type Repository interface {
	// Atomic runs fn against a repository bound to a single transaction.
	Atomic(ctx context.Context, fn func(tx Repository) error) error

	NextNumber(ctx context.Context, practiceID uuid.UUID) (int64, error)
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, practiceID, id uuid.UUID) (*Invoice, error)
	// GetForUpdate is GetByID holding the invoice row lock until the
	// enclosing transaction ends.
	GetForUpdate(ctx context.Context, practiceID, id uuid.UUID) (*Invoice, error)
	// UpdateDraft writes the editable header fields of a draft. It returns
	// ErrNotEditable if the stored invoice is no longer a draft.
	UpdateDraft(ctx context.Context, inv *Invoice) error
	// SetStatus moves the invoice from status from to inv.Status, writing
	// issued_at and due_at with it. It fails with ErrStatusChanged if the
	// stored status is not from.
	SetStatus(ctx context.Context, inv *Invoice, from Status) error
	ReplaceItems(ctx context.Context, invoiceID uuid.UUID, items []Item) error
	Delete(ctx context.Context, practiceID, id uuid.UUID) error
	Search(ctx context.Context, practiceID uuid.UUID, f Filter, limit, offset int) ([]*Invoice, int, error)

	PatientExists(ctx context.Context, practiceID, patientID uuid.UUID) (bool, error)
	AppendEvent(ctx context.Context, evt events.Event) error
}
