package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/gpcare/practice/internal/platform/apperr"
	"github.com/gpcare/practice/internal/platform/events"
	"github.com/gpcare/practice/internal/platform/tenant"
)

var (
	ErrNotFound        = apperr.New(apperr.ErrNotFound, "invoice not found")
	ErrDuplicateNumber = apperr.New(apperr.ErrConflict, "invoice number already in use")
	ErrNotEditable     = apperr.New(apperr.ErrConflict, "only draft invoices can be changed")
	ErrEmptyInvoice    = apperr.New(apperr.ErrInvalid, "an invoice needs at least one item before it is issued")
	ErrStatusChanged   = apperr.New(apperr.ErrConflict, "invoice status was changed by another request")
	errPatientNotFound = apperr.Invalid("patient not found in this practice")
)

// Item bounds keep any invoice total well inside int64 pence.
const (
	MaxItems     = 100
	MaxQuantity  = 10_000
	MaxUnitPence = int64(100_000_000) // £1,000,000
)

func (i Item) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Description, validation.Required, validation.Length(1, 255)),
		validation.Field(&i.Quantity, validation.Required, validation.Min(1), validation.Max(MaxQuantity)),
		validation.Field(&i.UnitPence, validation.Min(int64(0)), validation.Max(MaxUnitPence)),
	)
}

type CreateRequest struct {
	PatientID uuid.UUID  `json:"patient_id"`
	DueAt     *time.Time `json:"due_at"`
	Notes     *string    `json:"notes"`
	Items     []Item     `json:"items"`
}

func (r CreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.PatientID, validation.By(requiredUUID)),
		validation.Field(&r.Items, validation.Length(0, MaxItems)),
	)
}

// UpdateRequest edits a draft. A nil Items leaves the lines alone; a
// non-nil one replaces them all.
type UpdateRequest struct {
	DueAt *time.Time `json:"due_at"`
	Notes *string    `json:"notes"`
	Items *[]Item    `json:"items"`
}

func (r UpdateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Items, validation.Length(0, MaxItems)),
	)
}

func requiredUUID(v interface{}) error {
	if id, _ := v.(uuid.UUID); id == uuid.Nil {
		return validation.ErrRequired
	}
	return nil
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create opens a draft invoice with the practice's next number.
func (s *Service) Create(ctx context.Context, scope tenant.Scope, req CreateRequest) (*Invoice, error) {
	items := cleanItems(req.Items)
	req.Items = items
	if err := req.Validate(); err != nil {
		return nil, apperr.Validation(err)
	}
	var out *Invoice
	err := s.repo.Atomic(ctx, func(tx Repository) error {
		ok, err := tx.PatientExists(ctx, scope.PracticeID, req.PatientID)
		if err != nil {
			return err
		}
		if !ok {
			return errPatientNotFound
		}
		n, err := tx.NextNumber(ctx, scope.PracticeID)
		if err != nil {
			return err
		}
		inv := &Invoice{
			PracticeID: scope.PracticeID,
			PatientID:  req.PatientID,
			Number:     FormatNumber(n),
			Status:     StatusDraft,
			DueAt:      req.DueAt,
			Notes:      req.Notes,
			TotalPence: Total(items),
			Items:      items,
		}
		if err := tx.Create(ctx, inv); err != nil {
			return err
		}
		if err := tx.ReplaceItems(ctx, inv.ID, items); err != nil {
			return err
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*Invoice, error) {
	return s.repo.GetByID(ctx, scope.PracticeID, id)
}

func (s *Service) Search(ctx context.Context, scope tenant.Scope, f Filter, limit, offset int) ([]*Invoice, int, error) {
	if f.Status != "" {
		f.Status = Status(strings.ToUpper(string(f.Status)))
		if !f.Status.Valid() {
			return nil, 0, apperr.Invalid(fmt.Sprintf("unknown invoice status %q", f.Status))
		}
	}
	return s.repo.Search(ctx, scope.PracticeID, f, limit, offset)
}

// Update edits a draft. Header and lines are written in one transaction so a
// failed line insert never leaves a half-replaced invoice behind. The row is
// locked first so a concurrent issue or void waits for the edit to finish.
func (s *Service) Update(ctx context.Context, scope tenant.Scope, id uuid.UUID, req UpdateRequest) (*Invoice, error) {
	if req.Items != nil {
		items := cleanItems(*req.Items)
		req.Items = &items
	}
	if err := req.Validate(); err != nil {
		return nil, apperr.Validation(err)
	}
	var out *Invoice
	err := s.repo.Atomic(ctx, func(tx Repository) error {
		inv, err := tx.GetForUpdate(ctx, scope.PracticeID, id)
		if err != nil {
			return err
		}
		if inv.Status != StatusDraft {
			return ErrNotEditable
		}
		if req.DueAt != nil {
			inv.DueAt = req.DueAt
		}
		if req.Notes != nil {
			inv.Notes = req.Notes
		}
		if req.Items != nil {
			inv.Items = *req.Items
			inv.TotalPence = Total(inv.Items)
			if err := tx.ReplaceItems(ctx, inv.ID, inv.Items); err != nil {
				return err
			}
		}
		if err := tx.UpdateDraft(ctx, inv); err != nil {
			return err
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a draft. Issued invoices are voided instead.
func (s *Service) Delete(ctx context.Context, scope tenant.Scope, id uuid.UUID) error {
	return s.repo.Atomic(ctx, func(tx Repository) error {
		inv, err := tx.GetForUpdate(ctx, scope.PracticeID, id)
		if err != nil {
			return err
		}
		if inv.Status != StatusDraft {
			return ErrNotEditable
		}
		return tx.Delete(ctx, scope.PracticeID, id)
	})
}

func (s *Service) Issue(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*Invoice, error) {
	return s.setStatus(ctx, scope, id, StatusIssued)
}

func (s *Service) MarkPaid(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*Invoice, error) {
	return s.setStatus(ctx, scope, id, StatusPaid)
}

func (s *Service) Void(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*Invoice, error) {
	return s.setStatus(ctx, scope, id, StatusVoid)
}

var statusEvents = map[Status]string{
	StatusIssued: events.InvoiceIssued,
	StatusPaid:   events.InvoicePaid,
	StatusVoid:   events.InvoiceVoided,
}

// setStatus applies a lifecycle transition under the invoice row lock.
func (s *Service) setStatus(ctx context.Context, scope tenant.Scope, id uuid.UUID, to Status) (*Invoice, error) {
	var out *Invoice
	err := s.repo.Atomic(ctx, func(tx Repository) error {
		inv, err := tx.GetForUpdate(ctx, scope.PracticeID, id)
		if err != nil {
			return err
		}
		if inv.Status == to {
			out = inv
			return nil
		}
		if !CanTransition(inv.Status, to) {
			return apperr.New(apperr.ErrConflict,
				fmt.Sprintf("cannot change invoice status from %s to %s", inv.Status, to))
		}
		if to == StatusIssued {
			if len(inv.Items) == 0 {
				return ErrEmptyInvoice
			}
			now := s.now().UTC()
			inv.IssuedAt = &now
			if inv.DueAt == nil {
				due := now.Add(DefaultTerms)
				inv.DueAt = &due
			}
		}
		from := inv.Status
		inv.Status = to
		if err := tx.SetStatus(ctx, inv, from); err != nil {
			return err
		}
		evt, err := events.New(inv.PracticeID, "invoice", inv.ID, statusEvents[to], map[string]interface{}{
			"invoice_id":  inv.ID,
			"number":      inv.Number,
			"patient_id":  inv.PatientID,
			"from":        from,
			"to":          to,
			"total_pence": inv.TotalPence,
			"changed_by":  scope.UserID,
		})
		if err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, evt); err != nil {
			return err
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func cleanItems(items []Item) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		it.Description = strings.TrimSpace(it.Description)
		out[i] = it
	}
	return out
}
