package patient

import (
	"context"
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"

	"github.com/gpcare/practice/internal/platform/apperr"
	"github.com/gpcare/practice/internal/platform/tenant"
)

var (
	ErrNotFound           = apperr.New(apperr.ErrNotFound, "patient not found")
	ErrDuplicateNHSNumber = apperr.New(apperr.ErrConflict, "a patient with this NHS number is already registered")
	ErrHasAppointments    = apperr.New(apperr.ErrConflict, "patient has appointments or invoices; deactivate instead")
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (p Patient) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.FirstName, validation.Required, validation.Length(1, 128)),
		validation.Field(&p.LastName, validation.Required, validation.Length(1, 128)),
		validation.Field(&p.DateOfBirth, validation.Required, validation.Date("2006-01-02")),
		validation.Field(&p.NHSNumber, validation.NilOrNotEmpty, validation.By(nhsNumberRule)),
		validation.Field(&p.Gender, validation.NilOrNotEmpty, validation.In(genders...)),
		validation.Field(&p.Email, validation.NilOrNotEmpty, is.EmailFormat),
	)
}

func nhsNumberRule(v interface{}) error {
	s, ok := v.(*string)
	if !ok || s == nil {
		return nil
	}
	if !ValidNHSNumber(*s) {
		return errors.New("must be a valid 10 digit NHS number")
	}
	return nil
}

func normalize(p *Patient) {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	if p.NHSNumber != nil {
		n := NormalizeNHSNumber(*p.NHSNumber)
		p.NHSNumber = &n
	}
	if p.Gender != nil {
		g := strings.ToLower(*p.Gender)
		p.Gender = &g
	}
}

func (s *Service) Create(ctx context.Context, scope tenant.Scope, p *Patient) error {
	normalize(p)
	if err := p.Validate(); err != nil {
		return apperr.Validation(err)
	}
	p.PracticeID = scope.PracticeID
	p.Active = true
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, scope.PracticeID, id)
}

// Update overwrites the stored record with p. Handlers bind the request
// onto the current record so omitted fields keep their values.
func (s *Service) Update(ctx context.Context, scope tenant.Scope, p *Patient) error {
	normalize(p)
	if err := p.Validate(); err != nil {
		return apperr.Validation(err)
	}
	p.PracticeID = scope.PracticeID
	return s.repo.Update(ctx, p)
}

func (s *Service) Delete(ctx context.Context, scope tenant.Scope, id uuid.UUID) error {
	return s.repo.Delete(ctx, scope.PracticeID, id)
}

func (s *Service) Search(ctx context.Context, scope tenant.Scope, f Filter, limit, offset int) ([]*Patient, int, error) {
	f.Query = strings.TrimSpace(f.Query)
	return s.repo.Search(ctx, scope.PracticeID, f, limit, offset)
}
