package staff

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"

	"github.com/gpcare/practice/internal/platform/apperr"
	"github.com/gpcare/practice/internal/platform/auth"
	"github.com/gpcare/practice/internal/platform/tenant"
)

var (
	ErrNotFound        = apperr.New(apperr.ErrNotFound, "staff member not found")
	ErrDuplicateEmail  = apperr.New(apperr.ErrConflict, "a staff member with this email already exists")
	ErrHasAppointments = apperr.New(apperr.ErrConflict, "staff member has appointments; deactivate instead")
	ErrSelfDeactivate  = apperr.New(apperr.ErrConflict, "you cannot deactivate or delete your own account")
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (m Member) Validate() error {
	roles := make([]interface{}, len(auth.AllRoles))
	for i, r := range auth.AllRoles {
		roles[i] = r
	}
	return validation.ValidateStruct(&m,
		validation.Field(&m.Email, validation.Required, is.EmailFormat),
		validation.Field(&m.FirstName, validation.Required, validation.Length(1, 128)),
		validation.Field(&m.LastName, validation.Required, validation.Length(1, 128)),
		validation.Field(&m.Role, validation.Required, validation.In(roles...)),
	)
}

func normalize(m *Member) {
	m.Email = strings.ToLower(strings.TrimSpace(m.Email))
	m.FirstName = strings.TrimSpace(m.FirstName)
	m.LastName = strings.TrimSpace(m.LastName)
	m.Role = strings.ToUpper(strings.TrimSpace(m.Role))
}

func (s *Service) Create(ctx context.Context, scope tenant.Scope, m *Member) error {
	normalize(m)
	if err := m.Validate(); err != nil {
		return apperr.Validation(err)
	}
	m.PracticeID = scope.PracticeID
	m.Active = true
	return s.repo.Create(ctx, m)
}

func (s *Service) Get(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*Member, error) {
	return s.repo.GetByID(ctx, scope.PracticeID, id)
}

// Update overwrites the stored member. Users cannot deactivate themselves.
func (s *Service) Update(ctx context.Context, scope tenant.Scope, m *Member) error {
	normalize(m)
	if err := m.Validate(); err != nil {
		return apperr.Validation(err)
	}
	if !m.Active && m.ID.String() == scope.UserID {
		return ErrSelfDeactivate
	}
	m.PracticeID = scope.PracticeID
	return s.repo.Update(ctx, m)
}

func (s *Service) Delete(ctx context.Context, scope tenant.Scope, id uuid.UUID) error {
	if id.String() == scope.UserID {
		return ErrSelfDeactivate
	}
	return s.repo.Delete(ctx, scope.PracticeID, id)
}

func (s *Service) Search(ctx context.Context, scope tenant.Scope, f Filter, limit, offset int) ([]*Member, int, error) {
	for i, r := range f.Roles {
		f.Roles[i] = strings.ToUpper(strings.TrimSpace(r))
		if !auth.ValidRole(f.Roles[i]) {
			return nil, 0, apperr.Invalid("unknown role " + r)
		}
	}
	f.Query = strings.TrimSpace(f.Query)
	return s.repo.Search(ctx, scope.PracticeID, f, limit, offset)
}
