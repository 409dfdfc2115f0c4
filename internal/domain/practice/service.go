package practice

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"

	"github.com/gpcare/practice/internal/platform/apperr"
	"github.com/gpcare/practice/internal/platform/tenant"
)

var (
	ErrNotFound         = apperr.New(apperr.ErrNotFound, "practice not found")
	ErrDuplicateODSCode = apperr.New(apperr.ErrConflict, "a practice with this ODS code already exists")
	ErrRoomNotFound     = apperr.New(apperr.ErrNotFound, "room not found")
	ErrDuplicateRoom    = apperr.New(apperr.ErrConflict, "a room with this name already exists")
	ErrRoomInUse        = apperr.New(apperr.ErrConflict, "room is used by appointments; deactivate instead")
)

// ODS organisation codes for GP practices are a letter followed by five digits.
var odsCode = regexp.MustCompile(`^[A-Z][0-9]{5}$`)

var validTimezone = validation.By(func(v interface{}) error {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	if _, err := time.LoadLocation(s); err != nil {
		return errors.New("must be an IANA timezone name")
	}
	return nil
})

func (p Practice) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&p.ODSCode, validation.NilOrNotEmpty, validation.Match(odsCode).Error("must be a letter followed by five digits")),
		validation.Field(&p.Email, validation.NilOrNotEmpty, is.EmailFormat),
		validation.Field(&p.Timezone, validation.Required, validTimezone),
	)
}

func (r Room) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 128)),
	)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func normalize(p *Practice) {
	p.Name = strings.TrimSpace(p.Name)
	p.Timezone = strings.TrimSpace(p.Timezone)
	if p.Timezone == "" {
		p.Timezone = DefaultTimezone
	}
	if p.ODSCode != nil {
		code := strings.ToUpper(strings.TrimSpace(*p.ODSCode))
		p.ODSCode = &code
	}
}

// Create registers a new practice. It is not tenant scoped and is reached from
// the CLI only.
func (s *Service) Create(ctx context.Context, p *Practice) error {
	normalize(p)
	if err := p.Validate(); err != nil {
		return apperr.Validation(err)
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Practice, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// Get returns the caller's own practice.
func (s *Service) Get(ctx context.Context, scope tenant.Scope) (*Practice, error) {
	return s.repo.GetByID(ctx, scope.PracticeID)
}

func (s *Service) Update(ctx context.Context, scope tenant.Scope, p *Practice) error {
	p.ID = scope.PracticeID
	normalize(p)
	if err := p.Validate(); err != nil {
		return apperr.Validation(err)
	}
	return s.repo.Update(ctx, p)
}

func (s *Service) CreateRoom(ctx context.Context, scope tenant.Scope, r *Room) error {
	r.Name = strings.TrimSpace(r.Name)
	if err := r.Validate(); err != nil {
		return apperr.Validation(err)
	}
	r.PracticeID = scope.PracticeID
	r.Active = true
	return s.repo.CreateRoom(ctx, r)
}

func (s *Service) GetRoom(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*Room, error) {
	return s.repo.GetRoom(ctx, scope.PracticeID, id)
}

func (s *Service) UpdateRoom(ctx context.Context, scope tenant.Scope, r *Room) error {
	r.Name = strings.TrimSpace(r.Name)
	if err := r.Validate(); err != nil {
		return apperr.Validation(err)
	}
	r.PracticeID = scope.PracticeID
	return s.repo.UpdateRoom(ctx, r)
}

func (s *Service) DeleteRoom(ctx context.Context, scope tenant.Scope, id uuid.UUID) error {
	return s.repo.DeleteRoom(ctx, scope.PracticeID, id)
}

func (s *Service) ListRooms(ctx context.Context, scope tenant.Scope, activeOnly bool) ([]*Room, error) {
	return s.repo.ListRooms(ctx, scope.PracticeID, activeOnly)
}
