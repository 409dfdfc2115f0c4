package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, practiceID, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, practiceID, id uuid.UUID) error
	Search(ctx context.Context, practiceID uuid.UUID, f Filter, limit, offset int) ([]*Patient, int, error)
}
