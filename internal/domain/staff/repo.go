package staff

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, m *Member) error
	GetByID(ctx context.Context, practiceID, id uuid.UUID) (*Member, error)
	Update(ctx context.Context, m *Member) error
	Delete(ctx context.Context, practiceID, id uuid.UUID) error
	Search(ctx context.Context, practiceID uuid.UUID, f Filter, limit, offset int) ([]*Member, int, error)
}
