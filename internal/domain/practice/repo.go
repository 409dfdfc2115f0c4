package practice

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Practice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Practice, error)
	Update(ctx context.Context, p *Practice) error
	List(ctx context.Context, limit, offset int) ([]*Practice, int, error)

	CreateRoom(ctx context.Context, r *Room) error
	GetRoom(ctx context.Context, practiceID, id uuid.UUID) (*Room, error)
	UpdateRoom(ctx context.Context, r *Room) error
	DeleteRoom(ctx context.Context, practiceID, id uuid.UUID) error
	ListRooms(ctx context.Context, practiceID uuid.UUID, activeOnly bool) ([]*Room, error)
}
