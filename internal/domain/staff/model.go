package staff

import (
	"time"

	"github.com/google/uuid"
)

// Member is a practice user. GPs and nurses are the clinicians that
// appointments are booked against.
type Member struct {
	ID         uuid.UUID `json:"id"`
	PracticeID uuid.UUID `json:"practice_id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Role       string    `json:"role"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (m *Member) IsClinician() bool {
	return m.Role == "GP" || m.Role == "NURSE"
}

type Filter struct {
	Roles  []string
	Active *bool
	Query  string
}
