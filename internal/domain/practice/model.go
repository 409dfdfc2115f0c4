package practice

import (
	"time"

	"github.com/google/uuid"
)

// Practice is the tenant. Its timezone decides what "today" means for the
// dashboard and for date-based appointment searches.
type Practice struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	ODSCode   *string   `json:"ods_code,omitempty"`
	Address   *string   `json:"address,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	Email     *string   `json:"email,omitempty"`
	Timezone  string    `json:"timezone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Room struct {
	ID         uuid.UUID `json:"id"`
	PracticeID uuid.UUID `json:"practice_id"`
	Name       string    `json:"name"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

const DefaultTimezone = "Europe/London"
