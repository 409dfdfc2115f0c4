package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusDraft  Status = "DRAFT"
	StatusIssued Status = "ISSUED"
	StatusPaid   Status = "PAID"
	StatusVoid   Status = "VOID"
)

var transitions = map[Status][]Status{
	StatusDraft:  {StatusIssued, StatusVoid},
	StatusIssued: {StatusPaid, StatusVoid},
}

// CanTransition reports whether an invoice may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusIssued, StatusPaid, StatusVoid:
		return true
	}
	return false
}

// DefaultTerms is how long after issue an invoice falls due when no due date is given.
const DefaultTerms = 30 * 24 * time.Hour

type Invoice struct {
	ID         uuid.UUID  `json:"id"`
	PracticeID uuid.UUID  `json:"practice_id"`
	PatientID  uuid.UUID  `json:"patient_id"`
	Number     string     `json:"number"`
	Status     Status     `json:"status"`
	IssuedAt   *time.Time `json:"issued_at,omitempty"`
	DueAt      *time.Time `json:"due_at,omitempty"`
	TotalPence int64      `json:"total_pence"`
	Notes      *string    `json:"notes,omitempty"`
	Items      []Item     `json:"items"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type Item struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitPence   int64  `json:"unit_pence"`
}

func (i Item) LineTotal() int64 {
	return int64(i.Quantity) * i.UnitPence
}

// Total sums the line totals of items.
func Total(items []Item) int64 {
	var sum int64
	for _, it := range items {
		sum += it.LineTotal()
	}
	return sum
}

// FormatNumber renders the n-th invoice of a practice, e.g. INV-000042.
func FormatNumber(n int64) string {
	return fmt.Sprintf("INV-%06d", n)
}

type Filter struct {
	PatientID *uuid.UUID
	Status    Status
}
