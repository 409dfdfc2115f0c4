package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types. They double as Kafka topics.
const (
	AppointmentBooked        = "appointment.booked"
	AppointmentRescheduled   = "appointment.rescheduled"
	AppointmentStatusChanged = "appointment.status_changed"
	InvoiceIssued            = "invoice.issued"
	InvoicePaid              = "invoice.paid"
	InvoiceVoided            = "invoice.voided"
)

// Event is a domain fact recorded in the outbox alongside the write that
// produced it.
type Event struct {
	ID            uuid.UUID       `json:"id"`
	PracticeID    uuid.UUID       `json:"practice_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Type          string          `json:"type"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
}

// New builds an event with payload marshalled to JSON.
func New(practiceID uuid.UUID, aggregateType string, aggregateID uuid.UUID, eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:            uuid.New(),
		PracticeID:    practiceID,
		AggregateType: aggregateType,
		AggregateID:   aggregateID.String(),
		Type:          eventType,
		Payload:       raw,
		CreatedAt:     time.Now().UTC(),
	}, nil
}
