package events

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gpcare/practice/internal/platform/db"
)

// Record is an outbox row as read back by the publisher.
type Record struct {
	Seq int64
	Event
}

// Outbox is the publisher's view of the outbox table.
type Outbox interface {
	FetchUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]Record, error)
	MarkPublished(ctx context.Context, tx pgx.Tx, seqs []int64) error
}

type OutboxRepo struct{}

func NewOutboxRepo() *OutboxRepo { return &OutboxRepo{} }

// Insert writes evt using q, which should be the transaction that carries
// the domain change.
func (r *OutboxRepo) Insert(ctx context.Context, q db.Querier, evt Event) error {
	_, err := q.Exec(ctx, `
		INSERT INTO outbox_event (event_id, practice_id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		evt.ID, evt.PracticeID, evt.AggregateType, evt.AggregateID, evt.Type, []byte(evt.Payload), evt.CreatedAt)
	return err
}

func (r *OutboxRepo) FetchUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]Record, error) {
	rows, err := tx.Query(ctx, `
		SELECT seq, event_id, practice_id, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM outbox_event
		WHERE published_at IS NULL
		ORDER BY seq
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var payload []byte
		var created time.Time
		if err := rows.Scan(&rec.Seq, &rec.ID, &rec.PracticeID, &rec.AggregateType, &rec.AggregateID,
			&rec.Type, &payload, &created); err != nil {
			return nil, err
		}
		rec.Payload = payload
		rec.CreatedAt = created
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *OutboxRepo) MarkPublished(ctx context.Context, tx pgx.Tx, seqs []int64) error {
	if len(seqs) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `UPDATE outbox_event SET published_at = NOW() WHERE seq = ANY($1)`, seqs)
	return err
}
