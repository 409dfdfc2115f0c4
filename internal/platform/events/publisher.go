package events

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/gpcare/practice/internal/platform/db"
)

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type PublisherConfig struct {
	PollEvery time.Duration
	BatchSize int
}

// Publisher relays outbox rows to Kafka. Each batch is claimed with
// FOR UPDATE SKIP LOCKED so several server instances can run one each.
type Publisher struct {
	db        db.TxBeginner
	outbox    Outbox
	writer    MessageWriter
	logger    zerolog.Logger
	pollEvery time.Duration
	batchSize int
}

func NewPublisher(b db.TxBeginner, outbox Outbox, w MessageWriter, logger zerolog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		db:        b,
		outbox:    outbox,
		writer:    w,
		logger:    logger.With().Str("component", "outbox-publisher").Logger(),
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
}

// NewKafkaWriter builds a writer that routes by message key, so events for
// one appointment stay ordered within a partition.
func NewKafkaWriter(brokers string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(SplitBrokers(brokers)...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func SplitBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Run polls until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	p.logger.Info().Dur("poll_every", p.pollEvery).Msg("outbox publisher started")
	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("outbox publisher stopped")
			return
		case <-ticker.C:
			n, err := p.PublishBatch(ctx)
			if err != nil {
				p.logger.Error().Err(err).Msg("outbox publish failed")
				continue
			}
			if n > 0 {
				p.logger.Debug().Int("count", n).Msg("outbox events published")
			}
		}
	}
}

// PublishBatch sends one batch and marks it published in the same
// transaction that claimed it. A Kafka failure rolls the claim back.
func (p *Publisher) PublishBatch(ctx context.Context) (int, error) {
	var published int
	err := db.InTx(ctx, p.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		records, err := p.outbox.FetchUnpublished(ctx, tx, p.batchSize)
		if err != nil || len(records) == 0 {
			return err
		}

		msgs := make([]kafka.Message, 0, len(records))
		seqs := make([]int64, 0, len(records))
		for _, r := range records {
			msgs = append(msgs, toMessage(r))
			seqs = append(seqs, r.Seq)
		}
		if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
			return err
		}
		if err := p.outbox.MarkPublished(ctx, tx, seqs); err != nil {
			return err
		}
		published = len(records)
		return nil
	})
	return published, err
}

func toMessage(r Record) kafka.Message {
	return kafka.Message{
		Topic: r.Type,
		Key:   []byte(r.AggregateID),
		Value: r.Payload,
		Time:  r.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(r.ID.String())},
			{Key: "event_type", Value: []byte(r.Type)},
			{Key: "practice_id", Value: []byte(r.PracticeID.String())},
		},
	}
}
