package model

import "time"

// OutboxEvent is a pending domain event awaiting relay to Kafka. Written in
// the same transaction as the business write that raised it.
type OutboxEvent struct {
	ID          int64      `db:"id"`
	Aggregate   string     `db:"aggregate"`    // e.g. "lead"
	AggregateID string     `db:"aggregate_id"` // event ULID
	Topic       string     `db:"topic"`
	Payload     []byte     `db:"payload"`
	Attempts    int        `db:"attempts"`
	PublishedAt *time.Time `db:"published_at"`
	CreatedAt   time.Time  `db:"created_at"`
}
