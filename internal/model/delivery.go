package model

import "time"

// DeliveryAttempt is one outbound POST to one subscription for one event
// occurrence. Rows are append-only: a retry produces a new attempt with a
// higher Attempt number, never an update.
//
// OrganizationID is denormalized from the subscription so tenant-scoped
// queries never have to join across the isolation boundary.
type DeliveryAttempt struct {
	ID             string    `db:"id"`
	SubscriptionID string    `db:"subscription_id"`
	OrganizationID int64     `db:"organization_id"`
	EventID        string    `db:"event_id"`
	Event          string    `db:"event"`
	Payload        []byte    `db:"payload"`
	Attempt        int       `db:"attempt"`
	StatusCode     *int      `db:"status_code"` // nil on timeout / network error
	Success        bool      `db:"success"`
	DurationMs     int64     `db:"duration_ms"`
	Error          string    `db:"error"`
	CreatedAt      time.Time `db:"created_at"`
}
