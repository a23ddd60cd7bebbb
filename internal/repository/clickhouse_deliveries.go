package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// DeliveryRow is the report shape read from ClickHouse. The authoritative
// delivery log lives in MySQL; replication into ClickHouse is handled outside
// this service, the reports endpoint only reads it.
type DeliveryRow struct {
	ID             string    `db:"id"`
	SubscriptionID string    `db:"subscription_id"`
	OrganizationID int64     `db:"organization_id"`
	EventID        string    `db:"event_id"`
	Event          string    `db:"event"`
	Attempt        int       `db:"attempt"`
	StatusCode     int32     `db:"status_code"`
	Success        bool      `db:"success"`
	DurationMs     int64     `db:"duration_ms"`
	CreatedAt      time.Time `db:"created_at"`
}

// CHDeliveriesRepository serves tenant-scoped delivery reports.
type CHDeliveriesRepository interface {
	ListByOrganization(ctx context.Context, organizationID int64, event string, from, to time.Time, limit int) ([]DeliveryRow, error)
}

type CHDeliveriesRepositoryImpl struct {
	db *sqlx.DB
}

func NewCHDeliveriesRepository(db *sqlx.DB) *CHDeliveriesRepositoryImpl {
	return &CHDeliveriesRepositoryImpl{db: db}
}

// ListByOrganization always filters on organization_id: reports must never
// cross the tenant boundary.
func (r *CHDeliveriesRepositoryImpl) ListByOrganization(ctx context.Context, organizationID int64, event string, from, to time.Time, limit int) ([]DeliveryRow, error) {
	q := `
		SELECT id, subscription_id, organization_id, event_id, event,
		       attempt, status_code, success, duration_ms, created_at
		FROM delivery_attempts
		WHERE organization_id = ?
		  AND created_at >= ?
		  AND created_at < ?
	`
	args := []interface{}{organizationID, from, to}

	if event != "" {
		q += ` AND event = ?`
		args = append(args, event)
	}

	q += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows := []DeliveryRow{}
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
