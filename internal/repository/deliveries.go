package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/leadcrm/leadgate/internal/model"
)

// DeliveriesRepository persists the append-only delivery log. Rows are never
// updated or deleted here; retries append new attempts with a higher attempt
// number and retention is an external concern.
type DeliveriesRepository interface {
	// InsertBatch appends attempts in one statement. If tx is nil, it
	// opens/commits an internal transaction; otherwise it uses the given tx.
	InsertBatch(ctx context.Context, tx *sqlx.Tx, attempts []model.DeliveryAttempt) error

	// FetchRetryable returns failed attempts eligible for a retry: the latest
	// attempt for their (subscription, event) pair, below maxAttempts, and
	// past their backoff delay of backoffBase * 2^(attempt-1).
	FetchRetryable(ctx context.Context, maxAttempts int, backoffBase time.Duration, limit int) ([]model.DeliveryAttempt, error)
}

type DeliveriesRepositoryImpl struct {
	db *sqlx.DB
}

func NewDeliveriesRepository(db *sqlx.DB) *DeliveriesRepositoryImpl {
	return &DeliveriesRepositoryImpl{db: db}
}

// withTx runs fn in the provided tx, or starts a new transaction when tx is nil.
func (r *DeliveriesRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}

	t, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}

	return t.Commit()
}

func (r *DeliveriesRepositoryImpl) InsertBatch(ctx context.Context, tx *sqlx.Tx, attempts []model.DeliveryAttempt) error {
	if len(attempts) == 0 {
		return nil
	}
	const q = `
		INSERT INTO delivery_attempts
		    (id, subscription_id, organization_id, event_id, event, payload,
		     attempt, status_code, success, duration_ms, error, created_at)
		VALUES
		    (:id, :subscription_id, :organization_id, :event_id, :event, :payload,
		     :attempt, :status_code, :success, :duration_ms, :error, :created_at)
	`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, q, attempts)
		return err
	})
}

func (r *DeliveriesRepositoryImpl) FetchRetryable(ctx context.Context, maxAttempts int, backoffBase time.Duration, limit int) ([]model.DeliveryAttempt, error) {
	const q = `
		SELECT da.id, da.subscription_id, da.organization_id, da.event_id, da.event,
		       da.payload, da.attempt, da.status_code, da.success, da.duration_ms,
		       da.error, da.created_at
		FROM delivery_attempts da
		WHERE da.success = 0
		  AND da.attempt < ?
		  AND da.created_at <= NOW() - INTERVAL (? * POW(2, da.attempt - 1)) SECOND
		  AND NOT EXISTS (
		      SELECT 1 FROM delivery_attempts later
		      WHERE later.subscription_id = da.subscription_id
		        AND later.event_id = da.event_id
		        AND later.attempt > da.attempt
		  )
		ORDER BY da.created_at
		LIMIT ?
	`
	out := []model.DeliveryAttempt{}
	if err := r.db.SelectContext(ctx, &out, q, maxAttempts, int64(backoffBase.Seconds()), limit); err != nil {
		return nil, err
	}
	return out, nil
}
