package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/leadcrm/leadgate/internal/model"
)

// SubscriptionsRepository is the webhook registry. The settings layer owns
// writes; this service only resolves and lists.
type SubscriptionsRepository interface {
	// ListActive returns the enabled subscriptions of one organization whose
	// event set contains event. Deleted and disabled subscriptions never
	// appear here, so they drop out of resolution on the next trigger.
	ListActive(ctx context.Context, organizationID int64, event string) ([]model.Subscription, error)

	// ListByOrganization returns all subscriptions of one organization.
	ListByOrganization(ctx context.Context, organizationID int64) ([]model.Subscription, error)

	// GetByID returns a subscription, or nil when it no longer exists.
	GetByID(ctx context.Context, id string) (*model.Subscription, error)
}

type SubscriptionsRepositoryImpl struct {
	db *sqlx.DB
}

func NewSubscriptionsRepository(db *sqlx.DB) *SubscriptionsRepositoryImpl {
	return &SubscriptionsRepositoryImpl{db: db}
}

func (r *SubscriptionsRepositoryImpl) ListActive(ctx context.Context, organizationID int64, event string) ([]model.Subscription, error) {
	const q = `
		SELECT id, organization_id, name, url, secret, events, enabled, created_at, updated_at
		FROM webhook_subscriptions
		WHERE organization_id = ?
		  AND enabled = 1
		  AND JSON_CONTAINS(events, JSON_QUOTE(?))
	`
	subs := []model.Subscription{}
	if err := r.db.SelectContext(ctx, &subs, q, organizationID, event); err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *SubscriptionsRepositoryImpl) ListByOrganization(ctx context.Context, organizationID int64) ([]model.Subscription, error) {
	const q = `
		SELECT id, organization_id, name, url, secret, events, enabled, created_at, updated_at
		FROM webhook_subscriptions
		WHERE organization_id = ?
		ORDER BY created_at
	`
	subs := []model.Subscription{}
	if err := r.db.SelectContext(ctx, &subs, q, organizationID); err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *SubscriptionsRepositoryImpl) GetByID(ctx context.Context, id string) (*model.Subscription, error) {
	const q = `
		SELECT id, organization_id, name, url, secret, events, enabled, created_at, updated_at
		FROM webhook_subscriptions
		WHERE id = ?
	`
	var sub model.Subscription
	if err := r.db.GetContext(ctx, &sub, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}
