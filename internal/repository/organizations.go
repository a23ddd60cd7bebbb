package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/leadcrm/leadgate/internal/model"
)

// OrganizationsRepository reads tenant accounts for API-key authentication.
type OrganizationsRepository interface {
	GetByAPIKey(ctx context.Context, apiKey string) (*model.Organization, error)
}

type OrganizationsRepositoryImpl struct {
	db *sqlx.DB
}

func NewOrganizationsRepository(db *sqlx.DB) *OrganizationsRepositoryImpl {
	return &OrganizationsRepositoryImpl{db: db}
}

// GetByAPIKey returns the organization owning apiKey, or nil when unknown.
func (r *OrganizationsRepositoryImpl) GetByAPIKey(ctx context.Context, apiKey string) (*model.Organization, error) {
	const q = `
		SELECT id, name, api_key, status, rate_limit_rps
		FROM organizations
		WHERE api_key = ?
	`
	var org model.Organization
	if err := r.db.GetContext(ctx, &org, q, apiKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &org, nil
}
