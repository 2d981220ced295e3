package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsledger/backend/internal/models"
)

// Repository handles subscription persistence. One row per organization.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a billing repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByOrgID returns the organization's subscription, or nil when none exists.
func (r *Repository) GetByOrgID(ctx context.Context, orgID uuid.UUID) (*models.Subscription, error) {
	const q = `SELECT id, organization_id, plan, status, trial_ends_at, COALESCE(provider_ref, ''), created_at, updated_at
		FROM subscriptions WHERE organization_id = $1`
	var s models.Subscription
	err := r.pool.QueryRow(ctx, q, orgID).
		Scan(&s.ID, &s.OrganizationID, &s.Plan, &s.Status, &s.TrialEndsAt, &s.ProviderRef, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// StartTrial opens a trialing subscription for a freshly created organization.
func (r *Repository) StartTrial(ctx context.Context, orgID uuid.UUID, days int) error {
	trialEnds := time.Now().AddDate(0, 0, days)
	const q = `INSERT INTO subscriptions (id, organization_id, plan, status, trial_ends_at)
		VALUES (gen_random_uuid(), $1, 'trial', $2, $3)
		ON CONFLICT (organization_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, q, orgID, string(models.SubscriptionTrialing), trialEnds)
	if err != nil {
		return fmt.Errorf("start trial: %w", err)
	}
	return nil
}

// UpdateStatus applies a provider-reported status change.
func (r *Repository) UpdateStatus(ctx context.Context, orgID uuid.UUID, plan string, status models.SubscriptionStatus, providerRef string) error {
	const q = `UPDATE subscriptions
		SET plan = COALESCE(NULLIF($2, ''), plan),
		    status = $3,
		    provider_ref = COALESCE(NULLIF($4, ''), provider_ref),
		    updated_at = NOW()
		WHERE organization_id = $1`
	tag, err := r.pool.Exec(ctx, q, orgID, plan, string(status), providerRef)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no subscription for organization %s", orgID)
	}
	return nil
}
