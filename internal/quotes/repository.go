package quotes

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsledger/backend/internal/models"
)

// Repository handles quote persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a quotes repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const quoteColumns = `id, organization_id, client_id, number, status, currency, items, total_amount, valid_until, created_at, updated_at`

func scanQuote(row pgx.Row) (*models.Quote, error) {
	var q models.Quote
	err := row.Scan(&q.ID, &q.OrganizationID, &q.ClientID, &q.Number, &q.Status, &q.Currency,
		&q.Items, &q.TotalAmount, &q.ValidUntil, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &q, nil
}

// Create inserts a quote scoped to the organization.
func (r *Repository) Create(ctx context.Context, q *models.Quote) error {
	const sql = `INSERT INTO quotes (id, organization_id, client_id, number, status, currency, items, total_amount, valid_until)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, sql, q.OrganizationID, q.ClientID, q.Number, string(q.Status),
		q.Currency, q.Items, q.TotalAmount, q.ValidUntil).
		Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
}

// GetByID returns a quote by id alone; callers must verify organization scope.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	return scanQuote(r.pool.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id = $1`, id))
}

// ListByOrg returns the organization's quotes, newest first.
func (r *Repository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Quote, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE organization_id = $1 ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, q)
	}
	return list, rows.Err()
}

// UpdateStatus moves a quote through its lifecycle.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.QuoteStatus) error {
	_, err := r.pool.Exec(ctx, `UPDATE quotes SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	return err
}

// NextNumber returns the next quote number for the organization (Q-1, Q-2, ...).
func (r *Repository) NextNumber(ctx context.Context, orgID uuid.UUID) (string, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) + 1 FROM quotes WHERE organization_id = $1`, orgID).Scan(&n)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Q-%d", n), nil
}
