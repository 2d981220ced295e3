package clients

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsledger/backend/internal/models"
)

// Repository handles CRM client persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a clients repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const clientColumns = `id, organization_id, name, email, COALESCE(phone,''), COALESCE(company,''), COALESCE(notes,''), created_at, updated_at`

func scanClient(row pgx.Row) (*models.Client, error) {
	var cl models.Client
	err := row.Scan(&cl.ID, &cl.OrganizationID, &cl.Name, &cl.Email, &cl.Phone, &cl.Company, &cl.Notes, &cl.CreatedAt, &cl.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &cl, nil
}

// Create inserts a client scoped to the organization.
func (r *Repository) Create(ctx context.Context, cl *models.Client) error {
	const q = `INSERT INTO clients (id, organization_id, name, email, phone, company, notes)
		VALUES (gen_random_uuid(), $1, $2, $3, NULLIF($4,''), NULLIF($5,''), NULLIF($6,''))
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, cl.OrganizationID, cl.Name, cl.Email, cl.Phone, cl.Company, cl.Notes).
		Scan(&cl.ID, &cl.CreatedAt, &cl.UpdatedAt)
}

// GetByID returns a client by id alone; callers must verify organization scope.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	return scanClient(r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
}

// ListByOrg returns the organization's clients.
func (r *Repository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Client, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+clientColumns+` FROM clients WHERE organization_id = $1 ORDER BY name`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Client
	for rows.Next() {
		cl, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, cl)
	}
	return list, rows.Err()
}

// Update saves name/contact fields.
func (r *Repository) Update(ctx context.Context, cl *models.Client) error {
	const q = `UPDATE clients SET name = $2, email = $3, phone = NULLIF($4,''), company = NULLIF($5,''),
		notes = NULLIF($6,''), updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, cl.ID, cl.Name, cl.Email, cl.Phone, cl.Company, cl.Notes)
	return err
}

// Delete removes a client.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	return err
}
