package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsledger/backend/internal/models"
)

// ErrInsufficientStock is returned when an adjustment would take the quantity
// below zero.
var ErrInsufficientStock = errors.New("insufficient stock")

// Repository handles inventory persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an inventory repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const itemColumns = `id, organization_id, sku, name, quantity, unit_price, created_at, updated_at`

func scanItem(row pgx.Row) (*models.InventoryItem, error) {
	var it models.InventoryItem
	err := row.Scan(&it.ID, &it.OrganizationID, &it.SKU, &it.Name, &it.Quantity, &it.UnitPrice,
		&it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &it, nil
}

// Create inserts an inventory item. SKUs are unique per organization.
func (r *Repository) Create(ctx context.Context, it *models.InventoryItem) error {
	const q = `INSERT INTO inventory_items (id, organization_id, sku, name, quantity, unit_price)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, it.OrganizationID, it.SKU, it.Name, it.Quantity, it.UnitPrice).
		Scan(&it.ID, &it.CreatedAt, &it.UpdatedAt)
}

// GetByID returns an item by id alone; callers must verify organization scope.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	return scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id = $1`, id))
}

// ListByOrg returns the organization's items ordered by SKU.
func (r *Repository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.InventoryItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE organization_id = $1 ORDER BY sku`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.InventoryItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, it)
	}
	return list, rows.Err()
}

// Update writes the item's name and unit price.
func (r *Repository) Update(ctx context.Context, it *models.InventoryItem) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE inventory_items SET name = $2, unit_price = $3, updated_at = NOW() WHERE id = $1`,
		it.ID, it.Name, it.UnitPrice)
	return err
}

// AdjustQuantity applies a signed stock delta atomically. The quantity check
// happens inside the UPDATE so concurrent adjustments cannot drive stock
// negative.
func (r *Repository) AdjustQuantity(ctx context.Context, id uuid.UUID, delta int) (*models.InventoryItem, error) {
	const q = `UPDATE inventory_items SET quantity = quantity + $2, updated_at = NOW()
		WHERE id = $1 AND quantity + $2 >= 0
		RETURNING ` + itemColumns
	it, err := scanItem(r.pool.QueryRow(ctx, q, id, delta))
	if err != nil {
		return nil, err
	}
	if it == nil {
		return nil, ErrInsufficientStock
	}
	return it, nil
}

// Delete removes an item.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM inventory_items WHERE id = $1`, id)
	return err
}
