package invoices

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

// Repository handles invoice persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an invoices repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const invoiceColumns = `id, organization_id, client_id, quote_id, number, status, currency, items, total_amount,
	due_date, COALESCE(document_key,''), paid_at, created_at, updated_at`

func scanInvoice(row pgx.Row) (*models.Invoice, error) {
	var inv models.Invoice
	err := row.Scan(&inv.ID, &inv.OrganizationID, &inv.ClientID, &inv.QuoteID, &inv.Number, &inv.Status,
		&inv.Currency, &inv.Items, &inv.TotalAmount, &inv.DueDate, &inv.DocumentKey, &inv.PaidAt,
		&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &inv, nil
}

// Create inserts an invoice scoped to the organization.
func (r *Repository) Create(ctx context.Context, inv *models.Invoice) error {
	const q = `INSERT INTO invoices (id, organization_id, client_id, quote_id, number, status, currency, items, total_amount, due_date)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, inv.OrganizationID, inv.ClientID, inv.QuoteID, inv.Number,
		string(inv.Status), inv.Currency, inv.Items, inv.TotalAmount, inv.DueDate).
		Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
}

// GetByID returns an invoice by id alone; callers must verify organization scope.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	return scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
}

// ListByOrg returns the organization's invoices, newest first.
func (r *Repository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Invoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE organization_id = $1 ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, inv)
	}
	return list, rows.Err()
}

// UpdateStatus moves an invoice through its lifecycle. Paid invoices get a
// paid_at timestamp.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.InvoiceStatus) error {
	var paidAt *time.Time
	if status == models.InvoicePaid {
		now := time.Now()
		paidAt = &now
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE invoices SET status = $2, paid_at = COALESCE($3, paid_at), updated_at = NOW() WHERE id = $1`,
		id, string(status), paidAt)
	return err
}

// SetDocumentKey records the archived document's S3 object key.
func (r *Repository) SetDocumentKey(ctx context.Context, id uuid.UUID, key string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE invoices SET document_key = $2, updated_at = NOW() WHERE id = $1`, id, key)
	return err
}

// NextNumber returns the next invoice number for the organization (INV-1, ...).
func (r *Repository) NextNumber(ctx context.Context, orgID uuid.UUID) (string, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) + 1 FROM invoices WHERE organization_id = $1`, orgID).Scan(&n)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("INV-%d", n), nil
}
