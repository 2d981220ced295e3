package emaillogs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsledger/backend/internal/models"
)

// Repository handles the organization-scoped outbound email audit log.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a queued email log row and returns its id.
func (r *Repository) Create(ctx context.Context, orgID uuid.UUID, emailType, recipient, subject string) (uuid.UUID, error) {
	const q = `INSERT INTO email_logs (id, organization_id, email_type, recipient, subject, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
		RETURNING id`
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, q, orgID, emailType, recipient, subject, string(models.EmailQueued)).Scan(&id)
	return id, err
}

// MarkSent records successful delivery.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE email_logs SET status = $2, sent_at = $3 WHERE id = $1`,
		id, string(models.EmailSent), time.Now())
	return err
}

// MarkFailed records a delivery failure.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE email_logs SET status = $2, error = $3 WHERE id = $1`,
		id, string(models.EmailFailed), reason)
	return err
}

// ListByOrg returns the organization's email log, newest first.
func (r *Repository) ListByOrg(ctx context.Context, orgID uuid.UUID, limit int) ([]*models.EmailLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const q = `SELECT id, organization_id, email_type, recipient, subject, status, COALESCE(error,''), sent_at, created_at
		FROM email_logs WHERE organization_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, q, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.EmailLog
	for rows.Next() {
		var e models.EmailLog
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.EmailType, &e.Recipient, &e.Subject, &e.Status, &e.Error, &e.SentAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}
