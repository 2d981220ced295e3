package organizations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsledger/backend/internal/models"
)

// Repository handles organization and membership persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an organizations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create creates an organization.
func (r *Repository) Create(ctx context.Context, org *models.Organization) error {
	const q = `INSERT INTO organizations (id, name, slug)
		VALUES (gen_random_uuid(), $1, $2)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, org.Name, org.Slug).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
}

// GetByID returns an organization by ID, or nil when no row exists.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	const q = `SELECT id, name, slug, created_at, updated_at FROM organizations WHERE id = $1`
	var org models.Organization
	err := r.pool.QueryRow(ctx, q, id).Scan(&org.ID, &org.Name, &org.Slug, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &org, nil
}

// GetBySlug returns an organization by slug, or nil when no row exists.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	const q = `SELECT id, name, slug, created_at, updated_at FROM organizations WHERE slug = $1`
	var org models.Organization
	err := r.pool.QueryRow(ctx, q, slug).Scan(&org.ID, &org.Name, &org.Slug, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &org, nil
}

// AddMember upserts a membership row. The (organization, user) pair is unique,
// so re-adding updates role and status instead of duplicating.
func (r *Repository) AddMember(ctx context.Context, orgID, userID uuid.UUID, role string, status models.MembershipStatus) error {
	const q = `INSERT INTO memberships (id, organization_id, user_id, role, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		ON CONFLICT (organization_id, user_id)
		DO UPDATE SET role = EXCLUDED.role, status = EXCLUDED.status, updated_at = NOW()`
	_, err := r.pool.Exec(ctx, q, orgID, userID, role, string(status))
	return err
}

// GetMembership returns the membership row for a user in an org, or nil.
func (r *Repository) GetMembership(ctx context.Context, orgID, userID uuid.UUID) (*models.Membership, error) {
	const q = `SELECT id, organization_id, user_id, role, status, created_at, updated_at
		FROM memberships WHERE organization_id = $1 AND user_id = $2`
	var m models.Membership
	err := r.pool.QueryRow(ctx, q, orgID, userID).
		Scan(&m.ID, &m.OrganizationID, &m.UserID, &m.Role, &m.Status, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// ListMembershipsForUser returns all membership rows for a user, any status.
// The workspace resolver filters by status itself.
func (r *Repository) ListMembershipsForUser(ctx context.Context, userID uuid.UUID) ([]models.Membership, error) {
	const q = `SELECT id, organization_id, user_id, role, status, created_at, updated_at
		FROM memberships WHERE user_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Membership
	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(&m.ID, &m.OrganizationID, &m.UserID, &m.Role, &m.Status, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// ListOrganizationsForUser returns organizations where the user has an active membership.
func (r *Repository) ListOrganizationsForUser(ctx context.Context, userID uuid.UUID) ([]*models.Organization, error) {
	const q = `SELECT o.id, o.name, o.slug, o.created_at, o.updated_at
		FROM organizations o
		INNER JOIN memberships m ON m.organization_id = o.id
		WHERE m.user_id = $1 AND m.status = 'active'
		ORDER BY o.name`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Organization
	for rows.Next() {
		var o models.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.Slug, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &o)
	}
	return list, rows.Err()
}

// Member is a membership row joined with user details.
type Member struct {
	ID       uuid.UUID               `json:"id"`
	UserID   uuid.UUID               `json:"user_id"`
	Email    string                  `json:"email"`
	FullName string                  `json:"full_name"`
	Role     string                  `json:"role"`
	Status   models.MembershipStatus `json:"status"`
	AddedAt  time.Time               `json:"added_at"`
}

// ListMembers returns members of an organization, pending invites included.
func (r *Repository) ListMembers(ctx context.Context, orgID uuid.UUID) ([]Member, error) {
	const q = `SELECT m.id, m.user_id, u.email, u.full_name, m.role, m.status, m.created_at
		FROM memberships m
		INNER JOIN users u ON u.id = m.user_id
		WHERE m.organization_id = $1
		ORDER BY m.created_at ASC`
	rows, err := r.pool.Query(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.UserID, &m.Email, &m.FullName, &m.Role, &m.Status, &m.AddedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// UpdateMemberRole changes a member's role within an organization.
func (r *Repository) UpdateMemberRole(ctx context.Context, orgID, userID uuid.UUID, role string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE memberships SET role = $3, updated_at = NOW() WHERE organization_id = $1 AND user_id = $2`,
		orgID, userID, role)
	return err
}

// UpdateMemberStatus changes a member's status (approve invite, revoke).
func (r *Repository) UpdateMemberStatus(ctx context.Context, orgID, userID uuid.UUID, status models.MembershipStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE memberships SET status = $3, updated_at = NOW() WHERE organization_id = $1 AND user_id = $2`,
		orgID, userID, string(status))
	return err
}

// RemoveMember hard-deletes a membership row.
func (r *Repository) RemoveMember(ctx context.Context, orgID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM memberships WHERE organization_id = $1 AND user_id = $2`, orgID, userID)
	return err
}

// CountOwners returns the number of active owners of an organization.
func (r *Repository) CountOwners(ctx context.Context, orgID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM memberships WHERE organization_id = $1 AND role = 'owner' AND status = 'active'`,
		orgID).Scan(&n)
	return n, err
}
