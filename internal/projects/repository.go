package projects

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsledger/backend/internal/models"
)

// Repository handles project and task persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a projects repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const projectColumns = `id, organization_id, client_id, name, COALESCE(description,''), status, due_date, created_at, updated_at`

func scanProject(row pgx.Row) (*models.Project, error) {
	var p models.Project
	err := row.Scan(&p.ID, &p.OrganizationID, &p.ClientID, &p.Name, &p.Description, &p.Status, &p.DueDate, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// Create inserts a project scoped to the organization.
func (r *Repository) Create(ctx context.Context, p *models.Project) error {
	const q = `INSERT INTO projects (id, organization_id, client_id, name, description, status, due_date)
		VALUES (gen_random_uuid(), $1, $2, $3, NULLIF($4,''), $5, $6)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, p.OrganizationID, p.ClientID, p.Name, p.Description, string(p.Status), p.DueDate).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// GetByID returns a project by id alone; callers must verify organization scope.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return scanProject(r.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
}

// ListByOrg returns the organization's projects.
func (r *Repository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Project, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+projectColumns+` FROM projects WHERE organization_id = $1 ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// Update saves mutable project fields.
func (r *Repository) Update(ctx context.Context, p *models.Project) error {
	const q = `UPDATE projects SET client_id = $2, name = $3, description = NULLIF($4,''),
		status = $5, due_date = $6, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, p.ID, p.ClientID, p.Name, p.Description, string(p.Status), p.DueDate)
	return err
}

// Delete removes a project and, via FK cascade, its tasks.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	return err
}

// CreateTask inserts a task under a project.
func (r *Repository) CreateTask(ctx context.Context, t *models.Task) error {
	const q = `INSERT INTO tasks (id, project_id, title, done, assignee_id)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, t.ProjectID, t.Title, t.Done, t.AssigneeID).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// ListTasks returns a project's tasks.
func (r *Repository) ListTasks(ctx context.Context, projectID uuid.UUID) ([]*models.Task, error) {
	const q = `SELECT id, project_id, title, done, assignee_id, created_at, updated_at
		FROM tasks WHERE project_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Task
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Done, &t.AssigneeID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}

// GetTask returns a task with its project's organization id for scope checks.
func (r *Repository) GetTask(ctx context.Context, id uuid.UUID) (*models.Task, uuid.UUID, error) {
	const q = `SELECT t.id, t.project_id, t.title, t.done, t.assignee_id, t.created_at, t.updated_at, p.organization_id
		FROM tasks t INNER JOIN projects p ON p.id = t.project_id WHERE t.id = $1`
	var t models.Task
	var orgID uuid.UUID
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&t.ID, &t.ProjectID, &t.Title, &t.Done, &t.AssigneeID, &t.CreatedAt, &t.UpdatedAt, &orgID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, uuid.Nil, nil
		}
		return nil, uuid.Nil, err
	}
	return &t, orgID, nil
}

// SetTaskDone toggles task completion.
func (r *Repository) SetTaskDone(ctx context.Context, id uuid.UUID, done bool) error {
	_, err := r.pool.Exec(ctx, `UPDATE tasks SET done = $2, updated_at = NOW() WHERE id = $1`, id, done)
	return err
}
