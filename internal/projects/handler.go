package projects

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/opsledger/backend/internal/billing"
	"github.com/opsledger/backend/internal/models"
	"github.com/opsledger/backend/internal/workspace"
	"github.com/opsledger/backend/pkg/response"
)

// Handler handles project and task HTTP endpoints.
type Handler struct {
	repo    *Repository
	billing *billing.Guard
	scope   *workspace.Guard
}

// NewHandler creates a projects handler.
func NewHandler(repo *Repository, billingGuard *billing.Guard, scope *workspace.Guard) *Handler {
	return &Handler{repo: repo, billing: billingGuard, scope: scope}
}

// ProjectRequest is the body for create/update.
type ProjectRequest struct {
	ClientID    *uuid.UUID `json:"client_id"`
	Name        string     `json:"name" binding:"required"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	DueDate     *time.Time `json:"due_date"`
}

func parseStatus(s string) (models.ProjectStatus, bool) {
	if s == "" {
		return models.ProjectActive, true
	}
	switch st := models.ProjectStatus(s); st {
	case models.ProjectActive, models.ProjectOnHold, models.ProjectCompleted, models.ProjectArchived:
		return st, true
	}
	return "", false
}

// List handles GET /projects.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.ListByOrg(c.Request.Context(), workspace.ActiveOrgID(c))
	if err != nil {
		response.Internal(c, "failed to load projects")
		return
	}
	response.OK(c, list)
}

// Get handles GET /projects/:id.
func (h *Handler) Get(c *gin.Context) {
	p, ok := h.load(c)
	if !ok {
		return
	}
	response.OK(c, p)
}

// Create handles POST /projects.
func (h *Handler) Create(c *gin.Context) {
	orgID := workspace.ActiveOrgID(c)
	if !h.writable(c, orgID) {
		return
	}
	var body ProjectRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	status, ok := parseStatus(body.Status)
	if !ok {
		response.BadRequest(c, "invalid status")
		return
	}
	p := &models.Project{
		OrganizationID: orgID,
		ClientID:       body.ClientID,
		Name:           body.Name,
		Description:    body.Description,
		Status:         status,
		DueDate:        body.DueDate,
	}
	if err := h.repo.Create(c.Request.Context(), p); err != nil {
		response.Internal(c, "failed to create project")
		return
	}
	response.Created(c, p)
}

// Update handles PATCH /projects/:id.
func (h *Handler) Update(c *gin.Context) {
	p, ok := h.load(c)
	if !ok {
		return
	}
	if !h.writable(c, p.OrganizationID) {
		return
	}
	var body ProjectRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	status, okStatus := parseStatus(body.Status)
	if !okStatus {
		response.BadRequest(c, "invalid status")
		return
	}
	p.ClientID, p.Name, p.Description, p.Status, p.DueDate = body.ClientID, body.Name, body.Description, status, body.DueDate
	if err := h.repo.Update(c.Request.Context(), p); err != nil {
		response.Internal(c, "failed to update project")
		return
	}
	response.OK(c, p)
}

// Delete handles DELETE /projects/:id.
func (h *Handler) Delete(c *gin.Context) {
	p, ok := h.load(c)
	if !ok {
		return
	}
	if !h.writable(c, p.OrganizationID) {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), p.ID); err != nil {
		response.Internal(c, "failed to delete project")
		return
	}
	response.NoContent(c)
}

// TaskRequest is the body for POST /projects/:id/tasks.
type TaskRequest struct {
	Title      string     `json:"title" binding:"required"`
	AssigneeID *uuid.UUID `json:"assignee_id"`
}

// CreateTask handles POST /projects/:id/tasks.
func (h *Handler) CreateTask(c *gin.Context) {
	p, ok := h.load(c)
	if !ok {
		return
	}
	if !h.writable(c, p.OrganizationID) {
		return
	}
	var body TaskRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	t := &models.Task{ProjectID: p.ID, Title: body.Title, AssigneeID: body.AssigneeID}
	if err := h.repo.CreateTask(c.Request.Context(), t); err != nil {
		response.Internal(c, "failed to create task")
		return
	}
	response.Created(c, t)
}

// ListTasks handles GET /projects/:id/tasks.
func (h *Handler) ListTasks(c *gin.Context) {
	p, ok := h.load(c)
	if !ok {
		return
	}
	list, err := h.repo.ListTasks(c.Request.Context(), p.ID)
	if err != nil {
		response.Internal(c, "failed to load tasks")
		return
	}
	response.OK(c, list)
}

// SetTaskDone handles PATCH /tasks/:id/done.
func (h *Handler) SetTaskDone(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid task id")
		return
	}
	t, orgID, err := h.repo.GetTask(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load task")
		return
	}
	if t == nil {
		response.NotFound(c, "task not found")
		return
	}
	if !h.scope.SameOrg(c, orgID) {
		return
	}
	if !h.writable(c, orgID) {
		return
	}
	var body struct {
		Done bool `json:"done"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request")
		return
	}
	if err := h.repo.SetTaskDone(c.Request.Context(), t.ID, body.Done); err != nil {
		response.Internal(c, "failed to update task")
		return
	}
	t.Done = body.Done
	response.OK(c, t)
}

func (h *Handler) load(c *gin.Context) (*models.Project, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return nil, false
	}
	p, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load project")
		return nil, false
	}
	if p == nil {
		response.NotFound(c, "project not found")
		return nil, false
	}
	if !h.scope.SameOrg(c, p.OrganizationID) {
		return nil, false
	}
	return p, true
}

func (h *Handler) writable(c *gin.Context, orgID uuid.UUID) bool {
	if err := h.billing.EnsureNotPaused(c.Request.Context(), orgID); err != nil {
		if errors.Is(err, billing.ErrReadOnlyMode) {
			response.Forbidden(c, billing.MsgReadOnlyMode)
		} else {
			response.Internal(c, "failed to check billing state")
		}
		return false
	}
	return true
}
