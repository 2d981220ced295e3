package clients

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/opsledger/backend/internal/billing"
	"github.com/opsledger/backend/internal/models"
	"github.com/opsledger/backend/internal/workspace"
	"github.com/opsledger/backend/pkg/response"
)

// Handler handles CRM client HTTP endpoints. All routes run behind the
// operational scope guard; writes also pass the billing guard.
type Handler struct {
	repo    *Repository
	billing *billing.Guard
	scope   *workspace.Guard
}

// NewHandler creates a clients handler.
func NewHandler(repo *Repository, billingGuard *billing.Guard, scope *workspace.Guard) *Handler {
	return &Handler{repo: repo, billing: billingGuard, scope: scope}
}

// ClientRequest is the body for create/update.
type ClientRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Phone   string `json:"phone"`
	Company string `json:"company"`
	Notes   string `json:"notes"`
}

// List handles GET /clients.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.ListByOrg(c.Request.Context(), workspace.ActiveOrgID(c))
	if err != nil {
		response.Internal(c, "failed to load clients")
		return
	}
	response.OK(c, list)
}

// Get handles GET /clients/:id.
func (h *Handler) Get(c *gin.Context) {
	cl, ok := h.load(c)
	if !ok {
		return
	}
	response.OK(c, cl)
}

// Create handles POST /clients.
func (h *Handler) Create(c *gin.Context) {
	orgID := workspace.ActiveOrgID(c)
	if !h.writable(c, orgID) {
		return
	}
	var body ClientRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	cl := &models.Client{
		OrganizationID: orgID,
		Name:           body.Name,
		Email:          body.Email,
		Phone:          body.Phone,
		Company:        body.Company,
		Notes:          body.Notes,
	}
	if err := h.repo.Create(c.Request.Context(), cl); err != nil {
		response.Internal(c, "failed to create client")
		return
	}
	response.Created(c, cl)
}

// Update handles PATCH /clients/:id.
func (h *Handler) Update(c *gin.Context) {
	cl, ok := h.load(c)
	if !ok {
		return
	}
	if !h.writable(c, cl.OrganizationID) {
		return
	}
	var body ClientRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	cl.Name, cl.Email, cl.Phone, cl.Company, cl.Notes = body.Name, body.Email, body.Phone, body.Company, body.Notes
	if err := h.repo.Update(c.Request.Context(), cl); err != nil {
		response.Internal(c, "failed to update client")
		return
	}
	response.OK(c, cl)
}

// Delete handles DELETE /clients/:id.
func (h *Handler) Delete(c *gin.Context) {
	cl, ok := h.load(c)
	if !ok {
		return
	}
	if !h.writable(c, cl.OrganizationID) {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), cl.ID); err != nil {
		response.Internal(c, "failed to delete client")
		return
	}
	response.NoContent(c)
}

// load fetches the client by id and enforces organization scope on it.
func (h *Handler) load(c *gin.Context) (*models.Client, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid client id")
		return nil, false
	}
	cl, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load client")
		return nil, false
	}
	if cl == nil {
		response.NotFound(c, "client not found")
		return nil, false
	}
	if !h.scope.SameOrg(c, cl.OrganizationID) {
		return nil, false
	}
	return cl, true
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
