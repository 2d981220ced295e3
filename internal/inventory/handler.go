package inventory

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/opsledger/backend/internal/billing"
	"github.com/opsledger/backend/internal/models"
	"github.com/opsledger/backend/internal/workspace"
	"github.com/opsledger/backend/pkg/response"
)

// Handler handles inventory HTTP endpoints. All routes run behind the
// operational scope guard; writes also pass the billing guard.
type Handler struct {
	repo    *Repository
	billing *billing.Guard
	scope   *workspace.Guard
}

// NewHandler creates an inventory handler.
func NewHandler(repo *Repository, billingGuard *billing.Guard, scope *workspace.Guard) *Handler {
	return &Handler{repo: repo, billing: billingGuard, scope: scope}
}

// ItemRequest is the body for POST /inventory.
type ItemRequest struct {
	SKU       string `json:"sku" binding:"required"`
	Name      string `json:"name" binding:"required"`
	Quantity  int    `json:"quantity" binding:"min=0"`
	UnitPrice int64  `json:"unit_price" binding:"min=0"`
}

// UpdateRequest is the body for PATCH /inventory/:id.
type UpdateRequest struct {
	Name      string `json:"name" binding:"required"`
	UnitPrice int64  `json:"unit_price" binding:"min=0"`
}

// AdjustRequest is the body for POST /inventory/:id/adjust.
type AdjustRequest struct {
	Delta int `json:"delta" binding:"required"`
}

// List handles GET /inventory.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.ListByOrg(c.Request.Context(), workspace.ActiveOrgID(c))
	if err != nil {
		response.Internal(c, "failed to load inventory")
		return
	}
	response.OK(c, list)
}

// Get handles GET /inventory/:id.
func (h *Handler) Get(c *gin.Context) {
	it, ok := h.load(c)
	if !ok {
		return
	}
	response.OK(c, it)
}

// Create handles POST /inventory.
func (h *Handler) Create(c *gin.Context) {
	orgID := workspace.ActiveOrgID(c)
	if !h.writable(c, orgID) {
		return
	}
	var body ItemRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	it := &models.InventoryItem{
		OrganizationID: orgID,
		SKU:            body.SKU,
		Name:           body.Name,
		Quantity:       body.Quantity,
		UnitPrice:      body.UnitPrice,
	}
	if err := h.repo.Create(c.Request.Context(), it); err != nil {
		response.Conflict(c, "sku already exists in this organization")
		return
	}
	response.Created(c, it)
}

// Update handles PATCH /inventory/:id.
func (h *Handler) Update(c *gin.Context) {
	it, ok := h.load(c)
	if !ok {
		return
	}
	if !h.writable(c, it.OrganizationID) {
		return
	}
	var body UpdateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	it.Name, it.UnitPrice = body.Name, body.UnitPrice
	if err := h.repo.Update(c.Request.Context(), it); err != nil {
		response.Internal(c, "failed to update item")
		return
	}
	response.OK(c, it)
}

// Adjust handles POST /inventory/:id/adjust. Stock can never go negative.
func (h *Handler) Adjust(c *gin.Context) {
	it, ok := h.load(c)
	if !ok {
		return
	}
	if !h.writable(c, it.OrganizationID) {
		return
	}
	var body AdjustRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	updated, err := h.repo.AdjustQuantity(c.Request.Context(), it.ID, body.Delta)
	if err != nil {
		if errors.Is(err, ErrInsufficientStock) {
			response.Conflict(c, "insufficient stock")
		} else {
			response.Internal(c, "failed to adjust stock")
		}
		return
	}
	response.OK(c, updated)
}

// Delete handles DELETE /inventory/:id.
func (h *Handler) Delete(c *gin.Context) {
	it, ok := h.load(c)
	if !ok {
		return
	}
	if !h.writable(c, it.OrganizationID) {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), it.ID); err != nil {
		response.Internal(c, "failed to delete item")
		return
	}
	response.NoContent(c)
}

// load fetches the item by id and enforces organization scope on it.
func (h *Handler) load(c *gin.Context) (*models.InventoryItem, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid item id")
		return nil, false
	}
	it, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load item")
		return nil, false
	}
	if it == nil {
		response.NotFound(c, "item not found")
		return nil, false
	}
	if !h.scope.SameOrg(c, it.OrganizationID) {
		return nil, false
	}
	return it, true
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
