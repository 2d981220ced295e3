package emaillogs

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/opsledger/backend/internal/workspace"
	"github.com/opsledger/backend/pkg/response"
)

// Handler handles email log HTTP endpoints.
type Handler struct {
	repo *Repository
}

// NewHandler creates an email logs handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// List handles GET /emails for the active organization.
func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	list, err := h.repo.ListByOrg(c.Request.Context(), workspace.ActiveOrgID(c), limit)
	if err != nil {
		response.Internal(c, "failed to load email logs")
		return
	}
	response.OK(c, list)
}
