package workspace

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsledger/backend/internal/middleware"
	"github.com/opsledger/backend/internal/models"
	"github.com/opsledger/backend/pkg/response"
)

// Handler exposes workspace resolution over HTTP: inspection, explicit
// switches, the superadmin bridge, and the debug endpoint.
type Handler struct {
	svc          *Service
	logger       *zap.Logger
	debugEnabled bool
}

// NewHandler creates a workspace handler. debugEnabled gates the diagnostic
// endpoint; when false it 404s like an unknown route.
func NewHandler(svc *Service, logger *zap.Logger, debugEnabled bool) *Handler {
	return &Handler{svc: svc, logger: logger, debugEnabled: debugEnabled}
}

// Get handles GET /workspace. Returns the resolved workspace for the current
// user and applies any pending cookie repair.
func (h *Handler) Get(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	res, err := h.svc.Resolve(c.Request.Context(), userID, CookieOrgID(c))
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			response.Unauthorized(c, "unknown user")
			return
		}
		response.Internal(c, "failed to resolve workspace")
		return
	}
	ApplyCookieRepairs(c, res.Repairs)
	response.OK(c, res)
}

// SwitchRequest is the body for POST /workspace/switch and /workspace/bridge.
type SwitchRequest struct {
	OrganizationID uuid.UUID `json:"organization_id" binding:"required"`
}

// Switch handles POST /workspace/switch. Explicit, audited context switch:
// requires an active membership (or superadmin), sets the 7-day cookie and
// updates the profile pointer.
func (h *Handler) Switch(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var body SwitchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "organization_id required")
		return
	}
	if err := h.svc.Switch(c.Request.Context(), userID, body.OrganizationID); err != nil {
		if errors.Is(err, ErrScopeMismatch) {
			response.Forbidden(c, MsgScopeMismatch)
			return
		}
		response.Internal(c, "failed to switch organization")
		return
	}
	SetOrgCookie(c, body.OrganizationID, SwitchCookieMaxAge)
	response.OK(c, gin.H{"active_org_id": body.OrganizationID})
}

// Bridge handles POST /workspace/bridge. Superadmin-only temporary context:
// sets a 1-day cookie without touching the profile pointer, so the bridge
// expires on its own.
func (h *Handler) Bridge(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	role, _ := c.MustGet(middleware.ContextUserRole).(string)
	if models.GlobalRole(role) != models.GlobalRoleSuperadmin {
		response.Forbidden(c, "superadmin required")
		return
	}
	var body SwitchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "organization_id required")
		return
	}
	SetOrgCookie(c, body.OrganizationID, BridgeCookieMaxAge)
	h.logger.Info("superadmin bridge opened",
		zap.String("user_id", userID.String()),
		zap.String("org_id", body.OrganizationID.String()))
	response.OK(c, gin.H{"active_org_id": body.OrganizationID, "bridge": true})
}

// Debug handles GET /debug/workspace. Gated by config; 404 when disabled.
// Returns the resolver output next to the raw membership rows so operators can
// compare the resolution against ground truth.
func (h *Handler) Debug(c *gin.Context) {
	if !h.debugEnabled {
		response.NotFound(c, "not found")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	res, err := h.svc.Resolve(c.Request.Context(), userID, CookieOrgID(c))
	if err != nil {
		response.Internal(c, "failed to resolve workspace")
		return
	}
	memberships, err := h.svc.members.ListMembershipsForUser(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to load memberships")
		return
	}
	response.OK(c, gin.H{
		"active_org_id":       res.ActiveOrgID,
		"organizations_count": res.OrganizationsCount,
		"is_auto_provisioned": res.IsAutoProvisioned,
		"recommended_route":   res.RecommendedRoute,
		"scope_status":        res.ScopeStatus,
		"memberships":         memberships,
	})
}
