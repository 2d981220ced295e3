package organizations

import (
	"context"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsledger/backend/internal/middleware"
	"github.com/opsledger/backend/internal/models"
	"github.com/opsledger/backend/internal/workspace"
	"github.com/opsledger/backend/pkg/response"
)

// Slug must be lowercase alphanumeric and hyphens only, 2-64 chars.
var slugRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,63}$`)

// Notifier publishes organization-room realtime events. Implemented by the
// realtime hub; nil disables notifications.
type Notifier interface {
	PublishOrgEvent(orgID uuid.UUID, event string, payload interface{})
}

// Handler handles organization HTTP endpoints.
type Handler struct {
	repo      *Repository
	subs      SubscriptionStarter
	notifier  Notifier
	trialDays int
	logger    *zap.Logger
}

// NewHandler creates an organizations handler.
func NewHandler(repo *Repository, subs SubscriptionStarter, notifier Notifier, trialDays int, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, subs: subs, notifier: notifier, trialDays: trialDays, logger: logger}
}

// CreateRequest is the body for POST /organizations.
type CreateRequest struct {
	Name string `json:"name" binding:"required"`
	Slug string `json:"slug" binding:"required"`
}

// JoinRequest is the body for POST /organizations/join.
type JoinRequest struct {
	Slug string `json:"slug" binding:"required"`
}

// Create handles POST /organizations. Creates the org, adds the current user
// as active owner, and starts a trial subscription.
func (h *Handler) Create(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var body CreateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "name and slug required")
		return
	}
	body.Slug = strings.ToLower(strings.TrimSpace(body.Slug))
	if !slugRegex.MatchString(body.Slug) {
		response.BadRequest(c, "slug must be 2-64 chars, lowercase letters, numbers, hyphens only")
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	if len(body.Name) < 1 || len(body.Name) > 255 {
		response.BadRequest(c, "name must be 1-255 characters")
		return
	}
	org := &models.Organization{Name: body.Name, Slug: body.Slug}
	if err := h.repo.Create(c.Request.Context(), org); err != nil {
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "unique") {
			response.Conflict(c, "an organization with this slug already exists")
			return
		}
		response.Internal(c, "failed to create organization")
		return
	}
	if err := h.repo.AddMember(c.Request.Context(), org.ID, userID, string(workspace.RoleOwner), models.MembershipActive); err != nil {
		response.Internal(c, "failed to add you as owner")
		return
	}
	if h.subs != nil {
		if err := h.subs.StartTrial(c.Request.Context(), org.ID, h.trialDays); err != nil {
			h.logger.Error("start trial failed", zap.Error(err), zap.String("org_id", org.ID.String()))
		}
	}
	response.Created(c, org)
}

// Join handles POST /organizations/join. Creates a pending membership that an
// admin must approve; pending members do not count toward scope resolution.
func (h *Handler) Join(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var body JoinRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "slug required")
		return
	}
	slug := strings.ToLower(strings.TrimSpace(body.Slug))
	org, err := h.repo.GetBySlug(c.Request.Context(), slug)
	if err != nil || org == nil {
		response.NotFound(c, "organization not found")
		return
	}
	existing, err := h.repo.GetMembership(c.Request.Context(), org.ID, userID)
	if err != nil {
		response.Internal(c, "failed to check membership")
		return
	}
	if existing != nil && existing.Status == models.MembershipActive {
		response.Conflict(c, "already a member of this organization")
		return
	}
	if err := h.repo.AddMember(c.Request.Context(), org.ID, userID, string(workspace.RoleMember), models.MembershipPending); err != nil {
		response.Internal(c, "failed to join organization")
		return
	}
	response.OK(c, gin.H{"organization": org, "status": models.MembershipPending})
}

// ListMine handles GET /organizations. Returns orgs where the user holds an
// active membership.
func (h *Handler) ListMine(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	orgs, err := h.repo.ListOrganizationsForUser(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to load organizations")
		return
	}
	response.OK(c, orgs)
}

// ListMembers handles GET /organizations/:id/members. Any active member may list.
func (h *Handler) ListMembers(c *gin.Context) {
	orgID, _, ok := h.requireMembership(c, false)
	if !ok {
		return
	}
	members, err := h.repo.ListMembers(c.Request.Context(), orgID)
	if err != nil {
		response.Internal(c, "failed to load members")
		return
	}
	response.OK(c, members)
}

// ApproveMember handles POST /organizations/:id/members/:userId/approve.
func (h *Handler) ApproveMember(c *gin.Context) {
	orgID, _, ok := h.requireMembership(c, true)
	if !ok {
		return
	}
	targetID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	m, err := h.repo.GetMembership(c.Request.Context(), orgID, targetID)
	if err != nil || m == nil {
		response.NotFound(c, "membership not found")
		return
	}
	if err := h.repo.UpdateMemberStatus(c.Request.Context(), orgID, targetID, models.MembershipActive); err != nil {
		response.Internal(c, "failed to approve member")
		return
	}
	if h.notifier != nil {
		h.notifier.PublishOrgEvent(orgID, "member_joined", gin.H{"user_id": targetID})
	}
	response.OK(c, gin.H{"user_id": targetID, "status": models.MembershipActive})
}

// UpdateMemberRoleRequest is the body for PATCH /organizations/:id/members/:userId.
type UpdateMemberRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// UpdateMemberRole handles PATCH /organizations/:id/members/:userId.
func (h *Handler) UpdateMemberRole(c *gin.Context) {
	orgID, _, ok := h.requireMembership(c, true)
	if !ok {
		return
	}
	targetID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	var body UpdateMemberRoleRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "role required")
		return
	}
	role := workspace.ParseRole(body.Role)
	if role == "" || role == workspace.RoleSuperadmin {
		response.BadRequest(c, "invalid role")
		return
	}
	if err := h.repo.UpdateMemberRole(c.Request.Context(), orgID, targetID, string(role)); err != nil {
		response.Internal(c, "failed to update role")
		return
	}
	response.OK(c, gin.H{"user_id": targetID, "role": role})
}

// RemoveMember handles DELETE /organizations/:id/members/:userId.
func (h *Handler) RemoveMember(c *gin.Context) {
	orgID, userID, ok := h.requireMembership(c, true)
	if !ok {
		return
	}
	targetID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	if targetID == userID {
		response.BadRequest(c, "use leave to remove yourself")
		return
	}
	if err := h.removeGuardingLastOwner(c.Request.Context(), orgID, targetID); err != nil {
		response.Conflict(c, err.Error())
		return
	}
	response.OK(c, gin.H{"user_id": targetID, "removed": true})
}

// Leave handles POST /organizations/:id/leave.
func (h *Handler) Leave(c *gin.Context) {
	orgID, userID, ok := h.requireMembership(c, false)
	if !ok {
		return
	}
	if err := h.removeGuardingLastOwner(c.Request.Context(), orgID, userID); err != nil {
		response.Conflict(c, err.Error())
		return
	}
	response.OK(c, gin.H{"left": true})
}

// requireMembership parses :id and checks the caller's active membership in
// that org. With manage=true the role must also pass CanManageOrganization.
func (h *Handler) requireMembership(c *gin.Context, manage bool) (orgID, userID uuid.UUID, ok bool) {
	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return orgID, userID, false
	}
	userID = c.MustGet(middleware.ContextUserID).(uuid.UUID)
	globalRole, _ := c.MustGet(middleware.ContextUserRole).(string)
	if models.GlobalRole(globalRole) == models.GlobalRoleSuperadmin {
		return orgID, userID, true
	}
	m, err := h.repo.GetMembership(c.Request.Context(), orgID, userID)
	if err != nil {
		response.Internal(c, "failed to check membership")
		return orgID, userID, false
	}
	if m == nil || m.Status != models.MembershipActive {
		response.Forbidden(c, "not a member of this organization")
		return orgID, userID, false
	}
	if manage && !workspace.CanManageOrganization(workspace.ParseRole(m.Role)) {
		response.Forbidden(c, "insufficient permissions")
		return orgID, userID, false
	}
	return orgID, userID, true
}

type conflictError string

func (e conflictError) Error() string { return string(e) }

func (h *Handler) removeGuardingLastOwner(ctx context.Context, orgID, userID uuid.UUID) error {
	m, err := h.repo.GetMembership(ctx, orgID, userID)
	if err != nil {
		return conflictError("failed to load membership")
	}
	if m == nil {
		return conflictError("membership not found")
	}
	if workspace.Role(m.Role) == workspace.RoleOwner {
		owners, err := h.repo.CountOwners(ctx, orgID)
		if err != nil {
			return conflictError("failed to count owners")
		}
		if owners <= 1 {
			return conflictError("an organization must keep at least one owner")
		}
	}
	if err := h.repo.RemoveMember(ctx, orgID, userID); err != nil {
		return conflictError("failed to remove member")
	}
	return nil
}
