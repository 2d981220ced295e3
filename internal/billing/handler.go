package billing

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsledger/backend/internal/models"
	"github.com/opsledger/backend/internal/workspace"
	"github.com/opsledger/backend/pkg/response"
)

// Handler handles billing HTTP endpoints.
type Handler struct {
	repo          *Repository
	webhookSecret string
	logger        *zap.Logger
}

// NewHandler creates a billing handler.
func NewHandler(repo *Repository, webhookSecret string, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, webhookSecret: webhookSecret, logger: logger}
}

// GetSubscription handles GET /billing/subscription for the active organization.
func (h *Handler) GetSubscription(c *gin.Context) {
	orgID := workspace.ActiveOrgID(c)
	sub, err := h.repo.GetByOrgID(c.Request.Context(), orgID)
	if err != nil {
		response.Internal(c, "failed to load subscription")
		return
	}
	if sub == nil {
		response.NotFound(c, "no subscription for this organization")
		return
	}
	response.OK(c, sub)
}

// WebhookPayload is the body the payment provider posts on subscription changes.
type WebhookPayload struct {
	OrganizationID string `json:"organization_id" binding:"required"`
	Plan           string `json:"plan"`
	Status         string `json:"status" binding:"required"`
	ProviderRef    string `json:"provider_ref"`
}

// Webhook handles POST /webhooks/billing. Authenticated by a shared-secret
// header; applies the provider-reported status to the subscription row.
func (h *Handler) Webhook(c *gin.Context) {
	if h.webhookSecret != "" {
		got := c.GetHeader("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.webhookSecret)) != 1 {
			response.Unauthorized(c, "invalid webhook secret")
			return
		}
	}
	var body WebhookPayload
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	orgID, err := uuid.Parse(body.OrganizationID)
	if err != nil {
		response.BadRequest(c, "invalid organization_id")
		return
	}
	status := models.SubscriptionStatus(body.Status)
	switch status {
	case models.SubscriptionActive, models.SubscriptionTrialing, models.SubscriptionPastDue,
		models.SubscriptionPaused, models.SubscriptionCanceled:
	default:
		response.BadRequest(c, "unknown status")
		return
	}
	if err := h.repo.UpdateStatus(c.Request.Context(), orgID, body.Plan, status, body.ProviderRef); err != nil {
		h.logger.Error("billing webhook update failed", zap.Error(err), zap.String("org_id", orgID.String()))
		response.Internal(c, "failed to update subscription")
		return
	}
	h.logger.Info("billing webhook processed",
		zap.String("org_id", orgID.String()),
		zap.String("status", string(status)))
	response.OK(c, gin.H{"organization_id": orgID, "status": status})
}
