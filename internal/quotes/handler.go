package quotes

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsledger/backend/internal/billing"
	"github.com/opsledger/backend/internal/clients"
	"github.com/opsledger/backend/internal/emaillogs"
	"github.com/opsledger/backend/internal/invoices"
	"github.com/opsledger/backend/internal/models"
	"github.com/opsledger/backend/internal/workspace"
	"github.com/opsledger/backend/pkg/queue"
	"github.com/opsledger/backend/pkg/response"
)

// Notifier pushes organization-room events for accepted quotes.
type Notifier interface {
	PublishOrgEvent(orgID uuid.UUID, event string, payload interface{})
}

// Handler handles quote HTTP endpoints. All routes run behind the operational
// scope guard; writes also pass the billing guard.
type Handler struct {
	repo     *Repository
	clients  *clients.Repository
	invoices *invoices.Repository
	emails   *emaillogs.Repository
	queue    *queue.Queue
	notifier Notifier
	billing  *billing.Guard
	scope    *workspace.Guard
	logger   *zap.Logger
}

// NewHandler creates a quotes handler. Notifier may be nil.
func NewHandler(repo *Repository, clientsRepo *clients.Repository, invoicesRepo *invoices.Repository,
	emails *emaillogs.Repository, q *queue.Queue, notifier Notifier,
	billingGuard *billing.Guard, scope *workspace.Guard, logger *zap.Logger) *Handler {
	return &Handler{
		repo:     repo,
		clients:  clientsRepo,
		invoices: invoicesRepo,
		emails:   emails,
		queue:    q,
		notifier: notifier,
		billing:  billingGuard,
		scope:    scope,
		logger:   logger,
	}
}

// QuoteRequest is the body for POST /quotes.
type QuoteRequest struct {
	ClientID   uuid.UUID          `json:"client_id" binding:"required"`
	Currency   string             `json:"currency"`
	Items      []models.QuoteItem `json:"items" binding:"required,min=1,dive"`
	ValidUntil *string            `json:"valid_until"`
}

// List handles GET /quotes.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.ListByOrg(c.Request.Context(), workspace.ActiveOrgID(c))
	if err != nil {
		response.Internal(c, "failed to load quotes")
		return
	}
	response.OK(c, list)
}

// Get handles GET /quotes/:id.
func (h *Handler) Get(c *gin.Context) {
	q, ok := h.load(c)
	if !ok {
		return
	}
	response.OK(c, q)
}

// Create handles POST /quotes. The quote number and total are computed
// server-side from the items.
func (h *Handler) Create(c *gin.Context) {
	orgID := workspace.ActiveOrgID(c)
	if !h.writable(c, orgID) {
		return
	}
	var body QuoteRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	cl, err := h.clients.GetByID(c.Request.Context(), body.ClientID)
	if err != nil {
		response.Internal(c, "failed to load client")
		return
	}
	if cl == nil || cl.OrganizationID != orgID {
		response.BadRequest(c, "unknown client")
		return
	}
	var total int64
	for _, it := range body.Items {
		total += int64(it.Quantity * float64(it.UnitPrice))
	}
	items, err := json.Marshal(body.Items)
	if err != nil {
		response.BadRequest(c, "invalid items")
		return
	}
	number, err := h.repo.NextNumber(c.Request.Context(), orgID)
	if err != nil {
		response.Internal(c, "failed to number quote")
		return
	}
	currency := body.Currency
	if currency == "" {
		currency = "USD"
	}
	q := &models.Quote{
		OrganizationID: orgID,
		ClientID:       cl.ID,
		Number:         number,
		Status:         models.QuoteDraft,
		Currency:       currency,
		Items:          items,
		TotalAmount:    total,
	}
	if err := h.repo.Create(c.Request.Context(), q); err != nil {
		response.Internal(c, "failed to create quote")
		return
	}
	response.Created(c, q)
}

// Send handles POST /quotes/:id/send. The quote is emailed to the client
// through the background worker and moves to the sent state.
func (h *Handler) Send(c *gin.Context) {
	q, ok := h.load(c)
	if !ok {
		return
	}
	if !h.writable(c, q.OrganizationID) {
		return
	}
	if q.Status != models.QuoteDraft {
		response.Conflict(c, "only draft quotes can be sent")
		return
	}
	cl, err := h.clients.GetByID(c.Request.Context(), q.ClientID)
	if err != nil || cl == nil {
		response.Internal(c, "failed to load client")
		return
	}
	ctx := c.Request.Context()
	subject := fmt.Sprintf("Quote %s", q.Number)
	logID, err := h.emails.Create(ctx, q.OrganizationID, "quote", cl.Email, subject)
	if err != nil {
		response.Internal(c, "failed to record email")
		return
	}
	err = h.queue.EnqueueEmail(ctx, queue.EmailPayload{
		EmailLogID:     logID,
		OrganizationID: q.OrganizationID,
		EmailType:      "quote",
		Recipient:      cl.Email,
		Subject:        subject,
		BodyText:       quoteEmailBody(q, cl),
	})
	if err != nil {
		response.Internal(c, "failed to queue email")
		return
	}
	if err := h.repo.UpdateStatus(ctx, q.ID, models.QuoteSent); err != nil {
		response.Internal(c, "failed to update quote")
		return
	}
	q.Status = models.QuoteSent
	response.OK(c, q)
}

// Accept handles POST /quotes/:id/accept. Accepting a sent quote creates a
// draft invoice carrying the quote's items and total.
func (h *Handler) Accept(c *gin.Context) {
	q, ok := h.load(c)
	if !ok {
		return
	}
	if !h.writable(c, q.OrganizationID) {
		return
	}
	if q.Status != models.QuoteSent {
		response.Conflict(c, "only sent quotes can be accepted")
		return
	}
	ctx := c.Request.Context()
	number, err := h.invoices.NextNumber(ctx, q.OrganizationID)
	if err != nil {
		response.Internal(c, "failed to number invoice")
		return
	}
	inv := &models.Invoice{
		OrganizationID: q.OrganizationID,
		ClientID:       q.ClientID,
		QuoteID:        &q.ID,
		Number:         number,
		Status:         models.InvoiceDraft,
		Currency:       q.Currency,
		Items:          q.Items,
		TotalAmount:    q.TotalAmount,
	}
	if err := h.invoices.Create(ctx, inv); err != nil {
		response.Internal(c, "failed to create invoice")
		return
	}
	if err := h.repo.UpdateStatus(ctx, q.ID, models.QuoteAccepted); err != nil {
		response.Internal(c, "failed to update quote")
		return
	}
	q.Status = models.QuoteAccepted
	if h.notifier != nil {
		h.notifier.PublishOrgEvent(q.OrganizationID, "quote_accepted", gin.H{
			"quote_id":   q.ID,
			"invoice_id": inv.ID,
		})
	}
	h.logger.Info("quote accepted",
		zap.String("quote_id", q.ID.String()),
		zap.String("invoice_id", inv.ID.String()),
		zap.String("organization_id", q.OrganizationID.String()))
	response.OK(c, gin.H{"quote": q, "invoice": inv})
}

// Decline handles POST /quotes/:id/decline.
func (h *Handler) Decline(c *gin.Context) {
	q, ok := h.load(c)
	if !ok {
		return
	}
	if !h.writable(c, q.OrganizationID) {
		return
	}
	if q.Status != models.QuoteSent {
		response.Conflict(c, "only sent quotes can be declined")
		return
	}
	if err := h.repo.UpdateStatus(c.Request.Context(), q.ID, models.QuoteDeclined); err != nil {
		response.Internal(c, "failed to update quote")
		return
	}
	q.Status = models.QuoteDeclined
	response.OK(c, q)
}

func quoteEmailBody(q *models.Quote, cl *models.Client) string {
	return fmt.Sprintf("Hello %s,\n\nPlease find quote %s for a total of %d %s (minor units).\n",
		cl.Name, q.Number, q.TotalAmount, q.Currency)
}

// load fetches the quote by id and enforces organization scope on it.
func (h *Handler) load(c *gin.Context) (*models.Quote, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid quote id")
		return nil, false
	}
	q, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load quote")
		return nil, false
	}
	if q == nil {
		response.NotFound(c, "quote not found")
		return nil, false
	}
	if !h.scope.SameOrg(c, q.OrganizationID) {
		return nil, false
	}
	return q, true
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
