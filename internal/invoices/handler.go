package invoices

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsledger/backend/internal/billing"
	"github.com/opsledger/backend/internal/clients"
	"github.com/opsledger/backend/internal/emaillogs"
	"github.com/opsledger/backend/internal/models"
	"github.com/opsledger/backend/internal/workspace"
	"github.com/opsledger/backend/pkg/queue"
	"github.com/opsledger/backend/pkg/response"
	"github.com/opsledger/backend/pkg/storage"
)

// Notifier pushes organization-room events for paid invoices.
type Notifier interface {
	PublishOrgEvent(orgID uuid.UUID, event string, payload interface{})
}

// Handler handles invoice HTTP endpoints. All routes run behind the
// operational scope guard; writes also pass the billing guard.
type Handler struct {
	repo     *Repository
	clients  *clients.Repository
	emails   *emaillogs.Repository
	queue    *queue.Queue
	s3       *storage.S3
	notifier Notifier
	billing  *billing.Guard
	scope    *workspace.Guard
	logger   *zap.Logger
}

// NewHandler creates an invoices handler. s3 and notifier may be nil.
func NewHandler(repo *Repository, clientsRepo *clients.Repository, emails *emaillogs.Repository,
	q *queue.Queue, s3 *storage.S3, notifier Notifier,
	billingGuard *billing.Guard, scope *workspace.Guard, logger *zap.Logger) *Handler {
	return &Handler{
		repo:     repo,
		clients:  clientsRepo,
		emails:   emails,
		queue:    q,
		s3:       s3,
		notifier: notifier,
		billing:  billingGuard,
		scope:    scope,
		logger:   logger,
	}
}

// InvoiceRequest is the body for POST /invoices.
type InvoiceRequest struct {
	ClientID uuid.UUID          `json:"client_id" binding:"required"`
	Currency string             `json:"currency"`
	Items    []models.QuoteItem `json:"items" binding:"required,min=1,dive"`
	DueDate  *time.Time         `json:"due_date"`
}

// List handles GET /invoices.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.ListByOrg(c.Request.Context(), workspace.ActiveOrgID(c))
	if err != nil {
		response.Internal(c, "failed to load invoices")
		return
	}
	response.OK(c, list)
}

// Get handles GET /invoices/:id.
func (h *Handler) Get(c *gin.Context) {
	inv, ok := h.load(c)
	if !ok {
		return
	}
	response.OK(c, inv)
}

// Create handles POST /invoices. Standalone invoices are created as drafts;
// invoices derived from quotes are created by the quote accept flow.
func (h *Handler) Create(c *gin.Context) {
	orgID := workspace.ActiveOrgID(c)
	if !h.writable(c, orgID) {
		return
	}
	var body InvoiceRequest
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
		response.Internal(c, "failed to number invoice")
		return
	}
	currency := body.Currency
	if currency == "" {
		currency = "USD"
	}
	inv := &models.Invoice{
		OrganizationID: orgID,
		ClientID:       cl.ID,
		Number:         number,
		Status:         models.InvoiceDraft,
		Currency:       currency,
		Items:          items,
		TotalAmount:    total,
		DueDate:        body.DueDate,
	}
	if err := h.repo.Create(c.Request.Context(), inv); err != nil {
		response.Internal(c, "failed to create invoice")
		return
	}
	response.Created(c, inv)
}

// Send handles POST /invoices/:id/send. The invoice is emailed to the client
// and a document render job is queued so the archived copy lands in S3.
func (h *Handler) Send(c *gin.Context) {
	inv, ok := h.load(c)
	if !ok {
		return
	}
	if !h.writable(c, inv.OrganizationID) {
		return
	}
	if inv.Status != models.InvoiceDraft {
		response.Conflict(c, "only draft invoices can be sent")
		return
	}
	cl, err := h.clients.GetByID(c.Request.Context(), inv.ClientID)
	if err != nil || cl == nil {
		response.Internal(c, "failed to load client")
		return
	}
	ctx := c.Request.Context()
	subject := fmt.Sprintf("Invoice %s", inv.Number)
	logID, err := h.emails.Create(ctx, inv.OrganizationID, "invoice", cl.Email, subject)
	if err != nil {
		response.Internal(c, "failed to record email")
		return
	}
	err = h.queue.EnqueueEmail(ctx, queue.EmailPayload{
		EmailLogID:     logID,
		OrganizationID: inv.OrganizationID,
		EmailType:      "invoice",
		Recipient:      cl.Email,
		Subject:        subject,
		BodyText:       invoiceEmailBody(inv, cl),
	})
	if err != nil {
		response.Internal(c, "failed to queue email")
		return
	}
	err = h.queue.EnqueueInvoiceDocument(ctx, queue.InvoiceDocumentPayload{
		InvoiceID:      inv.ID,
		OrganizationID: inv.OrganizationID,
	})
	if err != nil {
		response.Internal(c, "failed to queue document render")
		return
	}
	if err := h.repo.UpdateStatus(ctx, inv.ID, models.InvoiceSent); err != nil {
		response.Internal(c, "failed to update invoice")
		return
	}
	inv.Status = models.InvoiceSent
	response.OK(c, inv)
}

// MarkPaid handles POST /invoices/:id/paid.
func (h *Handler) MarkPaid(c *gin.Context) {
	inv, ok := h.load(c)
	if !ok {
		return
	}
	if !h.writable(c, inv.OrganizationID) {
		return
	}
	if inv.Status != models.InvoiceSent && inv.Status != models.InvoiceOverdue {
		response.Conflict(c, "only sent or overdue invoices can be marked paid")
		return
	}
	if err := h.repo.UpdateStatus(c.Request.Context(), inv.ID, models.InvoicePaid); err != nil {
		response.Internal(c, "failed to update invoice")
		return
	}
	inv.Status = models.InvoicePaid
	if h.notifier != nil {
		h.notifier.PublishOrgEvent(inv.OrganizationID, "invoice_paid", gin.H{"invoice_id": inv.ID})
	}
	h.logger.Info("invoice paid",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("organization_id", inv.OrganizationID.String()))
	response.OK(c, inv)
}

// Void handles POST /invoices/:id/void.
func (h *Handler) Void(c *gin.Context) {
	inv, ok := h.load(c)
	if !ok {
		return
	}
	if !h.writable(c, inv.OrganizationID) {
		return
	}
	if inv.Status == models.InvoicePaid {
		response.Conflict(c, "paid invoices cannot be voided")
		return
	}
	if err := h.repo.UpdateStatus(c.Request.Context(), inv.ID, models.InvoiceVoid); err != nil {
		response.Internal(c, "failed to update invoice")
		return
	}
	inv.Status = models.InvoiceVoid
	response.OK(c, inv)
}

// DocumentURL handles GET /invoices/:id/document. Returns a pre-signed
// download URL for the archived document.
func (h *Handler) DocumentURL(c *gin.Context) {
	inv, ok := h.load(c)
	if !ok {
		return
	}
	if h.s3 == nil {
		response.ServiceUnavailable(c, "document storage not configured")
		return
	}
	if inv.DocumentKey == "" {
		response.NotFound(c, "document not yet rendered")
		return
	}
	url, err := h.s3.GeneratePresignedDownloadURL(c.Request.Context(), inv.DocumentKey, h.s3.PresignExpire())
	if err != nil {
		response.Internal(c, "failed to sign document url")
		return
	}
	response.OK(c, gin.H{"url": url, "expires_in_seconds": int(h.s3.PresignExpire().Seconds())})
}

func invoiceEmailBody(inv *models.Invoice, cl *models.Client) string {
	return fmt.Sprintf("Hello %s,\n\nInvoice %s is due for a total of %d %s (minor units).\n",
		cl.Name, inv.Number, inv.TotalAmount, inv.Currency)
}

// load fetches the invoice by id and enforces organization scope on it.
func (h *Handler) load(c *gin.Context) (*models.Invoice, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid invoice id")
		return nil, false
	}
	inv, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load invoice")
		return nil, false
	}
	if inv == nil {
		response.NotFound(c, "invoice not found")
		return nil, false
	}
	if !h.scope.SameOrg(c, inv.OrganizationID) {
		return nil, false
	}
	return inv, true
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
