package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/opsledger/backend/internal/emaillogs"
	"github.com/opsledger/backend/internal/invoices"
	"github.com/opsledger/backend/internal/models"
	"github.com/opsledger/backend/pkg/queue"
	"github.com/opsledger/backend/pkg/storage"
)

// Sender delivers an email. Production wires an SMTP or API-backed sender;
// development uses LogSender.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender logs deliveries instead of sending them.
type LogSender struct {
	Logger *zap.Logger
}

func (s LogSender) Send(_ context.Context, to, subject, _ string) error {
	s.Logger.Info("email delivered (log sender)", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// Processor consumes email and invoice document jobs from the Redis queues.
type Processor struct {
	emails   *emaillogs.Repository
	invoices *invoices.Repository
	sender   Sender
	s3       *storage.S3
	queue    *queue.Queue
	logger   *zap.Logger
}

// NewProcessor creates a job processor. s3 may be nil; document jobs then
// fail and land in the DLQ after retries.
func NewProcessor(emails *emaillogs.Repository, invoicesRepo *invoices.Repository, sender Sender,
	s3 *storage.S3, q *queue.Queue, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{emails: emails, invoices: invoicesRepo, sender: sender, s3: s3, queue: q, logger: logger}
}

// Process executes one job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeEmail:
		return p.processEmail(ctx, job)
	case queue.JobTypeInvoiceDocument:
		return p.processDocument(ctx, job)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (p *Processor) processEmail(ctx context.Context, job *queue.Job) error {
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := p.sender.Send(ctx, payload.Recipient, payload.Subject, payload.BodyText); err != nil {
		if markErr := p.emails.MarkFailed(ctx, payload.EmailLogID, err.Error()); markErr != nil {
			p.logger.Error("mark email failed", zap.Error(markErr), zap.String("email_log_id", payload.EmailLogID.String()))
		}
		return fmt.Errorf("send email: %w", err)
	}
	if err := p.emails.MarkSent(ctx, payload.EmailLogID); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	p.logger.Info("email sent",
		zap.String("email_log_id", payload.EmailLogID.String()),
		zap.String("type", payload.EmailType),
		zap.String("organization_id", payload.OrganizationID.String()))
	return nil
}

func (p *Processor) processDocument(ctx context.Context, job *queue.Job) error {
	var payload queue.InvoiceDocumentPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if p.s3 == nil {
		return fmt.Errorf("document storage not configured")
	}
	inv, err := p.invoices.GetByID(ctx, payload.InvoiceID)
	if err != nil || inv == nil {
		return fmt.Errorf("invoice not found: %s", payload.InvoiceID)
	}
	if inv.DocumentKey != "" {
		p.logger.Info("invoice document already rendered", zap.String("invoice_id", inv.ID.String()))
		return nil
	}

	doc := renderInvoiceDocument(inv)
	key := storage.InvoiceDocumentKey(inv.OrganizationID.String(), inv.ID.String())
	if err := p.s3.Upload(ctx, key, "text/plain; charset=utf-8", strings.NewReader(doc), int64(len(doc))); err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	if err := p.invoices.SetDocumentKey(ctx, inv.ID, key); err != nil {
		p.logger.Error("store document key failed", zap.Error(err), zap.String("invoice_id", inv.ID.String()))
		return fmt.Errorf("update db: %w", err)
	}

	p.logger.Info("invoice document archived", zap.String("invoice_id", inv.ID.String()), zap.String("s3_key", key))
	return nil
}

// renderInvoiceDocument produces the plain-text archive copy of an invoice.
func renderInvoiceDocument(inv *models.Invoice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INVOICE %s\n", inv.Number)
	fmt.Fprintf(&b, "Issued: %s\n", inv.CreatedAt.Format("2006-01-02"))
	if inv.DueDate != nil {
		fmt.Fprintf(&b, "Due: %s\n", inv.DueDate.Format("2006-01-02"))
	}
	b.WriteString("\n")

	var items []models.QuoteItem
	if err := json.Unmarshal(inv.Items, &items); err == nil {
		for _, it := range items {
			fmt.Fprintf(&b, "%-40s %8.2f x %d\n", it.Description, it.Quantity, it.UnitPrice)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "TOTAL: %d %s (minor units)\n", inv.TotalAmount, inv.Currency)
	return b.String()
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("worker stopping")
			return
		default:
		}

		job, key, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, key, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
