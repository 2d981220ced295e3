package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoiceDraft   InvoiceStatus = "draft"
	InvoiceSent    InvoiceStatus = "sent"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceVoid    InvoiceStatus = "void"
	InvoiceOverdue InvoiceStatus = "overdue"
)

// Invoice bills a client, scoped to an organization. DocumentKey points at the
// archived document in the S3 documents bucket once the worker has rendered it.
type Invoice struct {
	ID             uuid.UUID       `json:"id"`
	OrganizationID uuid.UUID       `json:"organization_id"`
	ClientID       uuid.UUID       `json:"client_id"`
	QuoteID        *uuid.UUID      `json:"quote_id,omitempty"`
	Number         string          `json:"number"`
	Status         InvoiceStatus   `json:"status"`
	Currency       string          `json:"currency"`
	Items          json.RawMessage `json:"items"`
	TotalAmount    int64           `json:"total_amount"`
	DueDate        *time.Time      `json:"due_date,omitempty"`
	DocumentKey    string          `json:"document_key,omitempty"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
