package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// QuoteStatus is the lifecycle state of a quote.
type QuoteStatus string

const (
	QuoteDraft    QuoteStatus = "draft"
	QuoteSent     QuoteStatus = "sent"
	QuoteAccepted QuoteStatus = "accepted"
	QuoteDeclined QuoteStatus = "declined"
)

// QuoteItem is a single line on a quote.
type QuoteItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   int64   `json:"unit_price"` // minor currency units
}

// Quote is a priced offer to a client, scoped to an organization.
// Items are stored as a JSONB column.
type Quote struct {
	ID             uuid.UUID       `json:"id"`
	OrganizationID uuid.UUID       `json:"organization_id"`
	ClientID       uuid.UUID       `json:"client_id"`
	Number         string          `json:"number"`
	Status         QuoteStatus     `json:"status"`
	Currency       string          `json:"currency"`
	Items          json.RawMessage `json:"items"`
	TotalAmount    int64           `json:"total_amount"`
	ValidUntil     *time.Time      `json:"valid_until,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
