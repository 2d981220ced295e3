package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryItem is a stock-tracked product or material, scoped to an organization.
type InventoryItem struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	SKU            string    `json:"sku"`
	Name           string    `json:"name"`
	Quantity       int       `json:"quantity"`
	UnitPrice      int64     `json:"unit_price"` // minor currency units
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
