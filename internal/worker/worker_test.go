package worker

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/opsledger/backend/internal/models"
)

func TestRenderInvoiceDocument(t *testing.T) {
	items, _ := json.Marshal([]models.QuoteItem{
		{Description: "Consulting", Quantity: 3, UnitPrice: 15000},
		{Description: "Hardware", Quantity: 1, UnitPrice: 50000},
	})
	due := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
	inv := &models.Invoice{
		ID:          uuid.New(),
		Number:      "INV-7",
		Currency:    "EUR",
		Items:       items,
		TotalAmount: 95000,
		DueDate:     &due,
		CreatedAt:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	doc := renderInvoiceDocument(inv)
	for _, want := range []string{"INVOICE INV-7", "Issued: 2026-03-01", "Due: 2026-04-15", "Consulting", "Hardware", "TOTAL: 95000 EUR"} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q:\n%s", want, doc)
		}
	}
}

func TestRenderInvoiceDocumentBadItems(t *testing.T) {
	inv := &models.Invoice{
		Number:      "INV-1",
		Currency:    "USD",
		Items:       json.RawMessage(`{"not":"a list"}`),
		TotalAmount: 100,
		CreatedAt:   time.Now(),
	}
	doc := renderInvoiceDocument(inv)
	if !strings.Contains(doc, "TOTAL: 100 USD") {
		t.Fatalf("total missing when items are malformed:\n%s", doc)
	}
}
