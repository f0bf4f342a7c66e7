package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	raw []byte
	err error
}

func (f fakeBackend) Name() string { return "fake" }

func (f fakeBackend) Complete(context.Context, string, string) ([]byte, error) {
	return f.raw, f.err
}

func TestNormalizeAndSanitizeJSON(t *testing.T) {
	raw := []byte(`{
		"invoiceNumber": " INV-9 ",
		"invoice_date": "2024-03-01",
		"due_date": "03/31/2024",
		"vendor_name": "",
		"total_amount": "$1,450.00",
		"tax_amount": null,
		"currency": "usd",
		"confidence": 93,
		"extra": true,
		"line_items": [
			{"description": "Web Development", "quantity": "2", "unitPrice": "500", "lineTotal": 1000},
			{"description": "", "unit_price": 5},
			"junk"
		]
	}`)

	out, notes, err := NormalizeAndSanitizeJSON(raw, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, notes)

	var m map[string]any
	require.NoError(t, json.Unmarshal(out, &m))
	assert.Equal(t, "INV-9", m["invoice_number"])
	assert.Equal(t, "2024-03-01", m["invoice_date"])
	assert.NotContains(t, m, "due_date")
	assert.NotContains(t, m, "vendor_name")
	assert.NotContains(t, m, "tax_amount")
	assert.NotContains(t, m, "extra")
	assert.Equal(t, 1450.0, m["total_amount"])
	assert.Equal(t, "USD", m["currency"])
	assert.InDelta(t, 0.93, m["confidence"], 1e-9)

	items, ok := m["line_items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, 500.0, item["unit_price"])
	assert.Equal(t, 2.0, item["quantity"])
	assert.Equal(t, 1000.0, item["line_total"])

	require.NoError(t, ValidateInvoiceJSON(out))
}

func TestValidateInvoiceJSON_RejectsBadShape(t *testing.T) {
	assert.Error(t, ValidateInvoiceJSON([]byte(`{"total_amount": "abc"}`)))
	assert.Error(t, ValidateInvoiceJSON([]byte(`{"invoice_date": "yesterday"}`)))
	assert.Error(t, ValidateInvoiceJSON([]byte(`not json`)))
}

func TestExtractor_TryExtract(t *testing.T) {
	raw := []byte(`{"invoice_number":"A-1","vendor_name":"Acme","total_amount":99.5,
		"buyer_name":"Globex","payment_terms":"Net 15",
		"line_items":[{"description":"Widget","quantity":3,"unit_price":10.5,"line_total":999}]}`)
	x := NewExtractor(fakeBackend{raw: raw}, nil)

	inv, ok := x.TryExtract(context.Background(), "text", "pdf")
	require.True(t, ok)
	assert.Equal(t, "A-1", inv.Fields.InvoiceNumber)
	assert.Equal(t, 99.5, inv.Fields.TotalAmount)
	assert.Equal(t, DefaultServiceConfidence, inv.Confidence)
	assert.Equal(t, "Globex", inv.Supplemental.BuyerName)
	assert.Equal(t, "Net 15", inv.Supplemental.PaymentTerms)
	require.Len(t, inv.LineItems, 1)
	assert.Equal(t, 31.5, inv.LineItems[0].LineTotal)
}

func TestExtractor_FailuresAreNotOK(t *testing.T) {
	tests := []struct {
		name    string
		backend fakeBackend
	}{
		{name: "not configured", backend: fakeBackend{err: ErrNotConfigured}},
		{name: "backend error", backend: fakeBackend{err: errors.New("connection refused")}},
		{name: "not json", backend: fakeBackend{raw: []byte("<html>")}},
		{name: "nothing usable", backend: fakeBackend{raw: []byte(`{"notes":"blurry"}`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := NewExtractor(tt.backend, nil).TryExtract(context.Background(), "text", "image")
			assert.False(t, ok)
		})
	}
}

func TestSnakeCase(t *testing.T) {
	assert.Equal(t, "unit_price", snakeCase("unitPrice"))
	assert.Equal(t, "po_number", snakeCase("poNumber"))
	assert.Equal(t, "total_amount", snakeCase("total_amount"))
}
