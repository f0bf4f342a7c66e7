package llm

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by a Backend that has no endpoint to talk to.
var ErrNotConfigured = errors.New("structured extraction service not configured")

// InvoiceFields is the normalized shape we want from a structured-extraction service.
// Zero values mean the service did not provide the field.
type InvoiceFields struct {
	InvoiceNumber string           `json:"invoice_number,omitempty"`
	InvoiceDate   string           `json:"invoice_date,omitempty"` // YYYY-MM-DD
	DueDate       string           `json:"due_date,omitempty"`     // YYYY-MM-DD
	VendorName    string           `json:"vendor_name,omitempty"`
	VendorAddress string           `json:"vendor_address,omitempty"`
	VendorContact string           `json:"vendor_contact,omitempty"`
	BuyerName     string           `json:"buyer_name,omitempty"`
	BuyerAddress  string           `json:"buyer_address,omitempty"`
	TotalAmount   float64          `json:"total_amount,omitempty"`
	Subtotal      float64          `json:"subtotal,omitempty"`
	TaxAmount     float64          `json:"tax_amount,omitempty"`
	Currency      string           `json:"currency,omitempty"` // ISO 4217
	PaymentTerms  string           `json:"payment_terms,omitempty"`
	PONumber      string           `json:"po_number,omitempty"`
	LineItems     []LineItemFields `json:"line_items,omitempty"`
	Notes         string           `json:"notes,omitempty"`
	Confidence    float64          `json:"confidence,omitempty"` // 0..1
}

type LineItemFields struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity,omitempty"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total,omitempty"` // informational; recomputed on conversion
}

// Backend sends OCR text to one service and returns the raw JSON document it produced.
type Backend interface {
	Name() string
	Complete(ctx context.Context, text, fileType string) ([]byte, error)
}
