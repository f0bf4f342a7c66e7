package entity

import (
	"github.com/shopspring/decimal"
)

// DateLayout is the ISO date layout used for every date field in InvoiceFieldSet.
const DateLayout = "2006-01-02"

// InvoiceFieldSet holds the header fields of an invoice. Every field is always populated.
type InvoiceFieldSet struct {
	InvoiceNumber string  `json:"invoice_number"`
	InvoiceDate   string  `json:"invoice_date"` // YYYY-MM-DD
	DueDate       string  `json:"due_date"`     // YYYY-MM-DD
	VendorName    string  `json:"vendor_name"`
	VendorAddress string  `json:"vendor_address"`
	TotalAmount   float64 `json:"total_amount"`
	Currency      string  `json:"currency"` // ISO 4217
}

// LineItem is one billable row. LineTotal is always Quantity * UnitPrice.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total"`
}

// NewLineItem builds a LineItem and computes its total in decimal. The total is not rounded:
// sub-cent unit prices keep their exact product.
func NewLineItem(description string, quantity int, unitPrice float64) LineItem {
	total := decimal.NewFromInt(int64(quantity)).Mul(decimal.NewFromFloat(unitPrice))
	return LineItem{
		Description: description,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		LineTotal:   total.InexactFloat64(),
	}
}

// Supplemental carries fields only a structured-extraction service can provide.
type Supplemental struct {
	VendorContact     string  `json:"vendor_contact,omitempty"`
	BuyerName         string  `json:"buyer_name,omitempty"`
	BuyerAddress      string  `json:"buyer_address,omitempty"`
	Subtotal          float64 `json:"subtotal,omitempty"`
	TaxAmount         float64 `json:"tax_amount,omitempty"`
	PaymentTerms      string  `json:"payment_terms,omitempty"`
	PONumber          string  `json:"po_number,omitempty"`
	Notes             string  `json:"notes,omitempty"`
	ServiceConfidence float64 `json:"service_confidence,omitempty"`
}

// InvoiceData is the orchestrator's output for one document.
type InvoiceData struct {
	InvoiceFieldSet
	LineItems         []LineItem   `json:"line_items"`
	ExtractedText     string       `json:"extracted_text"`
	OCRConfidence     float64      `json:"ocr_confidence"`
	ParsingConfidence float64      `json:"parsing_confidence"`
	ProcessingMethod  string       `json:"processing_method"`
	LineItemSource    string       `json:"line_item_source"`
	PageCount         int          `json:"page_count,omitempty"`
	Supplemental      Supplemental `json:"supplemental"`
}

// StructuredInvoice is what a structured-extraction service returns.
// Zero-valued fields mean "not provided" and are filled from the regex cascade.
type StructuredInvoice struct {
	Fields       InvoiceFieldSet
	LineItems    []LineItem
	Supplemental Supplemental
	Confidence   float64
}
