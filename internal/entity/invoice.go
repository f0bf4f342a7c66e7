package entity

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-tracker/constants"
)

// Party is a vendor or buyer on an invoice.
type Party struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Contact string `json:"contact,omitempty"`
}

// Invoice represents a persisted invoice for data transfer between layers.
type Invoice struct {
	ID               uuid.UUID  `json:"id"`
	FileID           *uuid.UUID `json:"file_id,omitempty"`
	UploadedBy       string     `json:"uploaded_by"`
	InvoiceType      string     `json:"invoice_type"`
	FileURL          string     `json:"file_url"`
	InvoiceNumber    string     `json:"invoice_number"`
	InvoiceDate      *time.Time `json:"invoice_date,omitempty"`
	DueDate          *time.Time `json:"due_date,omitempty"`
	Vendor           Party      `json:"vendor"`
	Buyer            Party      `json:"buyer"`
	TotalAmount      float64    `json:"total_amount"`
	Currency         string     `json:"currency"`
	TaxDetails       string     `json:"tax_details,omitempty"`
	PONumber         string     `json:"po_number,omitempty"`
	PaymentTerms     string     `json:"payment_terms"`
	LineItems        []LineItem `json:"line_items"`
	ConfidenceScore  float64    `json:"confidence_score"`
	IsVerified       bool       `json:"is_verified"`
	ExtractedText    string     `json:"extracted_text,omitempty"`
	OCRConfidence    float64    `json:"ocr_confidence"`
	ProcessingMethod string     `json:"processing_method"`
	ParsedFields     []string   `json:"parsed_fields"`
	CorrectedFields  []string   `json:"corrected_fields"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// InvoiceMeta is the caller-supplied context for turning InvoiceData into a record.
type InvoiceMeta struct {
	UploadedBy  string
	FileURL     string
	FileID      *uuid.UUID
	InvoiceType constants.InvoiceType
}

// Record defaults for fields extraction may leave empty.
const (
	DefaultBuyerName    = "Your Company"
	DefaultBuyerAddress = "456 Corporate Ave"
	DefaultPaymentTerms = "Net 30"
)

// NewInvoice builds an invoice record from extraction output.
func NewInvoice(data InvoiceData, meta InvoiceMeta) Invoice {
	typ := meta.InvoiceType
	if !typ.Valid() {
		typ = constants.InvoiceTypePurchase
	}
	sup := data.Supplemental

	inv := Invoice{
		ID:               uuid.New(),
		FileID:           meta.FileID,
		UploadedBy:       meta.UploadedBy,
		InvoiceType:      string(typ),
		FileURL:          meta.FileURL,
		InvoiceNumber:    data.InvoiceNumber,
		InvoiceDate:      parseDate(data.InvoiceDate),
		DueDate:          parseDate(data.DueDate),
		Vendor:           Party{Name: data.VendorName, Address: data.VendorAddress, Contact: sup.VendorContact},
		Buyer:            Party{Name: orDefault(sup.BuyerName, DefaultBuyerName), Address: orDefault(sup.BuyerAddress, DefaultBuyerAddress)},
		TotalAmount:      data.TotalAmount,
		Currency:         data.Currency,
		PONumber:         sup.PONumber,
		PaymentTerms:     orDefault(sup.PaymentTerms, DefaultPaymentTerms),
		LineItems:        append([]LineItem(nil), data.LineItems...),
		ConfidenceScore:  data.ParsingConfidence,
		ExtractedText:    data.ExtractedText,
		OCRConfidence:    data.OCRConfidence,
		ProcessingMethod: data.ProcessingMethod,
		ParsedFields:     ParsedFields(data),
		CorrectedFields:  []string{},
	}
	if sup.TaxAmount > 0 {
		inv.TaxDetails = fmt.Sprintf("Tax: $%.2f", sup.TaxAmount)
	}
	return inv
}

// ParsedFields lists the non-empty fields of an extraction result, by JSON name.
func ParsedFields(d InvoiceData) []string {
	out := make([]string, 0, 16)
	add := func(name string, present bool) {
		if present {
			out = append(out, name)
		}
	}
	add("invoice_number", d.InvoiceNumber != "")
	add("invoice_date", d.InvoiceDate != "")
	add("due_date", d.DueDate != "")
	add("vendor_name", d.VendorName != "")
	add("vendor_address", d.VendorAddress != "")
	add("total_amount", d.TotalAmount != 0)
	add("currency", d.Currency != "")
	add("line_items", len(d.LineItems) > 0)
	add("vendor_contact", d.Supplemental.VendorContact != "")
	add("buyer_name", d.Supplemental.BuyerName != "")
	add("buyer_address", d.Supplemental.BuyerAddress != "")
	add("subtotal", d.Supplemental.Subtotal != 0)
	add("tax_amount", d.Supplemental.TaxAmount != 0)
	add("payment_terms", d.Supplemental.PaymentTerms != "")
	add("po_number", d.Supplemental.PONumber != "")
	add("notes", d.Supplemental.Notes != "")
	return out
}

func parseDate(s string) *time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// CorrectableFields lists the invoice fields a reviewer may overwrite, by JSON name.
var CorrectableFields = []string{
	"invoice_number", "invoice_date", "due_date",
	"vendor_name", "vendor_address", "vendor_contact",
	"buyer_name", "buyer_address",
	"total_amount", "currency", "tax_details", "po_number", "payment_terms",
}

// Correct overwrites one field with a reviewer-supplied value and records the field in
// CorrectedFields.
func (inv *Invoice) Correct(field, value string) error {
	value = strings.TrimSpace(value)
	switch field {
	case "invoice_number":
		inv.InvoiceNumber = value
	case "invoice_date", "due_date":
		t, err := time.Parse(DateLayout, value)
		if err != nil {
			return fmt.Errorf("%s must be a YYYY-MM-DD date", field)
		}
		if field == "invoice_date" {
			inv.InvoiceDate = &t
		} else {
			inv.DueDate = &t
		}
	case "vendor_name":
		inv.Vendor.Name = value
	case "vendor_address":
		inv.Vendor.Address = value
	case "vendor_contact":
		inv.Vendor.Contact = value
	case "buyer_name":
		inv.Buyer.Name = value
	case "buyer_address":
		inv.Buyer.Address = value
	case "total_amount":
		n, err := strconv.ParseFloat(strings.NewReplacer(",", "", "$", "").Replace(value), 64)
		if err != nil || n < 0 {
			return fmt.Errorf("total_amount must be a non-negative number")
		}
		inv.TotalAmount = n
	case "currency":
		if len(value) != 3 {
			return fmt.Errorf("currency must be a 3-letter code")
		}
		inv.Currency = strings.ToUpper(value)
	case "tax_details":
		inv.TaxDetails = value
	case "po_number":
		inv.PONumber = value
	case "payment_terms":
		inv.PaymentTerms = value
	default:
		return fmt.Errorf("field %q cannot be corrected", field)
	}
	if !slices.Contains(inv.CorrectedFields, field) {
		inv.CorrectedFields = append(inv.CorrectedFields, field)
	}
	return nil
}
