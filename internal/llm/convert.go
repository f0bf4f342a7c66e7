package llm

import (
	"math"

	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
)

// DefaultServiceConfidence is assumed when a service does not report its own.
const DefaultServiceConfidence = 0.8

// ToStructured converts sanitized service fields into the domain shape. ok is false when the
// response carries none of invoice number, vendor name or total, which makes it unusable.
func (f InvoiceFields) ToStructured() (entity.StructuredInvoice, bool) {
	if f.InvoiceNumber == "" && f.VendorName == "" && f.TotalAmount <= 0 {
		return entity.StructuredInvoice{}, false
	}

	conf := f.Confidence
	if conf <= 0 {
		conf = DefaultServiceConfidence
	}

	items := make([]entity.LineItem, 0, len(f.LineItems))
	for _, li := range f.LineItems {
		qty := int(math.Round(li.Quantity))
		if qty < 1 {
			qty = 1
		}
		if li.Description == "" || li.UnitPrice < 0 {
			continue
		}
		items = append(items, entity.NewLineItem(li.Description, qty, li.UnitPrice))
	}

	return entity.StructuredInvoice{
		Fields: entity.InvoiceFieldSet{
			InvoiceNumber: f.InvoiceNumber,
			InvoiceDate:   f.InvoiceDate,
			DueDate:       f.DueDate,
			VendorName:    f.VendorName,
			VendorAddress: f.VendorAddress,
			TotalAmount:   f.TotalAmount,
			Currency:      f.Currency,
		},
		LineItems: items,
		Supplemental: entity.Supplemental{
			VendorContact:     f.VendorContact,
			BuyerName:         f.BuyerName,
			BuyerAddress:      f.BuyerAddress,
			Subtotal:          f.Subtotal,
			TaxAmount:         f.TaxAmount,
			PaymentTerms:      f.PaymentTerms,
			PONumber:          f.PONumber,
			Notes:             f.Notes,
			ServiceConfidence: conf,
		},
		Confidence: conf,
	}, true
}
