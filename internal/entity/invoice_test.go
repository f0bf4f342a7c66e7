package entity

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-tracker/constants"
)

func sampleData() InvoiceData {
	return InvoiceData{
		InvoiceFieldSet: InvoiceFieldSet{
			InvoiceNumber: "A-1",
			InvoiceDate:   "2024-03-05",
			DueDate:       "2024-04-04",
			VendorName:    "Acme",
			TotalAmount:   250,
			Currency:      "USD",
		},
		LineItems:         []LineItem{NewLineItem("Widget", 2, 125)},
		ParsingConfidence: 0.5,
		ProcessingMethod:  constants.MethodFallback,
	}
}

func TestNewInvoice_Defaults(t *testing.T) {
	id := uuid.New()
	inv := NewInvoice(sampleData(), InvoiceMeta{UploadedBy: "bob", FileURL: "file:///x", FileID: &id})

	assert.Equal(t, string(constants.InvoiceTypePurchase), inv.InvoiceType)
	assert.Equal(t, DefaultBuyerName, inv.Buyer.Name)
	assert.Equal(t, DefaultBuyerAddress, inv.Buyer.Address)
	assert.Equal(t, DefaultPaymentTerms, inv.PaymentTerms)
	assert.Empty(t, inv.TaxDetails)
	assert.False(t, inv.IsVerified)
	require.NotNil(t, inv.InvoiceDate)
	assert.Equal(t, "2024-03-05", inv.InvoiceDate.Format(DateLayout))
	assert.Equal(t, []string{"invoice_number", "invoice_date", "due_date", "vendor_name", "total_amount", "currency", "line_items"}, inv.ParsedFields)
	assert.Empty(t, inv.CorrectedFields)
}

func TestNewInvoice_TaxDetails(t *testing.T) {
	d := sampleData()
	d.Supplemental.TaxAmount = 12.5
	d.Supplemental.BuyerName = "Globex"
	inv := NewInvoice(d, InvoiceMeta{InvoiceType: constants.InvoiceTypeSales})

	assert.Equal(t, "Tax: $12.50", inv.TaxDetails)
	assert.Equal(t, "Globex", inv.Buyer.Name)
	assert.Equal(t, string(constants.InvoiceTypeSales), inv.InvoiceType)
}

func TestInvoice_Correct(t *testing.T) {
	inv := NewInvoice(sampleData(), InvoiceMeta{})

	require.NoError(t, inv.Correct("vendor_name", " Acme Corp "))
	require.NoError(t, inv.Correct("total_amount", "$1,200.50"))
	require.NoError(t, inv.Correct("due_date", "2024-05-01"))
	require.NoError(t, inv.Correct("currency", "eur"))
	require.NoError(t, inv.Correct("vendor_name", "Acme Corporation"))

	assert.Equal(t, "Acme Corporation", inv.Vendor.Name)
	assert.Equal(t, 1200.5, inv.TotalAmount)
	assert.Equal(t, "2024-05-01", inv.DueDate.Format(DateLayout))
	assert.Equal(t, "EUR", inv.Currency)
	assert.Equal(t, []string{"vendor_name", "total_amount", "due_date", "currency"}, inv.CorrectedFields)

	assert.Error(t, inv.Correct("invoice_date", "05/03/2024"))
	assert.Error(t, inv.Correct("total_amount", "-3"))
	assert.Error(t, inv.Correct("currency", "EURO"))
	assert.Error(t, inv.Correct("id", "x"))
	assert.Len(t, inv.CorrectedFields, 4)
}

func TestNewLineItem_ExactTotal(t *testing.T) {
	tests := []struct {
		qty   int
		price float64
		want  float64
	}{
		{3, 0.125, 0.375},
		{1000, 1.2345, 1234.5},
		{7, 0.35, 2.45},
		{2, 19.99, 39.98},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NewLineItem("Diesel", tt.qty, tt.price).LineTotal)
	}
}
