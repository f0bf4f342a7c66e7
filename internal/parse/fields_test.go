package parse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, time.March, 10, 9, 30, 0, 0, time.UTC)

func TestExtractFields_Defaults(t *testing.T) {
	fs := ExtractFieldsAt("", fixedNow)

	assert.Equal(t, DefaultInvoiceNumber(fixedNow), fs.InvoiceNumber)
	assert.Equal(t, "2024-03-10", fs.InvoiceDate)
	assert.Equal(t, "2024-04-09", fs.DueDate)
	assert.Equal(t, DefaultVendorName, fs.VendorName)
	assert.Equal(t, DefaultVendorAddress, fs.VendorAddress)
	assert.Equal(t, DefaultTotalAmount, fs.TotalAmount)
	assert.Equal(t, "USD", fs.Currency)
}

func TestDefaultInvoiceNumber(t *testing.T) {
	now := time.UnixMilli(1710063000123)
	assert.Equal(t, "INV-000123", DefaultInvoiceNumber(now))
}

func TestExtractFields_InvoiceNumberAndTotal(t *testing.T) {
	fs := ExtractFieldsAt("Invoice #A-100\nConsulting services rendered\nTotal: $250.50", fixedNow)

	assert.Equal(t, "A-100", fs.InvoiceNumber)
	assert.Equal(t, 250.50, fs.TotalAmount)
	assert.Equal(t, "USD", fs.Currency)
}

func TestExtractFields_ThousandsSeparator(t *testing.T) {
	fs := ExtractFieldsAt("TOTAL: $1,450.00", fixedNow)
	assert.Equal(t, 1450.00, fs.TotalAmount)
}

func TestExtractFields_InvoiceNumberCascade(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "invoice hash", text: "INVOICE #12345", want: "12345"},
		{name: "invoice colon", text: "Invoice: INV-2024-7", want: "INV-2024-7"},
		{name: "inv abbreviation", text: "Inv # 9981", want: "9981"},
		{name: "bare hash", text: "Ref # 77-B", want: "77-B"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractFieldsAt(tt.text, fixedNow).InvoiceNumber)
		})
	}
}

func TestExtractFields_Dates(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantInvoice string
		wantDue     string
	}{
		{name: "day first", text: "Issued 05/01/2024", wantInvoice: "2024-01-05", wantDue: "2024-02-04"},
		{name: "month first when day exceeds twelve", text: "Issued 01/25/2024", wantInvoice: "2024-01-25", wantDue: "2024-02-24"},
		{name: "two digit year", text: "Issued 15-06-24", wantInvoice: "2024-06-15", wantDue: "2024-07-15"},
		{name: "year first", text: "Issued 2024-01-15", wantInvoice: "2024-01-15", wantDue: "2024-02-14"},
		{name: "month name", text: "Issued March 5, 2024", wantInvoice: "2024-03-05", wantDue: "2024-04-04"},
		{name: "abbreviated month", text: "Issued Sept. 9 2024", wantInvoice: "2024-09-09", wantDue: "2024-10-09"},
		{
			name:        "explicit due date",
			text:        "Issued 15/01/2024\nDue Date: 28/02/2024",
			wantInvoice: "2024-01-15",
			wantDue:     "2024-02-28",
		},
		{
			name:        "payment due",
			text:        "Issued 15/01/2024\nPayment due: 01-03-2024",
			wantInvoice: "2024-01-15",
			wantDue:     "2024-03-01",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := ExtractFieldsAt(tt.text, fixedNow)
			assert.Equal(t, tt.wantInvoice, fs.InvoiceDate)
			assert.Equal(t, tt.wantDue, fs.DueDate)
		})
	}
}

func TestExtractFields_InvalidDateFallsThrough(t *testing.T) {
	fs := ExtractFieldsAt("Ref 45/45/2024", fixedNow)
	assert.Equal(t, "2024-03-10", fs.InvoiceDate)
}

func TestExtractFields_Vendor(t *testing.T) {
	text := "From: Acme Supplies & Co.\nAddress: 42 Main St, Springfield\nTotal: 80"
	fs := ExtractFieldsAt(text, fixedNow)

	assert.Equal(t, "Acme Supplies & Co.", fs.VendorName)
	assert.Equal(t, "42 Main St, Springfield", fs.VendorAddress)
	assert.Equal(t, 80.0, fs.TotalAmount)
}

func TestExtractFields_Currency(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{text: "Total 120.00 EUR", want: "EUR"},
		{text: "Amount due 99 GBP", want: "GBP"},
		{text: "Paid in usd", want: "USD"},
		{text: "Total: $5 (billed in EUR)", want: "USD"},
		{text: "no currency here", want: "USD"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractFieldsAt(tt.text, fixedNow).Currency)
		})
	}
}

func TestExtractFields_AmountCascade(t *testing.T) {
	assert.Equal(t, 42.0, ExtractTotalAmount("Amount: 42"))
	assert.Equal(t, 17.25, ExtractTotalAmount("Sum $17.25"))
	assert.Equal(t, DefaultTotalAmount, ExtractTotalAmount("Total: ,"))
}

func TestExtractFields_Idempotent(t *testing.T) {
	text := "Invoice #X-1\nFrom: Widget Corp\n2024-02-01\nTotal: $10.00"
	first := ExtractFields(text)
	second := ExtractFields(text)
	require.Equal(t, first, second)
}
