package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
	"github.com/joseph-ayodele/invoice-tracker/internal/repository"
)

// Sheet names of the exported workbook.
const (
	InvoicesSheet  = "Invoices"
	LineItemsSheet = "Line Items"
)

var invoiceHeaders = []string{
	"Invoice Number",
	"Invoice Date",
	"Due Date",
	"Vendor",
	"Vendor Address",
	"Buyer",
	"Total",
	"Currency",
	"Payment Terms",
	"PO Number",
	"Tax",
	"Method",
	"Confidence",
	"OCR Confidence",
	"Verified",
	"File",
}

var lineItemHeaders = []string{
	"Invoice Number",
	"Description",
	"Quantity",
	"Unit Price",
	"Line Total",
}

// Service is a tiny façade over the invoice repository that produces XLSX bytes for exports.
type Service struct {
	invoices repository.InvoiceRepository
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(invoices repository.InvoiceRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{invoices: invoices, logger: logger, now: time.Now}
}

// ExportInvoicesXLSX returns an XLSX workbook (as bytes) for the given date window.
// If only from is provided -> from..today (inclusive).
// If only to is provided   -> beginning..to (inclusive).
// If neither is provided   -> all invoices.
func (s *Service) ExportInvoicesXLSX(ctx context.Context, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	var fromDate, toDate *time.Time
	if from != nil {
		f := dateOnly(*from)
		fromDate = &f
	}
	if to != nil {
		t := dateOnly(*to)
		toDate = &t
	}
	if fromDate != nil && toDate == nil {
		t := dateOnly(s.now().UTC())
		toDate = &t
	}

	invs, err := s.invoices.List(ctx, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}

	f, err := Workbook(invs)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(invs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// Workbook lays invoices out on an invoices sheet with one row per invoice and a line items
// sheet with one row per item.
func Workbook(invs []*entity.Invoice) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", InvoicesSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(LineItemsSheet); err != nil {
		return nil, err
	}
	f.SetActiveSheet(0)

	writeRow(f, InvoicesSheet, 1, headerRow(invoiceHeaders))
	writeRow(f, LineItemsSheet, 1, headerRow(lineItemHeaders))

	itemRow := 2
	for i, inv := range invs {
		writeRow(f, InvoicesSheet, i+2, []any{
			inv.InvoiceNumber,
			formatDate(inv.InvoiceDate),
			formatDate(inv.DueDate),
			inv.Vendor.Name,
			inv.Vendor.Address,
			inv.Buyer.Name,
			inv.TotalAmount,
			inv.Currency,
			inv.PaymentTerms,
			inv.PONumber,
			inv.TaxDetails,
			inv.ProcessingMethod,
			inv.ConfidenceScore,
			inv.OCRConfidence,
			inv.IsVerified,
			truncate(inv.FileURL, 200),
		})
		for _, li := range inv.LineItems {
			writeRow(f, LineItemsSheet, itemRow, []any{
				inv.InvoiceNumber,
				li.Description,
				li.Quantity,
				li.UnitPrice,
				li.LineTotal,
			})
			itemRow++
		}
	}

	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(InvoicesSheet, 1, 1, style)
		_ = f.SetRowStyle(LineItemsSheet, 1, 1, style)
	}

	// Widen a few columns
	_ = f.SetColWidth(InvoicesSheet, "A", "C", 14) // number, dates
	_ = f.SetColWidth(InvoicesSheet, "D", "F", 28) // parties
	_ = f.SetColWidth(InvoicesSheet, "L", "L", 26) // method
	_ = f.SetColWidth(InvoicesSheet, "P", "P", 60) // file
	_ = f.SetColWidth(LineItemsSheet, "B", "B", 40)
	return f, nil
}

func headerRow(h []string) []any {
	out := make([]any, len(h))
	for i, v := range h {
		out[i] = v
	}
	return out
}

func writeRow(f *excelize.File, sheet string, row int, vals []any) {
	cell, _ := excelize.CoordinatesToCellName(1, row)
	_ = f.SetSheetRow(sheet, cell, &vals)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(entity.DateLayout)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return strings.TrimSpace(s[:n-1]) + "…"
}
