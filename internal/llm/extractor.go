package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
)

// Extractor runs a Backend's response through sanitize, schema validation and conversion.
// It satisfies extract.StructuredExtractor.
type Extractor struct {
	backend Backend
	logger  *slog.Logger
}

func NewExtractor(b Backend, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{backend: b, logger: logger}
}

// TryExtract never returns an error; any failure is logged and reported as ok=false so the
// caller can fall back to rule-based parsing.
func (x *Extractor) TryExtract(ctx context.Context, text, fileType string) (entity.StructuredInvoice, bool) {
	rid := uuid.New().String()
	start := time.Now()
	log := x.logger.With("req_id", rid, "backend", x.backend.Name())

	raw, err := x.backend.Complete(ctx, text, fileType)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			log.Debug("llm.extract.skipped")
		} else {
			log.Warn("llm.extract.backend_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		}
		return entity.StructuredInvoice{}, false
	}

	fields, err := DecodeInvoiceFields(raw, log)
	if err != nil {
		log.Warn("llm.extract.invalid_response", "error", err, "raw_bytes", len(raw))
		return entity.StructuredInvoice{}, false
	}
	inv, ok := fields.ToStructured()
	if !ok {
		log.Warn("llm.extract.unusable_response", "raw_bytes", len(raw))
		return entity.StructuredInvoice{}, false
	}

	log.Info("llm.extract.ok",
		"invoice_number", inv.Fields.InvoiceNumber,
		"vendor", inv.Fields.VendorName,
		"total", inv.Fields.TotalAmount,
		"line_items", len(inv.LineItems),
		"confidence", inv.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return inv, true
}

// DecodeInvoiceFields sanitizes raw, validates it against the invoice schema and decodes it.
func DecodeInvoiceFields(raw []byte, logger *slog.Logger) (InvoiceFields, error) {
	cleaned, _, err := NormalizeAndSanitizeJSON(raw, logger)
	if err != nil {
		return InvoiceFields{}, err
	}
	if err := ValidateInvoiceJSON(cleaned); err != nil {
		return InvoiceFields{}, err
	}
	var out InvoiceFields
	if err := json.Unmarshal(cleaned, &out); err != nil {
		return InvoiceFields{}, fmt.Errorf("unmarshal fields: %w", err)
	}
	return out, nil
}
