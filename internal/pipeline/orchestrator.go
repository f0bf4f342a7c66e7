// Package pipeline runs documents through text extraction and field parsing, and manages the
// file and invoice records around that.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/invoice-tracker/constants"
	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
	"github.com/joseph-ayodele/invoice-tracker/internal/extract"
	"github.com/joseph-ayodele/invoice-tracker/internal/metrics"
	"github.com/joseph-ayodele/invoice-tracker/internal/parse"
)

// Orchestrator turns a document or its text into InvoiceData. It never fails: every step has a
// fallback and the result is always complete.
type Orchestrator struct {
	text       extract.TextExtractor
	structured extract.StructuredExtractor
	logger     *slog.Logger
	now        func() time.Time

	extractFields    func(text string, now time.Time) entity.InvoiceFieldSet
	extractLineItems func(text string) parse.LineItemResult
}

type OrchestratorOption func(*Orchestrator)

// WithStructuredExtractor makes the orchestrator try s before the rule-based parsers.
func WithStructuredExtractor(s extract.StructuredExtractor) OrchestratorOption {
	return func(o *Orchestrator) { o.structured = s }
}

// WithClock overrides the clock used for time-derived defaults.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

func NewOrchestrator(text extract.TextExtractor, logger *slog.Logger, opts ...OrchestratorOption) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		text:             text,
		logger:           logger,
		now:              time.Now,
		extractFields:    parse.ExtractFieldsAt,
		extractLineItems: parse.ExtractLineItems,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessDocument extracts text from doc and parses it.
func (o *Orchestrator) ProcessDocument(ctx context.Context, doc entity.RawDocument) entity.InvoiceData {
	tr := o.text.Extract(ctx, doc)
	metrics.OCRDuration.WithLabelValues(tr.Method).Observe(tr.Duration.Seconds())
	if tr.Degraded {
		metrics.OCRFallbackTotal.Inc()
	}

	data := o.process(ctx, tr.Text, doc.MediaType, tr.Degraded)
	data.OCRConfidence = tr.Confidence
	data.PageCount = tr.PageCount
	return data
}

// Process parses already extracted text. mediaType is the document's short media type
// ("pdf", "png", ...) and is passed on to the structured-extraction service.
func (o *Orchestrator) Process(ctx context.Context, text, mediaType string) entity.InvoiceData {
	return o.process(ctx, text, mediaType, false)
}

func (o *Orchestrator) process(ctx context.Context, text, mediaType string, degraded bool) entity.InvoiceData {
	start := time.Now()
	now := o.now()

	var data entity.InvoiceData
	switch {
	case strings.TrimSpace(text) == "":
		data = o.parse(ctx, "", now)
		data.ProcessingMethod = constants.MethodFallbackNoOCR
		data.ParsingConfidence = constants.ConfidenceDegraded
	case degraded:
		data = o.parse(ctx, text, now)
		data.ProcessingMethod = constants.MethodFallbackFailed
		data.ParsingConfidence = constants.ConfidenceDegraded
	default:
		if inv, ok := o.tryStructured(ctx, text, mediaType); ok {
			data = o.merge(ctx, text, inv, now)
			break
		}
		data = o.parse(ctx, text, now)
		if data.ProcessingMethod == "" {
			data.ProcessingMethod = constants.MethodFallback
			data.ParsingConfidence = constants.ConfidenceFallback
		}
	}
	data.ExtractedText = text

	metrics.DocumentsProcessedTotal.WithLabelValues(data.ProcessingMethod).Inc()
	metrics.LineItemSourceTotal.WithLabelValues(data.LineItemSource).Inc()
	o.logger.Info("pipeline.process.ok",
		"method", data.ProcessingMethod,
		"invoice_number", data.InvoiceNumber,
		"total", data.TotalAmount,
		"line_items", len(data.LineItems),
		"line_item_source", data.LineItemSource,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return data
}

func (o *Orchestrator) tryStructured(ctx context.Context, text, mediaType string) (inv entity.StructuredInvoice, ok bool) {
	if o.structured == nil {
		return inv, false
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("pipeline.structured.panic", "panic", r)
			inv, ok = entity.StructuredInvoice{}, false
		}
		if ok {
			metrics.StructuredRequestsTotal.WithLabelValues("ok").Inc()
		} else {
			metrics.StructuredRequestsTotal.WithLabelValues("fallback").Inc()
		}
	}()
	return o.structured.TryExtract(ctx, text, fileType(mediaType))
}

// parse runs the field and line-item extractors concurrently. A panic in either is replaced by
// that extractor's defaults and marks the result as an error fallback.
func (o *Orchestrator) parse(ctx context.Context, text string, now time.Time) entity.InvoiceData {
	var (
		fields    entity.InvoiceFieldSet
		items     parse.LineItemResult
		fieldsErr error
		itemsErr  error
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		fieldsErr = recoverInto(func() { fields = o.extractFields(text, now) })
		return nil
	})
	g.Go(func() error {
		itemsErr = recoverInto(func() { items = o.extractLineItems(text) })
		return nil
	})
	_ = g.Wait()

	var data entity.InvoiceData
	if fieldsErr != nil {
		o.logger.Error("pipeline.fields.panic", "error", fieldsErr)
		fields = parse.ExtractFieldsAt("", now)
	}
	if itemsErr != nil {
		o.logger.Error("pipeline.line_items.panic", "error", itemsErr)
		items = syntheticItems(fields.TotalAmount)
	}
	if fieldsErr != nil || itemsErr != nil {
		metrics.ExtractorPanicsTotal.Inc()
		data.ProcessingMethod = constants.MethodFallbackFailed
		data.ParsingConfidence = constants.ConfidenceDegraded
	}
	data.InvoiceFieldSet = fields
	data.LineItems = items.Items
	data.LineItemSource = items.Source
	return data
}

// merge lays the service's fields over the rule-based ones. Service line items win when there
// are any. A panic in the rule-based extractors keeps the error label and confidence.
func (o *Orchestrator) merge(ctx context.Context, text string, inv entity.StructuredInvoice, now time.Time) entity.InvoiceData {
	data := o.parse(ctx, text, now)
	f := &data.InvoiceFieldSet
	s := inv.Fields
	if s.InvoiceNumber != "" {
		f.InvoiceNumber = s.InvoiceNumber
	}
	if s.InvoiceDate != "" {
		f.InvoiceDate = s.InvoiceDate
		f.DueDate = parse.DueDateFor(s.InvoiceDate)
	}
	if s.DueDate != "" {
		f.DueDate = s.DueDate
	}
	if s.VendorName != "" {
		f.VendorName = s.VendorName
	}
	if s.VendorAddress != "" {
		f.VendorAddress = s.VendorAddress
	}
	if s.TotalAmount > 0 {
		f.TotalAmount = s.TotalAmount
	}
	if s.Currency != "" {
		f.Currency = s.Currency
	}

	switch {
	case len(inv.LineItems) > 0:
		data.LineItems = inv.LineItems
		data.LineItemSource = constants.LineItemsFromService
	case data.LineItemSource == constants.LineItemsSynthesized:
		data.LineItems = syntheticItems(f.TotalAmount).Items
	}

	data.Supplemental = inv.Supplemental
	if data.ProcessingMethod == constants.MethodFallbackFailed {
		return data
	}
	data.ProcessingMethod = constants.MethodStructured
	data.ParsingConfidence = constants.ConfidenceStructured
	return data
}

func syntheticItems(total float64) parse.LineItemResult {
	return parse.LineItemResult{
		Items:  []entity.LineItem{entity.NewLineItem(parse.SyntheticDescription, 1, total)},
		Source: constants.LineItemsSynthesized,
	}
}

func recoverInto(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	fn()
	return nil
}

// fileType is the coarse document kind sent to structured-extraction services.
func fileType(mediaType string) string {
	if constants.MapExtToFormat(mediaType) == constants.PDF {
		return "pdf"
	}
	return "image"
}
