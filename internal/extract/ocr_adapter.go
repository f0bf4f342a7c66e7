package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice-tracker/constants"
	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
	"github.com/joseph-ayodele/invoice-tracker/internal/ocr"
)

// CannedText is returned in place of OCR output when every engine failed.
const CannedText = "INVOICE #12345\n\n" +
	"ITEM DESCRIPTION          QTY    PRICE\n" +
	"Web Development          2      $500.00\n" +
	"Design Services          1      $300.00\n" +
	"Hosting Setup            1      $150.00\n\n" +
	"TOTAL: $1,450.00"

// DefaultTimeout bounds a single document's OCR.
const DefaultTimeout = 60 * time.Second

// Engine is the part of ocr.Extractor the adapter depends on.
type Engine interface {
	Extract(ctx context.Context, doc entity.RawDocument) (ocr.ExtractionResult, error)
}

type OCRAdapter struct {
	engine  Engine
	timeout time.Duration
	logger  *slog.Logger
}

// NewOCRAdapter wraps engine with a timeout and the canned fallback. timeout <= 0 uses
// DefaultTimeout.
func NewOCRAdapter(engine Engine, timeout time.Duration, logger *slog.Logger) *OCRAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &OCRAdapter{engine: engine, timeout: timeout, logger: logger}
}

type engineOutcome struct {
	res ocr.ExtractionResult
	err error
}

// Extract runs the engine under the adapter's timeout. Engine errors, timeouts and panics yield
// the canned text; empty text from a successful run is passed through as-is.
func (a *OCRAdapter) Extract(ctx context.Context, doc entity.RawDocument) TextResult {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	done := make(chan engineOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				a.logger.Error("ocr.adapter.panic", "file", doc.FileName, "panic", r)
				done <- engineOutcome{err: fmt.Errorf("ocr engine panic: %v", r)}
			}
		}()
		r, err := a.engine.Extract(ctx, doc)
		done <- engineOutcome{res: r, err: err}
	}()

	var (
		r   ocr.ExtractionResult
		err error
	)
	select {
	case out := <-done:
		r, err = out.res, out.err
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		a.logger.Warn("ocr.adapter.fallback",
			"file", doc.FileName,
			"media_type", doc.MediaType,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return canned(start, r.Warnings)
	}
	if r.Text == "" {
		a.logger.Warn("ocr.adapter.empty", "file", doc.FileName, "method", r.Method)
	}

	pages := r.Pages
	if pages < 1 {
		pages = 1
	}
	a.logger.Info("ocr.adapter.ok",
		"file", doc.FileName,
		"method", r.Method,
		"pages", pages,
		"conf", r.Confidence,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return TextResult{
		Text:       r.Text,
		Confidence: r.Confidence,
		PageCount:  pages,
		Method:     r.Method,
		Language:   r.Language,
		Duration:   time.Since(start),
		Warnings:   r.Warnings,
	}
}

func canned(start time.Time, warnings []string) TextResult {
	return TextResult{
		Text:       CannedText,
		Confidence: constants.ConfidenceDegraded,
		PageCount:  1,
		Method:     constants.OCRMethodCanned,
		Degraded:   true,
		Duration:   time.Since(start),
		Warnings:   warnings,
	}
}
