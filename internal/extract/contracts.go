package extract

import (
	"context"
	"time"

	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
)

// TextExtractor is Stage 1: document bytes -> text. Implementations never fail; a degraded
// result is reported through TextResult.Degraded instead.
type TextExtractor interface {
	Extract(ctx context.Context, doc entity.RawDocument) TextResult
}

type TextResult struct {
	Text       string
	Confidence float64 // 0..1
	PageCount  int     // >= 1
	Method     string  // constants.OCRMethod*
	Language   string
	Degraded   bool // engine failed and Text is the canned sample
	Duration   time.Duration
	Warnings   []string
}

// StructuredExtractor is an optional Stage 2: text -> invoice fields from an external model.
// ok is false when the service is unavailable or returned nothing usable.
type StructuredExtractor interface {
	TryExtract(ctx context.Context, text, fileType string) (entity.StructuredInvoice, bool)
}
