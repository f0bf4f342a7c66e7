package constants

// Processing methods recorded on every extracted invoice.
const (
	MethodStructured     = "LayoutLM"
	MethodFallback       = "Fallback Parsing"
	MethodFallbackNoOCR  = "Fallback Parsing (No OCR)"
	MethodFallbackFailed = "Fallback Parsing (Error)"
)

// Parsing confidence per processing path. These are fixed per path, not measured.
const (
	ConfidenceStructured = 0.8
	ConfidenceFallback   = 0.5
	ConfidenceDegraded   = 0.3
)

// Where the line items of an invoice came from.
const (
	LineItemsFromPattern    = "pattern"
	LineItemsFromAmountScan = "amount-scan"
	LineItemsSynthesized    = "synthesized"
	LineItemsFromService    = "service"
)

// OCR methods reported by the text extraction layer.
const (
	OCRMethodPDFText   = "pdf-text"
	OCRMethodPDFOCR    = "pdf-ocr"
	OCRMethodImageOCR  = "image-ocr"
	OCRMethodCanned    = "canned-fallback"
	ImageConfidenceLow = 0.6
)
