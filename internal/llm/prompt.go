package llm

import (
	"encoding/json"
	"strings"
)

const maxPromptText = 6000

// BuildSystemPrompt tells a chat model to answer with invoice JSON only.
func BuildSystemPrompt(defaultCurrency string) string {
	defCur := strings.TrimSpace(defaultCurrency)
	if defCur == "" {
		defCur = "USD"
	}
	schema, _ := json.MarshalIndent(BuildInvoiceJSONSchema(), "", "  ")

	parts := []string{
		"You are an invoice parser. Return ONLY JSON that matches the provided JSON Schema.",
		"Use ISO-8601 dates (YYYY-MM-DD).",
		"Currency must be a 3-letter ISO 4217 code; default to " + defCur + " if uncertain.",
		"Amounts are plain numbers without currency symbols or thousands separators.",
		"List every billable row under 'line_items' with description, quantity and unit_price.",
		"Set 'confidence' between 0 and 1 to reflect how sure you are of the extraction.",
		"Never output null. If a field is not present, omit it.",
		"JSON Schema:\n" + string(schema),
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt wraps the OCR text, truncated to keep requests small.
func BuildUserPrompt(text, fileType string) string {
	var b strings.Builder
	if ft := strings.TrimSpace(fileType); ft != "" {
		b.WriteString("Document type: ")
		b.WriteString(ft)
		b.WriteString("\n")
	}
	b.WriteString("\nOCR text:\n")
	text = strings.TrimSpace(text)
	if len(text) > maxPromptText {
		b.WriteString(text[:maxPromptText])
		b.WriteString("\n…(truncated)")
	} else {
		b.WriteString(text)
	}
	return b.String()
}
