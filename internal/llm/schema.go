package llm

const isoDatePattern = `^\d{4}-\d{2}-\d{2}$`

// BuildInvoiceJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// Services are asked to honour it and every response is validated against it locally.
func BuildInvoiceJSONSchema() map[string]any {
	text := map[string]any{"type": "string", "minLength": 1}
	date := map[string]any{"type": "string", "pattern": isoDatePattern}
	money := map[string]any{"type": "number", "minimum": 0.0}

	lineItem := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"description": text,
			"quantity":    map[string]any{"type": "number", "minimum": 1.0},
			"unit_price":  money,
			"line_total":  money,
		},
		"required": []string{"description", "unit_price"},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"invoice_number": text,
			"invoice_date":   date,
			"due_date":       date,
			"vendor_name":    text,
			"vendor_address": text,
			"vendor_contact": text,
			"buyer_name":     text,
			"buyer_address":  text,
			"total_amount":   money,
			"subtotal":       money,
			"tax_amount":     money,
			"currency":       map[string]any{"type": "string", "pattern": `^[A-Z]{3}$`},
			"payment_terms":  text,
			"po_number":      text,
			"notes":          text,
			"line_items":     map[string]any{"type": "array", "items": lineItem},
			"confidence":     map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
		},
	}
}
