package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	reISODate = regexp.MustCompile(isoDatePattern)

	textFields   = []string{"invoice_number", "vendor_name", "vendor_address", "vendor_contact", "buyer_name", "buyer_address", "payment_terms", "po_number", "notes"}
	dateFields   = []string{"invoice_date", "due_date"}
	moneyFields  = []string{"total_amount", "subtotal", "tax_amount"}
	knownFields  = map[string]struct{}{"currency": {}, "line_items": {}, "confidence": {}}
	lineItemKeys = map[string]struct{}{"description": {}, "quantity": {}, "unit_price": {}, "line_total": {}}
)

func init() {
	for _, group := range [][]string{textFields, dateFields, moneyFields} {
		for _, k := range group {
			knownFields[k] = struct{}{}
		}
	}
}

// NormalizeAndSanitizeJSON makes a service response fit BuildInvoiceJSONSchema where it can:
//   - camelCase keys become snake_case (unitPrice -> unit_price)
//   - numeric strings ("$1,450.00") become numbers
//   - empty, null, malformed and unknown fields are dropped
//
// The returned slice names every field that was renamed or dropped.
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var in map[string]any
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	var notes []string
	m := renameKeys(in, &notes)

	for _, k := range textFields {
		sanitizeText(m, k, &notes)
	}
	for _, k := range dateFields {
		sanitizeText(m, k, &notes)
		if s, ok := m[k].(string); ok && !reISODate.MatchString(s) {
			delete(m, k)
			notes = append(notes, k+"(format)")
		}
	}
	for _, k := range moneyFields {
		sanitizeNumber(m, k, &notes)
	}
	sanitizeNumber(m, "confidence", &notes)
	if c, ok := m["confidence"].(float64); ok && c > 1 && c <= 100 {
		// some services report percentages
		m["confidence"] = c / 100
	}

	sanitizeText(m, "currency", &notes)
	if s, ok := m["currency"].(string); ok {
		s = strings.ToUpper(s)
		if len(s) != 3 {
			delete(m, "currency")
			notes = append(notes, "currency(format)")
		} else {
			m["currency"] = s
		}
	}

	if v, ok := m["line_items"]; ok {
		items, dropped := sanitizeLineItems(v)
		notes = append(notes, dropped...)
		if len(items) == 0 {
			delete(m, "line_items")
		} else {
			m["line_items"] = items
		}
	}

	for k := range m {
		if _, ok := knownFields[k]; !ok {
			delete(m, k)
			notes = append(notes, k+"(unknown)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, notes, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(notes) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "changes", notes)
	}
	return out, notes, nil
}

func renameKeys(in map[string]any, notes *[]string) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		nk := snakeCase(k)
		if nk != k {
			*notes = append(*notes, k+"->"+nk)
		}
		// an explicit snake_case key wins over its camelCase twin
		if _, exists := out[nk]; exists && nk != k {
			continue
		}
		out[nk] = v
	}
	return out
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func sanitizeText(m map[string]any, k string, notes *[]string) {
	v, ok := m[k]
	if !ok {
		return
	}
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" || strings.EqualFold(s, "null") {
			delete(m, k)
			*notes = append(*notes, k+"(empty)")
			return
		}
		m[k] = s
	case float64:
		m[k] = strconv.FormatFloat(t, 'f', -1, 64)
	default:
		delete(m, k)
		*notes = append(*notes, k+"(type)")
	}
}

func sanitizeNumber(m map[string]any, k string, notes *[]string) {
	v, ok := m[k]
	if !ok {
		return
	}
	f, ok := toNumber(v)
	if !ok || f < 0 {
		delete(m, k)
		*notes = append(*notes, k+"(number)")
		return
	}
	m[k] = f
}

func toNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		s := strings.NewReplacer(",", "", "$", "", "€", "", "£", "").Replace(strings.TrimSpace(t))
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// sanitizeLineItems keeps only objects with a description and a usable unit price.
func sanitizeLineItems(v any) ([]map[string]any, []string) {
	list, ok := v.([]any)
	if !ok {
		return nil, []string{"line_items(type)"}
	}
	var (
		out   []map[string]any
		notes []string
	)
	for i, raw := range list {
		obj, ok := raw.(map[string]any)
		if !ok {
			notes = append(notes, fmt.Sprintf("line_items[%d](type)", i))
			continue
		}
		item := renameKeys(obj, &notes)
		sanitizeText(item, "description", &notes)
		for _, k := range []string{"quantity", "unit_price", "line_total"} {
			sanitizeNumber(item, k, &notes)
		}
		if q, ok := item["quantity"].(float64); ok && q < 1 {
			delete(item, "quantity")
		}
		for k := range item {
			if _, ok := lineItemKeys[k]; !ok {
				delete(item, k)
			}
		}
		if _, ok := item["description"]; !ok {
			notes = append(notes, fmt.Sprintf("line_items[%d](description)", i))
			continue
		}
		if _, ok := item["unit_price"]; !ok {
			notes = append(notes, fmt.Sprintf("line_items[%d](unit_price)", i))
			continue
		}
		out = append(out, item)
	}
	return out, notes
}
