package parse

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/invoice-tracker/constants"
	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
)

// LineItemResult is the output of ExtractLineItems. Items is never empty.
type LineItemResult struct {
	Items  []entity.LineItem
	Source string // one of the constants.LineItemsFrom* values
}

const descPrefix = `(?i)^([A-Za-z\s&\-.]+?)`

// linePattern is one structural layout of a line item. qty is 0 for layouts with an implied
// quantity of one.
type linePattern struct {
	re    *regexp.Regexp
	qty   int
	price int
}

// Ordered by priority; the first pattern that matches a line decides it.
var linePatterns = []linePattern{
	{re: regexp.MustCompile(descPrefix + `\s+(\d+)\s+\$?` + numberPattern), qty: 2, price: 3},
	{re: regexp.MustCompile(descPrefix + `\s*-\s*(\d+)\s*x\s+\$?` + numberPattern), qty: 2, price: 3},
	{re: regexp.MustCompile(descPrefix + `\s+@\s+\$?` + numberPattern), price: 2},
	{re: regexp.MustCompile(descPrefix + `\s*\((\d+)\)\s+\$?` + numberPattern), qty: 2, price: 3},
	{re: regexp.MustCompile(descPrefix + `\s*-\s+\$?` + numberPattern), price: 2},
	{re: regexp.MustCompile(descPrefix + `\s{2,}(\d+)\s+\$?` + numberPattern), qty: 2, price: 3},
	{re: regexp.MustCompile(descPrefix + `\s+(\d+)\s+\$` + numberPattern), qty: 2, price: 3},
}

// Lines containing any of these words are headers or summaries, never items.
var summaryWords = []string{"total", "subtotal", "tax", "amount", "invoice", "date", "due"}

const minLineLength = 3

// ExtractLineItems finds billable rows in text. When no line matches a structural pattern it
// falls back to scanning for amounts, and failing that synthesizes a single item priced at the
// invoice total.
func ExtractLineItems(text string) LineItemResult {
	if items := matchLines(text); len(items) > 0 {
		return LineItemResult{Items: items, Source: constants.LineItemsFromPattern}
	}
	if items := scanAmounts(text); len(items) > 0 {
		return LineItemResult{Items: items, Source: constants.LineItemsFromAmountScan}
	}
	total := ExtractTotalAmount(text)
	return LineItemResult{
		Items:  []entity.LineItem{entity.NewLineItem(SyntheticDescription, 1, total)},
		Source: constants.LineItemsSynthesized,
	}
}

func matchLines(text string) []entity.LineItem {
	var items []entity.LineItem
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if len(line) < minLineLength || isSummaryLine(line) {
			continue
		}
		if item, ok := matchLine(line); ok {
			items = append(items, item)
		}
	}
	return items
}

func isSummaryLine(line string) bool {
	lower := strings.ToLower(line)
	for _, w := range summaryWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// matchLine applies the first matching pattern only. A match whose values fail validation
// yields no item; later patterns are not tried.
func matchLine(line string) (entity.LineItem, bool) {
	for _, p := range linePatterns {
		sub := p.re.FindStringSubmatch(line)
		if sub == nil {
			continue
		}
		desc := strings.TrimSpace(sub[1])
		qty := 1
		if p.qty > 0 {
			n, ok := positiveInt(sub[p.qty])
			if !ok {
				return entity.LineItem{}, false
			}
			qty = n
		}
		price, ok := positiveAmount(sub[p.price])
		if !ok || desc == "" {
			return entity.LineItem{}, false
		}
		return entity.NewLineItem(desc, qty, price), true
	}
	return entity.LineItem{}, false
}
