package parse

import (
	"regexp"
	"sort"

	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
)

// Descriptions of items that were not read from a structured line.
const (
	MainItemDescription       = "Extracted Product/Service"
	AdditionalItemDescription = "Additional Item"
	SyntheticDescription      = "Sample Product/Service"
)

// additionalItemRatio is the share of the largest amount below which another amount counts as
// a separate item rather than a restatement of the total.
const additionalItemRatio = 0.8

var amountScanPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\$?` + numberPattern),
	regexp.MustCompile(numberPattern + `\s*USD`),
	regexp.MustCompile(numberPattern + `\s*EUR`),
}

// scanAmounts collects every positive amount in text, largest first, and turns them into
// items: the largest becomes the main item and any amount under 80% of it an additional one.
func scanAmounts(text string) []entity.LineItem {
	amounts := distinctAmounts(text)
	if len(amounts) == 0 {
		return nil
	}
	main := amounts[0]
	items := []entity.LineItem{entity.NewLineItem(MainItemDescription, 1, main)}
	for _, a := range amounts[1:] {
		if a < main*additionalItemRatio {
			items = append(items, entity.NewLineItem(AdditionalItemDescription, 1, a))
		}
	}
	return items
}

func distinctAmounts(text string) []float64 {
	seen := make(map[float64]struct{})
	var out []float64
	for _, re := range amountScanPatterns {
		for _, sub := range re.FindAllStringSubmatch(text, -1) {
			v, ok := positiveAmount(sub[1])
			if !ok {
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(out)))
	return out
}
