package parse

import (
	"fmt"
	"regexp"
	"time"

	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
)

// Defaults applied when no pattern matches.
const (
	DefaultVendorName    = "Sample Vendor Inc."
	DefaultVendorAddress = "123 Business St, City, State 12345"
	DefaultTotalAmount   = 500.00
	DefaultCurrency      = "USD"
	DueDateOffsetDays    = 30
)

const (
	tokenPattern  = `([A-Z0-9\-]+)`
	numberPattern = `([0-9,]+\.?[0-9]*)`
	dmyPattern    = `(\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4})`
)

var invoiceNumberMatchers = []matcher[string]{
	{re: regexp.MustCompile(`(?i)invoice\s*#?\s*:?\s*` + tokenPattern), convert: nonEmpty},
	{re: regexp.MustCompile(`(?i)inv\s*#?\s*:?\s*` + tokenPattern), convert: nonEmpty},
	{re: regexp.MustCompile(`(?i)invoice\s*number\s*:?\s*` + tokenPattern), convert: nonEmpty},
	{re: regexp.MustCompile(`(?i)#\s*` + tokenPattern), convert: nonEmpty},
}

var invoiceDateMatchers = []matcher[string]{
	{re: regexp.MustCompile(`\b` + dmyPattern + `\b`), convert: parseDayFirst},
	{re: regexp.MustCompile(`\b(\d{4}[/\-]\d{1,2}[/\-]\d{1,2})\b`), convert: parseYearFirst},
	{re: regexp.MustCompile(`(?i)\b((?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2},?\s+\d{4})\b`), convert: parseMonthName},
}

var dueDateMatchers = []matcher[string]{
	{re: regexp.MustCompile(`(?i)due\s+date\s*:?\s*` + dmyPattern), convert: parseDayFirst},
	{re: regexp.MustCompile(`(?i)payment\s+due\s*:?\s*` + dmyPattern), convert: parseDayFirst},
}

// Vendor names and addresses are captured to the end of their line.
var vendorNameMatchers = []matcher[string]{
	{re: regexp.MustCompile(`(?i)from\s*:?\s*([A-Za-z][A-Za-z \t&.,]*)`), convert: nonEmpty},
	{re: regexp.MustCompile(`(?i)vendor\s*:?\s*([A-Za-z][A-Za-z \t&.,]*)`), convert: nonEmpty},
	{re: regexp.MustCompile(`(?i)company\s*:?\s*([A-Za-z][A-Za-z \t&.,]*)`), convert: nonEmpty},
}

var vendorAddressMatchers = []matcher[string]{
	{re: regexp.MustCompile(`(?i)address\s*:?\s*([A-Za-z0-9][A-Za-z0-9 \t,.\-]*)`), convert: nonEmpty},
	{re: regexp.MustCompile(`(?i)street\s*:?\s*([A-Za-z0-9][A-Za-z0-9 \t,.\-]*)`), convert: nonEmpty},
}

var totalAmountMatchers = []matcher[float64]{
	{re: regexp.MustCompile(`(?i)total\s*:?\s*\$?` + numberPattern), convert: nonNegativeAmount},
	{re: regexp.MustCompile(`(?i)amount\s*:?\s*\$?` + numberPattern), convert: nonNegativeAmount},
	{re: regexp.MustCompile(`(?i)sum\s*:?\s*\$?` + numberPattern), convert: nonNegativeAmount},
}

func constant(v string) func(string) (string, bool) {
	return func(string) (string, bool) { return v, true }
}

var currencyMatchers = []matcher[string]{
	{re: regexp.MustCompile(`(\$)[0-9,]+\.?[0-9]*`), convert: constant("USD")},
	{re: regexp.MustCompile(`(?i)\b(USD)\b`), convert: constant("USD")},
	{re: regexp.MustCompile(`(?i)\b(EUR)\b`), convert: constant("EUR")},
	{re: regexp.MustCompile(`(?i)\b(GBP)\b`), convert: constant("GBP")},
}

// ExtractFields resolves every header field of an invoice from raw text.
// Fields that cannot be found fall back to time-derived or fixed defaults.
func ExtractFields(text string) entity.InvoiceFieldSet {
	return ExtractFieldsAt(text, time.Now())
}

// ExtractFieldsAt is ExtractFields with an explicit clock for the time-derived defaults.
func ExtractFieldsAt(text string, now time.Time) entity.InvoiceFieldSet {
	fs := entity.InvoiceFieldSet{
		InvoiceNumber: extractInvoiceNumber(text, now),
		InvoiceDate:   extractInvoiceDate(text, now),
		VendorName:    firstMatchOr(text, vendorNameMatchers, DefaultVendorName),
		VendorAddress: firstMatchOr(text, vendorAddressMatchers, DefaultVendorAddress),
		TotalAmount:   ExtractTotalAmount(text),
		Currency:      firstMatchOr(text, currencyMatchers, DefaultCurrency),
	}
	if due, ok := firstMatch(text, dueDateMatchers); ok {
		fs.DueDate = due
	} else {
		fs.DueDate = addDays(fs.InvoiceDate, DueDateOffsetDays)
	}
	return fs
}

// ExtractTotalAmount runs only the total-amount cascade.
func ExtractTotalAmount(text string) float64 {
	return firstMatchOr(text, totalAmountMatchers, DefaultTotalAmount)
}

func extractInvoiceNumber(text string, now time.Time) string {
	if v, ok := firstMatch(text, invoiceNumberMatchers); ok {
		return v
	}
	return DefaultInvoiceNumber(now)
}

// DefaultInvoiceNumber is "INV-" followed by the last six digits of the unix millisecond clock.
func DefaultInvoiceNumber(now time.Time) string {
	ms := fmt.Sprintf("%d", now.UnixMilli())
	if len(ms) > 6 {
		ms = ms[len(ms)-6:]
	}
	return "INV-" + ms
}

func extractInvoiceDate(text string, now time.Time) string {
	if v, ok := firstMatch(text, invoiceDateMatchers); ok {
		return v
	}
	return now.Format(entity.DateLayout)
}

// DueDateFor is the default due date for an ISO invoice date.
func DueDateFor(invoiceDate string) string {
	return addDays(invoiceDate, DueDateOffsetDays)
}
