package parse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
)

var reDateSep = regexp.MustCompile(`[/\-]`)

// parseDayFirst reads D/M/Y or D-M-Y. When the middle number cannot be a month but the first
// can, the date is read month-first instead.
func parseDayFirst(s string) (string, bool) {
	parts := reDateSep.Split(strings.TrimSpace(s), -1)
	if len(parts) != 3 {
		return "", false
	}
	d, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	y, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return "", false
	}
	if m > 12 && d <= 12 {
		d, m = m, d
	}
	return isoDate(expandYear(y), m, d)
}

// parseYearFirst reads Y/M/D or Y-M-D.
func parseYearFirst(s string) (string, bool) {
	parts := reDateSep.Split(strings.TrimSpace(s), -1)
	if len(parts) != 3 {
		return "", false
	}
	y, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	d, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return "", false
	}
	return isoDate(y, m, d)
}

var monthLayouts = []string{
	"Jan 2, 2006",
	"Jan 2 2006",
	"January 2, 2006",
	"January 2 2006",
}

var reSpaces = regexp.MustCompile(`\s+`)

// parseMonthName reads "Mar 5, 2024", "March 5 2024" and similar.
func parseMonthName(s string) (string, bool) {
	s = reSpaces.ReplaceAllString(strings.TrimSpace(s), " ")
	s = strings.ReplaceAll(s, ".", "")
	if s == "" {
		return "", false
	}
	// time.Parse wants "Mar", not "MAR" or "mar".
	s = strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(entity.DateLayout), true
		}
	}
	// Long forms like "Sept" are not known to time.Parse; retry with the three letter prefix.
	if fields := strings.Fields(s); len(fields) == 3 && len(fields[0]) > 3 {
		short := fields[0][:3] + " " + fields[1] + " " + fields[2]
		for _, layout := range monthLayouts[:2] {
			if t, err := time.Parse(layout, short); err == nil {
				return t.Format(entity.DateLayout), true
			}
		}
	}
	return "", false
}

func expandYear(y int) int {
	if y < 100 {
		return 2000 + y
	}
	return y
}

// isoDate formats y-m-d, rejecting values time.Date would silently normalize.
func isoDate(y, m, d int) (string, bool) {
	if m < 1 || m > 12 || d < 1 || d > 31 || y < 1000 || y > 9999 {
		return "", false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || int(t.Month()) != m {
		return "", false
	}
	return t.Format(entity.DateLayout), true
}

func addDays(iso string, days int) string {
	t, err := time.Parse(entity.DateLayout, iso)
	if err != nil {
		return iso
	}
	return t.AddDate(0, 0, days).Format(entity.DateLayout)
}
