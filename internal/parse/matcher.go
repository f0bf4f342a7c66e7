// Package parse turns loosely structured OCR text into invoice fields and line items.
//
// Every field is resolved by an ordered cascade of patterns: the first pattern whose capture
// converts cleanly wins, and a fixed default applies when none do. Nothing in this package
// performs I/O or returns an error.
package parse

import (
	"regexp"
	"strconv"
	"strings"
)

// matcher is one entry of a first-match-wins cascade.
type matcher[T any] struct {
	re      *regexp.Regexp
	convert func(capture string) (T, bool)
}

// firstMatch evaluates ms in order against text. Only the first occurrence of each pattern is
// considered; a capture that fails conversion falls through to the next pattern.
func firstMatch[T any](text string, ms []matcher[T]) (T, bool) {
	for _, m := range ms {
		sub := m.re.FindStringSubmatch(text)
		if len(sub) < 2 {
			continue
		}
		if v, ok := m.convert(sub[1]); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func firstMatchOr[T any](text string, ms []matcher[T], def T) T {
	if v, ok := firstMatch(text, ms); ok {
		return v
	}
	return def
}

func nonEmpty(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != ""
}

// parseAmount strips currency symbols and thousands separators and parses the rest.
func parseAmount(s string) (float64, bool) {
	s = strings.NewReplacer(",", "", "$", "").Replace(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func nonNegativeAmount(s string) (float64, bool) {
	v, ok := parseAmount(s)
	return v, ok && v >= 0
}

func positiveAmount(s string) (float64, bool) {
	v, ok := parseAmount(s)
	return v, ok && v > 0
}

func positiveInt(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	return n, err == nil && n > 0
}
