package extraction

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/scanwell/digidoc/internal/core/domain"
)

var (
	amountPattern = regexp.MustCompile(`-?\d[\d,]*(?:\.\d+)?`)
	numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
)

// dateLayouts is ordered most to least common for scanned business
// documents. The first layout that parses wins.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"01-02-2006",
	"02.01.2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"01/02/06",
}

// parseValue normalizes raw recognizer output according to the declared
// field type. The bool reports whether the text conformed to the type;
// callers keep the raw text at reduced confidence when it did not.
func parseValue(t domain.FieldType, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	switch t {
	case domain.FieldAmount:
		return parseAmount(raw)
	case domain.FieldDate:
		return parseDate(raw)
	case domain.FieldNumber:
		return parseNumber(raw)
	default:
		return raw, raw != ""
	}
}

// parseAmount extracts the first monetary value, tolerating currency
// symbols and thousands separators, and renders it with two decimals.
func parseAmount(raw string) (string, bool) {
	m := amountPattern.FindString(raw)
	if m == "" {
		return "", false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%.2f", v), true
}

// parseDate normalizes any recognized layout to ISO 8601.
func parseDate(raw string) (string, bool) {
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.Format("2006-01-02"), true
		}
	}
	return "", false
}

func parseNumber(raw string) (string, bool) {
	m := numberPattern.FindString(raw)
	if m == "" {
		return "", false
	}
	return m, true
}
