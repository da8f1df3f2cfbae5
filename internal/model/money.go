package model

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var usd = message.NewPrinter(language.AmericanEnglish)

// FormatDollars renders an amount as a whole-dollar currency string with
// thousands separators, e.g. 160083 -> "$160,083".
func FormatDollars(amount float64) string {
	return usd.Sprintf("$%d", int64(amount+0.5))
}

// ParseDollars extracts a numeric dollar amount from free-form currency
// text such as "$76,000", "76000 USD", or "$2,541 per credit". Returns
// false when no parseable amount is present.
func ParseDollars(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	start := -1
	for i, r := range s {
		if r >= '0' && r <= '9' {
			start = i
			break
		}
	}
	if start < 0 {
		return 0, false
	}

	var b strings.Builder
	for _, r := range s[start:] {
		if r == ',' {
			continue // thousands separator
		}
		if (r < '0' || r > '9') && r != '.' {
			break
		}
		b.WriteRune(r)
	}

	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
