// Package sanitize cleans retrieved text before storage: control-character
// stripping, trailing-qualifier removal, and budgeted truncation. Every
// function is pure and idempotent.
package sanitize

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// trailingQualifiers are stray suffix words models append to currency
// amounts regardless of prompt instructions.
var trailingQualifiers = []string{
	"total",
	"(total)",
	"overall",
	"approximately",
	"approx.",
	"approx",
	"per program",
}

// StripControl removes control and other non-printable characters,
// preserving newlines and tabs. Invalid UTF-8 sequences are dropped.
func StripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r == unicode.ReplacementChar || unicode.IsControl(r) || !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// StripTrailingQualifier removes stray qualifier suffixes from an amount
// string, e.g. "$76,000 total" -> "$76,000". Applied repeatedly until no
// qualifier remains, so stacked suffixes also collapse.
func StripTrailingQualifier(s string) string {
	s = strings.TrimSpace(s)
	for {
		stripped := false
		lower := strings.ToLower(s)
		for _, q := range trailingQualifiers {
			if strings.HasSuffix(lower, " "+q) {
				s = strings.TrimSpace(s[:len(s)-len(q)-1])
				stripped = true
				break
			}
		}
		if !stripped {
			return s
		}
	}
}

// TruncateWithMarker cuts s to at most budget characters, appending a
// "[truncated, N sources]" marker inside the budget. A string already
// within budget is returned unchanged, which makes repeated application
// a no-op.
func TruncateWithMarker(s string, budget, sources int) string {
	if budget <= 0 || len(s) <= budget {
		return s
	}
	marker := fmt.Sprintf(" [truncated, %d sources]", sources)
	cut := budget - len(marker)
	if cut < 0 {
		cut = 0
	}
	// Never split a multi-byte rune at the cut point.
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + marker
}
