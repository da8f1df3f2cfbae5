package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestStripControl(t *testing.T) {
	assert.Equal(t, "hello world", StripControl("hel\x00lo\x07 world"))
	assert.Equal(t, "line1\nline2\ttabbed", StripControl("line1\nline2\ttabbed"))
	assert.Equal(t, "tuition $76,000", StripControl("tuition​ $76,000�"))
	assert.Equal(t, "", StripControl("\x01\x02\x03"))
}

func TestStripTrailingQualifier(t *testing.T) {
	cases := map[string]string{
		"$76,000 total":          "$76,000",
		"$76,000 Total":          "$76,000",
		"$76,000 (total)":        "$76,000",
		"$76,000 overall total":  "$76,000",
		"$76,000":                "$76,000",
		"$1,200 approximately":   "$1,200",
		"  $99,500 total  ":      "$99,500",
		"total cost of $76,000":  "total cost of $76,000",
	}
	for in, want := range cases {
		assert.Equal(t, want, StripTrailingQualifier(in), "input %q", in)
	}
}

func TestTruncateWithMarker(t *testing.T) {
	long := strings.Repeat("a", 200)

	got := TruncateWithMarker(long, 100, 3)
	assert.LessOrEqual(t, len(got), 100)
	assert.True(t, strings.HasSuffix(got, "[truncated, 3 sources]"))

	// Within budget: unchanged.
	assert.Equal(t, "short", TruncateWithMarker("short", 100, 2))

	// Zero budget disables truncation.
	assert.Equal(t, long, TruncateWithMarker(long, 0, 1))
}

func TestTruncateWithMarker_RuneBoundary(t *testing.T) {
	// Each é is two bytes; sweep the budget so every cut position lands
	// mid-rune at least once.
	multibyte := strings.Repeat("é", 100)
	for budget := 30; budget < 40; budget++ {
		got := TruncateWithMarker(multibyte, budget, 2)
		assert.True(t, utf8.ValidString(got), "budget %d produced invalid UTF-8", budget)
		assert.LessOrEqual(t, len(got), budget)
	}
}

func TestSanitizationIdempotent(t *testing.T) {
	inputs := []string{
		"$76,000 total",
		"tuition\x00 text " + strings.Repeat("x", 500),
		strings.Repeat("excerpt ", 100),
	}
	for _, in := range inputs {
		once := TruncateWithMarker(StripTrailingQualifier(StripControl(in)), 120, 2)
		twice := TruncateWithMarker(StripTrailingQualifier(StripControl(once)), 120, 2)
		assert.Equal(t, once, twice)
	}
}
