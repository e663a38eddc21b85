package utils

import (
	"strings"
	"unicode/utf8"
)

// Truncate returns s truncated to at most maxLen bytes, with "..." appended
// when it was cut. The cut backs up to a rune boundary so the result stays
// valid UTF-8. If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// CleanValue trims whitespace and trailing punctuation commonly left behind by
// text extraction (colons, commas, periods).
func CleanValue(s string) string {
	return strings.Trim(strings.TrimSpace(s), ":., ")
}

// FirstNonEmpty returns the first non-empty string from values, or "".
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
