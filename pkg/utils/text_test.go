package utils

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := Truncate("anything", 0); got != "anything" {
		t.Errorf("maxLen 0 must pass through, got %q", got)
	}
	if got := Truncate("abcdefgh", 4); got != "abcd..." {
		t.Errorf("got %q", got)
	}
}

func TestTruncateRuneBoundary(t *testing.T) {
	s := strings.Repeat("साक्ष", 10) // Devanagari, 3 bytes per rune
	for limit := 1; limit < 12; limit++ {
		got := Truncate(s, limit)
		if !utf8.ValidString(got) {
			t.Errorf("limit %d: result is not valid UTF-8: %q", limit, got)
		}
		if len(got) > limit+len("...") {
			t.Errorf("limit %d: result too long: %d bytes", limit, len(got))
		}
	}
}

func TestCleanValue(t *testing.T) {
	for in, want := range map[string]string{
		"  Pune :  ":       "Pune",
		"123/2024.":        "123/2024",
		":, Suresh Singh,": "Suresh Singh",
		"":                 "",
	} {
		if got := CleanValue(in); got != want {
			t.Errorf("CleanValue(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := FirstNonEmpty("", "", "third"); got != "third" {
		t.Errorf("got %q", got)
	}
	if got := FirstNonEmpty("first", "second"); got != "first" {
		t.Errorf("got %q", got)
	}
	if got := FirstNonEmpty(); got != "" {
		t.Errorf("got %q", got)
	}
}
