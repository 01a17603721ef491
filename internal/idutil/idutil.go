// Package idutil sanitizes identifiers reported by agent output before they
// are reused as command-line arguments.
package idutil

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxLen is the maximum byte length for a sanitized conversation id.
const MaxLen = 256

// Sanitize validates a raw conversation id. Returns "" for ids containing
// control characters or whitespace, and for ids starting with "-" which an
// agent would read as a flag. Over-long ids are truncated on a rune
// boundary.
func Sanitize(raw string) string {
	if strings.HasPrefix(raw, "-") {
		return ""
	}
	for _, r := range raw {
		if unicode.IsControl(r) || unicode.IsSpace(r) || r == utf8.RuneError {
			return ""
		}
	}
	if len(raw) > MaxLen {
		end := MaxLen
		for end > 0 && !utf8.RuneStart(raw[end]) {
			end--
		}
		return raw[:end]
	}
	return raw
}
