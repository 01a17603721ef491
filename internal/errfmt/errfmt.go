// Package errfmt provides shared error formatting for text that crosses a
// process boundary.
package errfmt

import (
	"unicode/utf8"
)

// MaxLen caps error content to prevent unbounded propagation.
const MaxLen = 4096

// truncateUTF8 caps s at max bytes, backtracking to a valid UTF-8 boundary.
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	end := limit
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	return s[:end]
}

// Truncate caps a string at MaxLen bytes with UTF-8-safe truncation.
func Truncate(s string) string {
	return truncateUTF8(s, MaxLen)
}

// Message returns err's text capped at MaxLen, or "" for a nil error.
func Message(err error) string {
	if err == nil {
		return ""
	}
	return Truncate(err.Error())
}
