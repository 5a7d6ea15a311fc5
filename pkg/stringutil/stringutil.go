// Package stringutil provides small string helpers for terminal output.
package stringutil

import "strings"

// Ellipsis shortens s to at most maxLength runes, appending "..." when it
// truncates. Surrounding spaces are trimmed and line breaks flattened so the
// result fits one table cell. With maxLength <= 3 there is no room for the
// ellipsis and s is cut hard.
func Ellipsis(s string, maxLength int) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")

	if maxLength < 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(r[:maxLength])
	}
	return string(r[:maxLength-3]) + "..."
}
