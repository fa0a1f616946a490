// Package textutil normalizes free-form site text for comparison. Titles
// and names arrive with inconsistent casing and spacing depending on who
// entered them, so matching runs on the normalized form.
package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Normalize lowercases s, trims it and collapses whitespace runs to a
// single space.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.TrimSpace(s)
	return whitespaceRegex.ReplaceAllString(s, " ")
}
