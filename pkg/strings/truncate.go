// Package strings holds text helpers shared by the console outputs.
package strings

import (
	"strings"
)

// Column widths used by the console reporter and the action catalog.
const (
	NameMaxLen        = 40
	DescriptionMaxLen = 60
	ValueMaxLen       = 80
)

// MinTruncateLen is the smallest width Truncate honors: one rune plus "...".
const MinTruncateLen = 4

// Truncate flattens s to a single line and cuts it to at most maxLen runes,
// ending with "..." when cut. Runs of whitespace, newlines included, become
// one space.
func Truncate(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}
