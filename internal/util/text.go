package util

import (
	"strings"
	"time"
	"unicode/utf8"
)

func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}

// CharCount counts characters (runes); input size limits are expressed in characters.
func CharCount(value string) int {
	return utf8.RuneCountInString(value)
}

// DefaultGraphName returns "Graph YYYY-MM-DD" for t.
func DefaultGraphName(t time.Time) string {
	return "Graph " + t.Format(time.DateOnly)
}
