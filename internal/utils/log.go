package utils

import "strings"

// TruncateForLog flattens s onto a single line and cuts it to limit runes.
// Cut previews end with "..."; a non-positive limit yields "".
func TruncateForLog(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	flat := strings.Join(strings.Fields(s), " ")
	runes := []rune(flat)
	if len(runes) <= limit {
		return flat
	}
	return string(runes[:limit]) + "..."
}
