package common

import "strings"

// HasAny reports whether s contains any of subs, ignoring case.
func HasAny(s string, subs ...string) bool {
	s = strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(s, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// FileDay renders a YYYY-MM-DD day as YYYY_MM_DD for file names.
func FileDay(day string) string {
	return strings.ReplaceAll(day, "-", "_")
}
