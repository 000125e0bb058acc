// Package strings provides string slice utilities.
package strings

import (
	"strings"
)

// DedupeAndTrimUpper trims and uppercases each token, then drops blanks and
// repeats. First-occurrence order is kept.
//
//	DedupeAndTrimUpper([]string{" staff ", "Admin", "STAFF"}) // [STAFF ADMIN]
func DedupeAndTrimUpper(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		n := strings.ToUpper(strings.TrimSpace(v))
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		result = append(result, n)
	}
	return result
}
