// Package strings provides string manipulation utilities.
package strings

import (
	"strings"
)

// AppendUnique appends each candidate to dst unless it is empty or already
// present. First-seen order is preserved, which lets callers control what
// leads the result by appending it first.
//
// Example:
//
//	AppendUnique([]string{"a@x.com"}, "b@x.com", "a@x.com")
//	// Returns: []string{"a@x.com", "b@x.com"}
func AppendUnique(dst []string, candidates ...string) []string {
	seen := make(map[string]struct{}, len(dst)+len(candidates))
	for _, v := range dst {
		seen[v] = struct{}{}
	}
	for _, v := range candidates {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			dst = append(dst, v)
		}
	}
	return dst
}

// DedupeAndTrim removes duplicates and empty strings from a slice,
// trimming whitespace from each element. Order is preserved.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}
