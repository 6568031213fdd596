// Package sliceutil provides generic slice manipulation utilities.
package sliceutil

import "strings"

// Unique removes duplicate items while preserving order. Only the first
// occurrence of each item is kept.
func Unique[T comparable](items []T) []T {
	if len(items) == 0 {
		return items
	}

	seen := make(map[T]struct{}, len(items))
	result := make([]T, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		result = append(result, item)
	}
	return result
}

// Fields splits s around sep, trims every part and drops empty ones.
//
//	Fields(" a , b ,,c", ",") // [a b c]
func Fields(s, sep string) []string {
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
