// Package utils provides small, generic helpers shared by the HTTP layer.
// They carry no domain logic.
package utils

import (
	"strconv"
	"strings"
)

// AtoiDefault parses s as an int, returning def when s is empty or invalid.
// Surrounding whitespace is ignored.
func AtoiDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// BoundedInt parses s like AtoiDefault and clamps the result to [lo, hi].
// Values below lo fall back to def, which is itself clamped.
//
//	utils.BoundedInt("3", 5, 1, 20)   // 3
//	utils.BoundedInt("0", 5, 1, 20)   // 5
//	utils.BoundedInt("500", 5, 1, 20) // 20
func BoundedInt(s string, def, lo, hi int) int {
	n := AtoiDefault(s, def)
	if n < lo {
		n = def
	}
	return min(max(n, lo), hi)
}
