// Package utils provides small helpers shared by the HTTP and service layers.
// Nothing here knows about the CRM domain.
package utils

import (
	"math"
	"strconv"
)

// MaxInt is the largest int, usable as an open upper bound for Clamp.
const MaxInt = math.MaxInt

// AtoiDefault parses s as an int, returning def when s is empty or invalid.
//
//	utils.AtoiDefault("42", 0) // 42
//	utils.AtoiDefault("x", 5)  // 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// TotalPages is the number of pages of size pageSize needed for total rows.
// pageSize <= 0 yields 0.
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
