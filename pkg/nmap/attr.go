package nmap

import (
	"strconv"
	"strings"
)

// Numeric attributes are declared as strings in the XML schema structs and
// coerced here, so one malformed attribute degrades that field to its default
// instead of failing the whole document.

func toInt(s string) int {
	return toIntDefault(s, 0)
}

func toIntDefault(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

func toInt64(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func toFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
