// Package render turns terminal tasks into view models: chat bubbles,
// result tables, usage and video cards. Nothing here performs I/O; the
// output package writes these models to a terminal.
package render

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"rita/internal/service"
)

// FormatCount abbreviates counts of a thousand and above with one decimal
// and a K or M suffix. A trailing ".0" is dropped.
func FormatCount(n int64) string {
	switch {
	case n >= 1_000_000:
		return oneDecimal(float64(n)/1_000_000) + "M"
	case n >= 1_000:
		s := oneDecimal(float64(n) / 1_000)
		// 999,950 and up rounds to "1000K".
		if s == "1000" {
			return "1M"
		}
		return s + "K"
	}
	return strconv.FormatInt(n, 10)
}

func oneDecimal(v float64) string {
	return strings.TrimSuffix(strconv.FormatFloat(v, 'f', 1, 64), ".0")
}

// FormatCost formats a currency amount with four decimals and a leading $.
func FormatCost(v float64) string {
	return fmt.Sprintf("$%.4f", v)
}

// ParseCost reads the backend's cost field. Anything that is not a number
// counts as zero.
func ParseCost(t service.Text) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(t)), 64)
	if err != nil {
		return 0
	}
	return v
}

// Truncate shortens s to max runes, appending "..." when cut.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
