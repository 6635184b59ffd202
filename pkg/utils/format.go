// Package utils provides shared utility functions.
package utils

import (
	"fmt"
)

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatPrice formats a price with two decimals.
func FormatPrice(value float64) string {
	return fmt.Sprintf("%.2f", value)
}
