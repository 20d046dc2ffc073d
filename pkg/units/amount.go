// Package units converts between human-readable and raw token amounts.
package units

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ToRaw converts a human amount ("1.5") into the token's smallest unit.
// Digits beyond the token precision are truncated. Invalid or negative
// input yields "0".
func ToRaw(amount string, decimals int) string {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil || d.IsNegative() {
		return "0"
	}
	return d.Shift(int32(decimals)).Truncate(0).String()
}

// FromRaw converts a raw integer amount into a human amount without
// trailing zeros. Invalid input yields "0".
func FromRaw(raw string, decimals int) string {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return "0"
	}
	return d.Shift(int32(-decimals)).String()
}

// FromRawFloat is FromRaw as a float64, for display and USD math
func FromRawFloat(raw string, decimals int) float64 {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	f, _ := d.Shift(int32(-decimals)).Float64()
	return f
}

// FormatAmount renders a raw amount compactly, e.g. "1.500", "12.35K"
func FormatAmount(raw string, decimals int) string {
	num := FromRawFloat(raw, decimals)
	switch {
	case num == 0:
		return "0"
	case num < 0.0001:
		return "<0.0001"
	case num < 1:
		return fmt.Sprintf("%.4f", num)
	case num < 1000:
		return fmt.Sprintf("%.3f", num)
	case num < 1_000_000:
		return fmt.Sprintf("%.2fK", num/1000)
	default:
		return fmt.Sprintf("%.2fM", num/1_000_000)
	}
}

// FormatUSD renders a dollar value with two decimals
func FormatUSD(amount float64) string {
	switch {
	case amount == 0:
		return "$0.00"
	case amount < 0.01:
		return "<$0.01"
	default:
		return fmt.Sprintf("$%.2f", amount)
	}
}

// FormatDuration renders an estimated time in seconds, e.g. "~45s", "~3m", "~1.5h"
func FormatDuration(seconds int) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("~%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("~%dm", int(math.Ceil(float64(seconds)/60)))
	default:
		return fmt.Sprintf("~%.1fh", float64(seconds)/3600)
	}
}

// ShortenAddress keeps the head and tail of an address
func ShortenAddress(address string) string {
	if len(address) <= 12 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}
