package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ClampDiscount bounds a discount percentage to [0, 100].
func ClampDiscount(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

// EffectiveDiscount returns the larger of the product and global discounts.
func EffectiveDiscount(product, global int) int {
	product = ClampDiscount(product)
	global = ClampDiscount(global)
	if global > product {
		return global
	}
	return product
}

// ApplyDiscount returns the discounted price in cents, rounded half-up.
func ApplyDiscount(cents int64, percent int) int64 {
	percent = ClampDiscount(percent)
	if cents <= 0 || percent == 0 {
		return cents
	}
	remaining := cents * int64(100-percent)
	return (remaining + 50) / 100
}

// CentsFromFloat converts a decimal currency amount to cents.
func CentsFromFloat(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// ParseCents parses a decimal amount such as "9.99" into cents.
func ParseCents(value string) (int64, error) {
	amount, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, fmt.Errorf("invalid amount: %q", value)
	}
	if amount < 0 {
		return 0, fmt.Errorf("amount cannot be negative: %q", value)
	}
	return CentsFromFloat(amount), nil
}
