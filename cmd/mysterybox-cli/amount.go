package main

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"github.com/Klingon-tech/mysterybox/config"
)

// formatAmount renders base units as a decimal coin amount with trailing
// zeros dropped: 1.5, 0.000001, 12.
func formatAmount(units uint64) string {
	whole := units / config.Coin
	frac := units % config.Coin
	if frac == 0 {
		return strconv.FormatUint(whole, 10)
	}
	s := fmt.Sprintf("%d.%0*d", whole, config.Decimals, frac)
	return strings.TrimRight(s, "0")
}

// parseAmount reads a decimal coin amount. A trailing "u" means the value
// is already in base units ("10010u").
func parseAmount(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	if raw, ok := strings.CutSuffix(s, "u"); ok {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid base units: %w", err)
		}
		return v, nil
	}

	wholeStr, fracStr, _ := strings.Cut(s, ".")
	whole, err := strconv.ParseUint(wholeStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid whole part: %w", err)
	}
	var frac uint64
	if fracStr != "" {
		if len(fracStr) > config.Decimals {
			return 0, fmt.Errorf("too many decimal places (max %d)", config.Decimals)
		}
		frac, err = strconv.ParseUint(fracStr+strings.Repeat("0", config.Decimals-len(fracStr)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid fractional part: %w", err)
		}
	}

	hi, lo := bits.Mul64(whole, config.Coin)
	sum, carry := bits.Add64(lo, frac, 0)
	if hi != 0 || carry != 0 {
		return 0, fmt.Errorf("amount too large")
	}
	return sum, nil
}
