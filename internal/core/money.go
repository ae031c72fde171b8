// Package core provides the domain types of the ledger engine.
//
// This file contains amount parsing and formatting helpers. Amounts are
// plain float64 dollars: the ledger column is REAL, the limits document
// holds JSON numbers, and the audit dedup epsilon (1e-9) is defined on
// decimal values, so a fixed-point representation would misstate all
// three contracts.
package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseAmount converts a decimal string to a positive amount, rounded
// half-up to 2 decimal places.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
// Returns ErrInvalidAmount for malformed input, negative values or zero.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount("12.345") -> 12.35, nil (rounds up)
//	ParseAmount("-1") -> 0, ErrInvalidAmount
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		// Only positive values allowed
		return 0, ErrInvalidAmount
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrInvalidAmount
	}
	v = Round2(v)
	if v <= 0 {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// Round2 rounds half-up to 2 decimal places. Decimal halfway inputs sit
// a hair below .xx5 in binary (1.005 reads back as 1.00499...), so the
// scaled value is nudged by a sub-cent epsilon before rounding.
func Round2(v float64) float64 {
	return math.Round(v*100+math.Copysign(1e-9, v)) / 100
}

// FormatUSD renders an amount as a dollar string, e.g. "$12.50".
func FormatUSD(v float64) string {
	if v < 0 {
		return fmt.Sprintf("-$%.2f", -v)
	}
	return fmt.Sprintf("$%.2f", v)
}
