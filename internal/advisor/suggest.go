// Package advisor derives limit suggestions and overspend warnings from
// ledger history. It is stateless: every call reads through the ledger
// it is handed and returns plain values.
package advisor

import (
	"context"
	"fmt"

	"tally/internal/core"
)

// Ledger is the slice of the expense store the advisor reads.
type Ledger interface {
	Query(ctx context.Context, f core.Filter) ([]core.Expense, error)
	SumByMonthCategory(ctx context.Context, months []string) (map[string]map[string]float64, error)
}

// SuggestLimitsForMonth proposes per-category limits for monthKey from
// recent spending. Each suggestion is the mean of the category's monthly
// totals over the up-to-3 months immediately before monthKey. The target
// month never feeds its own average, so a half-entered month does not
// drag suggestions down. Months with no spend in a category are left out
// of that category's mean rather than counted as zero. When the whole
// trailing window is silent, the totals of the single preceding month
// are used as-is. No history in the window at all yields an empty map.
func SuggestLimitsForMonth(ctx context.Context, ledger Ledger, monthKey string) (core.CategoryLimits, error) {
	window, err := core.MonthWindow(monthKey, 4)
	if err != nil {
		return nil, err
	}
	pivot, err := ledger.SumByMonthCategory(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("load month totals: %w", err)
	}
	if len(pivot) == 0 {
		return core.CategoryLimits{}, nil
	}

	categories := map[string]struct{}{}
	for _, totals := range pivot {
		for cat := range totals {
			categories[cat] = struct{}{}
		}
	}

	trailing := window[:len(window)-1]
	out := core.CategoryLimits{}
	allZero := true
	for cat := range categories {
		var sum float64
		var n int
		for _, mk := range trailing {
			if total, ok := pivot[mk][cat]; ok {
				sum += total
				n++
			}
		}
		var mean float64
		if n > 0 {
			mean = sum / float64(n)
		}
		out[cat] = core.Round2(mean)
		if out[cat] != 0 {
			allZero = false
		}
	}

	if allZero {
		prev := trailing[len(trailing)-1]
		if totals, ok := pivot[prev]; ok {
			out = core.CategoryLimits{}
			for cat, total := range totals {
				out[cat] = core.Round2(total)
			}
		}
	}
	return out, nil
}
