package advisor

import (
	"context"
	"fmt"

	"tally/internal/core"
)

// Warning status tokens. They are language-neutral so a presentation
// layer can translate them.
const (
	StatusOver   = "over"
	StatusWithin = "within"
)

// BudgetWarning is one (month, category) spending line from a budget
// check. Limit is nil when no limit is defined for that pair, in which
// case Status is empty too.
type BudgetWarning struct {
	Month    string
	Category string
	Total    float64
	Limit    *float64
	Status   string
}

// String renders the line the way the check report prints it.
func (w BudgetWarning) String() string {
	line := fmt.Sprintf("%s %s: $%.2f", w.Month, w.Category, w.Total)
	if w.Limit != nil {
		line += fmt.Sprintf(" [%s] (Limit: $%.2f)", w.Status, *w.Limit)
	}
	return line
}

// Over reports whether the line crossed its limit.
func (w BudgetWarning) Over() bool {
	return w.Status == StatusOver
}

// CheckBudgetLimits sums the filtered ledger rows by (month, category)
// and grades each pair against the limits table. Pairs with no limit
// still appear, ungraded, so the report shows all spending in range.
// Lines come back in first-seen query order; an empty range yields an
// empty slice. A zero limit is a real ceiling: any spend against it is
// over.
func CheckBudgetLimits(ctx context.Context, ledger Ledger, f core.Filter, table core.LimitsTable) ([]BudgetWarning, error) {
	rows, err := ledger.Query(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}

	type groupKey struct {
		month    string
		category string
	}
	totals := map[groupKey]float64{}
	order := []groupKey{}
	for _, e := range rows {
		k := groupKey{month: e.Date.MonthKey(), category: e.Category}
		if _, seen := totals[k]; !seen {
			order = append(order, k)
		}
		totals[k] += e.Amount
	}

	out := []BudgetWarning{}
	for _, k := range order {
		w := BudgetWarning{
			Month:    k.month,
			Category: k.category,
			Total:    core.Round2(totals[k]),
		}
		if limit, ok := table[k.month][k.category]; ok {
			w.Limit = &limit
			if w.Total > limit {
				w.Status = StatusOver
			} else {
				w.Status = StatusWithin
			}
		}
		out = append(out, w)
	}
	return out, nil
}
