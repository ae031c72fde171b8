package ledger

import (
	"context"
	"fmt"
	"strings"

	"tally/internal/core"
)

// SumByMonthCategory sums amounts per (month, category) over the given
// month keys. Months without rows are absent from the result. Sums are
// returned raw; rounding is the consumer's call.
func (s *Store) SumByMonthCategory(ctx context.Context, months []string) (map[string]map[string]float64, error) {
	out := map[string]map[string]float64{}
	if len(months) == 0 {
		return out, nil
	}

	placeholders := strings.Repeat("?,", len(months))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(months))
	for i, m := range months {
		args[i] = m
	}

	err := s.withRepair(ctx, func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT substr(date, 1, 7) AS month, category, SUM(amount)
			 FROM expenses
			 WHERE substr(date, 1, 7) IN (`+placeholders+`)
			 GROUP BY month, category`, args...)
		if err != nil {
			return fmt.Errorf("sum by month and category: %w", err)
		}
		defer rows.Close()

		clear(out)
		for rows.Next() {
			var (
				month, category string
				total           float64
			)
			if err := rows.Scan(&month, &category, &total); err != nil {
				return fmt.Errorf("scan month sum: %w", err)
			}
			if out[month] == nil {
				out[month] = map[string]float64{}
			}
			out[month][category] = total
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MonthSummary totals one month: overall and per category, largest
// categories first.
func (s *Store) MonthSummary(ctx context.Context, monthKey string) (core.MonthSummary, error) {
	if !core.ValidMonthKey(monthKey) {
		return core.MonthSummary{}, fmt.Errorf("month %q: %w", monthKey, core.ErrInvalidMonthKey)
	}

	summary := core.MonthSummary{Month: monthKey, ByCategory: []core.CategoryTotal{}}
	err := s.withRepair(ctx, func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT category, SUM(amount) AS total
			 FROM expenses
			 WHERE substr(date, 1, 7) = ?
			 GROUP BY category
			 ORDER BY total DESC, category`, monthKey)
		if err != nil {
			return fmt.Errorf("query month summary: %w", err)
		}
		defer rows.Close()

		summary.Total = 0
		summary.ByCategory = summary.ByCategory[:0]
		for rows.Next() {
			var ct core.CategoryTotal
			if err := rows.Scan(&ct.Category, &ct.Total); err != nil {
				return fmt.Errorf("scan category total: %w", err)
			}
			summary.Total += ct.Total
			ct.Total = core.Round2(ct.Total)
			summary.ByCategory = append(summary.ByCategory, ct)
		}
		return rows.Err()
	})
	if err != nil {
		return core.MonthSummary{}, err
	}

	summary.Total = core.Round2(summary.Total)
	return summary, nil
}
