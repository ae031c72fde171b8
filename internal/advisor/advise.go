package advisor

import (
	"fmt"
	"sort"

	"tally/internal/core"
)

// Advice action tokens.
const (
	AdviceRaise = "raise"
	AdviceLower = "lower"
)

// LimitAdvice is one tuning hint comparing a suggested value against the
// limit currently on file.
type LimitAdvice struct {
	Category  string
	Action    string
	Suggested float64
	Limit     float64
}

// String renders the hint with the dollar delta spelled out.
func (a LimitAdvice) String() string {
	switch a.Action {
	case AdviceRaise:
		return fmt.Sprintf("%s: recent average $%.2f is above the $%.2f limit, consider raising by $%.2f",
			a.Category, a.Suggested, a.Limit, a.Suggested-a.Limit)
	case AdviceLower:
		return fmt.Sprintf("%s: limit $%.2f is well above the $%.2f recent average, consider lowering by $%.2f",
			a.Category, a.Limit, a.Suggested, a.Limit-a.Suggested)
	default:
		return fmt.Sprintf("%s: suggested $%.2f, limit $%.2f", a.Category, a.Suggested, a.Limit)
	}
}

// AdviseLimits compares suggested values with the limits on file and
// flags the ones worth revisiting. A suggestion more than 10% over the
// limit earns a raise hint; a limit more than 25% over the suggestion
// earns a lower hint. Categories where both sides are zero are skipped.
// Results are sorted by category.
func AdviseLimits(suggested, current core.CategoryLimits) []LimitAdvice {
	names := make([]string, 0, len(suggested)+len(current))
	seen := map[string]struct{}{}
	for cat := range suggested {
		seen[cat] = struct{}{}
	}
	for cat := range current {
		seen[cat] = struct{}{}
	}
	for cat := range seen {
		names = append(names, cat)
	}
	sort.Strings(names)

	out := []LimitAdvice{}
	for _, cat := range names {
		avg := suggested[cat]
		limit := current[cat]
		switch {
		case avg == 0 && limit == 0:
		case avg > limit*1.1:
			out = append(out, LimitAdvice{Category: cat, Action: AdviceRaise, Suggested: avg, Limit: limit})
		case limit > 0 && limit > avg*1.25:
			out = append(out, LimitAdvice{Category: cat, Action: AdviceLower, Suggested: avg, Limit: limit})
		}
	}
	return out
}
