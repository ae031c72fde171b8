package core

import (
	"strings"
)

type (
	// Expense is one ledger entry. ID is assigned by the store on insert
	// and is zero before that.
	Expense struct {
		ID          int64
		Date        Date
		Category    string
		Amount      float64
		Description string
	}

	// Filter narrows a ledger query. Zero-value dates mean open bounds,
	// an empty category matches everything. Both date bounds are
	// inclusive.
	Filter struct {
		Start    Date
		End      Date
		Category string
	}
)

// Validate enforces the entry contract: a set date, a non-empty category
// and a strictly positive amount. Stores accept rows that skip this check
// (imports, repairs); interactive entry paths must not.
func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if e.Amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// MonthKey returns the YYYY-MM key of the expense date.
func (e Expense) MonthKey() string {
	return e.Date.MonthKey()
}

// NormalizeCategory trims and lowercases a category name. Categories are
// free-form but conventionally lower-case.
func NormalizeCategory(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}

// Matches reports whether e falls inside the filter bounds.
func (f Filter) Matches(e Expense) bool {
	if !f.Start.IsZero() && e.Date.Before(f.Start.Time) {
		return false
	}
	if !f.End.IsZero() && e.Date.After(f.End.Time) {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	return true
}
