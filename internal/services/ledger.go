package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"tally/internal/core"
	"tally/internal/events"
	"tally/internal/ledger"
	"tally/internal/profile"
)

// LedgerService runs expense operations for a profile. Input validation
// lives here, not in the store: imports and repairs go around it, the API
// and the CLI do not.
type LedgerService struct {
	st *state
}

// AddExpense validates, saves and announces one expense. The returned
// expense carries the assigned id.
func (s *LedgerService) AddExpense(ctx context.Context, handle string, e core.Expense) (core.Expense, error) {
	h, err := profile.NormalizeHandle(handle)
	if err != nil {
		return core.Expense{}, err
	}
	e.Category = core.NormalizeCategory(e.Category)
	e.Description = strings.TrimSpace(e.Description)
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	mu := s.st.lock(h)
	mu.Lock()
	defer mu.Unlock()

	store, err := s.st.ledgerStore(ctx, h)
	if err != nil {
		return core.Expense{}, err
	}
	id, err := store.AddExpense(ctx, e)
	if err != nil {
		return core.Expense{}, err
	}
	e.ID = id

	s.st.bump(h)
	s.st.publish(ctx, events.NewExpenseEvent(h, events.KindExpenseAdded, id))
	return e, nil
}

// Query returns expenses matching the filter, newest first.
func (s *LedgerService) Query(ctx context.Context, handle string, f core.Filter) ([]core.Expense, error) {
	h, err := profile.NormalizeHandle(handle)
	if err != nil {
		return nil, err
	}
	f.Category = core.NormalizeCategory(f.Category)

	store, err := s.st.ledgerStore(ctx, h)
	if err != nil {
		return nil, err
	}
	return store.Query(ctx, f)
}

// UpdateExpense applies the non-nil fields of u to one expense.
func (s *LedgerService) UpdateExpense(ctx context.Context, handle string, id int64, u ledger.ExpenseUpdate) error {
	h, err := profile.NormalizeHandle(handle)
	if err != nil {
		return err
	}
	if u.Date != nil {
		if err := u.Date.Validate(); err != nil {
			return err
		}
	}
	if u.Category != nil {
		c := core.NormalizeCategory(*u.Category)
		if c == "" {
			return core.ErrEmptyCategory
		}
		u.Category = &c
	}
	if u.Amount != nil && *u.Amount <= 0 {
		return core.ErrInvalidAmount
	}
	if u.Description != nil {
		d := strings.TrimSpace(*u.Description)
		u.Description = &d
	}

	mu := s.st.lock(h)
	mu.Lock()
	defer mu.Unlock()

	store, err := s.st.ledgerStore(ctx, h)
	if err != nil {
		return err
	}
	if err := store.UpdateExpense(ctx, id, u); err != nil {
		return err
	}

	s.st.bump(h)
	s.st.publish(ctx, events.NewExpenseEvent(h, events.KindExpenseUpdated, id))
	return nil
}

// DeleteExpense removes one expense by id.
func (s *LedgerService) DeleteExpense(ctx context.Context, handle string, id int64) error {
	h, err := profile.NormalizeHandle(handle)
	if err != nil {
		return err
	}

	mu := s.st.lock(h)
	mu.Lock()
	defer mu.Unlock()

	store, err := s.st.ledgerStore(ctx, h)
	if err != nil {
		return err
	}
	if err := store.DeleteExpense(ctx, id); err != nil {
		return err
	}

	s.st.bump(h)
	s.st.publish(ctx, events.NewExpenseEvent(h, events.KindExpenseDeleted, id))
	return nil
}

// Categories lists the categories seen in the ledger. With a month key it
// also folds in that month's limit categories, so a category with a limit
// but no transactions still appears.
func (s *LedgerService) Categories(ctx context.Context, handle, monthKey string) ([]string, error) {
	h, err := profile.NormalizeHandle(handle)
	if err != nil {
		return nil, err
	}
	if monthKey != "" && !core.ValidMonthKey(monthKey) {
		return nil, fmt.Errorf("month key %q: %w", monthKey, core.ErrInvalidMonthKey)
	}

	store, err := s.st.ledgerStore(ctx, h)
	if err != nil {
		return nil, err
	}
	cats, err := store.DistinctCategories(ctx)
	if err != nil {
		return nil, err
	}
	if monthKey == "" {
		return cats, nil
	}

	seen := make(map[string]bool, len(cats))
	for _, c := range cats {
		seen[c] = true
	}
	month, err := s.st.limitsStore(h).Month(monthKey)
	if err != nil {
		return nil, err
	}
	for c := range month {
		if !seen[c] {
			cats = append(cats, c)
		}
	}
	sort.Strings(cats)
	return cats, nil
}

// MonthSummary returns the total and per-category spend for one month.
func (s *LedgerService) MonthSummary(ctx context.Context, handle, monthKey string) (core.MonthSummary, error) {
	h, err := profile.NormalizeHandle(handle)
	if err != nil {
		return core.MonthSummary{}, err
	}
	store, err := s.st.ledgerStore(ctx, h)
	if err != nil {
		return core.MonthSummary{}, err
	}
	return store.MonthSummary(ctx, monthKey)
}

// ExportCSV streams the filtered ledger as CSV to w.
func (s *LedgerService) ExportCSV(ctx context.Context, handle string, w io.Writer, f core.Filter) error {
	h, err := profile.NormalizeHandle(handle)
	if err != nil {
		return err
	}
	f.Category = core.NormalizeCategory(f.Category)

	store, err := s.st.ledgerStore(ctx, h)
	if err != nil {
		return err
	}
	return store.ExportCSV(ctx, w, f)
}

// ImportLegacyJSON loads rows from the old JSON export format. Imported
// rows reach the mirror through the periodic sweep, not per-row events.
func (s *LedgerService) ImportLegacyJSON(ctx context.Context, handle string, data []byte) (int, error) {
	h, err := profile.NormalizeHandle(handle)
	if err != nil {
		return 0, err
	}

	mu := s.st.lock(h)
	mu.Lock()
	defer mu.Unlock()

	store, err := s.st.ledgerStore(ctx, h)
	if err != nil {
		return 0, err
	}
	n, err := store.ImportLegacyJSON(ctx, data)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.st.bump(h)
	}
	return n, nil
}

// Version returns the profile's data version. It increases on every
// mutation, including limits changes, and keys the HTTP read caches.
func (s *LedgerService) Version(handle string) (int64, error) {
	h, err := profile.NormalizeHandle(handle)
	if err != nil {
		return 0, err
	}
	return s.st.version(h), nil
}
