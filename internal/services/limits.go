package services

import (
	"context"
	"fmt"
	"maps"
	"math"
	"sort"

	"tally/internal/advisor"
	"tally/internal/audit"
	"tally/internal/core"
	"tally/internal/events"
	"tally/internal/limits"
	"tally/internal/profile"
)

// LimitsService manages per-month budget limits: the editor operations,
// the CSV and JSON transfer paths, and the advisory reads built on ledger
// history. Every change lands in the audit log.
type LimitsService struct {
	st *state
}

// Load returns the whole limits document for a profile.
func (s *LimitsService) Load(handle string) (core.LimitsTable, error) {
	h, err := profile.NormalizeHandle(handle)
	if err != nil {
		return nil, err
	}
	return s.st.limitsStore(h).Load(), nil
}

// Month returns one month's limits, empty when unset.
func (s *LimitsService) Month(handle, monthKey string) (core.CategoryLimits, error) {
	h, err := profile.NormalizeHandle(handle)
	if err != nil {
		return nil, err
	}
	return s.st.limitsStore(h).Month(monthKey)
}

// SaveMonth replaces one month's limits with cats and audits the diff.
// The audit entry, the version bump and the event are skipped when
// nothing changed. Returns the normalized map as stored.
func (s *LimitsService) SaveMonth(ctx context.Context, handle, monthKey string, cats core.CategoryLimits) (core.CategoryLimits, error) {
	h, err := profile.NormalizeHandle(handle)
	if err != nil {
		return nil, err
	}
	if !core.ValidMonthKey(monthKey) {
		return nil, fmt.Errorf("month key %q: %w", monthKey, core.ErrInvalidMonthKey)
	}
	clean, err := normalizeLimits(cats)
	if err != nil {
		return nil, err
	}
	if err := s.st.ensureProfile(ctx, h); err != nil {
		return nil, err
	}

	mu := s.st.lock(h)
	mu.Lock()
	defer mu.Unlock()

	before, err := s.st.limitsStore(h).UpsertMonth(monthKey, clean)
	if err != nil {
		return nil, err
	}
	if s.st.audit.AppendDiffOnly(h, monthKey, before, clean) {
		s.st.bump(h)
		s.st.publish(ctx, events.NewLimitsEvent(h, events.KindLimitsSaved, monthKey))
	}
	return clean, nil
}

// ClearMonth removes one month from the limits document and returns what
// was there. Clearing an unset month is a no-op but still audited.
func (s *LimitsService) ClearMonth(ctx context.Context, handle, monthKey string) (core.CategoryLimits, error) {
	h, err := profile.NormalizeHandle(handle)
	if err != nil {
		return nil, err
	}
	if !core.ValidMonthKey(monthKey) {
		return nil, fmt.Errorf("month key %q: %w", monthKey, core.ErrInvalidMonthKey)
	}
	if err := s.st.ensureProfile(ctx, h); err != nil {
		return nil, err
	}

	mu := s.st.lock(h)
	mu.Lock()
	defer mu.Unlock()

	store := s.st.limitsStore(h)
	_, existed := store.Load()[monthKey]
	removed, err := store.ClearMonth(monthKey)
	if err != nil {
		return nil, err
	}

	s.st.audit.Append(audit.KindClearMonth, h, monthKey, removed, nil)
	if existed {
		s.st.bump(h)
		s.st.publish(ctx, events.NewLimitsEvent(h, events.KindMonthCleared, monthKey))
	}
	return removed, nil
}

// Suggest computes limit suggestions for a month from trailing ledger
// history. Nothing is persisted.
func (s *LimitsService) Suggest(ctx context.Context, handle, monthKey string) (core.CategoryLimits, error) {
	h, err := profile.NormalizeHandle(handle)
	if err != nil {
		return nil, err
	}
	store, err := s.st.ledgerStore(ctx, h)
	if err != nil {
		return nil, err
	}
	return advisor.SuggestLimitsForMonth(ctx, store, monthKey)
}

// AutoFill populates an absent or empty month: suggestions when trailing
// history exists, otherwise the previous month's limits. The filled map
// is persisted and audited like a save. A month that already has limits
// is returned untouched.
func (s *LimitsService) AutoFill(ctx context.Context, handle, monthKey string) (core.CategoryLimits, error) {
	h, err := profile.NormalizeHandle(handle)
	if err != nil {
		return nil, err
	}
	if !core.ValidMonthKey(monthKey) {
		return nil, fmt.Errorf("month key %q: %w", monthKey, core.ErrInvalidMonthKey)
	}
	if err := s.st.ensureProfile(ctx, h); err != nil {
		return nil, err
	}

	mu := s.st.lock(h)
	mu.Lock()
	defer mu.Unlock()

	store := s.st.limitsStore(h)
	table := store.Load()
	if current := table[monthKey]; len(current) > 0 {
		return current.Clone(), nil
	}

	ledgerStore, err := s.st.ledgerStore(ctx, h)
	if err != nil {
		return nil, err
	}
	filled, err := advisor.SuggestLimitsForMonth(ctx, ledgerStore, monthKey)
	if err != nil {
		return nil, err
	}
	if len(filled) == 0 {
		prev, err := core.PrevMonthKey(monthKey)
		if err != nil {
			return nil, err
		}
		filled = table[prev].Clone()
	}

	before, err := store.UpsertMonth(monthKey, filled)
	if err != nil {
		return nil, err
	}
	if s.st.audit.AppendDiffOnly(h, monthKey, before, filled) {
		s.st.bump(h)
		s.st.publish(ctx, events.NewLimitsEvent(h, events.KindLimitsSaved, monthKey))
	}
	return filled, nil
}

// Check grades filtered spending against the limits document.
func (s *LimitsService) Check(ctx context.Context, handle string, f core.Filter) ([]advisor.BudgetWarning, error) {
	h, err := profile.NormalizeHandle(handle)
	if err != nil {
		return nil, err
	}
	f.Category = core.NormalizeCategory(f.Category)

	store, err := s.st.ledgerStore(ctx, h)
	if err != nil {
		return nil, err
	}
	table := s.st.limitsStore(h).Load()
	return advisor.CheckBudgetLimits(ctx, store, f, table)
}

// Advise compares suggestions against the month's current limits and
// returns tuning hints.
func (s *LimitsService) Advise(ctx context.Context, handle, monthKey string) ([]advisor.LimitAdvice, error) {
	h, err := profile.NormalizeHandle(handle)
	if err != nil {
		return nil, err
	}
	store, err := s.st.ledgerStore(ctx, h)
	if err != nil {
		return nil, err
	}
	suggested, err := advisor.SuggestLimitsForMonth(ctx, store, monthKey)
	if err != nil {
		return nil, err
	}
	current, err := s.st.limitsStore(h).Month(monthKey)
	if err != nil {
		return nil, err
	}
	return advisor.AdviseLimits(suggested, current), nil
}

// ExportCSV renders one month's limits as CSV.
func (s *LimitsService) ExportCSV(handle, monthKey string) ([]byte, error) {
	h, err := profile.NormalizeHandle(handle)
	if err != nil {
		return nil, err
	}
	month, err := s.st.limitsStore(h).Month(monthKey)
	if err != nil {
		return nil, err
	}
	return limits.ToCSV(month)
}

// ImportCSV replaces one month's limits with the parsed CSV content.
// Always audited, matching the upload flow it replaces.
func (s *LimitsService) ImportCSV(ctx context.Context, handle, monthKey string, data []byte) (core.CategoryLimits, error) {
	h, err := profile.NormalizeHandle(handle)
	if err != nil {
		return nil, err
	}
	if !core.ValidMonthKey(monthKey) {
		return nil, fmt.Errorf("month key %q: %w", monthKey, core.ErrInvalidMonthKey)
	}
	imported, err := limits.FromCSV(data)
	if err != nil {
		return nil, err
	}
	if err := s.st.ensureProfile(ctx, h); err != nil {
		return nil, err
	}

	mu := s.st.lock(h)
	mu.Lock()
	defer mu.Unlock()

	before, err := s.st.limitsStore(h).UpsertMonth(monthKey, imported)
	if err != nil {
		return nil, err
	}
	s.st.audit.Append(audit.KindImportCSV, h, monthKey, before, imported)
	s.st.bump(h)
	s.st.publish(ctx, events.NewLimitsEvent(h, events.KindLimitsImported, monthKey))
	return imported, nil
}

// ImportJSON replaces the whole limits document after normalization.
// Each month whose content changed gets its own audit entry.
func (s *LimitsService) ImportJSON(ctx context.Context, handle string, raw []byte) (core.LimitsTable, error) {
	h, err := profile.NormalizeHandle(handle)
	if err != nil {
		return nil, err
	}
	if err := s.st.ensureProfile(ctx, h); err != nil {
		return nil, err
	}

	mu := s.st.lock(h)
	mu.Lock()
	defer mu.Unlock()

	store := s.st.limitsStore(h)
	before := store.Load()
	imported, err := store.ImportJSON(raw)
	if err != nil {
		return nil, err
	}

	changed := false
	for _, mk := range monthUnion(before, imported) {
		if maps.Equal(before[mk], imported[mk]) {
			continue
		}
		s.st.audit.Append(audit.KindImportJSON, h, mk, before[mk], imported[mk])
		changed = true
	}
	if changed {
		s.st.bump(h)
		s.st.publish(ctx, events.NewLimitsEvent(h, events.KindLimitsImported, ""))
	}
	return imported, nil
}

// ExportJSON renders the whole limits document as indented JSON.
func (s *LimitsService) ExportJSON(handle string) ([]byte, error) {
	h, err := profile.NormalizeHandle(handle)
	if err != nil {
		return nil, err
	}
	return s.st.limitsStore(h).ExportJSON()
}

// normalizeLimits cleans an editor-supplied month map. Category names are
// normalized and must be non-blank; values must be finite and
// non-negative. Values are rounded to cents.
func normalizeLimits(cats core.CategoryLimits) (core.CategoryLimits, error) {
	clean := make(core.CategoryLimits, len(cats))
	for name, v := range cats {
		c := core.NormalizeCategory(name)
		if c == "" {
			return nil, core.ErrEmptyCategory
		}
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("limit for %s: %w", c, core.ErrInvalidAmount)
		}
		clean[c] = core.Round2(v)
	}
	return clean, nil
}

func monthUnion(a, b core.LimitsTable) []string {
	seen := make(map[string]bool, len(a)+len(b))
	for mk := range a {
		seen[mk] = true
	}
	for mk := range b {
		seen[mk] = true
	}
	months := make([]string, 0, len(seen))
	for mk := range seen {
		months = append(months, mk)
	}
	sort.Strings(months)
	return months
}
