// Package limits persists per-profile budget limits as a single JSON
// document on disk: {"YYYY-MM": {"category": limit}}. Reads are lenient,
// writes are atomic.
package limits

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"tally/internal/core"
)

// Store reads and writes one profile's limits file.
type Store struct {
	path string
}

// NewStore returns a store bound to the given limits file path. The file
// does not need to exist yet.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the limits file path the store is bound to.
func (s *Store) Path() string {
	return s.path
}

// Load reads the limits document. An absent, empty, or malformed file
// yields an empty table rather than an error: limits are advisory and a
// broken file must never block expense tracking. The decoded document is
// normalized, so callers always get well-formed month keys and
// non-negative limits.
func (s *Store) Load() core.LimitsTable {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return core.LimitsTable{}
	}
	table, err := core.NormalizeLimitsTable(raw)
	if err != nil {
		return core.LimitsTable{}
	}
	return table
}

// Save writes the whole table, replacing the previous document. The
// write goes to a temp file in the same directory followed by a rename,
// so a crash mid-write leaves the old document intact.
func (s *Store) Save(table core.LimitsTable) error {
	if table == nil {
		table = core.LimitsTable{}
	}
	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return fmt.Errorf("encode limits: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create limits dir %s: %w", dir, err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write limits file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace limits file %s: %w", s.path, err)
	}
	return nil
}

// Month returns the category limits recorded for one month. The result
// is a copy; mutating it does not touch the file.
func (s *Store) Month(monthKey string) (core.CategoryLimits, error) {
	if !core.ValidMonthKey(monthKey) {
		return nil, fmt.Errorf("month key %q: %w", monthKey, core.ErrInvalidMonthKey)
	}
	table := s.Load()
	cats, ok := table[monthKey]
	if !ok {
		return core.CategoryLimits{}, nil
	}
	return cats.Clone(), nil
}

// UpsertMonth replaces one month's category limits, leaving every other
// month untouched. The previous limits for that month are returned so
// callers can record a before/after diff.
func (s *Store) UpsertMonth(monthKey string, cats core.CategoryLimits) (core.CategoryLimits, error) {
	if !core.ValidMonthKey(monthKey) {
		return nil, fmt.Errorf("month key %q: %w", monthKey, core.ErrInvalidMonthKey)
	}
	table := s.Load()
	before := table[monthKey].Clone()
	table[monthKey] = cats.Clone()
	if err := s.Save(table); err != nil {
		return nil, err
	}
	return before, nil
}

// ClearMonth deletes one month's key entirely. Removing the key is not
// the same as saving an empty map for it: a cleared month reports "no
// limits defined". Clearing an absent month is a no-op and skips the
// write. The removed limits are returned.
func (s *Store) ClearMonth(monthKey string) (core.CategoryLimits, error) {
	if !core.ValidMonthKey(monthKey) {
		return nil, fmt.Errorf("month key %q: %w", monthKey, core.ErrInvalidMonthKey)
	}
	table := s.Load()
	before, ok := table[monthKey]
	if !ok {
		return core.CategoryLimits{}, nil
	}
	delete(table, monthKey)
	if err := s.Save(table); err != nil {
		return nil, err
	}
	return before.Clone(), nil
}

// ImportJSON replaces the whole document with an uploaded one. The raw
// bytes are normalized first; a root that is not a JSON object fails
// with core.ErrInvalidLimitsDoc and leaves the file untouched. The
// normalized table is returned as confirmation of what was stored.
func (s *Store) ImportJSON(raw []byte) (core.LimitsTable, error) {
	table, err := core.NormalizeLimitsTable(raw)
	if err != nil {
		return nil, err
	}
	if err := s.Save(table); err != nil {
		return nil, err
	}
	return table, nil
}

// ExportJSON renders the current document as indented JSON, the same
// bytes Save would write.
func (s *Store) ExportJSON() ([]byte, error) {
	data, err := json.MarshalIndent(s.Load(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode limits: %w", err)
	}
	return data, nil
}
