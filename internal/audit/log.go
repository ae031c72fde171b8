// Package audit keeps an append-only trail of limit edits. The log
// lives in memory for the running process and can mirror each entry to
// a JSONL file so the trail survives restarts.
package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"tally/internal/core"
)

// Entry kinds.
const (
	KindSave       = "save"
	KindClearMonth = "clear_month"
	KindImportCSV  = "import_csv"
	KindImportJSON = "import_json"
)

// tsLayout matches the second-resolution timestamps the exports carry.
const tsLayout = "2006-01-02T15:04:05"

// epsilon is the smallest limit movement worth recording.
const epsilon = 1e-9

// Entry is one recorded edit with full before/after snapshots of the
// touched month.
type Entry struct {
	TS     time.Time
	Kind   string
	User   string
	Month  string
	Before core.CategoryLimits
	After  core.CategoryLimits
}

// Change is one category's movement inside an entry.
type Change struct {
	Category string  `json:"category"`
	Before   float64 `json:"before"`
	After    float64 `json:"after"`
}

// Changes lists the categories whose value moved by more than epsilon,
// sorted by category name. Unchanged categories are left out.
func (e Entry) Changes() []Change {
	cats := make([]string, 0, len(e.Before)+len(e.After))
	seen := map[string]struct{}{}
	for cat := range e.Before {
		seen[cat] = struct{}{}
	}
	for cat := range e.After {
		seen[cat] = struct{}{}
	}
	for cat := range seen {
		cats = append(cats, cat)
	}
	sort.Strings(cats)

	out := []Change{}
	for _, cat := range cats {
		before := e.Before[cat]
		after := e.After[cat]
		if math.Abs(before-after) > epsilon {
			out = append(out, Change{Category: cat, Before: before, After: after})
		}
	}
	return out
}

// Log records limit edits. Safe for concurrent use.
type Log struct {
	mu       sync.Mutex
	entries  []Entry
	sinkPath string
	now      func() time.Time
}

// NewLog returns an in-memory log. sinkPath may be empty; when set,
// every appended entry is also written to that file as one JSON line.
// Sink failures are logged and never block the append.
func NewLog(sinkPath string) *Log {
	return &Log{sinkPath: sinkPath, now: time.Now}
}

// Append records a full before/after snapshot, even when nothing
// changed.
func (l *Log) Append(kind, user, monthKey string, before, after core.CategoryLimits) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.append(Entry{
		TS:     l.now(),
		Kind:   kind,
		User:   user,
		Month:  monthKey,
		Before: before.Clone(),
		After:  after.Clone(),
	})
}

// AppendDiffOnly records the edit only when at least one category moved
// by more than epsilon, and reports whether an entry was written. Saves
// that change nothing stay out of the trail.
func (l *Log) AppendDiffOnly(user, monthKey string, before, after core.CategoryLimits) bool {
	entry := Entry{
		Kind:   KindSave,
		User:   user,
		Month:  monthKey,
		Before: before.Clone(),
		After:  after.Clone(),
	}
	if len(entry.Changes()) == 0 {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	entry.TS = l.now()
	l.append(entry)
	return true
}

// append assumes l.mu is held.
func (l *Log) append(e Entry) {
	l.entries = append(l.entries, e)
	l.persist(e)
}

// sinkRecord is the JSONL line shape, shared by persist and LoadSink.
type sinkRecord struct {
	TS     string              `json:"ts"`
	Kind   string              `json:"kind"`
	User   string              `json:"user,omitempty"`
	Month  string              `json:"month"`
	Before core.CategoryLimits `json:"before"`
	After  core.CategoryLimits `json:"after"`
}

// persist mirrors one entry to the JSONL sink, best effort.
func (l *Log) persist(e Entry) {
	if l.sinkPath == "" {
		return
	}
	line, err := json.Marshal(sinkRecord{
		TS:     e.TS.Format(tsLayout),
		Kind:   e.Kind,
		User:   e.User,
		Month:  e.Month,
		Before: e.Before,
		After:  e.After,
	})
	if err != nil {
		slog.Warn("Audit sink encode failed", "error", err)
		return
	}
	f, err := os.OpenFile(l.sinkPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Warn("Audit sink open failed", "path", l.sinkPath, "error", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		slog.Warn("Audit sink write failed", "path", l.sinkPath, "error", err)
	}
}

// LoadSink replaces the in-memory entries with the ones mirrored to the
// JSONL sink. A missing sink loads as empty; unreadable lines are
// skipped. One-shot processes call this before exporting so the trail
// from earlier runs is visible.
func (l *Log) LoadSink() error {
	if l.sinkPath == "" {
		return nil
	}
	data, err := os.ReadFile(l.sinkPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read audit sink: %w", err)
	}

	var loaded []Entry
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var rec sinkRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			slog.Warn("Audit sink line skipped", "error", err)
			continue
		}
		ts, err := time.Parse(tsLayout, rec.TS)
		if err != nil {
			slog.Warn("Audit sink timestamp skipped", "ts", rec.TS, "error", err)
			continue
		}
		loaded = append(loaded, Entry{
			TS:     ts,
			Kind:   rec.Kind,
			User:   rec.User,
			Month:  rec.Month,
			Before: rec.Before,
			After:  rec.After,
		})
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = loaded
	return nil
}

// Entries returns a copy of the recorded entries, oldest first.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len reports how many entries are recorded.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear drops every recorded entry. The JSONL sink keeps its lines.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// ClearSink drops the recorded entries and removes the JSONL sink file,
// so the clear survives restarts.
func (l *Log) ClearSink() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	if l.sinkPath == "" {
		return nil
	}
	if err := os.Remove(l.sinkPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove audit sink: %w", err)
	}
	return nil
}
