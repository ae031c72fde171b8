package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Export variants. The generic variant carries full before/after
// snapshots per entry; the diff variant carries one record per changed
// category.
const (
	VariantGeneric = "generic"
	VariantDiff    = "diff"
)

// Export renders the log in the requested format and variant.
func (l *Log) Export(format, variant string) ([]byte, error) {
	entries := l.Entries()
	switch {
	case format == FormatJSON && variant == VariantGeneric:
		return exportJSON(entries)
	case format == FormatJSON && variant == VariantDiff:
		return exportDiffJSON(entries)
	case format == FormatCSV && variant == VariantGeneric:
		return exportCSV(entries)
	case format == FormatCSV && variant == VariantDiff:
		return exportDiffCSV(entries)
	default:
		return nil, fmt.Errorf("unknown audit export %s/%s", format, variant)
	}
}

// exportJSON renders a pretty array of full snapshots.
func exportJSON(entries []Entry) ([]byte, error) {
	type row struct {
		TS     string             `json:"ts"`
		Kind   string             `json:"kind"`
		Month  string             `json:"month"`
		Before map[string]float64 `json:"before"`
		After  map[string]float64 `json:"after"`
	}
	rows := make([]row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, row{
			TS:     e.TS.Format(tsLayout),
			Kind:   e.Kind,
			Month:  e.Month,
			Before: e.Before,
			After:  e.After,
		})
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode audit json: %w", err)
	}
	return data, nil
}

// exportDiffJSON renders one record per entry with only the changed
// categories spelled out.
func exportDiffJSON(entries []Entry) ([]byte, error) {
	type row struct {
		User    string   `json:"user"`
		Month   string   `json:"month"`
		Changes []Change `json:"changes"`
	}
	rows := make([]row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, row{User: e.User, Month: e.Month, Changes: e.Changes()})
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode audit json: %w", err)
	}
	return data, nil
}

// exportDiffCSV renders one row per changed category.
func exportDiffCSV(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write([]string{"user", "month", "category", "before", "after"}); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range entries {
		for _, ch := range e.Changes() {
			row := []string{
				e.User,
				e.Month,
				ch.Category,
				formatLimit(ch.Before),
				formatLimit(ch.After),
			}
			if err := cw.Write(row); err != nil {
				return nil, fmt.Errorf("write csv row: %w", err)
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// exportCSV renders full snapshots. The header is built from every
// category seen across all entries, as before_<cat> and after_<cat>
// columns; cells for categories an entry never touched read 0.
func exportCSV(entries []Entry) ([]byte, error) {
	seen := map[string]struct{}{}
	for _, e := range entries {
		for cat := range e.Before {
			seen[cat] = struct{}{}
		}
		for cat := range e.After {
			seen[cat] = struct{}{}
		}
	}
	cats := make([]string, 0, len(seen))
	for cat := range seen {
		cats = append(cats, cat)
	}
	sort.Strings(cats)

	header := []string{"ts", "kind", "month"}
	for _, cat := range cats {
		header = append(header, "before_"+cat)
	}
	for _, cat := range cats {
		header = append(header, "after_"+cat)
	}

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range entries {
		row := []string{e.TS.Format(tsLayout), e.Kind, e.Month}
		for _, cat := range cats {
			row = append(row, formatLimit(e.Before[cat]))
		}
		for _, cat := range cats {
			row = append(row, formatLimit(e.After[cat]))
		}
		if err := cw.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func formatLimit(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
