package limits

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"tally/internal/core"
)

// ToCSV renders one month's limits as CSV with a category,limit header.
// Rows are sorted by category so the output is stable.
func ToCSV(cats core.CategoryLimits) ([]byte, error) {
	names := make([]string, 0, len(cats))
	for cat := range cats {
		names = append(names, cat)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write([]string{"category", "limit"}); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, cat := range names {
		row := []string{cat, strconv.FormatFloat(cats[cat], 'f', 2, 64)}
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

// FromCSV parses an uploaded limits CSV back into a category map. The
// parser is lenient: a category,limit header row is skipped if present,
// blank categories, unparseable numbers, and negative limits are
// dropped, and ragged rows are tolerated. Zero limits survive; they
// mean "spend nothing", not "unset".
func FromCSV(raw []byte) (core.CategoryLimits, error) {
	cr := csv.NewReader(bytes.NewReader(raw))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	out := core.CategoryLimits{}
	first := true
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse limits csv: %w", err)
		}
		if first {
			first = false
			if isCSVHeader(record) {
				continue
			}
		}
		if len(record) < 2 {
			continue
		}
		cat := strings.TrimSpace(record[0])
		if cat == "" {
			continue
		}
		limit, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil || limit < 0 {
			continue
		}
		out[cat] = limit
	}
	return out, nil
}

func isCSVHeader(record []string) bool {
	return len(record) >= 2 &&
		strings.EqualFold(strings.TrimSpace(record[0]), "category") &&
		strings.EqualFold(strings.TrimSpace(record[1]), "limit")
}
