package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type (
	// CategoryLimits maps category name to a spending ceiling for one
	// month. Limits are >= 0; a zero limit is a real ceiling, not "no
	// limit".
	CategoryLimits map[string]float64

	// LimitsTable is a profile's whole limits document, keyed by YYYY-MM.
	// An absent month key means "no limits defined for that month", which
	// is not the same as a present key mapping to an empty CategoryLimits.
	LimitsTable map[string]CategoryLimits
)

// Clone returns a deep copy. Mutating the copy never touches the source.
func (t LimitsTable) Clone() LimitsTable {
	if t == nil {
		return LimitsTable{}
	}
	out := make(LimitsTable, len(t))
	for mk, cats := range t {
		out[mk] = cats.Clone()
	}
	return out
}

// Clone returns a shallow-safe copy of the month map.
func (c CategoryLimits) Clone() CategoryLimits {
	out := make(CategoryLimits, len(c))
	for cat, v := range c {
		out[cat] = v
	}
	return out
}

// NormalizeLimitsTable sanitizes an untrusted limits document, typically
// decoded from an imported JSON file. The root must be an object or the
// call fails with ErrInvalidLimitsDoc. Everything below the root is
// cleaned leniently: malformed month keys are dropped, blank categories
// are dropped, values that do not parse as a non-negative number are
// dropped. A surviving month keeps its (possibly empty) category map.
func NormalizeLimitsTable(raw []byte) (LimitsTable, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode limits document: %w", ErrInvalidLimitsDoc)
	}
	out := LimitsTable{}
	for mk, catsRaw := range doc {
		if !ValidMonthKey(mk) {
			continue
		}
		var cats map[string]any
		if err := json.Unmarshal(catsRaw, &cats); err != nil {
			continue
		}
		clean := CategoryLimits{}
		for cat, v := range cats {
			if strings.TrimSpace(cat) == "" {
				continue
			}
			f, ok := toLimit(v)
			if !ok || f < 0 {
				continue
			}
			clean[cat] = f
		}
		out[mk] = clean
	}
	return out, nil
}

// toLimit coerces a decoded JSON value to a limit. Numbers pass through,
// numeric strings are parsed, anything else is rejected.
func toLimit(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
