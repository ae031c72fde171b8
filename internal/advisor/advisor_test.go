package advisor

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"tally/internal/core"
)

// fakeLedger serves canned history. SumByMonthCategory honors the
// requested window so tests can verify what falls inside it.
type fakeLedger struct {
	pivot map[string]map[string]float64
	rows  []core.Expense
	err   error
}

func (f *fakeLedger) Query(context.Context, core.Filter) ([]core.Expense, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func (f *fakeLedger) SumByMonthCategory(_ context.Context, months []string) (map[string]map[string]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]map[string]float64{}
	for _, mk := range months {
		if totals, ok := f.pivot[mk]; ok {
			out[mk] = totals
		}
	}
	return out, nil
}

func mustDate(t *testing.T, s string) core.Date {
	t.Helper()
	d, err := core.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%s): %v", s, err)
	}
	return d
}

func TestSuggestLimitsForMonth(t *testing.T) {
	ctx := context.Background()

	t.Run("trailing three month average", func(t *testing.T) {
		led := &fakeLedger{pivot: map[string]map[string]float64{
			"2025-04": {"food": 25},
			"2025-05": {"food": 30},
			"2025-06": {"food": 40},
			"2025-07": {"food": 999}, // target month data must not feed its own average
		}}
		got, err := SuggestLimitsForMonth(ctx, led, "2025-07")
		if err != nil {
			t.Fatalf("SuggestLimitsForMonth: %v", err)
		}
		if got["food"] != 31.67 {
			t.Errorf("food = %v, want 31.67", got["food"])
		}
	})

	t.Run("missing months do not count as zero", func(t *testing.T) {
		led := &fakeLedger{pivot: map[string]map[string]float64{
			"2025-05": {"food": 30},
			"2025-06": {"food": 40},
		}}
		got, err := SuggestLimitsForMonth(ctx, led, "2025-07")
		if err != nil {
			t.Fatal(err)
		}
		if got["food"] != 35 {
			t.Errorf("food = %v, want 35 (mean of two present months)", got["food"])
		}
	})

	t.Run("months outside the window are ignored", func(t *testing.T) {
		led := &fakeLedger{pivot: map[string]map[string]float64{
			"2024-12": {"food": 1000},
			"2025-05": {"food": 30},
			"2025-06": {"food": 40},
		}}
		got, err := SuggestLimitsForMonth(ctx, led, "2025-07")
		if err != nil {
			t.Fatal(err)
		}
		if got["food"] != 35 {
			t.Errorf("food = %v, want 35", got["food"])
		}
	})

	t.Run("category seen only in target month suggests zero", func(t *testing.T) {
		led := &fakeLedger{pivot: map[string]map[string]float64{
			"2025-06": {"food": 40},
			"2025-07": {"snacks": 15},
		}}
		got, err := SuggestLimitsForMonth(ctx, led, "2025-07")
		if err != nil {
			t.Fatal(err)
		}
		if v, ok := got["snacks"]; !ok || v != 0 {
			t.Errorf("snacks = %v, %v, want present with 0", v, ok)
		}
		if got["food"] != 40 {
			t.Errorf("food = %v, want 40", got["food"])
		}
	})

	t.Run("all zero falls back to previous month totals", func(t *testing.T) {
		led := &fakeLedger{pivot: map[string]map[string]float64{
			"2025-06": {"food": 0},
			"2025-07": {"snacks": 5},
		}}
		got, err := SuggestLimitsForMonth(ctx, led, "2025-07")
		if err != nil {
			t.Fatal(err)
		}
		want := core.CategoryLimits{"food": 0}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("no history returns empty map", func(t *testing.T) {
		led := &fakeLedger{pivot: map[string]map[string]float64{}}
		got, err := SuggestLimitsForMonth(ctx, led, "2025-07")
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("got %v, want empty map", got)
		}
	})

	t.Run("invalid month key", func(t *testing.T) {
		led := &fakeLedger{}
		if _, err := SuggestLimitsForMonth(ctx, led, "2025-7"); !errors.Is(err, core.ErrInvalidMonthKey) {
			t.Errorf("err = %v, want ErrInvalidMonthKey", err)
		}
	})

	t.Run("ledger error surfaces", func(t *testing.T) {
		led := &fakeLedger{err: errors.New("boom")}
		if _, err := SuggestLimitsForMonth(ctx, led, "2025-07"); err == nil {
			t.Error("want error from ledger")
		}
	})
}

func TestCheckBudgetLimits(t *testing.T) {
	ctx := context.Background()

	// Rows come back from the store newest first; the report keeps that
	// first-seen group order.
	led := &fakeLedger{rows: []core.Expense{
		{ID: 4, Date: mustDate(t, "2025-07-20"), Category: "food", Amount: 30},
		{ID: 3, Date: mustDate(t, "2025-07-10"), Category: "food", Amount: 30},
		{ID: 2, Date: mustDate(t, "2025-07-05"), Category: "transport", Amount: 10},
		{ID: 1, Date: mustDate(t, "2025-06-15"), Category: "food", Amount: 20},
	}}
	table := core.LimitsTable{
		"2025-07": {"food": 50},
		"2025-06": {"food": 50},
	}

	got, err := CheckBudgetLimits(ctx, led, core.Filter{}, table)
	if err != nil {
		t.Fatalf("CheckBudgetLimits: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d lines, want 3: %v", len(got), got)
	}

	over := got[0]
	if over.Month != "2025-07" || over.Category != "food" || over.Total != 60 {
		t.Errorf("line 0 = %+v", over)
	}
	if !over.Over() || over.Limit == nil || *over.Limit != 50 {
		t.Errorf("line 0 grading = %+v", over)
	}
	if s := over.String(); s != "2025-07 food: $60.00 [over] (Limit: $50.00)" {
		t.Errorf("String() = %q", s)
	}

	plain := got[1]
	if plain.Category != "transport" || plain.Limit != nil || plain.Status != "" {
		t.Errorf("line 1 = %+v", plain)
	}
	if s := plain.String(); s != "2025-07 transport: $10.00" {
		t.Errorf("String() = %q", s)
	}

	within := got[2]
	if within.Month != "2025-06" || within.Status != StatusWithin {
		t.Errorf("line 2 = %+v", within)
	}
}

func TestCheckBudgetLimitsZeroLimit(t *testing.T) {
	led := &fakeLedger{rows: []core.Expense{
		{ID: 1, Date: mustDate(t, "2025-07-10"), Category: "snacks", Amount: 0.01},
	}}
	table := core.LimitsTable{"2025-07": {"snacks": 0}}

	got, err := CheckBudgetLimits(context.Background(), led, core.Filter{}, table)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || !got[0].Over() {
		t.Errorf("zero limit with spend should grade over: %v", got)
	}
}

func TestCheckBudgetLimitsEmptyRange(t *testing.T) {
	led := &fakeLedger{}

	got, err := CheckBudgetLimits(context.Background(), led, core.Filter{}, core.LimitsTable{})
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty slice", got)
	}
}

func TestAdviseLimits(t *testing.T) {
	suggested := core.CategoryLimits{
		"food":      60, // 10% over the 50 limit
		"transport": 40, // close enough to 50, no hint
		"rent":      40, // limit 51 exceeds 40*1.25
		"snacks":    10, // no limit on file
		"unused":    0,  // zero on both sides
	}
	current := core.CategoryLimits{
		"food":      50,
		"transport": 50,
		"rent":      51,
		"idle":      10, // limit with no recent spending
		"unused":    0,
	}

	got := AdviseLimits(suggested, current)

	want := []LimitAdvice{
		{Category: "food", Action: AdviceRaise, Suggested: 60, Limit: 50},
		{Category: "idle", Action: AdviceLower, Suggested: 0, Limit: 10},
		{Category: "rent", Action: AdviceLower, Suggested: 40, Limit: 51},
		{Category: "snacks", Action: AdviceRaise, Suggested: 10, Limit: 0},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("AdviseLimits =\n%v\nwant\n%v", got, want)
	}
}

func TestAdviseLimitsEmpty(t *testing.T) {
	if got := AdviseLimits(core.CategoryLimits{}, core.CategoryLimits{}); len(got) != 0 {
		t.Errorf("got %v, want none", got)
	}
}

func TestLimitAdviceString(t *testing.T) {
	raise := LimitAdvice{Category: "food", Action: AdviceRaise, Suggested: 60, Limit: 50}
	if s := raise.String(); s != "food: recent average $60.00 is above the $50.00 limit, consider raising by $10.00" {
		t.Errorf("raise String() = %q", s)
	}
	lower := LimitAdvice{Category: "rent", Action: AdviceLower, Suggested: 40, Limit: 51}
	if s := lower.String(); s != "rent: limit $51.00 is well above the $40.00 recent average, consider lowering by $11.00" {
		t.Errorf("lower String() = %q", s)
	}
}
