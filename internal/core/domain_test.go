package core

import (
	"errors"
	"testing"
	"time"
)

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		Date:        NewDate(2025, 1, 1),
		Category:    "food",
		Amount:      12.5,
		Description: "groceries",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	// Description is optional.
	good.Description = ""
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok without description, got %v", err)
	}

	bads := []struct {
		e    Expense
		want error
	}{
		{Expense{Date: Date{Time: time.Time{}}, Category: "c", Amount: 1}, ErrInvalidDate},
		{Expense{Date: NewDate(2025, 1, 1), Category: "", Amount: 1}, ErrEmptyCategory},
		{Expense{Date: NewDate(2025, 1, 1), Category: "  ", Amount: 1}, ErrEmptyCategory},
		{Expense{Date: NewDate(2025, 1, 1), Category: "c", Amount: 0}, ErrInvalidAmount},
		{Expense{Date: NewDate(2025, 1, 1), Category: "c", Amount: -3}, ErrInvalidAmount},
	}
	for i, tc := range bads {
		err := tc.e.Validate()
		if err == nil {
			t.Fatalf("case %d expected error", i)
		}
		if !errors.Is(err, tc.want) {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, err)
		}
		if !IsValidation(err) {
			t.Fatalf("case %d expected a validation error, got %v", i, err)
		}
	}
}

func TestNormalizeCategory(t *testing.T) {
	cases := []struct {
		in  string
		out string
	}{
		{"Food", "food"},
		{"  Rent  ", "rent"},
		{"coffee", "coffee"},
	}
	for _, tc := range cases {
		if got := NormalizeCategory(tc.in); got != tc.out {
			t.Fatalf("%q expected %q, got %q", tc.in, tc.out, got)
		}
	}
}

func TestFilterMatches(t *testing.T) {
	e := Expense{Date: NewDate(2025, 7, 15), Category: "food", Amount: 10}

	cases := []struct {
		name string
		f    Filter
		want bool
	}{
		{"empty filter", Filter{}, true},
		{"start inclusive", Filter{Start: NewDate(2025, 7, 15)}, true},
		{"end inclusive", Filter{End: NewDate(2025, 7, 15)}, true},
		{"before start", Filter{Start: NewDate(2025, 7, 16)}, false},
		{"after end", Filter{End: NewDate(2025, 7, 14)}, false},
		{"category match", Filter{Category: "food"}, true},
		{"category mismatch", Filter{Category: "rent"}, false},
		{"full match", Filter{Start: NewDate(2025, 7, 1), End: NewDate(2025, 7, 31), Category: "food"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.f.Matches(e); got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
