package core

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out float64
		ok  bool
	}{
		{"1", 1.0, true},
		{"1.0", 1.0, true},
		{"1.23", 1.23, true},
		{"1,23", 1.23, true},
		{"0.01", 0.01, true},
		{"1.005", 1.01, true}, // half-up rounding
		{" 2.50 ", 2.5, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"0", 0, false},
		{"0.001", 0, false}, // rounds to zero
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestRound2(t *testing.T) {
	cases := []struct {
		in  float64
		out float64
	}{
		{31.666666666, 31.67},
		{31.664, 31.66},
		{0, 0},
		{50, 50},
		{0.005, 0.01},
	}
	for _, tc := range cases {
		if got := Round2(tc.in); got != tc.out {
			t.Fatalf("Round2(%v) expected %v, got %v", tc.in, tc.out, got)
		}
	}
}

func TestFormatUSD(t *testing.T) {
	cases := []struct {
		in  float64
		out string
	}{
		{12.5, "$12.50"},
		{0, "$0.00"},
		{31.666, "$31.67"},
		{-3.2, "-$3.20"},
	}
	for _, tc := range cases {
		if got := FormatUSD(tc.in); got != tc.out {
			t.Fatalf("FormatUSD(%v) expected %q, got %q", tc.in, tc.out, got)
		}
	}
}
