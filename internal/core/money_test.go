package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{".5", 50, true},
		{"1.005", 101, true}, // half-up rounding
		{"12.344", 1234, true},
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"0", 0, false},
		{"0.004", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"1e3", 0, false},
		{"", 0, false},
		{"99999999999999999999", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestFormatEuros(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{0, "€0,00"},
		{5, "€0,05"},
		{1234, "€12,34"},
		{123456, "€1.234,56"},
		{100000000, "€1.000.000,00"},
		{-2550, "-€25,50"},
	}
	for _, tc := range cases {
		if got := FormatEuros(tc.cents); got != tc.want {
			t.Errorf("FormatEuros(%d) = %q, want %q", tc.cents, got, tc.want)
		}
	}
	if got := (Money{Cents: 990}).String(); got != "€9,90" {
		t.Errorf("Money.String() = %q", got)
	}
}
