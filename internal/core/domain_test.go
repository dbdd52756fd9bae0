package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-09")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if d.Year() != 2025 || d.Month() != 3 || d.Day() != 9 {
		t.Fatalf("unexpected date %v", d)
	}
	if d.String() != "2025-03-09" {
		t.Fatalf("String() = %q", d.String())
	}
	if _, err := ParseDate("09/03/2025"); err == nil {
		t.Fatalf("expected error for non ISO date")
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		Date:        NewDate(2025, 1, 1),
		Description: "ok",
		Amount:      Money{Cents: 100},
		Category:    "Groceries",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []struct {
		e    Expense
		want error
	}{
		{Expense{Date: Date{}, Description: "a", Amount: Money{Cents: 1}, Category: "c"}, ErrZeroDate},
		{Expense{Date: NewDate(2025, 1, 1), Description: " ", Amount: Money{Cents: 1}, Category: "c"}, ErrEmptyDescription},
		{Expense{Date: NewDate(2025, 1, 1), Description: strings.Repeat("x", 201), Amount: Money{Cents: 1}, Category: "c"}, ErrDescriptionTooLong},
		{Expense{Date: NewDate(2025, 1, 1), Description: "a", Amount: Money{Cents: 0}, Category: "c"}, ErrInvalidAmount},
		{Expense{Date: NewDate(2025, 1, 1), Description: "a", Amount: Money{Cents: 1}, Category: ""}, ErrEmptyCategory},
	}
	for i, tc := range bads {
		if err := tc.e.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, err)
		}
	}
}
