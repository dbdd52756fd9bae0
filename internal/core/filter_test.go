package core

import (
	"math"
	"reflect"
	"testing"
)

func TestExpenseQueryNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   ExpenseQuery
		want ExpenseQuery
	}{
		{
			name: "zero value",
			in:   ExpenseQuery{},
			want: ExpenseQuery{Page: 1, PageSize: DefaultPageSize, SortBy: SortExpenseDate},
		},
		{
			name: "clamps",
			in:   ExpenseQuery{Page: -3, PageSize: 1000, Month: 13, Year: -1, SortBy: "id; drop"},
			want: ExpenseQuery{Page: 1, PageSize: MaxPageSize, SortBy: SortExpenseDate},
		},
		{
			name: "keeps valid input",
			in:   ExpenseQuery{Page: 3, PageSize: 50, SortBy: SortExpenseAmount, Desc: true, Search: " rent ", Year: 2025, Month: 4},
			want: ExpenseQuery{Page: 3, PageSize: 50, SortBy: SortExpenseAmount, Desc: true, Search: "rent", Year: 2025, Month: 4},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.in.Normalize(); got != tc.want {
				t.Errorf("Normalize() = %+v, want %+v", got, tc.want)
			}
		})
	}

	q := ExpenseQuery{Page: 3, PageSize: 20}
	if q.Offset() != 40 {
		t.Errorf("Offset() = %d, want 40", q.Offset())
	}
}

func TestQueryOffsetNeverNegative(t *testing.T) {
	const huge = math.MaxInt / 10

	eq := ExpenseQuery{Page: huge, PageSize: DefaultPageSize}.Normalize()
	if eq.Page != MaxPage {
		t.Errorf("expense page = %d, want %d", eq.Page, MaxPage)
	}
	if eq.Offset() < 0 {
		t.Errorf("expense Offset() = %d, want >= 0", eq.Offset())
	}

	cq := CategoryQuery{Page: huge, PageSize: MaxPageSize}.Normalize()
	if cq.Offset() < 0 {
		t.Errorf("category Offset() = %d, want >= 0", cq.Offset())
	}
}

func TestCategoryQueryNormalize(t *testing.T) {
	got := CategoryQuery{SortBy: "nope"}.Normalize()
	want := CategoryQuery{Page: 1, PageSize: DefaultPageSize, SortBy: SortCategoryName}
	if got != want {
		t.Errorf("Normalize() = %+v, want %+v", got, want)
	}
}

func TestNewPagination(t *testing.T) {
	cases := []struct {
		page, perPage, total int
		want                 Pagination
	}{
		{1, 20, 0, Pagination{Page: 1, PerPage: 20, Total: 0, TotalPages: 0}},
		{1, 20, 20, Pagination{Page: 1, PerPage: 20, Total: 20, TotalPages: 1}},
		{2, 20, 21, Pagination{Page: 2, PerPage: 20, Total: 21, TotalPages: 2}},
		{0, 0, 45, Pagination{Page: 1, PerPage: DefaultPageSize, Total: 45, TotalPages: 3}},
		{9, 10, 15, Pagination{Page: 9, PerPage: 10, Total: 15, TotalPages: 2}},
	}
	for _, tc := range cases {
		if got := NewPagination(tc.page, tc.perPage, tc.total); got != tc.want {
			t.Errorf("NewPagination(%d, %d, %d) = %+v, want %+v", tc.page, tc.perPage, tc.total, got, tc.want)
		}
	}
}

func TestPaginationPages(t *testing.T) {
	p := NewPagination(5, 10, 100)
	if !p.HasPrev() || !p.HasNext() {
		t.Fatalf("expected prev and next on page 5 of 10")
	}
	if got, want := p.Pages(5), []int{3, 4, 5, 6, 7}; !reflect.DeepEqual(got, want) {
		t.Errorf("Pages(5) = %v, want %v", got, want)
	}

	last := NewPagination(10, 10, 100)
	if got, want := last.Pages(5), []int{6, 7, 8, 9, 10}; !reflect.DeepEqual(got, want) {
		t.Errorf("Pages(5) on last page = %v, want %v", got, want)
	}
	if last.HasNext() {
		t.Errorf("HasNext() on last page")
	}

	if NewPagination(1, 10, 0).Pages(5) != nil {
		t.Errorf("Pages() on empty listing should be nil")
	}
}
