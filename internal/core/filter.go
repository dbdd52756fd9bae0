package core

import (
	"math"
	"strings"
)

// Sort columns accepted by the expense list.
const (
	SortExpenseDate        = "date"
	SortExpenseAmount      = "amount"
	SortExpenseDescription = "description"
	SortExpenseCategory    = "category"
)

// Sort columns accepted by the category list.
const (
	SortCategoryName  = "name"
	SortCategoryTotal = "total"
	SortCategoryCount = "count"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// MaxPage keeps the row offset of any page representable as an int.
	MaxPage = math.MaxInt / MaxPageSize
)

// ExpenseQuery selects one page of expenses. Year and Month are 0 for "all".
type ExpenseQuery struct {
	Page     int
	PageSize int
	SortBy   string
	Desc     bool
	Search   string
	Category string
	Year     int
	Month    int
}

// Normalize clamps paging and the month to their valid ranges.
func (q ExpenseQuery) Normalize() ExpenseQuery {
	q.Page, q.PageSize = clampPage(q.Page, q.PageSize)
	if q.Month < 0 || q.Month > 12 {
		q.Month = 0
	}
	if q.Year < 0 {
		q.Year = 0
	}
	q.Search = strings.TrimSpace(q.Search)
	q.Category = strings.TrimSpace(q.Category)
	switch q.SortBy {
	case SortExpenseDate, SortExpenseAmount, SortExpenseDescription, SortExpenseCategory:
	default:
		q.SortBy = SortExpenseDate
	}
	return q
}

// Offset is the number of rows before the page.
func (q ExpenseQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// CategoryQuery selects one page of category aggregates.
type CategoryQuery struct {
	Page     int
	PageSize int
	SortBy   string
	Desc     bool
	Search   string
}

// Normalize clamps paging to its valid range.
func (q CategoryQuery) Normalize() CategoryQuery {
	q.Page, q.PageSize = clampPage(q.Page, q.PageSize)
	q.Search = strings.TrimSpace(q.Search)
	switch q.SortBy {
	case SortCategoryName, SortCategoryTotal, SortCategoryCount:
	default:
		q.SortBy = SortCategoryName
	}
	return q
}

// Offset is the number of rows before the page.
func (q CategoryQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

func clampPage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}
