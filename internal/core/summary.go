package core

// CategorySummary aggregates the expenses of one category.
type CategorySummary struct {
	Name  string
	Count int
	Total Money
}

// ExpensePage is one page of an expense listing plus the total of every
// matching row, not only the visible ones.
type ExpensePage struct {
	Items      []Expense
	Pagination Pagination
	Total      Money
}

// CategoryPage is one page of a category listing.
type CategoryPage struct {
	Items      []CategorySummary
	Pagination Pagination
}
