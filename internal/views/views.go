// Package views declares the list pages whose filters live in the URL.
package views

import (
	"net/url"
	"slices"
	"strconv"

	"expensepro/internal/core"
	"expensepro/internal/urlstate"
)

// Keys specific to the expense list.
const (
	KeyPageSize = "pageSize"
	KeyCategory = "category"
	KeyYear     = "year"
	KeyMonth    = "month"
)

// View is a list page bound to a URL schema.
type View struct {
	Name        string
	Path        string
	PartialPath string
	APIPath     string
	Schema      *urlstate.Schema
	SearchKey   string
}

var (
	Expenses = View{
		Name:        "expenses",
		Path:        "/expenses",
		PartialPath: "/ui/expenses",
		APIPath:     "/api/expenses",
		SearchKey:   urlstate.KeyQuery,
		Schema: urlstate.MustSchema(
			urlstate.Page(),
			urlstate.Int(KeyPageSize, core.DefaultPageSize),
			urlstate.Enum(urlstate.KeySortBy, core.SortExpenseDate,
				core.SortExpenseDate, core.SortExpenseAmount, core.SortExpenseDescription, core.SortExpenseCategory),
			urlstate.SortOrder(urlstate.SortDesc),
			urlstate.Query(),
			urlstate.String(KeyCategory, ""),
			urlstate.Int(KeyYear, 0),
			urlstate.Int(KeyMonth, 0),
		),
	}

	Categories = View{
		Name:        "categories",
		Path:        "/categories",
		PartialPath: "/ui/categories",
		APIPath:     "/api/categories",
		SearchKey:   urlstate.KeyQuery,
		Schema: urlstate.MustSchema(
			urlstate.Page(),
			urlstate.Enum(urlstate.KeySortBy, core.SortCategoryName,
				core.SortCategoryName, core.SortCategoryTotal, core.SortCategoryCount),
			urlstate.SortOrder(urlstate.SortAsc),
			urlstate.Query(),
		),
	}
)

// All returns every list view.
func All() []View {
	return []View{Expenses, Categories}
}

// Names returns the names of every list view.
func Names() []string {
	names := make([]string, 0, 2)
	for _, v := range All() {
		names = append(names, v.Name)
	}
	return names
}

// Lookup finds a view by name.
func Lookup(name string) (View, bool) {
	i := slices.IndexFunc(All(), func(v View) bool { return v.Name == name })
	if i < 0 {
		return View{}, false
	}
	return All()[i], true
}

// CacheKey identifies the data a state selects.
func (v View) CacheKey(st urlstate.State) string {
	return v.Name + "|" + v.Schema.Encode(st).Encode()
}

// Href is the page URL for st.
func (v View) Href(st urlstate.State) string {
	return v.Schema.Href(v.Path, st)
}

// SortHref returns the page URL that sorts by key. Re-selecting the current
// column flips the order; a new column starts from the view's default order.
func (v View) SortHref(st urlstate.State, key string) string {
	return v.Href(v.sorted(st, key))
}

// SortPartialHref returns the table partial URL a sort header requests. It
// names every key it changes explicitly so that the server merges it over
// the current location.
func (v View) SortPartialHref(st urlstate.State, key string) string {
	next := v.sorted(st, key)
	params := url.Values{
		urlstate.KeySortBy:    {key},
		urlstate.KeySortOrder: {next.String(urlstate.KeySortOrder)},
		urlstate.KeyPage:      {"1"},
	}
	return v.PartialPath + "?" + params.Encode()
}

// PageHref returns the page URL for page n of st.
func (v View) PageHref(st urlstate.State, n int) string {
	return v.Href(st.With(urlstate.KeyPage, n))
}

// PagePartialHref returns the table partial URL a pagination link requests.
func (v View) PagePartialHref(n int) string {
	return v.PartialPath + "?" + url.Values{urlstate.KeyPage: {strconv.Itoa(n)}}.Encode()
}

func (v View) sorted(st urlstate.State, key string) urlstate.State {
	next := st.With(urlstate.KeySortBy, key).With(urlstate.KeyPage, 1)
	if st.String(urlstate.KeySortBy) == key {
		next[urlstate.KeySortOrder] = flip(st.String(urlstate.KeySortOrder))
	} else if f, ok := v.Schema.Field(urlstate.KeySortOrder); ok {
		next[urlstate.KeySortOrder] = f.Default
	}
	return next
}

// WithPageReset adds page=1 to partial when it changes any other key of
// current and does not choose a page itself.
func WithPageReset(current, partial urlstate.State) urlstate.State {
	if _, ok := partial[urlstate.KeyPage]; ok {
		return partial
	}
	for k, v := range partial {
		if current[k] != v {
			return partial.With(urlstate.KeyPage, 1)
		}
	}
	return partial
}

// ExpenseQuery maps an expense list state to a repository query.
func ExpenseQuery(st urlstate.State) core.ExpenseQuery {
	return core.ExpenseQuery{
		Page:     st.Page(),
		PageSize: st.Int(KeyPageSize),
		SortBy:   st.String(urlstate.KeySortBy),
		Desc:     st.String(urlstate.KeySortOrder) == urlstate.SortDesc,
		Search:   st.String(urlstate.KeyQuery),
		Category: st.String(KeyCategory),
		Year:     st.Int(KeyYear),
		Month:    st.Int(KeyMonth),
	}.Normalize()
}

// CategoryQuery maps a category list state to a repository query.
func CategoryQuery(st urlstate.State) core.CategoryQuery {
	return core.CategoryQuery{
		Page:     st.Page(),
		PageSize: core.DefaultPageSize,
		SortBy:   st.String(urlstate.KeySortBy),
		Desc:     st.String(urlstate.KeySortOrder) == urlstate.SortDesc,
		Search:   st.String(urlstate.KeyQuery),
	}.Normalize()
}

func flip(order string) string {
	if order == urlstate.SortAsc {
		return urlstate.SortDesc
	}
	return urlstate.SortAsc
}
