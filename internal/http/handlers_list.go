package http

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"time"

	"expensepro/internal/core"
	"expensepro/internal/log"
	"expensepro/internal/urlstate"
	"expensepro/internal/views"
)

const pageWindow = 5

// listing binds a view to its templates and data source.
type listing struct {
	view    views.View
	page    string
	table   string
	columns []column
	fetch   func(ctx context.Context, st urlstate.State) (listResult, error)
	items   func(res listResult) any
}

type column struct {
	Key   string
	Label string
	Align string
}

// listResult is one fetched page of either view.
type listResult struct {
	Expenses   []core.Expense
	Categories []core.CategorySummary
	Pagination core.Pagination
	Total      core.Money
	CacheHit   bool
}

type columnLink struct {
	column
	Href        string
	PartialHref string
	Active      bool
	Order       string
}

type pageLink struct {
	N           int
	Href        string
	PartialHref string
	Current     bool
}

// listData is what list templates render.
type listData struct {
	View           views.View
	State          urlstate.State
	Query          string
	Href           string
	Result         listResult
	Columns        []columnLink
	Pages          []pageLink
	Prev           *pageLink
	Next           *pageLink
	SearchDebounce time.Duration
	Categories     []string
	Months         []int
	Today          string
}

func (s *Server) newListings() []listing {
	return []listing{
		{
			view:  views.Expenses,
			page:  "expenses.html",
			table: "expenses_table",
			columns: []column{
				{Key: core.SortExpenseDate, Label: "Date"},
				{Key: core.SortExpenseDescription, Label: "Description"},
				{Key: core.SortExpenseCategory, Label: "Category"},
				{Key: core.SortExpenseAmount, Label: "Amount", Align: "right"},
			},
			fetch: s.fetchExpenses,
			items: func(res listResult) any { return expensesJSON(res.Expenses) },
		},
		{
			view:  views.Categories,
			page:  "categories.html",
			table: "categories_table",
			columns: []column{
				{Key: core.SortCategoryName, Label: "Category"},
				{Key: core.SortCategoryCount, Label: "Expenses", Align: "right"},
				{Key: core.SortCategoryTotal, Label: "Total", Align: "right"},
			},
			fetch: s.fetchCategories,
			items: func(res listResult) any { return categoriesJSON(res.Categories) },
		},
	}
}

func (s *Server) fetchExpenses(ctx context.Context, st urlstate.State) (listResult, error) {
	page, hit, err := s.lists.Expenses(ctx, views.Expenses.CacheKey(st), views.ExpenseQuery(st))
	if err != nil {
		return listResult{}, err
	}
	return listResult{Expenses: page.Items, Pagination: page.Pagination, Total: page.Total, CacheHit: hit}, nil
}

func (s *Server) fetchCategories(ctx context.Context, st urlstate.State) (listResult, error) {
	page, hit, err := s.lists.Categories(ctx, views.Categories.CacheKey(st), views.CategoryQuery(st))
	if err != nil {
		return listResult{}, err
	}
	return listResult{Categories: page.Items, Pagination: page.Pagination, CacheHit: hit}, nil
}

// handlePage renders the full list page. A bare URL restores the view's
// remembered filters; any other query is normalized to its canonical form.
func (s *Server) handlePage(l listing) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := log.FromContext(ctx).WithComponent(log.ComponentFilters)

		if r.URL.RawQuery == "" {
			if q, ok := s.filters.Recall(ctx, l.view.Name); ok {
				params, _ := url.ParseQuery(q)
				if canonical := l.view.Schema.Canonical(params); canonical != "" {
					logger.InfoContext(ctx, "Restoring remembered filters",
						log.FieldView, l.view.Name,
						log.FieldQuery, canonical,
						log.FieldOperation, log.OpRestore)
					http.Redirect(w, r, l.view.Path+"?"+canonical, http.StatusFound)
					return
				}
			}
			s.render(w, r, l, l.view.Schema.Defaults(), l.page)
			return
		}

		st := l.view.Schema.Decode(r.URL.Query())
		canonical := l.view.Schema.Encode(st).Encode()
		s.filters.Remember(l.view.Name, canonical)
		if canonical != r.URL.RawQuery {
			http.Redirect(w, r, l.view.Href(st), http.StatusFound)
			return
		}
		s.render(w, r, l, st, l.page)
	}
}

// handlePartial renders the table fragment an htmx control asked for. The
// control's own parameters are merged over the browser location and the
// result is written back to the address bar through the history headers.
func (s *Server) handlePartial(l listing) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := log.FromContext(ctx).WithComponent(log.ComponentURLState)
		w.Header().Add("Vary", HeaderHXCurrentURL)

		router := newHTMXRouter(r, l.view.Path, w.Header())
		b := urlstate.Bind(router, l.view.Schema,
			urlstate.WithReplaceHistory(s.cfg.ReplaceHistory()),
			urlstate.WithLogger(logger))
		defer b.Close()

		partial := l.view.Schema.DecodePartial(r.URL.Query())
		if err := b.SetState(views.WithPageReset(b.State(), partial)); err != nil {
			logger.ErrorContext(ctx, "Failed to apply list controls",
				log.FieldView, l.view.Name,
				log.FieldQuery, r.URL.RawQuery,
				log.FieldError, err)
			InternalServerError("Could not update the list").Write(w)
			return
		}

		s.filters.Remember(l.view.Name, b.Query().Encode())
		s.render(w, r, l, b.State(), l.table)
	}
}

type apiList struct {
	Items      any             `json:"items"`
	Pagination core.Pagination `json:"pagination"`
	Total      *string         `json:"total,omitempty"`
	State      urlstate.State  `json:"state"`
	Query      string          `json:"query"`
}

func (s *Server) handleAPI(l listing) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		st := l.view.Schema.Decode(r.URL.Query())
		query := l.view.Schema.Encode(st).Encode()

		res, err := l.fetch(ctx, st)
		if err != nil {
			s.events.LogError(ctx, "Failed to load list", err, log.ComponentList, log.OpList,
				log.NewFields().WithView(l.view.Name, query))
			JSONError(http.StatusInternalServerError, "could not load list").Write(w)
			return
		}
		s.events.LogListServed(ctx, l.view.Name, query, res.Pagination.Total, res.CacheHit)

		body := apiList{
			Items:      l.items(res),
			Pagination: res.Pagination,
			State:      st,
			Query:      query,
		}
		if l.view.Name == views.Expenses.Name {
			total := res.Total.String()
			body.Total = &total
		}
		NewHTMXResponse().BodyJSON(body).Write(w)
	}
}

// render fetches the page st selects and executes the named template.
func (s *Server) render(w http.ResponseWriter, r *http.Request, l listing, st urlstate.State, name string) {
	ctx := r.Context()
	query := l.view.Schema.Encode(st).Encode()

	res, err := l.fetch(ctx, st)
	if err != nil {
		s.events.LogError(ctx, "Failed to load list", err, log.ComponentList, log.OpList,
			log.NewFields().WithView(l.view.Name, query))
		InternalServerError("Could not load the list").Write(w)
		return
	}

	data := s.listData(l, st, res)
	if name == l.page && l.view.Name == views.Expenses.Name && s.expenses != nil {
		cats, err := s.expenses.Categories(ctx)
		if err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Category list unavailable", log.FieldError, err)
		}
		data.Categories = cats
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.events.LogError(ctx, "Template execution failed", err, log.ComponentTemplate, log.OpRender,
			log.NewFields().WithView(l.view.Name, query))
		InternalServerError("Could not render the list").Write(w)
		return
	}

	s.events.LogListServed(ctx, l.view.Name, query, res.Pagination.Total, res.CacheHit)
	NewHTMXResponse().BodyHTML(buf.String()).Write(w)
}

func (s *Server) listData(l listing, st urlstate.State, res listResult) listData {
	data := listData{
		View:           l.view,
		State:          st,
		Query:          l.view.Schema.Encode(st).Encode(),
		Href:           l.view.Href(st),
		Result:         res,
		SearchDebounce: s.cfg.SearchDebounce,
		Months:         []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
		Today:          s.today().String(),
	}

	sortBy := st.String(urlstate.KeySortBy)
	for _, c := range l.columns {
		link := columnLink{
			column:      c,
			Href:        l.view.SortHref(st, c.Key),
			PartialHref: l.view.SortPartialHref(st, c.Key),
			Active:      c.Key == sortBy,
		}
		if link.Active {
			link.Order = st.String(urlstate.KeySortOrder)
		}
		data.Columns = append(data.Columns, link)
	}

	p := res.Pagination
	link := func(n int) *pageLink {
		return &pageLink{N: n, Href: l.view.PageHref(st, n), PartialHref: l.view.PagePartialHref(n), Current: n == p.Page}
	}
	for _, n := range p.Pages(pageWindow) {
		data.Pages = append(data.Pages, *link(n))
	}
	if p.HasPrev() {
		data.Prev = link(p.Page - 1)
	}
	if p.HasNext() {
		data.Next = link(p.Page + 1)
	}
	return data
}

type expenseJSON struct {
	ID          int64  `json:"id"`
	Date        string `json:"date"`
	Description string `json:"description"`
	AmountCents int64  `json:"amountCents"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
}

func toExpenseJSON(e core.Expense) expenseJSON {
	return expenseJSON{
		ID:          e.ID,
		Date:        e.Date.String(),
		Description: e.Description,
		AmountCents: e.Amount.Cents,
		Amount:      e.Amount.String(),
		Category:    e.Category,
	}
}

func expensesJSON(items []core.Expense) []expenseJSON {
	out := make([]expenseJSON, 0, len(items))
	for _, e := range items {
		out = append(out, toExpenseJSON(e))
	}
	return out
}

type categoryJSON struct {
	Name       string `json:"name"`
	Count      int    `json:"count"`
	TotalCents int64  `json:"totalCents"`
	Total      string `json:"total"`
}

func categoriesJSON(items []core.CategorySummary) []categoryJSON {
	out := make([]categoryJSON, 0, len(items))
	for _, c := range items {
		out = append(out, categoryJSON{Name: c.Name, Count: c.Count, TotalCents: c.Total.Cents, Total: c.Total.String()})
	}
	return out
}
