package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"expensepro/internal/cache"
	"expensepro/internal/config"
	"expensepro/internal/core"
	"expensepro/internal/log"
	"expensepro/internal/services"
	"expensepro/internal/storage"
)

type testEnv struct {
	srv  *Server
	repo *storage.SQLiteRepository
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	cfg := &config.Config{
		SearchDebounce:        300 * time.Millisecond,
		FilterPersistDebounce: time.Hour,
		ListCacheSize:         50,
		ListCacheTTL:          time.Minute,
		HistoryMode:           config.HistoryPush,
		RateLimitRPS:          100,
		RateLimitBurst:        100,
	}
	if mutate != nil {
		mutate(cfg)
	}

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	logger := log.Discard()
	lists := services.NewListService(repo, cache.NewManager(logger), cfg.ListCacheSize, cfg.ListCacheTTL, logger)
	filters := services.NewFilterMemory(repo, cfg.FilterPersistDebounce, logger)
	expenses := services.NewExpenseService(repo, lists, nil, []string{"expenses", "categories"}, logger)

	srv := NewServer(":0", Options{
		Config:   cfg,
		Lists:    lists,
		Expenses: expenses,
		Filters:  filters,
		Storage:  repo,
		Logger:   logger,
	})
	srv.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	for _, e := range []core.Expense{
		{Date: core.NewDate(2025, 1, 5), Description: "Rent January", Amount: core.Money{Cents: 90000}, Category: "Housing"},
		{Date: core.NewDate(2025, 1, 9), Description: "Groceries", Amount: core.Money{Cents: 5420}, Category: "Food"},
		{Date: core.NewDate(2025, 2, 14), Description: "Dinner", Amount: core.Money{Cents: 3100}, Category: "Food"},
	} {
		if _, err := repo.CreateExpense(context.Background(), e); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return &testEnv{srv: srv, repo: repo}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) partial(target, currentURL string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set(HeaderHXRequest, "true")
	if currentURL != "" {
		req.Header.Set(HeaderHXCurrentURL, currentURL)
	}
	return e.do(req)
}

func TestPartialHistoryHeaders(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		current string
		replace bool
		want    string
	}{
		{
			name:    "filter change resets page",
			target:  "/ui/expenses?q=rent",
			current: "http://example.com/expenses?page=3&sortBy=amount",
			want:    "/expenses?q=rent&sortBy=amount",
		},
		{
			name:    "explicit page keeps filters",
			target:  "/ui/expenses?page=2",
			current: "http://example.com/expenses?q=rent",
			want:    "/expenses?page=2&q=rent",
		},
		{
			name:    "sort header resets to defaults",
			target:  "/ui/expenses?page=1&sortBy=date&sortOrder=desc",
			current: "http://example.com/expenses?page=2&q=rent&sortBy=amount&sortOrder=asc",
			want:    "/expenses?q=rent",
		},
		{
			name:    "foreign origin starts from defaults",
			target:  "/ui/expenses?sortBy=amount",
			current: "http://evil.test/expenses?page=3&q=x",
			want:    "/expenses?sortBy=amount",
		},
		{
			name:    "other page starts from defaults",
			target:  "/ui/categories?q=foo",
			current: "http://example.com/expenses?q=rent",
			want:    "/categories?q=foo",
		},
		{
			name:    "replace mode",
			target:  "/ui/expenses?q=rent",
			current: "http://example.com/expenses",
			replace: true,
			want:    "/expenses?q=rent",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, func(c *config.Config) {
				if tt.replace {
					c.HistoryMode = config.HistoryReplace
				}
			})
			rr := env.partial(tt.target, tt.current)
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
			}

			push, replace := rr.Header().Get(HeaderHXPushURL), rr.Header().Get(HeaderHXReplaceURL)
			if tt.replace {
				if replace != tt.want || push != "" {
					t.Errorf("replace = %q push = %q, want replace %q", replace, push, tt.want)
				}
				return
			}
			if push != tt.want || replace != "" {
				t.Errorf("push = %q replace = %q, want push %q", push, replace, tt.want)
			}
		})
	}
}

func TestPartialWithoutChangeDoesNotNavigate(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.partial("/ui/expenses", "http://example.com/expenses?q=rent")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := rr.Header().Get(HeaderHXPushURL); got != "" {
		t.Errorf("unexpected push %q", got)
	}
	if got := rr.Header().Get(HeaderHXReplaceURL); got != "" {
		t.Errorf("unexpected replace %q", got)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Rent January") || strings.Contains(body, "Groceries") {
		t.Errorf("table not filtered by the current URL: %s", body)
	}
	if strings.Contains(body, "<html") {
		t.Error("partial rendered the full page")
	}
}

func TestPartialRendersCodecLinks(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.partial("/ui/expenses?sortBy=amount", "http://example.com/expenses?q=r")
	body := rr.Body.String()
	for _, want := range []string{
		`href="/expenses?q=r&amp;sortBy=amount&amp;sortOrder=asc"`,
		`hx-get="/ui/expenses?page=1&amp;sortBy=date&amp;sortOrder=desc"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %s", want)
		}
	}
}

func TestRememberedFilters(t *testing.T) {
	env := newTestEnv(t, nil)

	if rr := env.do(httptest.NewRequest(http.MethodGet, "/expenses", nil)); rr.Code != http.StatusOK {
		t.Fatalf("bare page status = %d", rr.Code)
	}

	env.partial("/ui/expenses?q=rent", "http://example.com/expenses")

	rr := env.do(httptest.NewRequest(http.MethodGet, "/expenses", nil))
	if rr.Code != http.StatusFound || rr.Header().Get("Location") != "/expenses?q=rent" {
		t.Fatalf("restore: status = %d location = %q", rr.Code, rr.Header().Get("Location"))
	}

	rr = env.do(httptest.NewRequest(http.MethodGet, "/expenses?page=1", nil))
	if rr.Code != http.StatusFound || rr.Header().Get("Location") != "/expenses" {
		t.Fatalf("clear: status = %d location = %q", rr.Code, rr.Header().Get("Location"))
	}

	rr = env.do(httptest.NewRequest(http.MethodGet, "/expenses", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("after clear: status = %d location = %q", rr.Code, rr.Header().Get("Location"))
	}
}

func TestPageCanonicalizesQuery(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/expenses?sortBy=date&q=rent&noise=1", nil))
	if rr.Code != http.StatusFound || rr.Header().Get("Location") != "/expenses?q=rent" {
		t.Fatalf("status = %d location = %q", rr.Code, rr.Header().Get("Location"))
	}

	rr = env.do(httptest.NewRequest(http.MethodGet, "/expenses?q=rent", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("canonical page status = %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Expense Pro") || !strings.Contains(body, `value="rent"`) {
		t.Errorf("page does not reflect state: %s", body)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("missing security headers")
	}
}

type apiResponse struct {
	Items      []expenseJSON   `json:"items"`
	Pagination core.Pagination `json:"pagination"`
	Total      string          `json:"total"`
	Query      string          `json:"query"`
	State      map[string]any  `json:"state"`
}

func (e *testEnv) api(t *testing.T, target string) apiResponse {
	t.Helper()
	rr := e.do(httptest.NewRequest(http.MethodGet, target, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("api status = %d body = %s", rr.Code, rr.Body.String())
	}
	var out apiResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestListAPI(t *testing.T) {
	env := newTestEnv(t, nil)

	got := env.api(t, "/api/expenses?sortOrder=asc&junk=1&sortBy=amount")
	if got.Query != "sortBy=amount&sortOrder=asc" {
		t.Errorf("query = %q", got.Query)
	}
	if got.Pagination.Total != 3 || len(got.Items) != 3 {
		t.Fatalf("total = %d items = %d", got.Pagination.Total, len(got.Items))
	}
	if got.Items[0].AmountCents != 3100 || got.Items[2].AmountCents != 90000 {
		t.Errorf("items not sorted by amount: %+v", got.Items)
	}
	if got.State["sortBy"] != "amount" || got.State["page"] != float64(1) {
		t.Errorf("state = %v", got.State)
	}

	rr := env.do(httptest.NewRequest(http.MethodGet, "/api/categories?sortBy=total&sortOrder=desc", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"name":"Housing"`) {
		t.Errorf("categories api: %d %s", rr.Code, rr.Body.String())
	}
}

func postForm(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(HeaderHXRequest, "true")
	return req
}

func TestCreateExpenseInvalidatesLists(t *testing.T) {
	env := newTestEnv(t, nil)

	before := env.api(t, "/api/expenses")

	rr := env.do(postForm(url.Values{
		"date":        {"2025-02-20"},
		"description": {"Cinema"},
		"amount":      {"12,50"},
		"category":    {"Leisure"},
	}))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
	trigger := rr.Header().Get(HeaderHXTrigger)
	for _, name := range []string{"expense:created", "form:reset", "show-notification"} {
		if !strings.Contains(trigger, name) {
			t.Errorf("trigger %q missing %s", trigger, name)
		}
	}

	after := env.api(t, "/api/expenses")
	if after.Pagination.Total != before.Pagination.Total+1 {
		t.Errorf("total = %d, want %d", after.Pagination.Total, before.Pagination.Total+1)
	}
	if after.Items[0].Description != "Cinema" || after.Items[0].AmountCents != 1250 {
		t.Errorf("newest item = %+v", after.Items[0])
	}
}

func TestCreateExpenseJSON(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/expenses",
		strings.NewReader(`{"description":"Taxi","amount":"18.40","category":"Travel"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := env.do(req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
	var got expenseJSON
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Date != "2025-03-01" || got.AmountCents != 1840 || got.ID == 0 {
		t.Errorf("created = %+v", got)
	}
}

func TestCreateExpenseValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		values url.Values
		want   int
	}{
		{"bad amount", url.Values{"description": {"x"}, "amount": {"abc"}, "category": {"Food"}}, http.StatusUnprocessableEntity},
		{"bad date", url.Values{"date": {"yesterday"}, "description": {"x"}, "amount": {"1"}, "category": {"Food"}}, http.StatusUnprocessableEntity},
		{"missing description", url.Values{"amount": {"1"}, "category": {"Food"}}, http.StatusUnprocessableEntity},
		{"missing category", url.Values{"description": {"x"}, "amount": {"1"}}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(postForm(tt.values))
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rr.Code, tt.want, rr.Body.String())
			}
			if !strings.Contains(rr.Header().Get(HeaderHXTrigger), "show-notification") {
				t.Error("missing error notification")
			}
		})
	}

	if got := env.api(t, "/api/expenses").Pagination.Total; got != 3 {
		t.Errorf("invalid submissions stored rows: total = %d", got)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(httptest.NewRequest(http.MethodPut, "/expenses", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d", rr.Code)
	}
}

func TestHealthAndRoot(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rr.Code)
		}
	}

	rr := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusFound || rr.Header().Get("Location") != "/expenses" {
		t.Errorf("root: %d %q", rr.Code, rr.Header().Get("Location"))
	}

	rr = env.do(httptest.NewRequest(http.MethodGet, "/static/app.css", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("static status = %d", rr.Code)
	}
}
