package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"expensepro/internal/cache"
	"expensepro/internal/core"
	"expensepro/internal/log"
)

const fetchTimeout = 10 * time.Second

// ListStore reads list pages.
type ListStore interface {
	ListExpenses(ctx context.Context, q core.ExpenseQuery) ([]core.Expense, error)
	CountExpenses(ctx context.Context, q core.ExpenseQuery) (int, error)
	SumExpenses(ctx context.Context, q core.ExpenseQuery) (core.Money, error)
	ListCategorySummaries(ctx context.Context, q core.CategoryQuery) ([]core.CategorySummary, error)
	CountCategories(ctx context.Context, q core.CategoryQuery) (int, error)
}

// ListService serves list pages keyed by the reconciled URL state.
// Concurrent requests for the same key share one fetch.
type ListService struct {
	store      ListStore
	expenses   cache.Cache[core.ExpensePage]
	categories cache.Cache[core.CategoryPage]
	group      singleflight.Group
	logger     *log.Logger
}

// NewListService creates the service and registers its caches with manager
// when one is given.
func NewListService(store ListStore, manager *cache.Manager, size int, ttl time.Duration, logger *log.Logger) *ListService {
	if logger == nil {
		logger = log.Default()
	}
	expenses := cache.NewLRUCache[core.ExpensePage](size, ttl)
	categories := cache.NewLRUCache[core.CategoryPage](size, ttl)
	if manager != nil {
		manager.Register(expenses)
		manager.Register(categories)
	}
	return &ListService{
		store:      store,
		expenses:   expenses,
		categories: categories,
		logger:     logger.WithComponent(log.ComponentList),
	}
}

// Expenses returns the page for q. key must identify q; the boolean reports
// a cache hit.
func (s *ListService) Expenses(ctx context.Context, key string, q core.ExpenseQuery) (core.ExpensePage, bool, error) {
	if page, ok := s.expenses.Get(key); ok {
		return page, true, nil
	}
	v, err := s.do(ctx, key, func(ctx context.Context) (any, error) {
		page, err := s.fetchExpenses(ctx, q)
		if err != nil {
			return nil, err
		}
		s.expenses.Set(key, page)
		return page, nil
	})
	if err != nil {
		return core.ExpensePage{}, false, err
	}
	return v.(core.ExpensePage), false, nil
}

// Categories returns the category page for q.
func (s *ListService) Categories(ctx context.Context, key string, q core.CategoryQuery) (core.CategoryPage, bool, error) {
	if page, ok := s.categories.Get(key); ok {
		return page, true, nil
	}
	v, err := s.do(ctx, key, func(ctx context.Context) (any, error) {
		page, err := s.fetchCategories(ctx, q)
		if err != nil {
			return nil, err
		}
		s.categories.Set(key, page)
		return page, nil
	})
	if err != nil {
		return core.CategoryPage{}, false, err
	}
	return v.(core.CategoryPage), false, nil
}

// Invalidate empties both caches and returns the number of dropped pages.
func (s *ListService) Invalidate(ctx context.Context, reason string) int {
	n := s.expenses.Purge() + s.categories.Purge()
	s.logger.DebugContext(ctx, "List caches invalidated",
		log.FieldOperation, log.OpInvalidate,
		"reason", reason,
		"dropped", n)
	return n
}

// do runs fn once per key among concurrent callers. The shared fetch is
// detached from the first caller's cancellation so that other waiters are
// not failed by it.
func (s *ListService) do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := s.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		return fn(fctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

func (s *ListService) fetchExpenses(ctx context.Context, q core.ExpenseQuery) (core.ExpensePage, error) {
	q = q.Normalize()

	var (
		items []core.Expense
		total int
		sum   core.Money
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.store.ListExpenses(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.store.CountExpenses(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		sum, err = s.store.SumExpenses(gctx, q)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.ExpensePage{}, fmt.Errorf("fetch expenses: %w", err)
	}

	return core.ExpensePage{
		Items:      items,
		Pagination: core.NewPagination(q.Page, q.PageSize, total),
		Total:      sum,
	}, nil
}

func (s *ListService) fetchCategories(ctx context.Context, q core.CategoryQuery) (core.CategoryPage, error) {
	q = q.Normalize()

	var (
		items []core.CategorySummary
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.store.ListCategorySummaries(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.store.CountCategories(gctx, q)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.CategoryPage{}, fmt.Errorf("fetch categories: %w", err)
	}

	return core.CategoryPage{
		Items:      items,
		Pagination: core.NewPagination(q.Page, q.PageSize, total),
	}, nil
}
