package services

import (
	"context"
	"fmt"
	"strings"

	"expensepro/internal/core"
	"expensepro/internal/log"
)

// ExpenseStore persists expenses.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	CategoryNames(ctx context.Context) ([]string, error)
}

// Invalidator drops cached list pages.
type Invalidator interface {
	Invalidate(ctx context.Context, reason string) int
}

// Publisher broadcasts invalidations to other instances.
type Publisher interface {
	PublishInvalidation(ctx context.Context, views []string, reason string) error
}

// ExpenseService orchestrates expense writes across SQLite, the local list
// caches and AMQP.
type ExpenseService struct {
	storage   ExpenseStore
	lists     Invalidator
	publisher Publisher
	views     []string
	logger    *log.Logger
}

// NewExpenseService wires the write path. lists and publisher may be nil.
func NewExpenseService(storage ExpenseStore, lists Invalidator, publisher Publisher, views []string, logger *log.Logger) *ExpenseService {
	if logger == nil {
		logger = log.Default()
	}
	return &ExpenseService{
		storage:   storage,
		lists:     lists,
		publisher: publisher,
		views:     views,
		logger:    logger.WithComponent(log.ComponentExpense),
	}
}

// CreateExpense validates and saves e, then invalidates every list view.
func (s *ExpenseService) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	e.Description = strings.TrimSpace(e.Description)
	e.Category = strings.TrimSpace(e.Category)
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	saved, err := s.storage.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	const reason = "expense created"
	if s.lists != nil {
		s.lists.Invalidate(ctx, reason)
	}

	// The expense is saved; a failed broadcast only delays other instances
	// until their cache entries expire.
	if err := s.publish(ctx, reason); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish invalidation",
			log.FieldExpenseID, saved.ID,
			log.FieldError, err)
	}

	return saved, nil
}

// Categories returns the known category names for the entry form.
func (s *ExpenseService) Categories(ctx context.Context) ([]string, error) {
	names, err := s.storage.CategoryNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return names, nil
}

func (s *ExpenseService) publish(ctx context.Context, reason string) error {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP client not available, skipping invalidation broadcast")
		return nil
	}
	return s.publisher.PublishInvalidation(ctx, s.views, reason)
}
