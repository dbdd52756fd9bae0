// Package worker runs background consumers of the AMQP invalidation feed.
package worker

import (
	"context"
	"errors"
	"slices"

	"expensepro/internal/amqp"
	"expensepro/internal/log"
)

// Consumer delivers invalidation messages published by other instances.
type Consumer interface {
	ConsumeInvalidations(ctx context.Context, handler func(*amqp.InvalidationMessage) error) error
}

// Invalidator drops cached list pages.
type Invalidator interface {
	Invalidate(ctx context.Context, reason string) int
}

// InvalidationWorker applies remote writes to the local list caches so that
// the next render of a view on this instance reads fresh rows.
type InvalidationWorker struct {
	consumer Consumer
	lists    Invalidator
	views    []string
	logger   *log.Logger
}

// NewInvalidationWorker creates a worker for the given view names.
func NewInvalidationWorker(consumer Consumer, lists Invalidator, views []string, logger *log.Logger) *InvalidationWorker {
	if logger == nil {
		logger = log.Default()
	}
	return &InvalidationWorker{
		consumer: consumer,
		lists:    lists,
		views:    views,
		logger:   logger.WithComponent(log.ComponentCache),
	}
}

// Run consumes until ctx is done. Cancellation is not an error.
func (w *InvalidationWorker) Run(ctx context.Context) error {
	err := w.consumer.ConsumeInvalidations(ctx, func(msg *amqp.InvalidationMessage) error {
		return w.HandleInvalidationMessage(ctx, msg)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// HandleInvalidationMessage invalidates the local caches when msg names a
// view served here. A message without views applies to all of them.
func (w *InvalidationWorker) HandleInvalidationMessage(ctx context.Context, msg *amqp.InvalidationMessage) error {
	if !w.concerns(msg.Views) {
		w.logger.DebugContext(ctx, "Ignoring invalidation for unknown views",
			log.FieldOrigin, msg.Origin,
			"views", msg.Views)
		return nil
	}

	n := w.lists.Invalidate(ctx, "remote: "+msg.Reason)
	w.logger.InfoContext(ctx, "Applied remote invalidation",
		log.FieldOrigin, msg.Origin,
		log.FieldOperation, log.OpInvalidate,
		"views", msg.Views,
		"entries", n)
	return nil
}

func (w *InvalidationWorker) concerns(views []string) bool {
	if len(views) == 0 {
		return true
	}
	for _, v := range views {
		if slices.Contains(w.views, v) {
			return true
		}
	}
	return false
}
