package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"expensepro/internal/log"
	"expensepro/internal/storage"
	"expensepro/internal/urlstate"
)

const saveTimeout = 5 * time.Second

// FilterStore persists the last-used canonical query of each view.
type FilterStore interface {
	SaveFilter(ctx context.Context, view, query string) error
	LoadFilter(ctx context.Context, view string) (string, error)
}

// FilterMemory remembers the last filters used on each list view. Writes are
// debounced per view so that a burst of refinements costs one save.
type FilterMemory struct {
	store  FilterStore
	wait   time.Duration
	opts   []urlstate.DebounceOption
	logger *log.Logger

	mu         sync.Mutex
	debouncers map[string]*urlstate.Debouncer
	latest     map[string]string
}

// NewFilterMemory creates a memory whose saves trail the last change by wait.
func NewFilterMemory(store FilterStore, wait time.Duration, logger *log.Logger, opts ...urlstate.DebounceOption) *FilterMemory {
	if logger == nil {
		logger = log.Default()
	}
	return &FilterMemory{
		store:      store,
		wait:       wait,
		opts:       opts,
		logger:     logger.WithComponent(log.ComponentFilters),
		debouncers: make(map[string]*urlstate.Debouncer),
		latest:     make(map[string]string),
	}
}

// Remember records query as the current filter of view. An empty query
// records that the filters were cleared.
func (m *FilterMemory) Remember(view, query string) {
	m.mu.Lock()
	if prev, ok := m.latest[view]; ok && prev == query {
		m.mu.Unlock()
		return
	}
	m.latest[view] = query
	d, ok := m.debouncers[view]
	if !ok {
		d = urlstate.NewDebouncer(m.wait, m.opts...)
		m.debouncers[view] = d
	}
	m.mu.Unlock()

	d.Trigger(func() { m.save(view, query) })
}

// Recall returns the remembered query of view. It reports false when nothing
// was remembered or the filters were cleared.
func (m *FilterMemory) Recall(ctx context.Context, view string) (string, bool) {
	m.mu.Lock()
	query, ok := m.latest[view]
	m.mu.Unlock()
	if ok {
		return query, query != ""
	}

	query, err := m.store.LoadFilter(ctx, view)
	if errors.Is(err, storage.ErrNotFound) {
		return "", false
	}
	if err != nil {
		m.logger.WarnContext(ctx, "Failed to load remembered filter",
			log.FieldView, view,
			log.FieldOperation, log.OpRestore,
			log.FieldError, err)
		return "", false
	}

	m.mu.Lock()
	if _, raced := m.latest[view]; !raced {
		m.latest[view] = query
	}
	m.mu.Unlock()
	return query, query != ""
}

// Flush writes every pending save now.
func (m *FilterMemory) Flush() {
	m.mu.Lock()
	pending := make([]*urlstate.Debouncer, 0, len(m.debouncers))
	for _, d := range m.debouncers {
		pending = append(pending, d)
	}
	m.mu.Unlock()

	for _, d := range pending {
		d.Flush()
	}
}

func (m *FilterMemory) save(view, query string) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := m.store.SaveFilter(ctx, view, query); err != nil {
		m.logger.Error("Failed to remember filter",
			log.FieldView, view,
			log.FieldQuery, query,
			log.FieldOperation, log.OpRemember,
			log.FieldError, err)
		return
	}
	m.logger.Debug("Filter remembered",
		log.FieldView, view,
		log.FieldQuery, query,
		log.FieldOperation, log.OpRemember)
}
