package urlstate

import (
	"errors"
	"net/url"
	"sync"
	"time"

	"expensepro/internal/log"
)

// ErrClosed is returned by a Binding after Close.
var ErrClosed = errors.New("urlstate: binding closed")

type bindConfig struct {
	replace    bool
	maxPending int
	logger     *log.Logger
}

// Option configures Bind.
type Option func(*bindConfig)

// WithReplaceHistory makes self-initiated navigations replace the current
// history entry instead of pushing a new one.
func WithReplaceHistory(replace bool) Option {
	return func(c *bindConfig) {
		c.replace = replace
	}
}

// WithLogger sets the logger used for reconciliation events.
func WithLogger(logger *log.Logger) Option {
	return func(c *bindConfig) {
		c.logger = logger
	}
}

// WithMaxPending bounds how many self-initiated writes are remembered while
// their echoes are outstanding.
func WithMaxPending(n int) Option {
	return func(c *bindConfig) {
		c.maxPending = n
	}
}

// Binding ties a Store to a Router through a Reconciler. It is the surface
// list pages use: read State, change it with SetState or SetPage, and the URL
// follows; change the URL from outside and State follows.
//
// A Binding is safe for concurrent use. Router events that arrive while a
// call is in progress, including echoes raised synchronously by Navigate,
// are queued and applied in order before that call returns.
type Binding struct {
	mu     sync.Mutex
	store  *Store
	rec    *Reconciler
	logger *log.Logger
	closed bool

	inboxMu sync.Mutex
	inbox   []url.Values

	unsubscribe []func()
	searches    []*SearchInput
}

// Bind initializes a Store from the router's current query and starts
// reconciling. It never navigates by itself.
func Bind(router Router, schema *Schema, opts ...Option) *Binding {
	cfg := bindConfig{maxPending: DefaultMaxPending}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = log.Default().WithComponent(log.ComponentURLState)
	}

	store := NewStore(schema, router.SearchParams())
	b := &Binding{
		store:  store,
		rec:    NewReconciler(store, router, cfg.replace, cfg.maxPending, cfg.logger),
		logger: cfg.logger,
	}
	b.unsubscribe = append(b.unsubscribe,
		store.OnChange(b.rec.Sync),
		router.OnSearchParamsChange(b.onObserved),
	)
	return b
}

// State returns a copy of the current state.
func (b *Binding) State() State {
	b.mu.Lock()
	defer b.unlock()
	return b.store.State()
}

// Schema returns the schema the binding decodes with.
func (b *Binding) Schema() *Schema {
	return b.store.Schema()
}

// Query returns the encoded current state, the query the URL converges to.
func (b *Binding) Query() url.Values {
	b.mu.Lock()
	defer b.unlock()
	return b.store.Schema().Encode(b.store.State())
}

// SetState merges partial into the state and navigates if the encoded query
// changed. Unknown keys and mistyped values are rejected without any change.
// A navigation failure is returned; the state keeps the merged value.
func (b *Binding) SetState(partial State) error {
	b.mu.Lock()
	defer b.unlock()
	if b.closed {
		return ErrClosed
	}
	return b.store.Update(partial)
}

// SetPage is SetState({page: n}).
func (b *Binding) SetPage(n int) error {
	return b.SetState(State{KeyPage: n})
}

// Search returns a debounced text input bound to key. Values passed to Type
// reach SetState at most once per idle gap of wait.
func (b *Binding) Search(key string, wait time.Duration, opts ...DebounceOption) *SearchInput {
	s := &SearchInput{
		binding:  b,
		key:      key,
		debounce: NewDebouncer(wait, opts...),
		value:    b.State().String(key),
	}
	b.mu.Lock()
	defer b.unlock()
	b.searches = append(b.searches, s)
	return s
}

// Close stops reconciling and cancels pending debounced input. It is safe
// to call more than once.
func (b *Binding) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, cancel := range b.unsubscribe {
		cancel()
	}
	searches := b.searches
	b.unsubscribe = nil
	b.searches = nil
	b.mu.Unlock()

	for _, s := range searches {
		s.Cancel()
	}
	b.inboxMu.Lock()
	b.inbox = nil
	b.inboxMu.Unlock()
}

func (b *Binding) onObserved(params url.Values) {
	b.inboxMu.Lock()
	b.inbox = append(b.inbox, params)
	b.inboxMu.Unlock()

	// The holder of mu drains the inbox before releasing it.
	if b.mu.TryLock() {
		b.unlock()
	}
}

// unlock drains queued router events and releases mu. An event queued
// between the last drain and the release is picked up by retrying, unless
// another goroutine took the lock and will drain it itself.
func (b *Binding) unlock() {
	for {
		b.drain()
		b.mu.Unlock()
		if !b.queued() || !b.mu.TryLock() {
			return
		}
	}
}

func (b *Binding) drain() {
	for {
		b.inboxMu.Lock()
		if len(b.inbox) == 0 {
			b.inboxMu.Unlock()
			return
		}
		params := b.inbox[0]
		b.inbox = b.inbox[1:]
		b.inboxMu.Unlock()

		if b.closed {
			continue
		}
		if err := b.rec.Observe(params); err != nil {
			b.logger.Warn("Failed to apply URL change",
				log.FieldQuery, params.Encode(),
				log.FieldError, err,
				log.FieldOperation, log.OpReconcile)
		}
	}
}

func (b *Binding) queued() bool {
	b.inboxMu.Lock()
	defer b.inboxMu.Unlock()
	return len(b.inbox) > 0
}
