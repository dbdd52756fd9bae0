package urlstate

import (
	"fmt"
	"net/url"

	"expensepro/internal/log"
)

// DefaultMaxPending bounds the number of self-initiated writes remembered
// while their echoes are outstanding.
const DefaultMaxPending = 16

// Reconciler is the state machine keeping a Store and the router URL in
// agreement. It tracks the canonical query last reported by the router
// (lastObserved) and the queries it wrote itself whose echoes have not been
// observed yet (pending, oldest first; the last entry is the most recent
// self-initiated write).
//
// Reconciler is not safe for concurrent use; Binding serializes calls.
type Reconciler struct {
	schema     *Schema
	store      *Store
	router     Router
	replace    bool
	maxPending int
	logger     *log.Logger

	lastObserved string
	pending      []string
}

// NewReconciler creates a reconciler. It reads the router's current query as
// the initial observation and never navigates on construction.
func NewReconciler(store *Store, router Router, replace bool, maxPending int, logger *log.Logger) *Reconciler {
	if maxPending <= 0 {
		maxPending = DefaultMaxPending
	}
	if logger == nil {
		logger = log.Default().WithComponent(log.ComponentURLState)
	}
	return &Reconciler{
		schema:       store.Schema(),
		store:        store,
		router:       router,
		replace:      replace,
		maxPending:   maxPending,
		logger:       logger,
		lastObserved: store.Schema().Canonical(router.SearchParams()),
	}
}

// Sync runs after every committed store change and writes the URL when the
// desired query differs from the one the router will end up showing: the
// most recent self-initiated write while its echo is outstanding, otherwise
// the last observation. Navigation errors are returned unchanged in meaning;
// there is no retry.
func (r *Reconciler) Sync(st State) error {
	desired := r.schema.Encode(st).Encode()
	if desired == r.expected() {
		return nil
	}

	target := r.router.Path()
	if desired != "" {
		target += "?" + desired
	}

	// Recorded before navigating: routers may echo synchronously.
	r.remember(desired)
	if err := r.router.Navigate(target, NavigateOptions{Replace: r.replace}); err != nil {
		r.forget(desired)
		return fmt.Errorf("urlstate: navigate to %q: %w", target, err)
	}

	r.logger.Debug("URL updated from state",
		log.FieldTarget, target,
		log.FieldReplace, r.replace,
		log.FieldOperation, log.OpNavigate)
	return nil
}

// Observe handles a query-string change reported by the router. Echoes of
// the reconciler's own writes, including stale ones, are ignored; any other
// change is decoded into the store if it differs from the current state.
func (r *Reconciler) Observe(params url.Values) error {
	observed := r.schema.Canonical(params)

	for i, q := range r.pending {
		if q == observed {
			r.pending = append(r.pending[:0], r.pending[i+1:]...)
			r.lastObserved = observed
			r.logger.Debug("Ignoring echo of self-initiated navigation",
				log.FieldQuery, observed,
				log.FieldOperation, log.OpReconcile)
			return nil
		}
	}

	r.pending = r.pending[:0]
	r.lastObserved = observed

	next := r.schema.Decode(params)
	if next.Equal(r.store.State()) {
		return nil
	}
	r.logger.Debug("Restoring state from external URL change",
		log.FieldQuery, observed,
		log.FieldOperation, log.OpReconcile)
	return r.store.Replace(next)
}

// LastObserved returns the canonical query last reported by the router.
func (r *Reconciler) LastObserved() string {
	return r.lastObserved
}

// LastSelfInitiated returns the most recent query written by Sync whose echo
// is still outstanding, or "" when there is none.
func (r *Reconciler) LastSelfInitiated() (string, bool) {
	if len(r.pending) == 0 {
		return "", false
	}
	return r.pending[len(r.pending)-1], true
}

func (r *Reconciler) expected() string {
	if q, ok := r.LastSelfInitiated(); ok {
		return q
	}
	return r.lastObserved
}

func (r *Reconciler) remember(q string) {
	r.pending = append(r.pending, q)
	if over := len(r.pending) - r.maxPending; over > 0 {
		r.pending = append(r.pending[:0], r.pending[over:]...)
	}
}

func (r *Reconciler) forget(q string) {
	for i := len(r.pending) - 1; i >= 0; i-- {
		if r.pending[i] == q {
			r.pending = append(r.pending[:i], r.pending[i+1:]...)
			return
		}
	}
}
