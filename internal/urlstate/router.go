package urlstate

import (
	"errors"
	"net/url"
	"strings"
	"sync"
)

// NavigateOptions controls how a navigation is recorded in history.
type NavigateOptions struct {
	Replace bool
}

// Router is the routing/history abstraction of the host environment.
// Navigate must not reload the page and must not change the path segment
// on its own. OnSearchParamsChange delivers every query-string change the
// host observes, including the ones caused by Navigate. A router living for
// a single request, whose navigations take effect after it is discarded,
// may deliver nothing.
type Router interface {
	SearchParams() url.Values
	Path() string
	Navigate(target string, opts NavigateOptions) error
	OnSearchParamsChange(fn func(url.Values)) (cancel func())
}

// ErrNavigationBlocked is returned by MemoryRouter when a failure is injected.
var ErrNavigationBlocked = errors.New("urlstate: navigation blocked")

// MemoryRouter is an in-process history stack implementing Router. It
// notifies subscribers synchronously, from the goroutine that changed the
// location.
type MemoryRouter struct {
	mu       sync.Mutex
	entries  []string
	cursor   int
	subs     map[int]func(url.Values)
	nextSub  int
	failWith error
	navs     []string
}

// NewMemoryRouter starts a history with a single entry.
func NewMemoryRouter(initial string) *MemoryRouter {
	if initial == "" {
		initial = "/"
	}
	return &MemoryRouter{
		entries: []string{initial},
		subs:    make(map[int]func(url.Values)),
	}
}

// SearchParams implements Router.
func (m *MemoryRouter) SearchParams() url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, q := splitTarget(m.entries[m.cursor])
	return q
}

// Path implements Router.
func (m *MemoryRouter) Path() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, _ := splitTarget(m.entries[m.cursor])
	return p
}

// Location returns the current entry (path and query).
func (m *MemoryRouter) Location() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[m.cursor]
}

// Navigate implements Router. A push drops any forward entries.
func (m *MemoryRouter) Navigate(target string, opts NavigateOptions) error {
	m.mu.Lock()
	if m.failWith != nil {
		err := m.failWith
		m.mu.Unlock()
		return err
	}
	m.navs = append(m.navs, target)
	if opts.Replace {
		m.entries[m.cursor] = target
	} else {
		m.entries = append(m.entries[:m.cursor+1], target)
		m.cursor++
	}
	m.mu.Unlock()
	m.notify(target)
	return nil
}

// Navigations returns every target passed to Navigate, in order.
func (m *MemoryRouter) Navigations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.navs...)
}

// Back moves one entry back, as the browser back button does.
func (m *MemoryRouter) Back() bool {
	return m.move(-1)
}

// Forward moves one entry forward.
func (m *MemoryRouter) Forward() bool {
	return m.move(1)
}

// Visit simulates an external location change (manual edit, shared link):
// it pushes target without going through Navigate.
func (m *MemoryRouter) Visit(target string) {
	m.mu.Lock()
	m.entries = append(m.entries[:m.cursor+1], target)
	m.cursor++
	m.mu.Unlock()
	m.notify(target)
}

// Emit delivers a change event for target without touching history. Tests
// use it to replay late or duplicated events.
func (m *MemoryRouter) Emit(target string) {
	m.notify(target)
}

// FailNavigation makes every following Navigate return err. Pass nil to
// restore normal behaviour.
func (m *MemoryRouter) FailNavigation(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// OnSearchParamsChange implements Router.
func (m *MemoryRouter) OnSearchParamsChange(fn func(url.Values)) (cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

func (m *MemoryRouter) move(delta int) bool {
	m.mu.Lock()
	next := m.cursor + delta
	if next < 0 || next >= len(m.entries) {
		m.mu.Unlock()
		return false
	}
	m.cursor = next
	target := m.entries[next]
	m.mu.Unlock()
	m.notify(target)
	return true
}

func (m *MemoryRouter) notify(target string) {
	_, q := splitTarget(target)
	m.mu.Lock()
	subs := make([]func(url.Values), 0, len(m.subs))
	for i := 0; i < m.nextSub; i++ {
		if fn, ok := m.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	m.mu.Unlock()
	for _, fn := range subs {
		fn(q)
	}
}

func splitTarget(target string) (string, url.Values) {
	path, raw, _ := strings.Cut(target, "?")
	// ParseQuery keeps every well-formed pair even when it reports an error.
	q, _ := url.ParseQuery(raw)
	return path, q
}
