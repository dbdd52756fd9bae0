package urlstate

import (
	"fmt"
	"net/url"
)

// Listener is notified after a committed state change.
type Listener func(st State) error

// Store holds the current state of one view. It is not safe for concurrent
// use on its own; Binding serializes access to it.
type Store struct {
	schema    *Schema
	state     State
	listeners []*listenerEntry
}

type listenerEntry struct {
	fn Listener
}

// NewStore initializes a store from the current URL parameters.
func NewStore(schema *Schema, params url.Values) *Store {
	return &Store{
		schema: schema,
		state:  schema.Decode(params),
	}
}

// State returns a copy of the current state.
func (s *Store) State() State {
	return s.state.Clone()
}

// Schema returns the schema the store was initialized with.
func (s *Store) Schema() *Schema {
	return s.schema
}

// Update shallow-merges partial into the current state. Keys outside the
// schema and values of the wrong kind are rejected and leave the state
// untouched. A merge that changes nothing does not notify listeners.
func (s *Store) Update(partial State) error {
	next := s.state.Clone()
	for key, v := range partial {
		f, ok := s.schema.Field(key)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownField, key)
		}
		nv, err := f.normalize(v)
		if err != nil {
			return err
		}
		next[key] = nv
	}
	return s.commit(next)
}

// SetPage is Update({page: n}).
func (s *Store) SetPage(n int) error {
	return s.Update(State{KeyPage: n})
}

// Replace overwrites the whole state. Missing keys take their default.
func (s *Store) Replace(next State) error {
	full := s.schema.Defaults()
	for key, v := range next {
		f, ok := s.schema.Field(key)
		if !ok {
			continue
		}
		nv, err := f.normalize(v)
		if err != nil {
			return err
		}
		full[key] = nv
	}
	return s.commit(full)
}

// OnChange registers fn and returns a function that unregisters it.
func (s *Store) OnChange(fn Listener) (cancel func()) {
	e := &listenerEntry{fn: fn}
	s.listeners = append(s.listeners, e)
	return func() {
		for i, l := range s.listeners {
			if l == e {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) commit(next State) error {
	if next.Equal(s.state) {
		return nil
	}
	s.state = next
	var first error
	for _, l := range append([]*listenerEntry(nil), s.listeners...) {
		if err := l.fn(next.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}
