package urlstate

import (
	"sync"
)

// SearchInput is a free-text field whose value enters the state through a
// trailing debounce, so rapid typing produces one state change and one URL
// write per idle gap.
type SearchInput struct {
	binding  *Binding
	key      string
	debounce *Debouncer

	mu       sync.Mutex
	value    string
	onCommit func(value string)
	onError  func(err error)
}

// OnCommit registers fn to run after a value has been committed to the
// state, for example to persist the last-used filter.
func (s *SearchInput) OnCommit(fn func(value string)) *SearchInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCommit = fn
	return s
}

// OnError registers fn to receive commit errors raised when the debounce
// window elapses. Flush returns its error instead.
func (s *SearchInput) OnError(fn func(err error)) *SearchInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = fn
	return s
}

// Key returns the state key the input writes.
func (s *SearchInput) Key() string {
	return s.key
}

// Value returns the last typed value, committed or not.
func (s *SearchInput) Value() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Type records value and restarts the debounce window.
func (s *SearchInput) Type(value string) {
	s.mu.Lock()
	s.value = value
	s.mu.Unlock()

	s.debounce.Trigger(func() {
		if err := s.commit(value); err != nil {
			s.mu.Lock()
			onError := s.onError
			s.mu.Unlock()
			if onError != nil {
				onError(err)
			}
		}
	})
}

// Flush commits the pending value now, as on pressing enter. It is a no-op
// when nothing is pending.
func (s *SearchInput) Flush() error {
	if !s.debounce.Cancel() {
		return nil
	}
	return s.commit(s.Value())
}

// Cancel drops the pending value.
func (s *SearchInput) Cancel() {
	s.debounce.Cancel()
}

// Pending reports whether a typed value is waiting for the window to elapse.
func (s *SearchInput) Pending() bool {
	return s.debounce.Pending()
}

func (s *SearchInput) commit(value string) error {
	if err := s.binding.SetState(State{s.key: value}); err != nil {
		return err
	}
	s.mu.Lock()
	onCommit := s.onCommit
	s.mu.Unlock()
	if onCommit != nil {
		onCommit(value)
	}
	return nil
}
