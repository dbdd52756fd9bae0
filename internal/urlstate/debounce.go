package urlstate

import (
	"sync"
	"time"
)

// Timer is a pending call scheduled by a Clock.
type Timer interface {
	Stop() bool
}

// Clock schedules deferred calls. The real clock uses time.AfterFunc.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock is the Clock backed by the runtime timer.
var SystemClock Clock = realClock{}

// DebounceOption configures a Debouncer.
type DebounceOption func(*Debouncer)

// WithClock replaces the system clock.
func WithClock(c Clock) DebounceOption {
	return func(d *Debouncer) {
		d.clock = c
	}
}

// Debouncer is a cancellable trailing debounce: of all calls passed to
// Trigger within the wait window, only the last one runs, wait after the
// last Trigger.
type Debouncer struct {
	mu    sync.Mutex
	wait  time.Duration
	clock Clock
	timer Timer
	fn    func()
	gen   uint64
}

// NewDebouncer creates a debouncer with the given window.
func NewDebouncer(wait time.Duration, opts ...DebounceOption) *Debouncer {
	d := &Debouncer{wait: wait, clock: SystemClock}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Wait returns the debounce window.
func (d *Debouncer) Wait() time.Duration {
	return d.wait
}

// Trigger starts the window, or restarts it if a call is pending, and makes
// fn the call to run when it elapses.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.fn = fn
	d.timer = d.clock.AfterFunc(d.wait, func() { d.fire(gen) })
}

// Cancel drops the pending call. It reports whether one was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, pending := d.takeLocked()
	return pending
}

// Flush runs the pending call immediately, on the calling goroutine. It
// reports whether there was one.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	fn, pending := d.takeLocked()
	d.mu.Unlock()
	if pending {
		fn()
	}
	return pending
}

// Pending reports whether a call is waiting for the window to elapse.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fn != nil
}

func (d *Debouncer) takeLocked() (func(), bool) {
	fn := d.fn
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.fn = nil
	return fn, fn != nil
}

// fire runs the call scheduled for generation gen, unless it was superseded
// or cancelled after the timer could no longer be stopped.
func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.fn == nil {
		d.mu.Unlock()
		return
	}
	fn := d.fn
	d.fn = nil
	d.timer = nil
	d.mu.Unlock()
	fn()
}
