package urlstate

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock runs scheduled calls only when Advance moves past their deadline.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now + d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward by d and runs due timers in deadline order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.fn()
	}
}

func TestDebouncerRunsOnlyLastCall(t *testing.T) {
	clock := &fakeClock{}
	d := NewDebouncer(300*time.Millisecond, WithClock(clock))

	var got []string
	for _, v := range []string{"a", "ab", "abc"} {
		d.Trigger(func() { got = append(got, v) })
		clock.Advance(100 * time.Millisecond)
	}
	assert.Empty(t, got)
	assert.True(t, d.Pending())

	clock.Advance(200 * time.Millisecond)
	assert.Equal(t, []string{"abc"}, got)
	assert.False(t, d.Pending())

	clock.Advance(time.Second)
	assert.Len(t, got, 1)
}

func TestDebouncerWindowRestartsOnTrigger(t *testing.T) {
	clock := &fakeClock{}
	d := NewDebouncer(500*time.Millisecond, WithClock(clock))

	calls := 0
	d.Trigger(func() { calls++ })
	clock.Advance(400 * time.Millisecond)
	d.Trigger(func() { calls++ })
	clock.Advance(400 * time.Millisecond)
	assert.Equal(t, 0, calls)

	clock.Advance(100 * time.Millisecond)
	assert.Equal(t, 1, calls)
}

func TestDebouncerCancel(t *testing.T) {
	clock := &fakeClock{}
	d := NewDebouncer(time.Second, WithClock(clock))

	called := false
	d.Trigger(func() { called = true })
	assert.True(t, d.Cancel())
	assert.False(t, d.Cancel())

	clock.Advance(2 * time.Second)
	assert.False(t, called)
}

func TestDebouncerFlush(t *testing.T) {
	clock := &fakeClock{}
	d := NewDebouncer(time.Second, WithClock(clock))

	assert.False(t, d.Flush())

	calls := 0
	d.Trigger(func() { calls++ })
	assert.True(t, d.Flush())
	assert.Equal(t, 1, calls)

	clock.Advance(2 * time.Second)
	assert.Equal(t, 1, calls)
}

func TestDebouncerIgnoresSupersededTimer(t *testing.T) {
	clock := &fakeClock{}
	d := NewDebouncer(time.Second, WithClock(clock))

	calls := 0
	d.Trigger(func() { calls++ })

	// A timer that already fired but has not taken the lock yet must not run
	// the call that replaced it.
	stale := clock.timers[0]
	d.Trigger(func() { calls += 10 })
	stale.fn()
	assert.Equal(t, 0, calls)

	clock.Advance(time.Second)
	assert.Equal(t, 10, calls)
}

func TestDebouncerSystemClock(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)

	done := make(chan struct{})
	d.Trigger(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "debounced call did not run")
	}
	assert.Equal(t, 10*time.Millisecond, d.Wait())
}
