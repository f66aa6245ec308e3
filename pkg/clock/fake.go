package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock only moves when Advance is called. Scheduled callbacks run
// synchronously inside Advance, in deadline order. A callback must not
// call Advance itself.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	seq     uint64
	entries []*fakeEntry
	changed *sync.Cond
}

type fakeEntry struct {
	seq      uint64
	deadline time.Time
	fn       func()
	ch       chan time.Time
	every    time.Duration
	done     bool
}

// NewFake returns a FakeClock set to start.
func NewFake(start time.Time) *FakeClock {
	c := &FakeClock{now: start}
	c.changed = sync.NewCond(&c.mu)
	return c
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	c.mu.Lock()
	e := c.addLocked(d, 0)
	e.fn = f
	c.mu.Unlock()

	return &Timer{stop: func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if e.done {
			return false
		}
		e.done = true
		c.changed.Broadcast()
		return true
	}}
}

func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive ticker interval")
	}
	ch := make(chan time.Time, 1)

	c.mu.Lock()
	e := c.addLocked(d, d)
	e.ch = ch
	c.mu.Unlock()

	return &Ticker{C: ch, stop: func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		e.done = true
		c.changed.Broadcast()
	}}
}

func (c *FakeClock) addLocked(d, every time.Duration) *fakeEntry {
	c.seq++
	e := &fakeEntry{seq: c.seq, deadline: c.now.Add(d), every: every}
	c.entries = append(c.entries, e)
	c.changed.Broadcast()
	return e
}

// Advance moves the clock forward by d, firing everything that falls due
// on the way. Entries scheduled by a firing callback are honored if their
// deadline is still within the advanced window.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		e := c.nextDueLocked(target)
		if e == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		if e.deadline.After(c.now) {
			c.now = e.deadline
		}
		if e.every > 0 {
			e.deadline = e.deadline.Add(e.every)
		} else {
			e.done = true
		}
		fireAt := c.now
		c.changed.Broadcast()
		c.mu.Unlock()

		if e.fn != nil {
			e.fn()
		} else {
			select {
			case e.ch <- fireAt:
			default:
			}
		}
	}
}

func (c *FakeClock) nextDueLocked(target time.Time) *fakeEntry {
	live := c.entries[:0]
	for _, e := range c.entries {
		if !e.done {
			live = append(live, e)
		}
	}
	c.entries = live

	sort.SliceStable(c.entries, func(i, j int) bool {
		if c.entries[i].deadline.Equal(c.entries[j].deadline) {
			return c.entries[i].seq < c.entries[j].seq
		}
		return c.entries[i].deadline.Before(c.entries[j].deadline)
	})
	if len(c.entries) == 0 || c.entries[0].deadline.After(target) {
		return nil
	}
	return c.entries[0]
}

// Pending returns the number of live timers and tickers.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLocked()
}

func (c *FakeClock) pendingLocked() int {
	n := 0
	for _, e := range c.entries {
		if !e.done {
			n++
		}
	}
	return n
}

// WaitForTimers blocks until at least n timers or tickers are live. It
// closes the gap between a goroutine scheduling a timer and the test
// advancing past it.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.pendingLocked() < n {
		c.changed.Wait()
	}
}
