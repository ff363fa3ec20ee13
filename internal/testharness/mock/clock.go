package mock

import (
	"sort"
	"sync"
	"time"

	"github.com/nadtcp/nadtcp-go/pkg/connection"
)

// Clock is a manual connection.Clock. Timers fire only when Advance moves
// time past their deadline, on the goroutine calling Advance.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*clockTimer
}

var _ connection.Clock = (*Clock)(nil)

// NewClock creates a clock starting at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc implements connection.Clock.
func (c *Clock) AfterFunc(d time.Duration, f func()) connection.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	t := &clockTimer{clock: c, when: c.now.Add(d), delay: d, seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward by d and runs every timer that comes due, in
// deadline order. Timers scheduled by those callbacks run too if they fall
// inside the window.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		t := c.nextDueLocked(target)
		if t == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = t.when
		c.removeLocked(t)
		c.mu.Unlock()

		t.f()
	}
}

// Pending returns the number of scheduled timers that have neither fired
// nor been stopped.
func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Delays returns the requested delay of every pending timer.
func (c *Clock) Delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	delays := make([]time.Duration, len(c.timers))
	for i, t := range c.timers {
		delays[i] = t.delay
	}
	return delays
}

// Until returns the time left before the earliest pending timer fires.
func (c *Clock) Until() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.timers) == 0 {
		return 0, false
	}
	c.sortLocked()
	return c.timers[0].when.Sub(c.now), true
}

func (c *Clock) nextDueLocked(target time.Time) *clockTimer {
	if len(c.timers) == 0 {
		return nil
	}
	c.sortLocked()
	if t := c.timers[0]; !t.when.After(target) {
		return t
	}
	return nil
}

func (c *Clock) sortLocked() {
	sort.Slice(c.timers, func(i, j int) bool {
		if c.timers[i].when.Equal(c.timers[j].when) {
			return c.timers[i].seq < c.timers[j].seq
		}
		return c.timers[i].when.Before(c.timers[j].when)
	})
}

func (c *Clock) removeLocked(t *clockTimer) bool {
	for i, p := range c.timers {
		if p == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return true
		}
	}
	return false
}

type clockTimer struct {
	clock *Clock
	when  time.Time
	delay time.Duration
	seq   int
	f     func()
}

func (t *clockTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	return t.clock.removeLocked(t)
}
