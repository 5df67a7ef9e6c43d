// Package clocktest wraps a clockwork fake clock so that Advance walks from
// deadline to deadline and waits for every AfterFunc callback it fires.
// Timers armed by a callback inside the window fire in the same Advance.
package clocktest

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type Clock struct {
	*clockwork.FakeClock

	mu      sync.Mutex
	entries []*entry
}

type entry struct {
	due  time.Time
	once sync.Once
	done chan struct{}
}

func (e *entry) finish() { e.once.Do(func() { close(e.done) }) }

func (e *entry) finished() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

type timer struct {
	clockwork.Timer
	e *entry
}

func (t timer) Stop() bool {
	ok := t.Timer.Stop()
	if ok {
		t.e.finish()
	}
	return ok
}

func New(start time.Time) *Clock {
	return &Clock{FakeClock: clockwork.NewFakeClockAt(start)}
}

func (c *Clock) AfterFunc(d time.Duration, f func()) clockwork.Timer {
	e := &entry{due: c.Now().Add(d), done: make(chan struct{})}
	c.mu.Lock()
	c.entries = append(c.entries, e)
	c.mu.Unlock()
	t := c.FakeClock.AfterFunc(d, func() {
		defer e.finish()
		f()
	})
	return timer{Timer: t, e: e}
}

// Advance moves the clock forward by d. Each due callback has returned
// before the clock moves past its deadline.
func (c *Clock) Advance(d time.Duration) {
	target := c.Now().Add(d)
	for {
		c.settle()
		now := c.Now()
		next, ok := c.nextDue()
		if !ok || next.After(target) {
			c.FakeClock.Advance(target.Sub(now))
			c.settle()
			return
		}
		c.FakeClock.Advance(next.Sub(now))
	}
}

// Pending reports how many timers are armed and not yet fired or stopped.
func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if !e.finished() {
			n++
		}
	}
	return n
}

func (c *Clock) nextDue() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	live := c.entries[:0]
	var next time.Time
	found := false
	for _, e := range c.entries {
		if e.finished() {
			continue
		}
		live = append(live, e)
		if !found || e.due.Before(next) {
			next, found = e.due, true
		}
	}
	c.entries = live
	return next, found
}

// settle blocks until every callback due at the current time has returned.
func (c *Clock) settle() {
	for {
		now := c.Now()
		var wait chan struct{}
		c.mu.Lock()
		for _, e := range c.entries {
			if !e.due.After(now) && !e.finished() {
				wait = e.done
				break
			}
		}
		c.mu.Unlock()
		if wait == nil {
			return
		}
		<-wait
	}
}
