package clocktest

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAdvanceFiresInDeadlineOrder(t *testing.T) {
	c := New(time.Unix(0, 0))
	var mu sync.Mutex
	var got []string
	record := func(s string) func() {
		return func() {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, s)
		}
	}
	c.AfterFunc(3*time.Second, record("c"))
	c.AfterFunc(1*time.Second, record("a"))
	c.AfterFunc(2*time.Second, record("b"))

	c.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 1, c.Pending())

	c.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, time.Unix(3, 0), c.Now())
}

func TestStopCancels(t *testing.T) {
	c := New(time.Unix(0, 0))
	fired := false
	tm := c.AfterFunc(time.Second, func() { fired = true })
	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop())
	c.Advance(time.Minute)
	assert.False(t, fired)
	assert.Equal(t, 0, c.Pending())
}

func TestAdvanceChainsTimersArmedByCallbacks(t *testing.T) {
	c := New(time.Unix(0, 0))
	ticks := 0
	var tick func()
	tick = func() {
		ticks++
		if ticks < 5 {
			c.AfterFunc(time.Second, tick)
		}
	}
	c.AfterFunc(time.Second, tick)

	c.Advance(3 * time.Second)
	assert.Equal(t, 3, ticks)
	c.Advance(10 * time.Second)
	assert.Equal(t, 5, ticks)
	assert.Equal(t, 0, c.Pending())
}

func TestCallbackSeesDeadlineAsNow(t *testing.T) {
	c := New(time.Unix(0, 0))
	var at time.Time
	c.AfterFunc(1500*time.Millisecond, func() { at = c.Now() })
	c.Advance(5 * time.Second)
	assert.Equal(t, time.Unix(1, 500_000_000), at)
}
