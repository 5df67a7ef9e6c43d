// Package sim holds the tick-driven simulators behind the workflow views.
// None of them know about wall-clock time; callers advance them with Tick.
package sim

import "math"

const (
	DefaultChargeTarget = 80
	DefaultChargeRate   = 3
)

// Charging simulates a van topping up a car battery.
type Charging struct {
	start   float64
	target  float64
	rate    float64
	current float64
	ticks   int
}

// NewCharging clamps start into [0,100] and target into [start,100].
// A non-positive rate falls back to DefaultChargeRate.
func NewCharging(start, target, rate float64) *Charging {
	if rate <= 0 {
		rate = DefaultChargeRate
	}
	start = clamp(start, 0, 100)
	target = clamp(target, 0, 100)
	if target < start {
		target = start
	}
	return &Charging{start: start, target: target, rate: rate, current: start}
}

// Tick adds one step of charge. It reports true only on the tick that
// reaches the target; further ticks are no-ops.
func (c *Charging) Tick() bool {
	if c.Done() {
		return false
	}
	c.ticks++
	c.current = math.Min(c.current+c.rate, c.target)
	return c.Done()
}

func (c *Charging) Done() bool { return c.current >= c.target }

func (c *Charging) Current() float64 { return c.current }
func (c *Charging) Start() float64   { return c.start }
func (c *Charging) Target() float64  { return c.target }
func (c *Charging) Rate() float64    { return c.rate }
func (c *Charging) Ticks() int       { return c.ticks }

// Progress is the share of the start→target span covered, in percent.
func (c *Charging) Progress() float64 {
	span := c.target - c.start
	if span <= 0 {
		return 100
	}
	return (c.current - c.start) / span * 100
}

// EstimatedSeconds is the remaining time assuming one tick per second.
func (c *Charging) EstimatedSeconds() int {
	if c.Done() {
		return 0
	}
	return int(math.Ceil((c.target - c.current) / c.rate))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
