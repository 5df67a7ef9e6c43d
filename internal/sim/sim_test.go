package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ev-rescue/internal/models"
)

func TestChargingSequenceFiveToEighty(t *testing.T) {
	c := NewCharging(5, 80, 3)
	seen := []float64{c.Current()}
	completions := 0
	for i := 0; i < 100; i++ {
		if c.Tick() {
			completions++
		}
		if c.Ticks() > len(seen)-1 {
			seen = append(seen, c.Current())
		}
	}
	require.Len(t, seen, 26)
	for i, v := range seen {
		assert.Equal(t, float64(5+3*i), v)
	}
	assert.Equal(t, 1, completions)
	assert.Equal(t, 25, c.Ticks())
	assert.Equal(t, 100.0, c.Progress())
	assert.Equal(t, 0, c.EstimatedSeconds())
}

func TestChargingNeverExceedsTarget(t *testing.T) {
	for start := 0; start < 100; start += 7 {
		for target := start + 1; target <= 100; target += 9 {
			for _, rate := range []float64{0.5, 2, 3, 7, 40} {
				c := NewCharging(float64(start), float64(target), rate)
				completions := 0
				for i := 0; i < 500; i++ {
					if c.Tick() {
						completions++
					}
					require.LessOrEqual(t, c.Current(), float64(target))
				}
				assert.Equal(t, float64(target), c.Current())
				assert.Equal(t, 1, completions, "start=%d target=%d rate=%v", start, target, rate)
			}
		}
	}
}

func TestChargingProgressAndEstimate(t *testing.T) {
	c := NewCharging(20, 80, 2)
	assert.Equal(t, 0.0, c.Progress())
	assert.Equal(t, 30, c.EstimatedSeconds())
	c.Tick()
	assert.InDelta(t, 100.0*2/60, c.Progress(), 1e-9)
	assert.Equal(t, 29, c.EstimatedSeconds())

	c = NewCharging(10, 80, 3)
	assert.Equal(t, 24, c.EstimatedSeconds()) // ceil(70/3)
}

func TestChargingAlreadyAtTarget(t *testing.T) {
	c := NewCharging(90, 80, 3)
	assert.True(t, c.Done())
	assert.False(t, c.Tick())
	assert.Equal(t, 90.0, c.Target())
	assert.Equal(t, 100.0, c.Progress())
}

func TestRouteReachesUserAfterAllSteps(t *testing.T) {
	from := models.Coord{Lat: 12.9352, Lon: 77.6245}
	to := models.Coord{Lat: 12.9716, Lon: 77.5946}
	r := NewRoute(from, to, DefaultRouteSteps, true)
	assert.Equal(t, 0.0, r.Progress())

	prev := -1.0
	for i := 0; i < DefaultRouteSteps; i++ {
		require.True(t, r.Tick())
		assert.Greater(t, r.Progress(), prev)
		prev = r.Progress()
	}
	assert.True(t, r.Arrived())
	assert.False(t, r.Tick())
	assert.Equal(t, to, r.Position())
	assert.InDelta(t, 100.0, r.Progress(), 1e-9)
}

func TestRouteHalfway(t *testing.T) {
	r := NewRoute(models.Coord{}, models.Coord{Lat: 2, Lon: 4}, 20, true)
	for i := 0; i < 10; i++ {
		r.Tick()
	}
	assert.InDelta(t, 1.0, r.Position().Lat, 1e-12)
	assert.InDelta(t, 2.0, r.Position().Lon, 1e-12)
	assert.InDelta(t, 50.0, r.Progress(), 1e-9)
}

func TestRouteWithoutAnimationStaysPut(t *testing.T) {
	from := models.Coord{Lat: 1, Lon: 1}
	r := NewRoute(from, models.Coord{Lat: 2, Lon: 2}, 20, false)
	assert.False(t, r.Tick())
	assert.Equal(t, from, r.Position())
	assert.Equal(t, 0.0, r.Progress())
}

func TestRouteZeroDistance(t *testing.T) {
	p := models.Coord{Lat: 1, Lon: 1}
	assert.Equal(t, 100.0, NewRoute(p, p, 20, true).Progress())
}

func TestPaymentPhases(t *testing.T) {
	p := NewPayment(nil)
	assert.Equal(t, 500, p.Amount())
	assert.Equal(t, PaymentIdle, p.State())
	assert.False(t, p.Advance())

	require.NoError(t, p.Pay())
	assert.ErrorIs(t, p.Pay(), ErrPaymentStarted)
	assert.Equal(t, PaymentProcessing, p.State())

	assert.False(t, p.Advance())
	assert.Equal(t, PaymentSucceeded, p.State())
	assert.True(t, p.Advance())
	assert.Equal(t, PaymentCompleted, p.State())
	assert.False(t, p.Advance())
}

func TestPaymentCopiesLines(t *testing.T) {
	lines := []LineItem{{Label: "a", Amount: 1}}
	p := NewPayment(lines)
	lines[0].Amount = 99
	assert.Equal(t, 1, p.Amount())
}

func TestRatingWidgetInteractive(t *testing.T) {
	w := NewRatingWidget(0, false)
	w.Hover(3)
	assert.Equal(t, 3, w.Displayed())
	assert.Equal(t, []bool{true, true, true, false, false}, w.Stars())
	w.Leave()
	assert.Equal(t, 0, w.Displayed())

	assert.False(t, w.Click(0))
	assert.False(t, w.Click(6))
	assert.True(t, w.Click(4))
	assert.Equal(t, 4, w.Committed())
	w.Hover(2)
	assert.Equal(t, 4, w.Displayed())
}

func TestRatingWidgetReadOnly(t *testing.T) {
	w := NewRatingWidget(2, true)
	w.Hover(5)
	assert.False(t, w.Click(5))
	assert.Equal(t, 2, w.Displayed())
	assert.Equal(t, 0, w.Hovered())
}
