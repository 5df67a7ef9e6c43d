package sim

import (
	"math"

	"github.com/example/ev-rescue/internal/models"
)

const DefaultRouteSteps = 20

// Route moves the driver marker towards the customer in equal steps along a
// straight line. Latitude and longitude are interpolated independently.
type Route struct {
	from    models.Coord
	to      models.Coord
	steps   int
	step    int
	animate bool
	pos     models.Coord
}

func NewRoute(from, to models.Coord, steps int, animate bool) *Route {
	if steps <= 0 {
		steps = DefaultRouteSteps
	}
	return &Route{from: from, to: to, steps: steps, animate: animate, pos: from}
}

// Tick advances one step. It returns false when animation is off or the
// driver has already arrived.
func (r *Route) Tick() bool {
	if !r.animate || r.Arrived() {
		return false
	}
	r.step++
	if r.step == r.steps {
		r.pos = r.to
		return true
	}
	f := float64(r.step) / float64(r.steps)
	r.pos = models.Coord{
		Lat: r.from.Lat + (r.to.Lat-r.from.Lat)*f,
		Lon: r.from.Lon + (r.to.Lon-r.from.Lon)*f,
	}
	return true
}

func (r *Route) Arrived() bool             { return r.step >= r.steps }
func (r *Route) Step() int                 { return r.step }
func (r *Route) Steps() int                { return r.steps }
func (r *Route) Animated() bool            { return r.animate }
func (r *Route) Position() models.Coord    { return r.pos }
func (r *Route) Destination() models.Coord { return r.to }

// Progress is the shrinkage of the euclidean distance to the customer,
// relative to the initial distance, clamped to [0,100].
func (r *Route) Progress() float64 {
	total := euclid(r.from, r.to)
	if total == 0 {
		return 100
	}
	p := (total - euclid(r.pos, r.to)) / total * 100
	return clamp(p, 0, 100)
}

func euclid(a, b models.Coord) float64 {
	return math.Hypot(b.Lat-a.Lat, b.Lon-a.Lon)
}
