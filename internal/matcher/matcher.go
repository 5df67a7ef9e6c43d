// Package matcher picks the rescue van sent to a stranded customer.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/example/ev-rescue/internal/geo"
	"github.com/example/ev-rescue/internal/models"
	"github.com/example/ev-rescue/internal/observability"
)

var ErrNoDrivers = errors.New("no rescue driver available")

type Service struct {
	Geo             geo.Geo
	DefaultSpeedMps float64
	TopN            int
	ETACache        *cache.Cache // optional, keyed by coordinate pair
}

// NewETACache builds the ETA cache the service expects.
func NewETACache(ttl time.Duration) *cache.Cache {
	return cache.New(ttl, 2*ttl)
}

// Assign returns the online driver with the lowest cost, with ETA filled in.
func (s *Service) Assign(ctx context.Context, at models.Coord) (models.DriverInfo, error) {
	start := time.Now()
	defer func() { observability.MatchLatency.Observe(time.Since(start).Seconds()) }()

	topN := s.TopN
	if topN <= 0 {
		topN = 10
	}
	cands, err := s.Geo.Nearby(ctx, at, topN)
	if err != nil {
		return models.DriverInfo{}, fmt.Errorf("nearby drivers: %w", err)
	}
	if len(cands) == 0 {
		return models.DriverInfo{}, ErrNoDrivers
	}
	type scored struct {
		d    models.DriverInfo
		cost float64
	}
	scoredList := make([]scored, 0, len(cands))
	for _, d := range cands {
		d.ETA = s.eta(d.Loc, at)
		cost := d.ETA + 30.0*(5.0-d.Rating) // cost = w1*eta + w2*(5 - rating)
		scoredList = append(scoredList, scored{d, cost})
	}
	sort.SliceStable(scoredList, func(i, j int) bool { return scoredList[i].cost < scoredList[j].cost })

	observability.MatchesTotal.Inc()
	return scoredList[0].d, nil
}

func (s *Service) eta(from, to models.Coord) float64 {
	if s.ETACache == nil {
		return geo.EstimateSeconds(from, to, s.DefaultSpeedMps)
	}
	k := fmt.Sprintf("%.6f,%.6f->%.6f,%.6f", from.Lat, from.Lon, to.Lat, to.Lon)
	if v, ok := s.ETACache.Get(k); ok {
		return v.(float64)
	}
	v := geo.EstimateSeconds(from, to, s.DefaultSpeedMps)
	s.ETACache.SetDefault(k, v)
	return v
}
