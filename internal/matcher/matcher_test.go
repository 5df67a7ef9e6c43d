package matcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ev-rescue/internal/geo"
	"github.com/example/ev-rescue/internal/models"
)

type fakeGeo struct {
	drivers []models.DriverInfo
	err     error
}

func (f *fakeGeo) Nearby(ctx context.Context, at models.Coord, limit int) ([]models.DriverInfo, error) {
	return f.drivers, f.err
}

func (f *fakeGeo) Upsert(ctx context.Context, d models.DriverInfo) error { return nil }

func TestChooseHigherRatingIfETAEqual(t *testing.T) {
	g := &fakeGeo{drivers: []models.DriverInfo{
		{ID: "A", Loc: models.Coord{Lat: 0, Lon: 0}, Rating: 4.0, Online: true},
		{ID: "B", Loc: models.Coord{Lat: 0, Lon: 0}, Rating: 5.0, Online: true},
	}}
	s := &Service{Geo: g, DefaultSpeedMps: 10, TopN: 2}
	d, err := s.Assign(context.Background(), models.Coord{})
	require.NoError(t, err)
	assert.Equal(t, "B", d.ID)
}

func TestCloserDriverWinsOverSmallRatingGap(t *testing.T) {
	at := models.Coord{Lat: 12.97, Lon: 77.59}
	g := &fakeGeo{drivers: []models.DriverInfo{
		{ID: "far", Loc: models.Coord{Lat: 13.07, Lon: 77.59}, Rating: 5.0},
		{ID: "near", Loc: models.Coord{Lat: 12.971, Lon: 77.59}, Rating: 4.8},
	}}
	s := &Service{Geo: g, DefaultSpeedMps: 10}
	d, err := s.Assign(context.Background(), at)
	require.NoError(t, err)
	assert.Equal(t, "near", d.ID)
	assert.InDelta(t, geo.EstimateSeconds(d.Loc, at, 10), d.ETA, 1e-9)
}

func TestNoDrivers(t *testing.T) {
	s := &Service{Geo: &fakeGeo{}}
	_, err := s.Assign(context.Background(), models.Coord{})
	assert.ErrorIs(t, err, ErrNoDrivers)

	boom := errors.New("redis down")
	s = &Service{Geo: &fakeGeo{err: boom}}
	_, err = s.Assign(context.Background(), models.Coord{})
	assert.ErrorIs(t, err, boom)
}

func TestETACacheReused(t *testing.T) {
	c := NewETACache(time.Minute)
	g := &fakeGeo{drivers: []models.DriverInfo{{ID: "A", Loc: models.Coord{Lat: 0.01}}}}
	s := &Service{Geo: g, DefaultSpeedMps: 10, ETACache: c}
	first, err := s.Assign(context.Background(), models.Coord{})
	require.NoError(t, err)
	assert.Equal(t, 1, c.ItemCount())

	// a cached value wins over the estimator
	for k := range c.Items() {
		c.SetDefault(k, 42.0)
	}
	second, err := s.Assign(context.Background(), models.Coord{})
	require.NoError(t, err)
	assert.NotEqual(t, first.ETA, second.ETA)
	assert.Equal(t, 42.0, second.ETA)
}
