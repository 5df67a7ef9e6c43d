package mockdata

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ev-rescue/internal/geo"
	"github.com/example/ev-rescue/internal/models"
)

func TestDefaultFixtures(t *testing.T) {
	ctx := context.Background()
	s, err := Default()
	require.NoError(t, err)

	jobs, err := s.Requests(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "Sarah Johnson", jobs[0].Name)
	assert.Equal(t, 3, jobs[0].BatteryLevel)
	assert.Equal(t, 5*time.Minute, jobs[0].RequestedAgo)
	assert.Equal(t, "5 minutes ago", jobs[0].Timestamp())
	assert.Equal(t, "pending", jobs[0].Status)
	assert.Greater(t, jobs[0].DistanceKm, 0.0)

	me, err := s.PortalDriver(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Alex Rivera", me.Name)

	loc, err := s.CustomerLocation(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Coord{Lat: 12.9716, Lon: 77.5946}, loc)

	assert.Len(t, s.Guide(), 5)
	assert.Equal(t, 147, s.DashboardSeed().TotalRescues)
}

func TestRequestsReturnsCopy(t *testing.T) {
	s, err := Default()
	require.NoError(t, err)
	jobs, _ := s.Requests(context.Background())
	jobs[0].Name = "changed"
	again, _ := s.Requests(context.Background())
	assert.Equal(t, "Sarah Johnson", again[0].Name)
}

func TestDistanceRoundedToOneDecimal(t *testing.T) {
	s, err := Parse([]byte(`
portal_driver: {id: me, loc: {lat: 0, lon: 0}}
requests:
  - {id: "1", name: A, requested_ago: 1m, loc: {lat: 0.1, lon: 0}}
`))
	require.NoError(t, err)
	jobs, _ := s.Requests(context.Background())
	require.Len(t, jobs, 1)
	assert.Equal(t, 11.1, jobs[0].DistanceKm)
	assert.Equal(t, "11.1 km", jobs[0].Distance())
	assert.Equal(t, "1 minute ago", jobs[0].Timestamp())
}

func TestParseRejectsBadDuration(t *testing.T) {
	_, err := Parse([]byte("requests:\n  - {id: x, requested_ago: soon}\n"))
	assert.Error(t, err)
}

func TestLoadFromPath(t *testing.T) {
	p := filepath.Join(t.TempDir(), "f.yaml")
	require.NoError(t, os.WriteFile(p, []byte("customer_location: {lat: 1, lon: 2}\n"), 0o600))
	s, err := Load(p)
	require.NoError(t, err)
	loc, _ := s.CustomerLocation(context.Background())
	assert.Equal(t, models.Coord{Lat: 1, Lon: 2}, loc)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSeedFillsIndex(t *testing.T) {
	ctx := context.Background()
	s, err := Default()
	require.NoError(t, err)
	idx := geo.NewIndex()
	require.NoError(t, s.Seed(ctx, idx))
	near, err := idx.Nearby(ctx, models.Coord{Lat: 12.9716, Lon: 77.5946}, 10)
	require.NoError(t, err)
	// drv-003 is offline
	assert.Len(t, near, 2)
}
