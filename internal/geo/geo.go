package geo

import (
	"context"
	"math"
	"sync"

	"github.com/example/ev-rescue/internal/models"
)

// Geo is the minimal interface the matcher and the fixtures loader need.
type Geo interface {
	Nearby(ctx context.Context, at models.Coord, limit int) ([]models.DriverInfo, error)
	Upsert(ctx context.Context, d models.DriverInfo) error
}

type Index struct {
	mu      sync.RWMutex
	drivers map[string]models.DriverInfo
}

func NewIndex() *Index {
	return &Index{drivers: make(map[string]models.DriverInfo)}
}

func (g *Index) Upsert(ctx context.Context, d models.DriverInfo) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.drivers[d.ID] = d
	return nil
}

// naive scan; the fleet is a handful of mock vans
func (g *Index) Nearby(ctx context.Context, at models.Coord, limit int) ([]models.DriverInfo, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	type pair struct {
		d    models.DriverInfo
		dist float64
	}
	arr := make([]pair, 0, len(g.drivers))
	for _, d := range g.drivers {
		if !d.Online {
			continue
		}
		arr = append(arr, pair{d, Haversine(at.Lat, at.Lon, d.Loc.Lat, d.Loc.Lon)})
	}
	// partial selection sort for top-N, ties broken by id for stable output
	n := limit
	if n <= 0 || n > len(arr) {
		n = len(arr)
	}
	for i := 0; i < n; i++ {
		minIdx := i
		for j := i + 1; j < len(arr); j++ {
			if arr[j].dist < arr[minIdx].dist || (arr[j].dist == arr[minIdx].dist && arr[j].d.ID < arr[minIdx].d.ID) {
				minIdx = j
			}
		}
		arr[i], arr[minIdx] = arr[minIdx], arr[i]
	}
	out := make([]models.DriverInfo, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, arr[i].d)
	}
	return out, nil
}

// Haversine distance in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

func DistanceKm(a, b models.Coord) float64 {
	return Haversine(a.Lat, a.Lon, b.Lat, b.Lon) / 1000
}

// EstimateSeconds is a naive ETA: distance / speed.
func EstimateSeconds(from, to models.Coord, speedMps float64) float64 {
	if speedMps <= 0 {
		speedMps = 8.0 // ~28.8 km/h city traffic
	}
	return Haversine(from.Lat, from.Lon, to.Lat, to.Lon) / speedMps
}
