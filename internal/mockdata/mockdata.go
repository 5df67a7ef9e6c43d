// Package mockdata serves the fixed demo records: rescue drivers, pending
// requests, the logged-in portal driver and the AR/VR guide.
package mockdata

import (
	"context"
	_ "embed"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/example/ev-rescue/internal/geo"
	"github.com/example/ev-rescue/internal/models"
)

//go:embed fixtures.yaml
var defaultFixtures []byte

type requestFixture struct {
	ID           string       `yaml:"id"`
	Name         string       `yaml:"name"`
	Location     string       `yaml:"location"`
	Vehicle      string       `yaml:"vehicle"`
	BatteryLevel int          `yaml:"battery_level"`
	RequestedAgo string       `yaml:"requested_ago"`
	Loc          models.Coord `yaml:"loc"`
}

type fixtures struct {
	CustomerLocation models.Coord        `yaml:"customer_location"`
	PortalDriver     models.DriverInfo   `yaml:"portal_driver"`
	Drivers          []models.DriverInfo `yaml:"drivers"`
	Requests         []requestFixture    `yaml:"requests"`
	Dashboard        struct {
		CompletedToday int `yaml:"completed_today"`
		TotalRescues   int `yaml:"total_rescues"`
	} `yaml:"dashboard"`
	Guide []models.GuideStep `yaml:"guide"`
}

// Static is an immutable in-memory provider.
type Static struct {
	customer models.Coord
	portal   models.DriverInfo
	drivers  []models.DriverInfo
	requests []models.RescueJob
	seed     models.DashboardStats
	guide    []models.GuideStep
}

// Default loads the embedded fixtures.
func Default() (*Static, error) {
	return Parse(defaultFixtures)
}

// Load reads fixtures from path, or the embedded set when path is empty.
func Load(path string) (*Static, error) {
	if path == "" {
		return Default()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return Parse(b)
}

func Parse(b []byte) (*Static, error) {
	var f fixtures
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	s := &Static{
		customer: f.CustomerLocation,
		portal:   f.PortalDriver,
		drivers:  f.Drivers,
		seed: models.DashboardStats{
			CompletedToday: f.Dashboard.CompletedToday,
			TotalRescues:   f.Dashboard.TotalRescues,
		},
		guide: f.Guide,
	}
	for _, r := range f.Requests {
		var ago time.Duration
		if r.RequestedAgo != "" {
			d, err := time.ParseDuration(r.RequestedAgo)
			if err != nil {
				return nil, fmt.Errorf("request %s: requested_ago: %w", r.ID, err)
			}
			ago = d
		}
		s.requests = append(s.requests, models.RescueJob{
			ID:           r.ID,
			Name:         r.Name,
			Location:     r.Location,
			Vehicle:      r.Vehicle,
			BatteryLevel: r.BatteryLevel,
			Loc:          r.Loc,
			RequestedAgo: ago,
			DistanceKm:   round1(geo.DistanceKm(f.PortalDriver.Loc, r.Loc)),
			Status:       "pending",
		})
	}
	return s, nil
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func (s *Static) Requests(ctx context.Context) ([]models.RescueJob, error) {
	return append([]models.RescueJob(nil), s.requests...), nil
}

func (s *Static) PortalDriver(ctx context.Context) (models.DriverInfo, error) {
	return s.portal, nil
}

func (s *Static) CustomerLocation(ctx context.Context) (models.Coord, error) {
	return s.customer, nil
}

// Drivers is the rescue fleet, offline vans included.
func (s *Static) Drivers(ctx context.Context) ([]models.DriverInfo, error) {
	return append([]models.DriverInfo(nil), s.drivers...), nil
}

func (s *Static) Guide() []models.GuideStep {
	return append([]models.GuideStep(nil), s.guide...)
}

// DashboardSeed holds the counters the dashboard starts from.
func (s *Static) DashboardSeed() models.DashboardStats { return s.seed }

// Seed pushes every fleet driver into g.
func (s *Static) Seed(ctx context.Context, g geo.Geo) error {
	for _, d := range s.drivers {
		if err := g.Upsert(ctx, d); err != nil {
			return fmt.Errorf("seed driver %s: %w", d.ID, err)
		}
	}
	return nil
}
