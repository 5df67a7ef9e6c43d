package geo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/ev-rescue/internal/models"
)

// RedisGeo implements Geo using Redis GEO commands, with driver details kept
// in a hash per driver.
type RedisGeo struct {
	client  *redis.Client
	key     string
	radiusM float64
}

func NewRedisGeo(client *redis.Client, key string, radiusM float64) *RedisGeo {
	if radiusM <= 0 {
		radiusM = 25000
	}
	return &RedisGeo{client: client, key: key, radiusM: radiusM}
}

func (r *RedisGeo) Upsert(ctx context.Context, d models.DriverInfo) error {
	if err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{Longitude: d.Loc.Lon, Latitude: d.Loc.Lat, Name: d.ID}).Err(); err != nil {
		return fmt.Errorf("geoadd %s: %w", d.ID, err)
	}
	return r.client.HSet(ctx, metaKey(d.ID), driverMeta(d)).Err()
}

func (r *RedisGeo) Nearby(ctx context.Context, at models.Coord, limit int) ([]models.DriverInfo, error) {
	res, err := r.client.GeoRadius(ctx, r.key, at.Lon, at.Lat, &redis.GeoRadiusQuery{Radius: r.radiusM, Unit: "m", WithCoord: true, WithDist: true, Count: limit, Sort: "ASC"}).Result()
	if err != nil {
		return nil, fmt.Errorf("georadius: %w", err)
	}
	out := make([]models.DriverInfo, 0, len(res))
	for _, g := range res {
		meta, err := r.client.HGetAll(ctx, metaKey(g.Name)).Result()
		if err != nil {
			meta = nil
		}
		d := driverFromMeta(g.Name, models.Coord{Lat: g.Latitude, Lon: g.Longitude}, meta)
		if !d.Online {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func metaKey(id string) string { return "driver:meta:" + id }

func driverMeta(d models.DriverInfo) map[string]interface{} {
	return map[string]interface{}{
		"name":    d.Name,
		"phone":   d.Phone,
		"vehicle": d.Vehicle,
		"plate":   d.Plate,
		"rating":  strconv.FormatFloat(d.Rating, 'f', -1, 64),
		"online":  strconv.FormatBool(d.Online),
		"updated": time.Now().Format(time.RFC3339),
	}
}

// driverFromMeta rebuilds a driver from its GEO entry and metadata hash.
// A missing hash yields an online driver with only id and position.
func driverFromMeta(id string, loc models.Coord, m map[string]string) models.DriverInfo {
	d := models.DriverInfo{ID: id, Loc: loc, Online: true}
	if len(m) == 0 {
		return d
	}
	d.Name = m["name"]
	d.Phone = m["phone"]
	d.Vehicle = m["vehicle"]
	d.Plate = m["plate"]
	if v, ok := m["rating"]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			d.Rating = f
		}
	}
	if v, ok := m["online"]; ok {
		d.Online = v == "true"
	}
	return d
}
