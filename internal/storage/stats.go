package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cast"

	"github.com/example/ev-rescue/internal/models"
)

// Hash fields of the dashboard counters.
const (
	FieldCompletedToday = "completed_today"
	FieldTotalRescues   = "total_rescues"
)

// Stats holds the driver dashboard counters. ActiveRequests is not stored;
// the session fills it from the request list.
type Stats interface {
	Dashboard(ctx context.Context) (models.DashboardStats, error)
	RecordCompletion(ctx context.Context) error
	ResetDaily(ctx context.Context) error
}

type MemoryStats struct {
	mu sync.RWMutex
	st models.DashboardStats
}

func NewMemoryStats(seed models.DashboardStats) *MemoryStats {
	seed.ActiveRequests = 0
	return &MemoryStats{st: seed}
}

func (m *MemoryStats) Dashboard(ctx context.Context) (models.DashboardStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st, nil
}

func (m *MemoryStats) RecordCompletion(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.CompletedToday++
	m.st.TotalRescues++
	return nil
}

func (m *MemoryStats) ResetDaily(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.CompletedToday = 0
	return nil
}

// RedisStats keeps the counters in one hash so the event consumer and every
// server instance share them.
type RedisStats struct {
	client *redis.Client
	key    string
}

func NewRedisStats(client *redis.Client, key string) *RedisStats {
	return &RedisStats{client: client, key: key}
}

// Seed sets counters that do not exist yet.
func (r *RedisStats) Seed(ctx context.Context, seed models.DashboardStats) error {
	pipe := r.client.TxPipeline()
	pipe.HSetNX(ctx, r.key, FieldCompletedToday, seed.CompletedToday)
	pipe.HSetNX(ctx, r.key, FieldTotalRescues, seed.TotalRescues)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("seed stats: %w", err)
	}
	return nil
}

func (r *RedisStats) Dashboard(ctx context.Context) (models.DashboardStats, error) {
	m, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return models.DashboardStats{}, fmt.Errorf("read stats: %w", err)
	}
	return statsFromHash(m), nil
}

func (r *RedisStats) RecordCompletion(ctx context.Context) error {
	pipe := r.client.TxPipeline()
	pipe.HIncrBy(ctx, r.key, FieldCompletedToday, 1)
	pipe.HIncrBy(ctx, r.key, FieldTotalRescues, 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record completion: %w", err)
	}
	return nil
}

func (r *RedisStats) ResetDaily(ctx context.Context) error {
	return r.client.HSet(ctx, r.key, FieldCompletedToday, 0).Err()
}

func statsFromHash(m map[string]string) models.DashboardStats {
	return models.DashboardStats{
		CompletedToday: cast.ToInt(m[FieldCompletedToday]),
		TotalRescues:   cast.ToInt(m[FieldTotalRescues]),
	}
}
