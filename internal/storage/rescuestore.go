package storage

import (
	"context"
	"sync"

	"github.com/example/ev-rescue/internal/models"
)

// RescueStore keeps the audit log of finished rescues.
type RescueStore interface {
	SaveRescue(ctx context.Context, r *models.RescueRecord) error
	Recent(ctx context.Context, limit int) ([]models.RescueRecord, error)
}

type MemoryStore struct {
	mu      sync.RWMutex
	rescues []models.RescueRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) SaveRescue(ctx context.Context, r *models.RescueRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rescues = append(m.rescues, *r)
	return nil
}

// Recent returns the newest records first.
func (m *MemoryStore) Recent(ctx context.Context, limit int) ([]models.RescueRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := len(m.rescues)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]models.RescueRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, m.rescues[i])
	}
	return out, nil
}
