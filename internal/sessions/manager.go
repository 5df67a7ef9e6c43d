// Package sessions keeps the live workflow sessions, expiring idle ones.
package sessions

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/example/ev-rescue/internal/observability"
	"github.com/example/ev-rescue/internal/workflow"
)

var (
	ErrUnknownRole    = errors.New("unknown role")
	ErrUnknownSession = errors.New("unknown session")
)

type Options struct {
	TTL     time.Duration
	Timings workflow.Timings
	Deps    workflow.Deps
	Logger  *zap.Logger
	// OnClose runs after an expired or deleted session was closed.
	OnClose func(id string)
}

type Manager struct {
	cache   *cache.Cache
	timings workflow.Timings
	deps    workflow.Deps
	log     *zap.Logger
	onClose func(id string)
	cron    *cron.Cron
}

func NewManager(opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	m := &Manager{
		// expiry is driven by Sweep, not by go-cache's janitor
		cache:   cache.New(opts.TTL, 0),
		timings: opts.Timings,
		deps:    opts.Deps,
		log:     opts.Logger,
		onClose: opts.OnClose,
		cron:    cron.New(),
	}
	if m.deps.Logger == nil {
		m.deps.Logger = opts.Logger
	}
	m.cache.OnEvicted(m.evicted)
	return m
}

// Create starts a new session of the given role at its initial stage.
func (m *Manager) Create(role workflow.Role) (*workflow.Session, error) {
	flow, ok := workflow.FlowFor(role, m.timings)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	id := uuid.NewString()
	s := workflow.NewSession(id, flow, m.deps)
	m.cache.SetDefault(id, s)
	observability.ActiveSessions.Set(float64(m.cache.ItemCount()))
	m.log.Debug("session created", zap.String("session_id", id), zap.String("role", string(role)))
	return s, nil
}

// Get returns a live session and extends its lifetime.
func (m *Manager) Get(id string) (*workflow.Session, error) {
	v, ok := m.cache.Get(id)
	if !ok {
		return nil, ErrUnknownSession
	}
	s := v.(*workflow.Session)
	m.cache.SetDefault(id, s)
	return s, nil
}

func (m *Manager) Delete(id string) error {
	if _, ok := m.cache.Get(id); !ok {
		return ErrUnknownSession
	}
	m.cache.Delete(id)
	observability.ActiveSessions.Set(float64(m.cache.ItemCount()))
	return nil
}

func (m *Manager) Len() int { return m.cache.ItemCount() }

// Sweep closes every session idle for longer than the TTL.
func (m *Manager) Sweep() {
	m.cache.DeleteExpired()
	observability.ActiveSessions.Set(float64(m.cache.ItemCount()))
}

// Schedule adds a cron job next to the sweeper.
func (m *Manager) Schedule(spec string, fn func()) error {
	if _, err := m.cron.AddFunc(spec, fn); err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	return nil
}

// Start runs the sweeper every interval plus any scheduled jobs.
func (m *Manager) Start(interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	if err := m.Schedule("@every "+interval.String(), m.Sweep); err != nil {
		return err
	}
	m.cron.Start()
	return nil
}

// Stop halts the scheduler and closes every session.
func (m *Manager) Stop() {
	<-m.cron.Stop().Done()
	for id := range m.cache.Items() {
		m.cache.Delete(id)
	}
	observability.ActiveSessions.Set(0)
}

func (m *Manager) evicted(id string, v interface{}) {
	if s, ok := v.(*workflow.Session); ok {
		s.Close()
	}
	if m.onClose != nil {
		m.onClose(id)
	}
	m.log.Debug("session closed", zap.String("session_id", id))
}
