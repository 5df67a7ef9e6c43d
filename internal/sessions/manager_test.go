package sessions

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ev-rescue/internal/workflow"
)

func newManager(ttl time.Duration, closed *[]string, mu *sync.Mutex) *Manager {
	return NewManager(Options{
		TTL:     ttl,
		Timings: workflow.DefaultTimings(),
		OnClose: func(id string) {
			mu.Lock()
			defer mu.Unlock()
			*closed = append(*closed, id)
		},
	})
}

func TestCreateGetDelete(t *testing.T) {
	var mu sync.Mutex
	var closed []string
	m := newManager(time.Minute, &closed, &mu)

	s, err := m.Create(workflow.RoleCustomer)
	require.NoError(t, err)
	assert.Equal(t, workflow.StageForm, s.Stage())
	assert.Equal(t, 1, m.Len())

	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, m.Delete(s.ID()))
	assert.True(t, s.Closed())
	assert.Equal(t, []string{s.ID()}, closed)

	_, err = m.Get(s.ID())
	assert.ErrorIs(t, err, ErrUnknownSession)
	assert.ErrorIs(t, m.Delete(s.ID()), ErrUnknownSession)
}

func TestCreateDriverAndUnknownRole(t *testing.T) {
	var mu sync.Mutex
	var closed []string
	m := newManager(time.Minute, &closed, &mu)

	s, err := m.Create(workflow.RoleDriver)
	require.NoError(t, err)
	assert.Equal(t, workflow.StageLogin, s.Stage())

	_, err = m.Create("admin")
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestSweepClosesIdleSessions(t *testing.T) {
	var mu sync.Mutex
	var closed []string
	m := newManager(20*time.Millisecond, &closed, &mu)

	s, err := m.Create(workflow.RoleCustomer)
	require.NoError(t, err)
	time.Sleep(40 * time.Millisecond)
	m.Sweep()

	assert.True(t, s.Closed())
	assert.Equal(t, 0, m.Len())
	mu.Lock()
	assert.Equal(t, []string{s.ID()}, closed)
	mu.Unlock()
}

func TestStopClosesEverything(t *testing.T) {
	var mu sync.Mutex
	var closed []string
	m := newManager(time.Minute, &closed, &mu)
	require.NoError(t, m.Start(time.Hour))
	a, _ := m.Create(workflow.RoleCustomer)
	b, _ := m.Create(workflow.RoleDriver)
	m.Stop()
	assert.True(t, a.Closed())
	assert.True(t, b.Closed())
	assert.Equal(t, 0, m.Len())
}

func TestScheduleRejectsBadSpec(t *testing.T) {
	var mu sync.Mutex
	var closed []string
	m := newManager(time.Minute, &closed, &mu)
	assert.Error(t, m.Schedule("not a spec", func() {}))
}
