package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ev-rescue/internal/workflow"
)

type fakeConn struct {
	mu        sync.Mutex
	got       []interface{}
	fail      bool
	closed    bool
	deadlines []time.Time
	stalled   bool
}

func (f *fakeConn) SetWriteDeadline(t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadlines = append(f.deadlines, t)
	return nil
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broken pipe")
	}
	if f.stalled {
		return errors.New("i/o timeout")
	}
	f.got = append(f.got, v)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestPushFansOutPerSession(t *testing.T) {
	r := NewWSRegistry(nil)
	a, b, other := &fakeConn{}, &fakeConn{}, &fakeConn{}
	r.Add("s1", a)
	r.Add("s1", b)
	r.Add("s2", other)

	r.OnUpdate(context.Background(), workflow.Update{Snapshot: workflow.Snapshot{SessionID: "s1", Stage: workflow.StageWaiting}})

	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
	assert.Empty(t, other.got)
}

func TestPushUnknownSession(t *testing.T) {
	r := NewWSRegistry(nil)
	assert.ErrorIs(t, r.Push("nope", "x"), ErrNoSession)
}

func TestPushDropsBrokenConn(t *testing.T) {
	r := NewWSRegistry(nil)
	good, bad := &fakeConn{}, &fakeConn{fail: true}
	r.Add("s1", good)
	r.Add("s1", bad)

	err := r.Push("s1", "x")
	require.Error(t, err)
	assert.True(t, bad.closed)
	assert.Equal(t, 1, r.Count("s1"))
}

func TestRemoveAndDrop(t *testing.T) {
	r := NewWSRegistry(nil)
	a, b := &fakeConn{}, &fakeConn{}
	sa := r.Add("s1", a)
	r.Add("s1", b)
	r.Remove("s1", sa)
	assert.Equal(t, 1, r.Count("s1"))

	r.Drop("s1")
	assert.True(t, b.closed)
	assert.Equal(t, 0, r.Count("s1"))
}

func TestSendSetsWriteDeadline(t *testing.T) {
	r := NewWSRegistry(nil)
	r.WriteWait = 2 * time.Second
	c := &fakeConn{}
	s := r.Add("s1", c)

	before := time.Now()
	require.NoError(t, s.Send("x"))
	require.Len(t, c.deadlines, 1)
	assert.WithinDuration(t, before.Add(2*time.Second), c.deadlines[0], time.Second)
}

func TestPushDropsConnPastDeadline(t *testing.T) {
	r := NewWSRegistry(nil)
	slow, fast := &fakeConn{stalled: true}, &fakeConn{}
	r.Add("s1", slow)
	r.Add("s1", fast)

	require.Error(t, r.Push("s1", "x"))
	assert.True(t, slow.closed)
	assert.Len(t, fast.got, 1)
	assert.Equal(t, 1, r.Count("s1"))
	assert.Len(t, slow.deadlines, 1)
}
