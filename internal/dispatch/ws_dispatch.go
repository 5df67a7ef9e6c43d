// Package dispatch pushes session updates to connected browsers.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/ev-rescue/internal/workflow"
)

var ErrNoSession = errors.New("no ws session")

// DefaultWriteWait bounds a single frame write to a browser.
const DefaultWriteWait = 10 * time.Second

// Conn is the subset of *websocket.Conn the registry writes to.
type Conn interface {
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// WSSession is one connected browser tab.
type WSSession struct {
	conn      Conn
	writeWait time.Duration
	mu        sync.Mutex
}

func (s *WSSession) Send(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(v)
}

// WSRegistry holds browser connections per workflow session.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]map[*WSSession]struct{}
	log      *zap.Logger

	// WriteWait is the deadline given to each write. Set it before the
	// first Add.
	WriteWait time.Duration
}

func NewWSRegistry(log *zap.Logger) *WSRegistry {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSRegistry{
		sessions:  make(map[string]map[*WSSession]struct{}),
		log:       log,
		WriteWait: DefaultWriteWait,
	}
}

func (r *WSRegistry) Add(sessionID string, conn Conn) *WSSession {
	s := &WSSession{conn: conn, writeWait: r.WriteWait}
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.sessions[sessionID]
	if !ok {
		set = make(map[*WSSession]struct{})
		r.sessions[sessionID] = set
	}
	set[s] = struct{}{}
	return s
}

func (r *WSRegistry) Remove(sessionID string, s *WSSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.sessions[sessionID]
	delete(set, s)
	if len(set) == 0 {
		delete(r.sessions, sessionID)
	}
}

// Drop closes and forgets every connection of a session.
func (r *WSRegistry) Drop(sessionID string) {
	r.mu.Lock()
	set := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	r.mu.Unlock()
	for s := range set {
		_ = s.conn.Close()
	}
}

func (r *WSRegistry) Count(sessionID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[sessionID])
}

// Push writes v to every connection of the session. Connections that fail
// are closed and removed.
func (r *WSRegistry) Push(sessionID string, v interface{}) error {
	r.mu.RLock()
	targets := make([]*WSSession, 0, len(r.sessions[sessionID]))
	for s := range r.sessions[sessionID] {
		targets = append(targets, s)
	}
	r.mu.RUnlock()
	if len(targets) == 0 {
		return ErrNoSession
	}
	var errs []error
	for _, s := range targets {
		if err := s.Send(v); err != nil {
			r.log.Debug("ws send error", zap.String("session_id", sessionID), zap.Error(err))
			_ = s.conn.Close()
			r.Remove(sessionID, s)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OnUpdate makes the registry a workflow listener.
func (r *WSRegistry) OnUpdate(ctx context.Context, u workflow.Update) {
	_ = r.Push(u.Snapshot.SessionID, u)
}
