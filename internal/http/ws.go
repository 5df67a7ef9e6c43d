package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/example/ev-rescue/internal/workflow"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

const (
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// handleWS streams every update of a session to the browser. The first frame
// is the current snapshot.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["session_id"]
	sess, err := s.sessions.Get(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied
		s.logger.Debug("ws upgrade failed", zap.Error(err))
		return
	}
	entry := s.wsreg.Add(id, conn)
	defer s.wsreg.Remove(id, entry)
	defer conn.Close()

	if err := entry.Send(workflow.Update{Snapshot: sess.Snapshot()}); err != nil {
		return
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		t := time.NewTicker(pingPeriod)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })
	for {
		// the stream is one-way; reads only detect the close
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
