package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/reeldeck/reeldeck/pkg/middleware"
	"github.com/reeldeck/reeldeck/pkg/session"
	"github.com/reeldeck/reeldeck/pkg/userdata"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second

	// wsSendBuffer bounds queued pushes per connection. A client that
	// stops reading is dropped rather than ballooning memory.
	wsSendBuffer = 16
)

// wsMessage is one push to a WebSocket client.
type wsMessage struct {
	Type string           `json:"type"`
	Mode string           `json:"mode"`
	Data *userdata.Record `json:"data,omitempty"`
}

// handleWebSocket upgrades the connection and pushes a snapshot whenever
// the session mode or the active store's data changes.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		middleware.RecordWebSocketError("upgrade")
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	middleware.RecordWebSocketOpen()
	defer middleware.RecordWebSocketClose()

	send := make(chan wsMessage, wsSendBuffer)
	done := make(chan struct{})

	push := func(msg wsMessage) {
		select {
		case send <- msg:
		case <-done:
		default:
			// Slow consumer; drop this push. The next change delivers a
			// full snapshot anyway.
		}
	}

	snapshot := func() wsMessage {
		return wsMessage{
			Type: "snapshot",
			Mode: s.coord.Mode().String(),
			Data: s.sel.Snapshot(),
		}
	}

	// Store changes only push when their store is the active one, so a
	// background account sync never surfaces mid-guest-session.
	unsubGuest := s.coord.GuestStore().Subscribe(func(rec *userdata.Record) {
		if s.coord.Mode() == session.ModeGuest {
			push(wsMessage{Type: "snapshot", Mode: session.ModeGuest.String(), Data: rec})
		}
	})
	defer unsubGuest()

	unsubAccount := s.coord.AccountStore().Subscribe(func(rec *userdata.Record) {
		if s.coord.Mode() == session.ModeAuthenticated {
			push(wsMessage{Type: "snapshot", Mode: session.ModeAuthenticated.String(), Data: rec})
		}
	})
	defer unsubAccount()

	unsubMode := s.coord.Subscribe(func(mode session.Mode) {
		push(snapshot())
	})
	defer unsubMode()

	// Initial state so the client renders without a separate fetch.
	push(snapshot())

	// Reader: the client sends nothing meaningful; this just surfaces
	// closes and feeds the pong handler.
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					middleware.RecordWebSocketError("read")
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	defer conn.Close()

	for {
		select {
		case msg := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				middleware.RecordWebSocketError("write")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
