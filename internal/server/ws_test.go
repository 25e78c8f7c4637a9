package server

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/reeldeck/reeldeck/pkg/userdata"
)

func dialWS(t *testing.T, env *serverEnv) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read message: %v", err)
	}
	return msg
}

func TestWebSocketInitialSnapshot(t *testing.T) {
	env := newServerEnv(t)
	env.provider.answer(nil, nil)
	env.settle(t)

	conn := dialWS(t, env)

	msg := readMessage(t, conn)
	if msg.Type != "snapshot" {
		t.Fatalf("type = %q, want snapshot", msg.Type)
	}
	if msg.Mode != "guest" {
		t.Fatalf("mode = %q, want guest", msg.Mode)
	}
	if msg.Data == nil {
		t.Fatal("no data in initial snapshot")
	}
}

func TestWebSocketPushesOnMutation(t *testing.T) {
	env := newServerEnv(t)
	env.provider.answer(nil, nil)
	env.settle(t)

	conn := dialWS(t, env)
	readMessage(t, conn) // initial snapshot

	env.guest.AddToWatchlist(context.Background(),
		userdata.ContentRef{ID: "m1", Title: "Movie One"})

	// The mutation itself pushes; a persistence status change may push
	// again. Scan until the watchlist shows up.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		msg := readMessage(t, conn)
		if len(msg.Data.Watchlist) == 1 && msg.Data.Watchlist[0].ID == "m1" {
			env.settle(t)
			return
		}
	}
	t.Fatal("never received watchlist update")
}

func TestWebSocketPushesOnModeChange(t *testing.T) {
	env := newServerEnv(t)
	env.provider.answer(nil, nil)
	env.settle(t)

	conn := dialWS(t, env)
	readMessage(t, conn) // initial snapshot

	resp := env.do(t, http.MethodPost, "/api/auth/login",
		map[string]string{"email": "user@example.com", "password": "correct"})
	resp.Body.Close()
	env.settle(t)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		msg := readMessage(t, conn)
		if msg.Mode == "authenticated" {
			return
		}
	}
	t.Fatal("never received authenticated mode snapshot")
}
