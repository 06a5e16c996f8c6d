package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func waitState(t *testing.T, session *Session, want SessionState) {
	t.Helper()
	select {
	case got := <-session.States():
		if got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", want)
	}
}

func TestSessionDeliversFramesAndReconnects(t *testing.T) {
	var connections int32
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if atomic.AddInt32(&connections, 1) > 1 {
			_ = conn.WriteJSON(map[string]string{"type": "connected"})
			_, _, _ = conn.ReadMessage()
			return
		}
		_ = conn.WriteJSON(map[string]string{"type": "connected"})
		_ = conn.WriteJSON(map[string]interface{}{"type": "message", "message": map[string]interface{}{"id": 1, "conversation_id": 4, "sender_id": 10, "content": "first"}})
		_ = conn.WriteJSON(map[string]interface{}{"type": "message", "message": map[string]interface{}{"id": 2, "conversation_id": 4, "sender_id": 10, "content": "second"}})
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		_ = conn.WriteJSON(map[string]interface{}{"type": "notification", "notification": map[string]interface{}{"id": 9, "message": "Lesson moved"}})
		// Dropping the connection forces a reconnect.
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := NewSession("ws"+strings.TrimPrefix(server.URL, "http"), "secret-token", WithBackoff(10*time.Millisecond, 50*time.Millisecond))
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()

	waitState(t, session, Connected)

	for _, want := range []string{"first", "second"} {
		select {
		case m := <-session.Messages():
			if m.Content != want {
				t.Fatalf("expected %q, got %q", want, m.Content)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
	select {
	case n := <-session.Notifications():
		if n.ID != 9 {
			t.Fatalf("unexpected notification %+v", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for notification")
	}

	waitState(t, session, Disconnected)
	waitState(t, session, Connected)

	if session.State() != Connected {
		t.Fatalf("expected connected session")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}

func TestSessionSendWritesInboundFrame(t *testing.T) {
	received := make(chan outboundFrame, 1)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var frame outboundFrame
		_ = json.Unmarshal(data, &frame)
		received <- frame
		_, _, _ = conn.ReadMessage()
	}))
	defer server.Close()

	session := NewSession("ws"+strings.TrimPrefix(server.URL, "http"), "t")
	if err := session.Send(4, "hi"); err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected before Run, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = session.Run(ctx) }()
	waitState(t, session, Connected)

	if err := session.Send(4, "hi"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	select {
	case frame := <-received:
		if frame.Type != "message" || frame.ConversationID != 4 || frame.Content != "hi" {
			t.Fatalf("unexpected frame %+v", frame)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server never received the frame")
	}
}

func TestSessionKeepsLatestDisconnectWhenStatesAreFull(t *testing.T) {
	session := NewSession("ws://127.0.0.1:1/ws", "t")
	for len(session.states) < cap(session.states) {
		session.states <- Connected
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := session.emitState(ctx, Disconnected); err != nil {
		t.Fatalf("emitState: %v", err)
	}

	if len(session.states) != cap(session.states) {
		t.Fatalf("expected a full buffer, got %d", len(session.states))
	}
	var last SessionState
	for len(session.states) > 0 {
		last = <-session.states
	}
	if last != Disconnected {
		t.Fatalf("expected the newest state to be %s, got %s", Disconnected, last)
	}
}

func TestSessionBackOffStaysWithinBounds(t *testing.T) {
	session := NewSession("ws://127.0.0.1:1/ws", "t", WithBackoff(100*time.Millisecond, 400*time.Millisecond))
	delays := session.newBackOff()

	// Randomization spreads each delay by up to half of the current interval.
	first := delays.NextBackOff()
	if first < 50*time.Millisecond || first > 150*time.Millisecond {
		t.Fatalf("first delay %s outside [50ms, 150ms]", first)
	}
	for i := 0; i < 20; i++ {
		if next := delays.NextBackOff(); next <= 0 || next > 600*time.Millisecond {
			t.Fatalf("delay %s outside (0, 600ms]", next)
		}
	}

	delays.Reset()
	if again := delays.NextBackOff(); again > 150*time.Millisecond {
		t.Fatalf("expected reset to start over, got %s", again)
	}
}
