package client

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

type SessionState uint8

const (
	Disconnected SessionState = iota
	Connected
)

func (s SessionState) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

const (
	sessionWriteWait = 10 * time.Second
	sessionReadWait  = 75 * time.Second
)

type pushFrame struct {
	Type         string        `json:"type"`
	Message      *Message      `json:"message,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
	Error        string        `json:"error,omitempty"`
}

type outboundFrame struct {
	Type           string `json:"type"`
	ConversationID int64  `json:"conversation_id"`
	Content        string `json:"content"`
}

// Session keeps one push connection open for the signed-in user and
// reconnects with exponential backoff. Nothing missed while disconnected is
// replayed: a Disconnected state tells consumers to refetch.
type Session struct {
	url        string
	header     http.Header
	dialer     *websocket.Dialer
	minBackoff time.Duration
	maxBackoff time.Duration

	messages      chan Message
	notifications chan Notification
	states        chan SessionState

	mu    sync.Mutex
	conn  *websocket.Conn
	state SessionState
}

type SessionOption func(*Session)

func WithBackoff(min time.Duration, max time.Duration) SessionOption {
	return func(s *Session) {
		if min > 0 {
			s.minBackoff = min
		}
		if max >= s.minBackoff {
			s.maxBackoff = max
		}
	}
}

func WithDialer(dialer *websocket.Dialer) SessionOption {
	return func(s *Session) {
		if dialer != nil {
			s.dialer = dialer
		}
	}
}

func NewSession(wsURL string, token string, opts ...SessionOption) *Session {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	s := &Session{
		url:           wsURL,
		header:        header,
		dialer:        websocket.DefaultDialer,
		minBackoff:    500 * time.Millisecond,
		maxBackoff:    30 * time.Second,
		messages:      make(chan Message, 32),
		notifications: make(chan Notification, 32),
		states:        make(chan SessionState, 4),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Messages, Notifications and States are fed by Run. All three must be
// drained, since Run blocks on them to keep per-channel order.
func (s *Session) Messages() <-chan Message           { return s.messages }
func (s *Session) Notifications() <-chan Notification { return s.notifications }
func (s *Session) States() <-chan SessionState        { return s.states }

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run connects and serves until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	delays := s.newBackOff()
	for {
		connected, _ := s.serve(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			delays.Reset()
		}

		timer := time.NewTimer(delays.NextBackOff())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// newBackOff grows the reconnect delay from minBackoff up to maxBackoff with
// jitter, so clients dropped together do not redial together. It never
// gives up; Run stops only when ctx ends.
func (s *Session) newBackOff() *backoff.ExponentialBackOff {
	delays := backoff.NewExponentialBackOff()
	delays.InitialInterval = s.minBackoff
	delays.MaxInterval = s.maxBackoff
	delays.MaxElapsedTime = 0
	delays.Reset()
	return delays
}

// Send writes a message over the push connection instead of the REST
// endpoint. The server answers with a regular message event.
func (s *Session) Send(conversationID int64, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrNotConnected
	}

	_ = s.conn.SetWriteDeadline(time.Now().Add(sessionWriteWait))
	return s.conn.WriteJSON(outboundFrame{Type: "message", ConversationID: conversationID, Content: content})
}

func (s *Session) serve(ctx context.Context) (bool, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.url, s.header)
	if err != nil {
		return false, err
	}
	if err := s.setConn(ctx, conn); err != nil {
		_ = s.setConn(ctx, nil)
		return false, err
	}
	defer s.setConn(ctx, nil)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	_ = conn.SetReadDeadline(time.Now().Add(sessionReadWait))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(sessionReadWait))
		s.mu.Lock()
		defer s.mu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(sessionWriteWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		_ = conn.SetReadDeadline(time.Now().Add(sessionReadWait))
		if err := s.dispatch(ctx, data); err != nil {
			return true, err
		}
	}
}

func (s *Session) setConn(ctx context.Context, conn *websocket.Conn) error {
	state := Disconnected
	s.mu.Lock()
	if s.conn != nil && conn == nil {
		s.conn.Close()
	}
	s.conn = conn
	if conn != nil {
		state = Connected
	}
	s.state = state
	s.mu.Unlock()

	return s.emitState(ctx, state)
}

func (s *Session) emitState(ctx context.Context, state SessionState) error {
	// The closing transition must still be delivered after ctx ends so the
	// consumer marks its surfaces stale. When the buffer is full the oldest
	// state gives way; the newest disconnect is never lost.
	if state == Disconnected {
		for {
			select {
			case s.states <- state:
				return nil
			default:
			}
			select {
			case <-s.states:
			default:
			}
		}
	}
	select {
	case s.states <- state:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) dispatch(ctx context.Context, data []byte) error {
	var frame pushFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil
	}

	switch {
	case frame.Type == "message" && frame.Message != nil:
		select {
		case s.messages <- *frame.Message:
		case <-ctx.Done():
			return ctx.Err()
		}
	case frame.Type == "notification" && frame.Notification != nil:
		select {
		case s.notifications <- *frame.Notification:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
