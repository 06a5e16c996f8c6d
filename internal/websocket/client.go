package chatws

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"github.com/saeid-a/TutorLinkBack/internal/services"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxFrameSize   = 16 << 10
	inflightWindow = 5 * time.Second
)

// Client is one live push connection.
type Client struct {
	id       string
	registry *Registry
	conn     *websocket.Conn
	userID   string
	role     string
	send     chan []byte
}

type sender interface {
	SendMessage(
		ctx context.Context,
		actorID int64,
		role string,
		conversationID int64,
		content string,
	) (*services.ChatDelivery, error)
}

type inboundFrame struct {
	Type           string `json:"type"`
	ConversationID int64  `json:"conversation_id"`
	Content        string `json:"content"`
}

func newClient(registry *Registry, conn *websocket.Conn, userID string, role string, buffer int) *Client {
	return &Client{
		id:       uuid.NewString(),
		registry: registry,
		conn:     conn,
		userID:   userID,
		role:     role,
		send:     make(chan []byte, buffer),
	}
}

// ReadPump blocks until the socket closes. Inbound "message" frames are
// persisted through service and fanned out through dispatcher.
func (c *Client) ReadPump(service sender, dispatcher *Dispatcher) {
	defer func() {
		c.registry.Unregister(c)
		_ = c.conn.Close()
	}()

	actorID, err := strconv.ParseInt(c.userID, 10, 64)
	if err != nil {
		c.writeError("invalid user")
		return
	}

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var incoming inboundFrame
		if err := json.Unmarshal(payload, &incoming); err != nil {
			c.writeError("invalid message payload")
			continue
		}
		if incoming.Type != EventMessage {
			c.writeError("unsupported message type")
			continue
		}
		if incoming.ConversationID <= 0 {
			c.writeError("invalid conversation id")
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), inflightWindow)
		delivery, err := service.SendMessage(ctx, actorID, c.role, incoming.ConversationID, incoming.Content)
		cancel()
		if errors.Is(err, services.ErrInvalidInput) {
			c.writeError("invalid message content")
			continue
		}
		if err != nil {
			c.writeError("failed to send message")
			continue
		}

		dispatcher.MessageSent(delivery)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Greet queues the handshake frame so the client knows the channel is live.
func (c *Client) Greet() {
	c.enqueue(Event{Type: EventConnected})
}

func (c *Client) writeError(message string) {
	c.enqueue(newErrorEvent(message))
}

func (c *Client) enqueue(event Event) {
	payload, err := encodeEvent(event)
	if err != nil {
		return
	}
	// Route through the registry so a closed queue is never written to.
	c.registry.sendTo(c, payload)
}
