package chatws

import (
	"encoding/json"

	"github.com/saeid-a/TutorLinkBack/internal/models"
)

const (
	EventConnected    = "connected"
	EventMessage      = "message"
	EventNotification = "notification"
	EventError        = "error"
)

// Event is the only frame shape written to push sockets.
type Event struct {
	Type         string               `json:"type"`
	Message      *MessagePayload      `json:"message,omitempty"`
	Notification *models.Notification `json:"notification,omitempty"`
	Error        string               `json:"error,omitempty"`
}

// MessagePayload carries the durable message plus the recipient so a client
// that has never seen the conversation can build a stub for it.
type MessagePayload struct {
	models.ChatMessage
	RecipientID int64 `json:"recipient_id"`
}

func NewMessageEvent(message models.ChatMessage, recipientID int64) Event {
	return Event{
		Type:    EventMessage,
		Message: &MessagePayload{ChatMessage: message, RecipientID: recipientID},
	}
}

func NewNotificationEvent(notification models.Notification) Event {
	return Event{Type: EventNotification, Notification: &notification}
}

func newErrorEvent(message string) Event {
	return Event{Type: EventError, Error: message}
}

func encodeEvent(event Event) ([]byte, error) {
	return json.Marshal(event)
}
