// Package client keeps a signed-in user's conversations, open message log and
// notification feed consistent with the server while push events and
// paginated fetches interleave.
package client

import "time"

// DraftConversationID identifies a conversation that exists only locally
// until its first message is sent.
const DraftConversationID int64 = 0

type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	RecipientID    int64     `json:"recipient_id,omitempty"`
	Content        string    `json:"content"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}

type Notification struct {
	ID         int64     `json:"id"`
	ReceiverID int64     `json:"receiver_id"`
	Message    string    `json:"message"`
	Link       string    `json:"link"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

func (n Notification) State() ReadState {
	if n.IsRead {
		return Read
	}
	return Unread
}

type Conversation struct {
	ID          int64
	PeerID      int64
	LastMessage *Message
	State       ReadState
}

func (c Conversation) IsRead() bool  { return c.State == Read }
func (c Conversation) IsDraft() bool { return c.ID == DraftConversationID }

// conversationState derives the read flag of a fetched conversation: read
// when empty, when the viewer wrote last, or when the last message was read.
func conversationState(peerID int64, last *Message) ReadState {
	if last == nil || last.SenderID != peerID || last.IsRead {
		return Read
	}
	return Unread
}

func compareMessages(a, b Message) int {
	switch {
	case a.CreatedAt.Before(b.CreatedAt):
		return -1
	case a.CreatedAt.After(b.CreatedAt):
		return 1
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	default:
		return 0
	}
}
