package models

import "time"

type Conversation struct {
	ID        int64     `json:"id"`
	ParentID  int64     `json:"parent_id"`
	TutorID   int64     `json:"tutor_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PeerOf returns the other participant for viewerID.
func (c Conversation) PeerOf(viewerID int64) int64 {
	if viewerID == c.ParentID {
		return c.TutorID
	}
	return c.ParentID
}

type ChatMessage struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	Content        string    `json:"content"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}

type ConversationSummary struct {
	Conversation
	PeerID      int64        `json:"peer_id"`
	LastMessage *ChatMessage `json:"last_message,omitempty"`
	UnreadCount int          `json:"unread_count"`
}
