package models

import "time"

type Notification struct {
	ID         int64     `json:"id"`
	ReceiverID int64     `json:"receiver_id"`
	Message    string    `json:"message"`
	Link       string    `json:"link"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
	Total         int            `json:"-"`
}
