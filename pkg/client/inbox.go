package client

import (
	"context"
	"errors"
	"sync"
)

type durableAPI interface {
	ListConversations(ctx context.Context, page int, limit int) (*ConversationPage, error)
	ListMessages(ctx context.Context, conversationID int64, page int, limit int) (*MessagePage, error)
	SendMessage(ctx context.Context, conversationID int64, content string) (*Message, error)
	SendFirstMessage(ctx context.Context, peerID int64, content string) (*Message, error)
	MarkConversationRead(ctx context.Context, conversationID int64) error
	ListNotifications(ctx context.Context, page int, limit int) (*NotificationPage, error)
	MarkNotificationRead(ctx context.Context, notificationID int64) error
	MarkAllNotificationsRead(ctx context.Context) error
}

var _ durableAPI = (*API)(nil)

// Inbox owns the session state of one signed-in user: the conversation list,
// the open message log and the notification feed. Push events and fetch
// completions are applied one at a time under a single lock; network calls
// run outside it and their results are dropped when a reset or a
// conversation switch has superseded them.
//
// A surface is stale until it is first loaded and again after any push
// disconnect. The next call that touches it starts over from page one.
type Inbox struct {
	api      durableAPI
	viewerID int64
	pageSize int

	mu                 sync.Mutex
	conversations      *ConversationStore
	messages           *MessageStore
	feed               *NotificationFeed
	conversationsStale bool
	messagesStale      bool
	notificationsStale bool

	receipts sync.WaitGroup
}

func NewInbox(api durableAPI, viewerID int64, pageSize int) *Inbox {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &Inbox{
		api:                api,
		viewerID:           viewerID,
		pageSize:           pageSize,
		conversations:      NewConversationStore(viewerID),
		messages:           NewMessageStore(),
		feed:               NewNotificationFeed(),
		conversationsStale: true,
		notificationsStale: true,
	}
}

// Run feeds session events into the inbox until ctx ends.
func (i *Inbox) Run(ctx context.Context, session *Session) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case message := <-session.Messages():
			i.HandleMessage(ctx, message)
		case notification := <-session.Notifications():
			i.HandleNotification(notification)
		case state := <-session.States():
			i.HandleConnectionState(state)
		}
	}
}

func (i *Inbox) HandleConnectionState(state SessionState) {
	if state != Disconnected {
		return
	}
	i.mu.Lock()
	i.conversationsStale = true
	i.messagesStale = true
	i.notificationsStale = true
	i.mu.Unlock()
}

// HandleMessage applies a pushed or just-sent message. A peer message for the
// open conversation is acknowledged right away.
func (i *Inbox) HandleMessage(ctx context.Context, message Message) {
	i.mu.Lock()
	current, open := i.messages.Current()
	_ = i.conversations.Apply(ConversationMessage{Message: message})

	active, bound := i.conversations.Active()
	if open && current == DraftConversationID && bound && active == message.ConversationID {
		i.messages.Promote(message.ConversationID)
	}
	_ = i.messages.Apply(MessageAppended{Message: message})
	acknowledge := bound && active == message.ConversationID && message.SenderID != i.viewerID
	i.mu.Unlock()

	if acknowledge {
		i.receipts.Add(1)
		go func() {
			defer i.receipts.Done()
			// Failure leaves the server flag unset; the next open retries.
			_ = i.api.MarkConversationRead(ctx, message.ConversationID)
		}()
	}
}

func (i *Inbox) HandleNotification(notification Notification) {
	i.mu.Lock()
	defer i.mu.Unlock()
	_ = i.feed.Apply(NotificationPushed{Notification: notification})
}

// LoadConversations fetches the next page, or the first one when the list is
// stale.
func (i *Inbox) LoadConversations(ctx context.Context) error {
	i.mu.Lock()
	if i.conversationsStale {
		i.conversations.Reset()
		i.conversationsStale = false
	}
	page, more := i.conversations.NextPage()
	generation := i.conversations.Generation()
	i.mu.Unlock()

	if !more {
		return nil
	}
	result, err := i.api.ListConversations(ctx, page, i.pageSize)
	if err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	return ignoreStale(i.conversations.Apply(ConversationsLoaded{
		Generation:    generation,
		Page:          page,
		Conversations: result.Conversations,
		HasMore:       result.HasMore,
	}))
}

// OpenConversation binds the message panel to conversationID, marks it read
// and loads its newest page. Opening counts as seeing.
func (i *Inbox) OpenConversation(ctx context.Context, conversationID int64) error {
	i.mu.Lock()
	_ = i.conversations.Apply(ConversationOpened{ConversationID: conversationID})
	generation := i.messages.Open(conversationID)
	i.messagesStale = false
	i.mu.Unlock()

	if conversationID == DraftConversationID {
		return nil
	}

	markErr := i.api.MarkConversationRead(ctx, conversationID)
	loadErr := i.loadMessages(ctx, conversationID, generation, 1)
	return errors.Join(markErr, loadErr)
}

// StartConversation opens the existing conversation with peerID or a local
// draft that is persisted by the first Send.
func (i *Inbox) StartConversation(ctx context.Context, peerID int64) error {
	i.mu.Lock()
	existing, found := i.conversations.FindByPeer(peerID)
	if !found || existing.IsDraft() {
		_ = i.conversations.Apply(DraftStarted{PeerID: peerID})
		_ = i.conversations.Apply(ConversationOpened{ConversationID: DraftConversationID})
		i.messages.Open(DraftConversationID)
		i.messagesStale = false
		i.mu.Unlock()
		return nil
	}
	i.mu.Unlock()

	return i.OpenConversation(ctx, existing.ID)
}

func (i *Inbox) CloseConversation() {
	i.mu.Lock()
	defer i.mu.Unlock()
	_ = i.conversations.Apply(ConversationClosed{})
	i.messages.Close()
}

func (i *Inbox) LoadOlderMessages(ctx context.Context) error {
	i.mu.Lock()
	conversationID, open := i.messages.Current()
	if !open {
		i.mu.Unlock()
		return ErrNoOpenConversation
	}
	if i.messagesStale {
		i.messages.Open(conversationID)
		i.messagesStale = false
	}
	page, more := i.messages.NextPage()
	generation := i.messages.Generation()
	i.mu.Unlock()

	if !more {
		return nil
	}
	return i.loadMessages(ctx, conversationID, generation, page)
}

func (i *Inbox) loadMessages(ctx context.Context, conversationID int64, generation uint64, page int) error {
	result, err := i.api.ListMessages(ctx, conversationID, page, i.pageSize)
	if err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	return ignoreStale(i.messages.Apply(MessagesLoaded{
		ConversationID: conversationID,
		Generation:     generation,
		Page:           page,
		Messages:       result.Messages,
		HasMore:        result.HasMore,
	}))
}

// Send posts content to the open conversation. A draft is persisted by its
// first message and takes the id the server assigns.
func (i *Inbox) Send(ctx context.Context, content string) (*Message, error) {
	i.mu.Lock()
	conversationID, open := i.messages.Current()
	conversation, known := i.conversations.Get(conversationID)
	i.mu.Unlock()
	if !open || (conversationID == DraftConversationID && !known) {
		return nil, ErrNoOpenConversation
	}
	// Zero when the conversation is not loaded; the server's reply then
	// carries the recipient.
	peerID := conversation.PeerID

	var (
		message *Message
		err     error
	)
	if conversationID == DraftConversationID {
		message, err = i.api.SendFirstMessage(ctx, peerID, content)
	} else {
		message, err = i.api.SendMessage(ctx, conversationID, content)
	}
	if err != nil {
		return nil, err
	}
	if message.RecipientID == 0 {
		message.RecipientID = peerID
	}

	i.HandleMessage(ctx, *message)
	return message, nil
}

// MarkConversationRead flips the local flag first, then records the receipt.
func (i *Inbox) MarkConversationRead(ctx context.Context, conversationID int64) error {
	i.mu.Lock()
	err := i.conversations.Apply(ConversationMarkedRead{ConversationID: conversationID})
	i.mu.Unlock()
	if err != nil && !errors.Is(err, ErrUnknownConversation) {
		return err
	}
	return i.api.MarkConversationRead(ctx, conversationID)
}

func (i *Inbox) LoadNotifications(ctx context.Context) error {
	i.mu.Lock()
	if i.notificationsStale {
		i.feed.Reset()
		i.notificationsStale = false
	}
	page, more := i.feed.NextPage()
	generation := i.feed.Generation()
	i.mu.Unlock()

	if !more {
		return nil
	}
	result, err := i.api.ListNotifications(ctx, page, i.pageSize)
	if err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	return ignoreStale(i.feed.Apply(NotificationsLoaded{
		Generation:    generation,
		Page:          page,
		Notifications: result.Notifications,
		UnreadCount:   result.UnreadCount,
		HasMore:       result.HasMore,
	}))
}

// MarkNotificationRead records the read on the server before touching the
// counter, so a failed call leaves the feed unchanged.
func (i *Inbox) MarkNotificationRead(ctx context.Context, notificationID int64) error {
	i.mu.Lock()
	notification, ok := i.feed.Get(notificationID)
	i.mu.Unlock()
	if !ok {
		return ErrUnknownNotification
	}
	if notification.IsRead {
		return nil
	}

	if err := i.api.MarkNotificationRead(ctx, notificationID); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	return i.feed.Apply(NotificationMarkedRead{NotificationID: notificationID})
}

func (i *Inbox) MarkAllNotificationsRead(ctx context.Context) error {
	if err := i.api.MarkAllNotificationsRead(ctx); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	return i.feed.Apply(AllNotificationsMarkedRead{})
}

func (i *Inbox) Conversations() []Conversation {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.conversations.Conversations()
}

func (i *Inbox) AnyUnread() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.conversations.AnyUnread()
}

func (i *Inbox) Messages() []Message {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.messages.Messages()
}

func (i *Inbox) Notifications() ([]Notification, int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.feed.Notifications(), i.feed.UnreadCount()
}

func ignoreStale(err error) error {
	if errors.Is(err, ErrStaleFetch) {
		return nil
	}
	return err
}
