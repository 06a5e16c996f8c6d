package client

import "slices"

// MessageEvent is one transition of a MessageStore.
type MessageEvent interface {
	applyTo(s *MessageStore) error
}

// MessagesLoaded carries one page as the server returns it, newest first.
type MessagesLoaded struct {
	ConversationID int64
	Generation     uint64
	Page           int
	Messages       []Message
	HasMore        bool
}

type MessageAppended struct {
	Message Message
}

// MessageStore holds the log of the open conversation, oldest first. Each
// Open bumps the generation so that pages requested for a previous
// conversation are rejected when they resolve.
type MessageStore struct {
	conversationID int64
	open           bool
	generation     uint64
	messages       []Message
	seen           map[int64]struct{}
	nextPage       int
	hasMore        bool
}

func NewMessageStore() *MessageStore {
	return &MessageStore{seen: make(map[int64]struct{})}
}

func (s *MessageStore) Apply(event MessageEvent) error {
	return event.applyTo(s)
}

// Open switches to conversationID with an empty log and returns the
// generation that fetches for it must carry.
func (s *MessageStore) Open(conversationID int64) uint64 {
	s.reset()
	s.conversationID = conversationID
	s.open = true
	s.hasMore = conversationID != DraftConversationID
	return s.generation
}

func (s *MessageStore) Close() {
	s.reset()
}

func (s *MessageStore) reset() {
	s.generation++
	s.conversationID = 0
	s.open = false
	s.messages = nil
	s.seen = make(map[int64]struct{})
	s.nextPage = 1
	s.hasMore = false
}

// Promote rebinds an open draft to the id the server assigned on first send.
// The log is kept.
func (s *MessageStore) Promote(conversationID int64) {
	if s.open && s.conversationID == DraftConversationID {
		s.conversationID = conversationID
	}
}

func (s *MessageStore) Current() (int64, bool) { return s.conversationID, s.open }

func (s *MessageStore) Generation() uint64 { return s.generation }

func (s *MessageStore) NextPage() (int, bool) { return s.nextPage, s.hasMore }

func (s *MessageStore) Messages() []Message {
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *MessageStore) add(m Message) bool {
	if _, dup := s.seen[m.ID]; dup {
		return false
	}
	s.seen[m.ID] = struct{}{}
	s.messages = append(s.messages, m)
	return true
}

// Offset pagination shifts when new messages arrive between page requests,
// so consecutive pages can overlap. Overlapping entries are dropped.
func (e MessagesLoaded) applyTo(s *MessageStore) error {
	if !s.open || e.Generation != s.generation || e.ConversationID != s.conversationID || e.Page != s.nextPage {
		return ErrStaleFetch
	}

	added := false
	for i := len(e.Messages) - 1; i >= 0; i-- {
		if s.add(e.Messages[i]) {
			added = true
		}
	}
	if added {
		slices.SortStableFunc(s.messages, compareMessages)
	}
	s.nextPage = e.Page + 1
	s.hasMore = e.HasMore
	return nil
}

// Messages for other conversations are ignored here; the conversation list
// still picks them up.
func (e MessageAppended) applyTo(s *MessageStore) error {
	if !s.open || e.Message.ConversationID != s.conversationID {
		return nil
	}
	if !s.add(e.Message) {
		return nil
	}

	n := len(s.messages)
	if n > 1 && compareMessages(s.messages[n-2], s.messages[n-1]) > 0 {
		slices.SortStableFunc(s.messages, compareMessages)
	}
	return nil
}
