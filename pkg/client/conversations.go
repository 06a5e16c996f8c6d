package client

import "errors"

// ConversationEvent is one transition of a ConversationStore.
type ConversationEvent interface {
	applyTo(s *ConversationStore) error
}

// ConversationsLoaded appends a fetched page. The server orders pages by
// recency; the store never re-sorts them.
type ConversationsLoaded struct {
	Generation    uint64
	Page          int
	Conversations []Conversation
	HasMore       bool
}

// ConversationMessage is a message push for any conversation of the viewer.
type ConversationMessage struct {
	Message Message
}

type ConversationMarkedRead struct {
	ConversationID int64
}

// ConversationOpened binds the conversation shown in the message panel and
// marks it read. While bound, peer messages keep it read.
type ConversationOpened struct {
	ConversationID int64
}

type ConversationClosed struct{}

// DraftStarted adds a local stub for a peer the viewer has never written to.
type DraftStarted struct {
	PeerID int64
}

// ConversationStore is the ordered conversation list of one viewer. The
// most recently touched conversation is always first.
type ConversationStore struct {
	viewerID   int64
	list       []Conversation
	active     int64
	hasActive  bool
	generation uint64
	nextPage   int
	hasMore    bool
}

func NewConversationStore(viewerID int64) *ConversationStore {
	return &ConversationStore{
		viewerID: viewerID,
		nextPage: 1,
		hasMore:  true,
	}
}

func (s *ConversationStore) Apply(event ConversationEvent) error {
	return event.applyTo(s)
}

// Reset drops every loaded conversation and invalidates fetches in flight.
// The open conversation stays bound.
func (s *ConversationStore) Reset() {
	s.list = nil
	s.generation++
	s.nextPage = 1
	s.hasMore = true
}

func (s *ConversationStore) Generation() uint64 { return s.generation }

// NextPage reports the page to fetch next and whether the server has one.
func (s *ConversationStore) NextPage() (int, bool) { return s.nextPage, s.hasMore }

func (s *ConversationStore) Active() (int64, bool) { return s.active, s.hasActive }

func (s *ConversationStore) Conversations() []Conversation {
	out := make([]Conversation, len(s.list))
	copy(out, s.list)
	return out
}

func (s *ConversationStore) Get(conversationID int64) (Conversation, bool) {
	if idx := s.indexOf(conversationID); idx >= 0 {
		return s.list[idx], true
	}
	return Conversation{}, false
}

func (s *ConversationStore) FindByPeer(peerID int64) (Conversation, bool) {
	if idx := s.indexOfPeer(peerID); idx >= 0 {
		return s.list[idx], true
	}
	return Conversation{}, false
}

// AnyUnread covers loaded conversations only; an unread conversation on a
// page not fetched yet does not count.
func (s *ConversationStore) AnyUnread() bool {
	for _, c := range s.list {
		if c.State == Unread {
			return true
		}
	}
	return false
}

func (s *ConversationStore) indexOf(conversationID int64) int {
	for i, c := range s.list {
		if c.ID == conversationID {
			return i
		}
	}
	return -1
}

func (s *ConversationStore) indexOfPeer(peerID int64) int {
	for i, c := range s.list {
		if c.PeerID == peerID {
			return i
		}
	}
	return -1
}

// peerOf is the other participant of m, or 0 when the viewer sent m and
// its recipient is unknown.
func (s *ConversationStore) peerOf(m Message) int64 {
	if m.SenderID == s.viewerID {
		return m.RecipientID
	}
	return m.SenderID
}

func (s *ConversationStore) moveToHead(idx int, c Conversation) {
	if idx >= 0 {
		s.list = append(s.list[:idx], s.list[idx+1:]...)
	}
	s.list = append([]Conversation{c}, s.list...)
}

func (e ConversationsLoaded) applyTo(s *ConversationStore) error {
	if e.Generation != s.generation || e.Page != s.nextPage {
		return ErrStaleFetch
	}
	for _, c := range e.Conversations {
		// A push may already have brought this conversation to the head
		// with a newer last message.
		if idx := s.indexOf(c.ID); idx >= 0 {
			if s.list[idx].PeerID == 0 {
				s.list[idx].PeerID = c.PeerID
			}
			continue
		}
		s.list = append(s.list, c)
	}
	s.nextPage = e.Page + 1
	s.hasMore = e.HasMore
	return nil
}

func (e ConversationMessage) applyTo(s *ConversationStore) error {
	m := e.Message
	idx := s.indexOf(m.ConversationID)

	var c Conversation
	switch {
	case idx >= 0:
		c = s.list[idx]
		// A stub built from a message without a recipient learns its peer
		// from any later copy of the message, the push echo included.
		if c.PeerID == 0 {
			c.PeerID = s.peerOf(m)
			s.list[idx].PeerID = c.PeerID
		}
		if c.LastMessage != nil && c.LastMessage.ID == m.ID {
			return nil
		}
	default:
		peerID := s.peerOf(m)
		c = Conversation{ID: m.ConversationID, PeerID: peerID, State: Read}

		if draft := s.indexOfPeer(peerID); draft >= 0 && s.list[draft].IsDraft() {
			idx = draft
			if s.hasActive && s.active == DraftConversationID {
				s.active = m.ConversationID
			}
		}
	}

	event := readEventIncoming
	if m.SenderID == s.viewerID || (s.hasActive && s.active == c.ID) {
		event = readEventMarkRead
	}
	state, err := conversationReads.next(c.State, event)
	if err != nil {
		return err
	}

	last := m
	c.LastMessage = &last
	c.State = state
	s.moveToHead(idx, c)
	return nil
}

func (e ConversationMarkedRead) applyTo(s *ConversationStore) error {
	idx := s.indexOf(e.ConversationID)
	if idx < 0 {
		return ErrUnknownConversation
	}
	state, err := conversationReads.next(s.list[idx].State, readEventMarkRead)
	if err != nil {
		return err
	}
	s.list[idx].State = state
	return nil
}

func (e ConversationOpened) applyTo(s *ConversationStore) error {
	s.active = e.ConversationID
	s.hasActive = true
	err := ConversationMarkedRead{ConversationID: e.ConversationID}.applyTo(s)
	if errors.Is(err, ErrUnknownConversation) {
		return nil
	}
	return err
}

func (ConversationClosed) applyTo(s *ConversationStore) error {
	s.hasActive = false
	s.active = 0
	if idx := s.indexOf(DraftConversationID); idx >= 0 {
		s.list = append(s.list[:idx], s.list[idx+1:]...)
	}
	return nil
}

func (e DraftStarted) applyTo(s *ConversationStore) error {
	if idx := s.indexOfPeer(e.PeerID); idx >= 0 {
		if s.list[idx].IsDraft() {
			return nil
		}
		return ErrConversationExists
	}
	idx := s.indexOf(DraftConversationID)
	s.moveToHead(idx, Conversation{ID: DraftConversationID, PeerID: e.PeerID, State: Read})
	return nil
}
