package client

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"
	"time"
)

const (
	viewer = int64(1)
	peerA  = int64(10)
	peerB  = int64(20)
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 5, 4, hour, minute, 0, 0, time.UTC)
}

func loadedStore(t *testing.T, conversations ...Conversation) *ConversationStore {
	t.Helper()
	store := NewConversationStore(viewer)
	err := store.Apply(ConversationsLoaded{
		Generation:    store.Generation(),
		Page:          1,
		Conversations: conversations,
		HasMore:       true,
	})
	if err != nil {
		t.Fatalf("load page: %v", err)
	}
	return store
}

func ids(conversations []Conversation) []int64 {
	out := make([]int64, len(conversations))
	for i, c := range conversations {
		out[i] = c.ID
	}
	return out
}

func TestPeerMessageMovesConversationToHeadAsUnread(t *testing.T) {
	store := loadedStore(t,
		Conversation{ID: 1, PeerID: peerA, State: Unread, LastMessage: &Message{ID: 100, ConversationID: 1, SenderID: peerA, CreatedAt: at(10, 0)}},
		Conversation{ID: 2, PeerID: peerB, State: Read, LastMessage: &Message{ID: 90, ConversationID: 2, SenderID: peerB, IsRead: true, CreatedAt: at(9, 0)}},
	)

	err := store.Apply(ConversationMessage{Message: Message{ID: 101, ConversationID: 2, SenderID: peerB, Content: "hi", CreatedAt: at(10, 5)}})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	got := store.Conversations()
	if !reflect.DeepEqual(ids(got), []int64{2, 1}) {
		t.Fatalf("expected [2 1], got %v", ids(got))
	}
	if got[0].State != Unread || got[0].LastMessage.Content != "hi" || !got[0].LastMessage.CreatedAt.Equal(at(10, 5)) {
		t.Fatalf("unexpected head %+v", got[0])
	}
	if got[1].State != Unread {
		t.Fatalf("untouched conversation must keep its state, got %s", got[1].State)
	}
}

func TestReadThenPeerMessageIsUnreadAgain(t *testing.T) {
	store := loadedStore(t,
		Conversation{ID: 3, PeerID: peerA, State: Unread, LastMessage: &Message{ID: 7, ConversationID: 3, SenderID: peerA}},
	)

	if err := store.Apply(ConversationMarkedRead{ConversationID: 3}); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := store.Apply(ConversationMessage{Message: Message{ID: 8, ConversationID: 3, SenderID: peerA}}); err != nil {
		t.Fatalf("push: %v", err)
	}

	c, _ := store.Get(3)
	if c.State != Unread {
		t.Fatalf("newer peer content must supersede the read, got %s", c.State)
	}
	if !store.AnyUnread() {
		t.Fatalf("expected global unread indicator")
	}
}

// Open counts as seen, and that wins over "a peer push makes a read
// conversation unread" while the conversation is bound. After close the
// push rule applies again.
func TestOpenConversationSuppressesUnread(t *testing.T) {
	store := loadedStore(t,
		Conversation{ID: 3, PeerID: peerA, State: Unread, LastMessage: &Message{ID: 7, ConversationID: 3, SenderID: peerA}},
		Conversation{ID: 4, PeerID: peerB, State: Read},
	)

	if err := store.Apply(ConversationOpened{ConversationID: 3}); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Apply(ConversationMessage{Message: Message{ID: 8, ConversationID: 3, SenderID: peerA}}); err != nil {
		t.Fatalf("push: %v", err)
	}

	c, _ := store.Get(3)
	if c.State != Read {
		t.Fatalf("open conversation must stay read, got %s", c.State)
	}
	if store.AnyUnread() {
		t.Fatalf("expected no unread conversations")
	}

	if err := store.Apply(ConversationClosed{}); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := store.Apply(ConversationMessage{Message: Message{ID: 9, ConversationID: 3, SenderID: peerA}}); err != nil {
		t.Fatalf("push: %v", err)
	}
	if c, _ := store.Get(3); c.State != Unread {
		t.Fatalf("closed conversation must turn unread, got %s", c.State)
	}
}

func TestOwnMessageKeepsConversationRead(t *testing.T) {
	store := loadedStore(t, Conversation{ID: 5, PeerID: peerA, State: Unread})

	if err := store.Apply(ConversationMessage{Message: Message{ID: 1, ConversationID: 5, SenderID: viewer, RecipientID: peerA}}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if c, _ := store.Get(5); c.State != Read {
		t.Fatalf("replying implies reading, got %s", c.State)
	}
}

func TestMarkReadIsIdempotent(t *testing.T) {
	store := loadedStore(t,
		Conversation{ID: 1, PeerID: peerA, State: Unread},
		Conversation{ID: 2, PeerID: peerB, State: Unread},
	)

	if err := store.Apply(ConversationMarkedRead{ConversationID: 1}); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	once := store.Conversations()

	if err := store.Apply(ConversationMarkedRead{ConversationID: 1}); err != nil {
		t.Fatalf("second mark: %v", err)
	}
	if !reflect.DeepEqual(once, store.Conversations()) {
		t.Fatalf("second markRead changed state: %+v vs %+v", once, store.Conversations())
	}

	if err := store.Apply(ConversationMarkedRead{ConversationID: 99}); !errors.Is(err, ErrUnknownConversation) {
		t.Fatalf("expected ErrUnknownConversation, got %v", err)
	}
}

func TestUnknownConversationIsSynthesizedAtHead(t *testing.T) {
	store := loadedStore(t, Conversation{ID: 1, PeerID: peerA, State: Read})

	if err := store.Apply(ConversationMessage{Message: Message{ID: 50, ConversationID: 8, SenderID: peerB, Content: "Hello"}}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	got := store.Conversations()
	if got[0].ID != 8 || got[0].PeerID != peerB || got[0].State != Unread {
		t.Fatalf("unexpected stub %+v", got[0])
	}

	if err := store.Apply(ConversationMessage{Message: Message{ID: 51, ConversationID: 9, SenderID: viewer, RecipientID: peerB + 1}}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if c, _ := store.Get(9); c.PeerID != peerB+1 || c.State != Read {
		t.Fatalf("own first message must derive the peer from the recipient, got %+v", c)
	}
}

func TestPagesAppendWithoutResorting(t *testing.T) {
	store := loadedStore(t,
		Conversation{ID: 1, PeerID: peerA, LastMessage: &Message{ID: 1, CreatedAt: at(9, 0)}},
	)

	// Page two holds a conversation with a later timestamp than page one.
	// The server is the authority for historical order.
	err := store.Apply(ConversationsLoaded{
		Generation: store.Generation(),
		Page:       2,
		Conversations: []Conversation{
			{ID: 2, PeerID: peerB, LastMessage: &Message{ID: 2, CreatedAt: at(11, 0)}},
		},
	})
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if !reflect.DeepEqual(ids(store.Conversations()), []int64{1, 2}) {
		t.Fatalf("expected tail append, got %v", ids(store.Conversations()))
	}
	if _, more := store.NextPage(); more {
		t.Fatalf("expected no more pages")
	}
}

func TestPageSkipsConversationsAlreadyPushed(t *testing.T) {
	store := NewConversationStore(viewer)
	if err := store.Apply(ConversationMessage{Message: Message{ID: 70, ConversationID: 4, SenderID: peerA, CreatedAt: at(12, 0)}}); err != nil {
		t.Fatalf("push: %v", err)
	}

	err := store.Apply(ConversationsLoaded{
		Generation: store.Generation(),
		Page:       1,
		Conversations: []Conversation{
			{ID: 4, PeerID: peerA, LastMessage: &Message{ID: 69, CreatedAt: at(11, 0)}, State: Read},
			{ID: 5, PeerID: peerB},
		},
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	got := store.Conversations()
	if !reflect.DeepEqual(ids(got), []int64{4, 5}) {
		t.Fatalf("expected [4 5], got %v", ids(got))
	}
	if got[0].LastMessage.ID != 70 || got[0].State != Unread {
		t.Fatalf("pushed state must win over the older page, got %+v", got[0])
	}
}

func TestStalePageIsRejected(t *testing.T) {
	store := NewConversationStore(viewer)
	generation := store.Generation()
	store.Reset()

	err := store.Apply(ConversationsLoaded{Generation: generation, Page: 1, Conversations: []Conversation{{ID: 1}}})
	if !errors.Is(err, ErrStaleFetch) {
		t.Fatalf("expected ErrStaleFetch, got %v", err)
	}
	if len(store.Conversations()) != 0 {
		t.Fatalf("stale page must not be applied")
	}

	if err := store.Apply(ConversationsLoaded{Generation: store.Generation(), Page: 2}); !errors.Is(err, ErrStaleFetch) {
		t.Fatalf("out of order page must be rejected, got %v", err)
	}
}

func TestDraftIsPromotedByFirstMessage(t *testing.T) {
	store := loadedStore(t, Conversation{ID: 1, PeerID: peerA, State: Read})

	if err := store.Apply(DraftStarted{PeerID: peerB}); err != nil {
		t.Fatalf("draft: %v", err)
	}
	if err := store.Apply(ConversationOpened{ConversationID: DraftConversationID}); err != nil {
		t.Fatalf("open draft: %v", err)
	}
	if err := store.Apply(DraftStarted{PeerID: peerA}); !errors.Is(err, ErrConversationExists) {
		t.Fatalf("expected ErrConversationExists, got %v", err)
	}

	if err := store.Apply(ConversationMessage{Message: Message{ID: 5, ConversationID: 33, SenderID: viewer, RecipientID: peerB}}); err != nil {
		t.Fatalf("first message: %v", err)
	}

	got := store.Conversations()
	if !reflect.DeepEqual(ids(got), []int64{33, 1}) {
		t.Fatalf("expected draft replaced by 33, got %v", ids(got))
	}
	if active, ok := store.Active(); !ok || active != 33 {
		t.Fatalf("expected active binding to follow the promotion, got %d %t", active, ok)
	}
}

func TestClosingDiscardsUnsentDraft(t *testing.T) {
	store := loadedStore(t, Conversation{ID: 1, PeerID: peerA})
	_ = store.Apply(DraftStarted{PeerID: peerB})
	_ = store.Apply(ConversationOpened{ConversationID: DraftConversationID})
	_ = store.Apply(ConversationClosed{})

	if !reflect.DeepEqual(ids(store.Conversations()), []int64{1}) {
		t.Fatalf("expected draft removed, got %v", ids(store.Conversations()))
	}
}

func TestMostRecentlyTouchedConversationLeads(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var initial []Conversation
	for id := int64(1); id <= 8; id++ {
		initial = append(initial, Conversation{ID: id, PeerID: 100 + id, State: Read})
	}
	store := loadedStore(t, initial...)

	var touched []int64
	for step := 0; step < 500; step++ {
		conversationID := int64(rng.Intn(12) + 1)
		sender := 100 + conversationID
		if rng.Intn(3) == 0 {
			sender = viewer
		}
		message := Message{ID: int64(step + 1000), ConversationID: conversationID, SenderID: sender, RecipientID: 100 + conversationID}

		switch rng.Intn(4) {
		case 0:
			_ = store.Apply(ConversationMarkedRead{ConversationID: conversationID})
		default:
			if err := store.Apply(ConversationMessage{Message: message}); err != nil {
				t.Fatalf("step %d: %v", step, err)
			}
			touched = moveFront(touched, conversationID)
		}

		got := ids(store.Conversations())
		if !reflect.DeepEqual(got[:len(touched)], touched) {
			t.Fatalf("step %d: expected touched prefix %v, got %v", step, touched, got)
		}
		assertUnreadConsistent(t, store)
	}
}

func moveFront(order []int64, id int64) []int64 {
	out := []int64{id}
	for _, existing := range order {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

func assertUnreadConsistent(t *testing.T, store *ConversationStore) {
	t.Helper()
	want := false
	for _, c := range store.Conversations() {
		if !c.IsRead() {
			want = true
		}
	}
	if store.AnyUnread() != want {
		t.Fatalf("AnyUnread=%t but loaded conversations say %t", store.AnyUnread(), want)
	}
}

func TestStubWithoutRecipientLearnsPeerFromEcho(t *testing.T) {
	store := loadedStore(t, Conversation{ID: 9, PeerID: peerB})

	sent := Message{ID: 500, ConversationID: 5, SenderID: viewer, CreatedAt: at(12, 0)}
	if err := store.Apply(ConversationMessage{Message: sent}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if c, _ := store.Get(5); c.PeerID != 0 {
		t.Fatalf("expected unknown peer before the echo, got %d", c.PeerID)
	}

	echo := sent
	echo.RecipientID = peerA
	if err := store.Apply(ConversationMessage{Message: echo}); err != nil {
		t.Fatalf("echo: %v", err)
	}
	c, _ := store.Get(5)
	if c.PeerID != peerA || c.LastMessage.ID != 500 {
		t.Fatalf("expected peer %d with last message 500, got %+v", peerA, c)
	}
	if found, ok := store.FindByPeer(peerA); !ok || found.ID != 5 {
		t.Fatalf("expected peer lookup to find conversation 5, got %+v", found)
	}
}

func TestLoadedPageFillsUnknownPeer(t *testing.T) {
	store := loadedStore(t, Conversation{ID: 9, PeerID: peerB})
	if err := store.Apply(ConversationMessage{Message: Message{ID: 500, ConversationID: 5, SenderID: viewer}}); err != nil {
		t.Fatalf("send: %v", err)
	}

	err := store.Apply(ConversationsLoaded{
		Generation:    store.Generation(),
		Page:          2,
		Conversations: []Conversation{{ID: 5, PeerID: peerA}},
	})
	if err != nil {
		t.Fatalf("load page 2: %v", err)
	}
	if c, _ := store.Get(5); c.PeerID != peerA {
		t.Fatalf("expected page to supply peer %d, got %d", peerA, c.PeerID)
	}
	if got := ids(store.Conversations()); !reflect.DeepEqual(got, []int64{5, 9}) {
		t.Fatalf("expected [5 9], got %v", got)
	}
}
