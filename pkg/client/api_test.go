package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAPIListConversationsDerivesReadState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/conversations" || r.URL.Query().Get("page") != "2" || r.URL.Query().Get("limit") != "5" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		if r.Header.Get("Authorization") != "Bearer token-1" {
			t.Errorf("missing bearer token")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"conversations": [
				{"id": 1, "peer_id": 10, "last_message": {"id": 5, "conversation_id": 1, "sender_id": 10, "is_read": false}},
				{"id": 2, "peer_id": 20, "last_message": {"id": 6, "conversation_id": 2, "sender_id": 1, "is_read": false}},
				{"id": 3, "peer_id": 30, "last_message": {"id": 7, "conversation_id": 3, "sender_id": 30, "is_read": true}},
				{"id": 4, "peer_id": 40}
			],
			"pagination": {"page": 2, "limit": 5, "total": 14, "total_pages": 3}
		}`))
	}))
	defer server.Close()

	page, err := NewAPI(server.URL+"/", "token-1", server.Client()).ListConversations(context.Background(), 2, 5)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if !page.HasMore || len(page.Conversations) != 4 {
		t.Fatalf("unexpected page %+v", page)
	}

	want := []ReadState{Unread, Read, Read, Read}
	for i, c := range page.Conversations {
		if c.State != want[i] {
			t.Fatalf("conversation %d: expected %s, got %s", c.ID, want[i], c.State)
		}
	}
}

func TestAPIServerErrorsAreTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	err := NewAPI(server.URL, "t", server.Client()).MarkAllNotificationsRead(context.Background())
	if !IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestAPIUnreachableServerIsTransient(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewAPI(url, "t", nil).ListNotifications(context.Background(), 1, 10)
	if !IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestAPIRejectionIsNotTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"Notification not found"}`))
	}))
	defer server.Close()

	err := NewAPI(server.URL, "t", server.Client()).MarkNotificationRead(context.Background(), 3)
	if IsTransient(err) {
		t.Fatalf("404 must not be transient")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound || apiErr.Message != "Notification not found" {
		t.Fatalf("unexpected error %#v", err)
	}
}

func TestAPISendFirstMessagePostsPeer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/messages" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			PeerID  int64  `json:"peer_id"`
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.PeerID != 20 || body.Content != "Hello" {
			t.Errorf("unexpected body %+v %v", body, err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"conversation":{"id":8},"message":{"id":1,"conversation_id":8,"sender_id":1,"content":"Hello"}}`))
	}))
	defer server.Close()

	message, err := NewAPI(server.URL, "t", server.Client()).SendFirstMessage(context.Background(), 20, "Hello")
	if err != nil {
		t.Fatalf("SendFirstMessage: %v", err)
	}
	if message.ConversationID != 8 || message.RecipientID != 20 {
		t.Fatalf("unexpected message %+v", message)
	}
}

func TestAPISendMessageKeepsRecipient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/conversations/5/messages" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"message":{"id":500,"conversation_id":5,"sender_id":1,"recipient_id":10,"content":"hello"}}`))
	}))
	defer server.Close()

	message, err := NewAPI(server.URL, "t", server.Client()).SendMessage(context.Background(), 5, "hello")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if message.ID != 500 || message.RecipientID != 10 {
		t.Fatalf("unexpected message %+v", message)
	}
}

func TestAPIListNotificationsCarriesUnreadCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"notifications":[{"id":3,"message":"Lesson moved"}],"unread_count":7,"pagination":{"page":1,"total_pages":1}}`))
	}))
	defer server.Close()

	page, err := NewAPI(server.URL, "t", server.Client()).ListNotifications(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if page.UnreadCount != 7 || page.HasMore || len(page.Notifications) != 1 {
		t.Fatalf("unexpected page %+v", page)
	}
}
