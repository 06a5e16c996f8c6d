package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type ConversationPage struct {
	Conversations []Conversation
	Page          int
	HasMore       bool
}

// MessagePage is newest first, as the server returns it.
type MessagePage struct {
	Messages []Message
	Page     int
	HasMore  bool
}

type NotificationPage struct {
	Notifications []Notification
	UnreadCount   int
	Page          int
	HasMore       bool
}

type pagination struct {
	Page       int `json:"page"`
	TotalPages int `json:"total_pages"`
}

func (p pagination) hasMore() bool { return p.Page < p.TotalPages }

type conversationPayload struct {
	ID          int64    `json:"id"`
	PeerID      int64    `json:"peer_id"`
	LastMessage *Message `json:"last_message"`
}

func (p conversationPayload) conversation() Conversation {
	return Conversation{
		ID:          p.ID,
		PeerID:      p.PeerID,
		LastMessage: p.LastMessage,
		State:       conversationState(p.PeerID, p.LastMessage),
	}
}

// API calls the durable REST endpoints. Network failures and 5xx answers
// come back as *TransientError, other rejections as *APIError.
type API struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewAPI(baseURL string, token string, httpClient *http.Client) *API {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

func (a *API) ListConversations(ctx context.Context, page int, limit int) (*ConversationPage, error) {
	var body struct {
		Conversations []conversationPayload `json:"conversations"`
		Pagination    pagination            `json:"pagination"`
	}
	if err := a.do(ctx, "list conversations", http.MethodGet, "/api/v1/conversations"+pageQuery(page, limit), nil, &body); err != nil {
		return nil, err
	}

	result := &ConversationPage{Page: page, HasMore: body.Pagination.hasMore()}
	for _, c := range body.Conversations {
		result.Conversations = append(result.Conversations, c.conversation())
	}
	return result, nil
}

func (a *API) ListMessages(ctx context.Context, conversationID int64, page int, limit int) (*MessagePage, error) {
	var body struct {
		Messages   []Message  `json:"messages"`
		Pagination pagination `json:"pagination"`
	}
	path := "/api/v1/conversations/" + strconv.FormatInt(conversationID, 10) + "/messages" + pageQuery(page, limit)
	if err := a.do(ctx, "list messages", http.MethodGet, path, nil, &body); err != nil {
		return nil, err
	}
	return &MessagePage{Messages: body.Messages, Page: page, HasMore: body.Pagination.hasMore()}, nil
}

func (a *API) SendMessage(ctx context.Context, conversationID int64, content string) (*Message, error) {
	var body struct {
		Message Message `json:"message"`
	}
	path := "/api/v1/conversations/" + strconv.FormatInt(conversationID, 10) + "/messages"
	if err := a.do(ctx, "send message", http.MethodPost, path, map[string]string{"content": content}, &body); err != nil {
		return nil, err
	}
	return &body.Message, nil
}

// SendFirstMessage writes to a peer without a conversation id; the server
// creates the conversation if needed.
func (a *API) SendFirstMessage(ctx context.Context, peerID int64, content string) (*Message, error) {
	var body struct {
		Message Message `json:"message"`
	}
	payload := map[string]interface{}{"peer_id": peerID, "content": content}
	if err := a.do(ctx, "send first message", http.MethodPost, "/api/v1/messages", payload, &body); err != nil {
		return nil, err
	}
	body.Message.RecipientID = peerID
	return &body.Message, nil
}

func (a *API) MarkConversationRead(ctx context.Context, conversationID int64) error {
	path := "/api/v1/conversations/" + strconv.FormatInt(conversationID, 10) + "/read"
	return a.do(ctx, "mark conversation read", http.MethodPost, path, nil, nil)
}

func (a *API) ListNotifications(ctx context.Context, page int, limit int) (*NotificationPage, error) {
	var body struct {
		Notifications []Notification `json:"notifications"`
		UnreadCount   int            `json:"unread_count"`
		Pagination    pagination     `json:"pagination"`
	}
	if err := a.do(ctx, "list notifications", http.MethodGet, "/api/v1/notifications"+pageQuery(page, limit), nil, &body); err != nil {
		return nil, err
	}
	return &NotificationPage{
		Notifications: body.Notifications,
		UnreadCount:   body.UnreadCount,
		Page:          page,
		HasMore:       body.Pagination.hasMore(),
	}, nil
}

func (a *API) MarkNotificationRead(ctx context.Context, notificationID int64) error {
	path := "/api/v1/notifications/" + strconv.FormatInt(notificationID, 10) + "/read"
	return a.do(ctx, "mark notification read", http.MethodPost, path, nil, nil)
}

func (a *API) MarkAllNotificationsRead(ctx context.Context) error {
	return a.do(ctx, "mark all notifications read", http.MethodPost, "/api/v1/notifications/read-all", nil, nil)
}

func pageQuery(page int, limit int) string {
	values := url.Values{}
	values.Set("page", strconv.Itoa(page))
	values.Set("limit", strconv.Itoa(limit))
	return "?" + values.Encode()
}

func (a *API) do(ctx context.Context, op string, method string, path string, in interface{}, out interface{}) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: %s: encode: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("client: %s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return &TransientError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return &TransientError{Op: op, Err: fmt.Errorf("server returned %d", resp.StatusCode)}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var failure struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&failure)
		return &APIError{Op: op, StatusCode: resp.StatusCode, Message: failure.Error}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransientError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
