package client

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition   = errors.New("client: invalid read state transition")
	ErrStaleFetch          = errors.New("client: fetch result superseded")
	ErrUnknownConversation = errors.New("client: conversation not loaded")
	ErrUnknownNotification = errors.New("client: notification not loaded")
	ErrConversationExists  = errors.New("client: conversation with peer already exists")
	ErrNoOpenConversation  = errors.New("client: no conversation is open")
	ErrNotConnected        = errors.New("client: push channel not connected")
)

// TransientError marks a failure worth retrying: the server was unreachable
// or answered 5xx. Local state is left as it was before the call.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("client: %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// APIError is a request the server rejected. Retrying it unchanged will not
// help.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("client: %s: %d %s", e.Op, e.StatusCode, e.Message)
}
