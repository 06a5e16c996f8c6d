package client

// ReadState is the read flag of a conversation or a notification. Changes go
// through a readMachine so that only the listed transitions can happen.
type ReadState uint8

const (
	Unread ReadState = iota
	Read
)

func (s ReadState) String() string {
	if s == Read {
		return "read"
	}
	return "unread"
}

type readEvent uint8

const (
	readEventMarkRead readEvent = iota
	readEventIncoming
)

type readMachine map[ReadState]map[readEvent]ReadState

// A peer message makes a conversation unread again, whatever its state.
var conversationReads = readMachine{
	Unread: {readEventMarkRead: Read, readEventIncoming: Unread},
	Read:   {readEventMarkRead: Read, readEventIncoming: Unread},
}

// Notifications never go back to unread.
var notificationReads = readMachine{
	Unread: {readEventMarkRead: Read},
	Read:   {readEventMarkRead: Read},
}

func (m readMachine) next(from ReadState, event readEvent) (ReadState, error) {
	to, ok := m[from][event]
	if !ok {
		return from, ErrInvalidTransition
	}
	return to, nil
}
