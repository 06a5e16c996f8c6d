package chatws

import (
	"hash/fnv"
	"sync"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/saeid-a/TutorLinkBack/internal/logging"
)

const (
	defaultShardCount = 32
	defaultSendBuffer = 32
)

// Registry maps a user id to its live connections. Users are spread over
// independently locked shards so deliveries to unrelated users never wait
// on each other.
type Registry struct {
	shards     []*shard
	sendBuffer int
	logger     logging.Logger
}

type shard struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewRegistry(shardCount int, sendBuffer int, logger logging.Logger) *Registry {
	if shardCount <= 0 {
		shardCount = defaultShardCount
	}
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	if logger == nil {
		logger = logging.Discard{}
	}

	shards := make([]*shard, shardCount)
	for i := range shards {
		shards[i] = &shard{clients: make(map[string]map[*Client]struct{})}
	}
	return &Registry{shards: shards, sendBuffer: sendBuffer, logger: logger}
}

func (r *Registry) NewClient(conn *websocket.Conn, userID string, role string) *Client {
	return newClient(r, conn, userID, role, r.sendBuffer)
}

func (r *Registry) shardFor(userID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return r.shards[h.Sum32()%uint32(len(r.shards))]
}

func (r *Registry) Register(client *Client) {
	s := r.shardFor(client.userID)
	s.mu.Lock()
	set, ok := s.clients[client.userID]
	if !ok {
		set = make(map[*Client]struct{})
		s.clients[client.userID] = set
	}
	set[client] = struct{}{}
	s.mu.Unlock()
}

// Unregister removes client and closes its send queue. Calling it for a
// client that is already gone is a no-op.
func (r *Registry) Unregister(client *Client) {
	s := r.shardFor(client.userID)
	s.mu.Lock()
	r.removeLocked(s, client)
	s.mu.Unlock()
}

func (r *Registry) removeLocked(s *shard, client *Client) {
	set, ok := s.clients[client.userID]
	if !ok {
		return
	}
	if _, exists := set[client]; exists {
		delete(set, client)
		close(client.send)
	}
	if len(set) == 0 {
		delete(s.clients, client.userID)
	}
}

// Publish queues payload on every live connection of userID and returns how
// many accepted it. Nothing is retained for users without a connection, and
// a connection whose queue is full is dropped instead of waited on.
func (r *Registry) Publish(userID string, payload []byte) int {
	s := r.shardFor(userID)

	var slow []*Client
	delivered := 0

	s.mu.RLock()
	for client := range s.clients[userID] {
		select {
		case client.send <- payload:
			delivered++
		default:
			slow = append(slow, client)
		}
	}
	s.mu.RUnlock()

	for _, client := range slow {
		r.logger.Warn("push: dropping slow connection", client.userID, client.id)
		r.Unregister(client)
	}
	return delivered
}

// Connections returns the number of live connections for userID.
func (r *Registry) Connections(userID string) int {
	s := r.shardFor(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients[userID])
}

// Close unregisters every connection.
func (r *Registry) Close() {
	for _, s := range r.shards {
		s.mu.Lock()
		for _, set := range s.clients {
			for client := range set {
				r.removeLocked(s, client)
			}
		}
		s.mu.Unlock()
	}
}

// sendTo queues payload on a single connection if it is still registered.
func (r *Registry) sendTo(client *Client, payload []byte) bool {
	s := r.shardFor(client.userID)

	s.mu.RLock()
	_, live := s.clients[client.userID][client]
	queued := false
	if live {
		select {
		case client.send <- payload:
			queued = true
		default:
		}
	}
	s.mu.RUnlock()

	if live && !queued {
		r.Unregister(client)
	}
	return queued
}
