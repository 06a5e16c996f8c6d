package chatws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/saeid-a/TutorLinkBack/internal/logging"
)

const (
	bridgeChannelPrefix = "push:"
	bridgePublishWait   = 2 * time.Second
)

// RedisBridge extends a local Registry across instances with Redis pub/sub.
// Pub/sub keeps no backlog, so cross-instance delivery has the same
// at-most-once semantics as the in-process path.
type RedisBridge struct {
	client *redis.Client
	local  *Registry
	origin string
	logger logging.Logger
}

type bridgeFrame struct {
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}

var _ Publisher = (*RedisBridge)(nil)

func NewRedisBridge(redisURL string, local *Registry, logger logging.Logger) (*RedisBridge, error) {
	if redisURL == "" {
		return nil, errors.New("redis bridge: REDIS_URL is not set")
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis bridge: parse url: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis bridge: ping: %w", err)
	}

	return newRedisBridge(client, local, logger), nil
}

func newRedisBridge(client *redis.Client, local *Registry, logger logging.Logger) *RedisBridge {
	if logger == nil {
		logger = logging.Discard{}
	}
	return &RedisBridge{
		client: client,
		local:  local,
		origin: uuid.NewString(),
		logger: logger,
	}
}

// Publish delivers to local connections directly and forwards the payload to
// every subscribed instance. The return value is the local delivery count
// plus the number of subscribed instances, this one included.
func (b *RedisBridge) Publish(userID string, payload []byte) int {
	delivered := b.local.Publish(userID, payload)

	frame, err := json.Marshal(bridgeFrame{Origin: b.origin, Payload: payload})
	if err != nil {
		b.logger.Error("redis bridge: encode frame", err)
		return delivered
	}

	ctx, cancel := context.WithTimeout(context.Background(), bridgePublishWait)
	defer cancel()

	receivers, err := b.client.Publish(ctx, bridgeChannelPrefix+userID, frame).Result()
	if err != nil {
		b.logger.Warn("redis bridge: publish", userID, err)
		return delivered
	}
	return delivered + int(receivers)
}

// Run relays frames published by other instances to the local registry until
// ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) error {
	pubsub := b.client.PSubscribe(ctx, bridgeChannelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis bridge: subscribe: %w", err)
	}

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			b.relay(msg.Channel, msg.Payload)
		}
	}
}

func (b *RedisBridge) relay(channel string, raw string) {
	var frame bridgeFrame
	if err := json.Unmarshal([]byte(raw), &frame); err != nil {
		b.logger.Warn("redis bridge: decode frame", channel, err)
		return
	}
	if frame.Origin == b.origin {
		return
	}
	userID := strings.TrimPrefix(channel, bridgeChannelPrefix)
	b.local.Publish(userID, frame.Payload)
}

func (b *RedisBridge) Close() error {
	return b.client.Close()
}
