package notify

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/cserv-ai/cserv/internal/rbac"
)

// ChannelPrefix prefixes the per-recipient pub/sub channel.
const ChannelPrefix = "notifications:"

// RedisPublisher publishes each notification on the recipient's channel so
// connected clients can refresh their inbox.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher constructs a RedisPublisher.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Channel returns the channel name for a recipient.
func Channel(recipientID int64) string {
	return ChannelPrefix + strconv.FormatInt(recipientID, 10)
}

// Deliver publishes n as JSON.
func (p *RedisPublisher) Deliver(ctx context.Context, recipient rbac.Principal, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, Channel(recipient.ID), payload).Err()
}

var _ Deliverer = (*RedisPublisher)(nil)
