package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// Channel is the Redis pub/sub channel carrying event changes.
	Channel    = "calendar:events"
	publishTTL = 5 * time.Second
)

type redisPayload struct {
	Change
	At int64 `json:"at"`
}

// RedisPubSub bridges event changes across instances with Redis pub/sub.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	return &RedisPubSub{client: client, logger: logger}
}

// PublishChange publishes ch to the shared channel.
func (r *RedisPubSub) PublishChange(ctx context.Context, ch Change) error {
	body, err := json.Marshal(redisPayload{Change: ch, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTTL)
	defer cancel()
	return r.client.Publish(ctx, Channel, body).Err()
}

// SubscribeChanges calls handler for every change until ctx is done. It returns
// once the subscription is confirmed.
func (r *RedisPubSub) SubscribeChanges(ctx context.Context, handler func(Change)) error {
	pubsub := r.client.Subscribe(ctx, Channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", Channel, err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var p redisPayload
				if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
					r.logger.Warn("invalid change payload", zap.Error(err))
					continue
				}
				handler(p.Change)
			}
		}
	}()
	return nil
}
