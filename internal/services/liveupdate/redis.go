package liveupdate

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisTransport carries live updates between processes over Redis pub/sub.
// One client is shared by every tenant's traffic, multiplexed by channel
// name.
type RedisTransport struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisTransport(client *redis.Client, logger *zap.Logger) *RedisTransport {
	return &RedisTransport{
		client: client,
		logger: logger,
	}
}

func (t *RedisTransport) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := t.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish to %s: %w", channel, err)
	}
	return nil
}

// Subscribe opens a pub/sub subscription on the channel and pumps messages
// into the returned channel until stop is called. The confirmation receive
// guarantees the subscription is established before Subscribe returns, so a
// publish issued afterwards cannot be missed.
func (t *RedisTransport) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	pubsub := t.client.Subscribe(ctx, channel)

	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("redis subscribe to %s: %w", channel, err)
	}

	out := make(chan []byte, 32)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()

	stop := func() {
		if err := pubsub.Close(); err != nil {
			t.logger.Warn("Failed to close pub/sub subscription",
				zap.Error(err), zap.String("channel", channel))
		}
	}

	return out, stop, nil
}
