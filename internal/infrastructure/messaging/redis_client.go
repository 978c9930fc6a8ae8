package messaging

import (
	"context"

	cache "github.com/classpulse/classpulse-backend/internal/infrastructure/persistence/redis"
)

// cacheRedisClient adapts the shared Redis cache connection to the
// RedisClient interface used by RedisEventBus. It publishes raw payloads
// (the bus already serializes envelopes) and converts go-redis
// subscription messages into RedisMessage values.
type cacheRedisClient struct {
	cache *cache.Cache
}

// NewCacheRedisClient wraps an existing cache connection for Pub/Sub use.
// The underlying connection is shared; Close is a no-op so that closing
// the event bus does not tear down the cache.
func NewCacheRedisClient(c *cache.Cache) RedisClient {
	return &cacheRedisClient{cache: c}
}

func (c *cacheRedisClient) Publish(ctx context.Context, channel string, message interface{}) error {
	return c.cache.Client().Publish(ctx, channel, message).Err()
}

func (c *cacheRedisClient) Subscribe(ctx context.Context, channels ...string) (<-chan RedisMessage, error) {
	sub := c.cache.Subscribe(ctx, channels...)

	// Force the subscription to be established before we report success.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan RedisMessage)
	go func() {
		defer close(out)
		defer sub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				out <- RedisMessage{Channel: msg.Channel, Payload: msg.Payload}
			}
		}
	}()

	return out, nil
}

func (c *cacheRedisClient) Close() error {
	return nil
}
