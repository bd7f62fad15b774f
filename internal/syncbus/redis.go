package syncbus

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"laundry-kiosk/internal/model"
)

// RedisChannel broadcasts snapshots over Redis pub/sub so kiosks running as
// separate processes can share a facility.
type RedisChannel struct {
	rdb     *redis.Client
	pubsub  *redis.PubSub
	channel string
	origin  string
	log     zerolog.Logger

	mu      sync.RWMutex
	handler Handler

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewRedisChannel subscribes to channel and starts the receive loop.
func NewRedisChannel(ctx context.Context, rdb *redis.Client, channel string, log zerolog.Logger) (*RedisChannel, error) {
	pubsub := rdb.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	c := &RedisChannel{
		rdb:     rdb,
		pubsub:  pubsub,
		channel: channel,
		origin:  newOrigin(),
		log:     log.With().Str("channel", channel).Logger(),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go c.receive(loopCtx)
	return c, nil
}

func (c *RedisChannel) Publish(ctx context.Context, inv model.Inventory) error {
	data, err := Encode(c.origin, inv)
	if err != nil {
		return err
	}
	if err := c.rdb.Publish(ctx, c.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}
	return nil
}

func (c *RedisChannel) Subscribe(h Handler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// Close stops the receive loop. The redis client is owned by the caller.
func (c *RedisChannel) Close() error {
	var err error
	c.once.Do(func() {
		c.cancel()
		err = c.pubsub.Close()
		<-c.done
	})
	return err
}

func (c *RedisChannel) receive(ctx context.Context) {
	defer close(c.done)
	ch := c.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			msg, err := Decode([]byte(m.Payload))
			if err != nil {
				c.log.Warn().Err(err).Msg("dropping undecodable sync message")
				continue
			}
			if msg.Origin == c.origin {
				continue
			}
			c.mu.RLock()
			h := c.handler
			c.mu.RUnlock()
			if h != nil {
				h(ctx, msg)
			}
		}
	}
}
