package syncbus

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"laundry-kiosk/internal/model"
)

// ErrClosed is returned when publishing on a closed channel.
var ErrClosed = errors.New("sync channel closed")

const hubInboxSize = 16

// Hub connects channels living in the same process. It backs the "local"
// transport and the multi-kiosk tests.
type Hub struct {
	mu      sync.RWMutex
	members map[string]*HubChannel
	log     zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{members: make(map[string]*HubChannel), log: log}
}

// Join attaches a new channel instance to the hub.
func (h *Hub) Join() *HubChannel {
	ctx, cancel := context.WithCancel(context.Background())
	c := &HubChannel{
		hub:    h,
		origin: newOrigin(),
		inbox:  make(chan []byte, hubInboxSize),
		ctx:    ctx,
		cancel: cancel,
	}

	h.mu.Lock()
	h.members[c.origin] = c
	h.mu.Unlock()

	go c.deliver()
	return c
}

// HubChannel is one member of a Hub.
type HubChannel struct {
	hub    *Hub
	origin string
	inbox  chan []byte

	mu      sync.RWMutex
	handler Handler

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// Publish hands the snapshot to every other member. A member whose inbox is
// full misses the message.
func (c *HubChannel) Publish(ctx context.Context, inv model.Inventory) error {
	if c.ctx.Err() != nil {
		return ErrClosed
	}
	data, err := Encode(c.origin, inv)
	if err != nil {
		return err
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	for origin, member := range c.hub.members {
		if origin == c.origin {
			continue
		}
		select {
		case member.inbox <- data:
		default:
			c.hub.log.Warn().Str("peer", origin).Msg("sync inbox full, dropping snapshot")
		}
	}
	return nil
}

// Subscribe sets the handler for inbound messages.
func (c *HubChannel) Subscribe(h Handler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// Close detaches the channel from the hub.
func (c *HubChannel) Close() error {
	c.closeOnce.Do(func() {
		c.hub.mu.Lock()
		delete(c.hub.members, c.origin)
		c.hub.mu.Unlock()
		c.cancel()
	})
	return nil
}

func (c *HubChannel) deliver() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.inbox:
			msg, err := Decode(data)
			if err != nil {
				c.hub.log.Warn().Err(err).Msg("dropping undecodable sync message")
				continue
			}
			if msg.Origin == c.origin {
				continue
			}
			c.mu.RLock()
			h := c.handler
			c.mu.RUnlock()
			if h != nil {
				h(c.ctx, msg)
			}
		}
	}
}
