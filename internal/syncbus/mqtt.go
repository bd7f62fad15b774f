package syncbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"laundry-kiosk/internal/model"
)

// MQTTConfig holds broker settings for the mqtt transport.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
}

// MQTTChannel broadcasts snapshots on a single MQTT topic at QoS 0, which
// matches the fire-and-forget delivery of the channel.
type MQTTChannel struct {
	client mqtt.Client
	topic  string
	origin string
	log    zerolog.Logger

	mu      sync.RWMutex
	handler Handler

	ctx    context.Context
	cancel context.CancelFunc
}

// DialMQTT connects to the broker and subscribes to cfg.Topic.
func DialMQTT(cfg MQTTConfig, log zerolog.Logger) (*MQTTChannel, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("mqtt connection lost")
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	c := NewMQTTChannel(client, cfg.Topic, log)
	if token := client.Subscribe(cfg.Topic, 0, c.onMessage); token.Wait() && token.Error() != nil {
		client.Disconnect(250)
		return nil, fmt.Errorf("failed to subscribe to %s: %w", cfg.Topic, token.Error())
	}
	log.Info().Str("broker", cfg.Broker).Str("topic", cfg.Topic).Msg("connected to MQTT broker")
	return c, nil
}

// NewMQTTChannel wraps an already connected client. The caller subscribes
// onMessage to the topic; DialMQTT does both.
func NewMQTTChannel(client mqtt.Client, topic string, log zerolog.Logger) *MQTTChannel {
	ctx, cancel := context.WithCancel(context.Background())
	return &MQTTChannel{
		client: client,
		topic:  topic,
		origin: newOrigin(),
		log:    log.With().Str("topic", topic).Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (c *MQTTChannel) Publish(ctx context.Context, inv model.Inventory) error {
	if c.ctx.Err() != nil {
		return ErrClosed
	}
	data, err := Encode(c.origin, inv)
	if err != nil {
		return err
	}
	token := c.client.Publish(c.topic, 0, false, data)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("failed to publish snapshot: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *MQTTChannel) Subscribe(h Handler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

func (c *MQTTChannel) Close() error {
	if c.ctx.Err() != nil {
		return nil
	}
	c.cancel()
	c.client.Unsubscribe(c.topic)
	c.client.Disconnect(250)
	return nil
}

func (c *MQTTChannel) onMessage(_ mqtt.Client, m mqtt.Message) {
	if c.ctx.Err() != nil {
		return
	}
	msg, err := Decode(m.Payload())
	if err != nil {
		c.log.Warn().Err(err).Msg("dropping undecodable sync message")
		return
	}
	if msg.Origin == c.origin {
		return
	}
	c.mu.RLock()
	h := c.handler
	c.mu.RUnlock()
	if h != nil {
		h(c.ctx, msg)
	}
}
