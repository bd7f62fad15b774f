// Package syncbus carries inventory snapshots between kiosks that share one
// facility. Delivery is best effort: no acknowledgement, retry or ordering,
// and a kiosk never receives its own messages.
package syncbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"laundry-kiosk/internal/model"
)

// TypeSyncMachines is the only message type on the channel.
const TypeSyncMachines = "SYNC_MACHINES"

// Message is the envelope put on the wire. Origin identifies the sending
// channel instance, never the profile identity.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Origin  string          `json:"origin,omitempty"`
}

// Handler receives messages published by other kiosks. The payload is left
// raw so the receiver validates it before applying anything.
type Handler func(ctx context.Context, msg Message)

// Channel is a named broadcast group.
type Channel interface {
	Publish(ctx context.Context, inv model.Inventory) error
	Subscribe(h Handler)
	Close() error
}

// Encode builds the wire form of a snapshot.
func Encode(origin string, inv model.Inventory) ([]byte, error) {
	payload, err := json.Marshal(inv)
	if err != nil {
		return nil, fmt.Errorf("failed to encode inventory: %w", err)
	}
	return json.Marshal(Message{Type: TypeSyncMachines, Payload: payload, Origin: origin})
}

// Decode parses a wire message. It does not look inside the payload.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("failed to decode sync message: %w", err)
	}
	if msg.Type == "" {
		return Message{}, errors.New("sync message has no type")
	}
	return msg, nil
}

// DecodeInventory parses and validates the snapshot carried by msg.
func DecodeInventory(msg Message) (model.Inventory, error) {
	if msg.Type != TypeSyncMachines {
		return nil, fmt.Errorf("unexpected message type %q", msg.Type)
	}
	var inv model.Inventory
	if err := json.Unmarshal(msg.Payload, &inv); err != nil {
		return nil, fmt.Errorf("malformed payload: %w", err)
	}
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	return inv, nil
}

func newOrigin() string {
	return uuid.NewString()
}
