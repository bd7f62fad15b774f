package events

import (
	"sync"
	"time"

	"laundry-kiosk/internal/model"
)

// Types of events raised by the booking engine.
const (
	BookingCreated   = "booking.created"
	BookingRejected  = "booking.rejected"
	BookingCancelled = "booking.cancelled"
	BookingExpired   = "booking.expired"
	BookingDiscarded = "booking.discarded"
	MachineReleased  = "machine.released"
	SyncReceived     = "sync.received"
	SyncRejected     = "sync.rejected"
	SyncPublished    = "sync.published"
	BroadcastFailed  = "sync.broadcast_failed"
	PersistFailed    = "store.persist_failed"
)

// Event represents a lightweight domain event.
type Event struct {
	Type    string
	Machine *model.Machine
	Booking *model.ActiveBooking
	Err     error
	At      time.Time
}

// Handler reacts to an event.
type Handler func(event Event)

// Bus provides in-process pub/sub for engine events.
type Bus struct {
	subscribers map[string][]Handler
	mu          sync.RWMutex
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]Handler)}
}

// Subscribe registers a handler for the given event types.
func (b *Bus) Subscribe(handler Handler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range eventTypes {
		b.subscribers[t] = append(b.subscribers[t], handler)
	}
}

// Publish notifies subscribers of the event type. A nil bus drops events.
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.At.IsZero() {
		event.At = time.Now()
	}

	// Handlers run synchronously; the caller decides the concurrency model.
	for _, handler := range handlers {
		handler(event)
	}
}
