package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"laundry-kiosk/internal/events"
)

var (
	once sync.Once

	bookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "laundry_kiosk",
			Name:      "bookings_total",
			Help:      "Count of booking lifecycle transitions by outcome.",
		},
		[]string{"outcome"},
	)

	bookingRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "laundry_kiosk",
			Name:      "booking_rejected_total",
			Help:      "Count of booking attempts refused by a precondition.",
		},
	)

	syncMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "laundry_kiosk",
			Name:      "sync_messages_total",
			Help:      "Count of inventory snapshots by direction and result.",
		},
		[]string{"direction", "result"},
	)

	persistFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "laundry_kiosk",
			Name:      "persist_failures_total",
			Help:      "Count of failed writes to the profile store.",
		},
	)

	pushSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "laundry_kiosk",
			Name:      "push_notifications_total",
			Help:      "Count of web push deliveries by status.",
		},
		[]string{"status"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookings, bookingRejected, syncMessages, persistFailures, pushSent)
	})
}

// Observe counts engine events published on bus.
func Observe(bus *events.Bus) {
	bus.Subscribe(func(e events.Event) {
		switch e.Type {
		case events.BookingCreated:
			bookings.WithLabelValues("created").Inc()
		case events.BookingCancelled:
			bookings.WithLabelValues("cancelled").Inc()
		case events.BookingExpired:
			bookings.WithLabelValues("expired").Inc()
		case events.BookingDiscarded:
			bookings.WithLabelValues("discarded").Inc()
		case events.BookingRejected:
			bookingRejected.Inc()
		case events.SyncReceived:
			syncMessages.WithLabelValues("in", "applied").Inc()
		case events.SyncRejected:
			syncMessages.WithLabelValues("in", "rejected").Inc()
		case events.SyncPublished:
			syncMessages.WithLabelValues("out", "sent").Inc()
		case events.BroadcastFailed:
			syncMessages.WithLabelValues("out", "failed").Inc()
		case events.PersistFailed:
			persistFailures.Inc()
		}
	},
		events.BookingCreated, events.BookingCancelled, events.BookingExpired, events.BookingDiscarded,
		events.BookingRejected, events.SyncReceived, events.SyncRejected, events.SyncPublished,
		events.BroadcastFailed, events.PersistFailed,
	)
}

func IncPushSent(status string) {
	pushSent.WithLabelValues(status).Inc()
}
