package booking

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laundry-kiosk/internal/events"
	"laundry-kiosk/internal/model"
)

func runScheduler(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = NewScheduler(e, 5*time.Millisecond, zerolog.Nop()).Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestScheduler_ExpiresBooking(t *testing.T) {
	h := newHarness(t, newTestStore(t), nil, me, newClock(1000))
	runScheduler(t, h.engine)

	_, err := h.engine.Book(context.Background(), "W1")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		r := machine(t, h.engine.Inventory(), "W1").RemainingMinutes()
		return r != nil && *r == 35
	}, time.Second, 5*time.Millisecond)

	h.clock.Set(1000 + 35*60000)
	assert.Eventually(t, func() bool { return h.engine.ActiveBooking() == nil }, time.Second, 5*time.Millisecond)
	assert.Equal(t, model.StatusAvailable, machine(t, h.engine.Inventory(), "W1").Status())

	// Disarmed: further ticks would be no-ops anyway, but no second expiry shows up.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, h.count(events.BookingExpired))
}

func TestScheduler_RearmsForNewBooking(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newTestStore(t), nil, me, newClock(0))
	runScheduler(t, h.engine)

	_, err := h.engine.Book(ctx, "W1")
	require.NoError(t, err)
	_, err = h.engine.Cancel(ctx)
	require.NoError(t, err)

	h.clock.Set(60000)
	_, err = h.engine.Book(ctx, "D1")
	require.NoError(t, err)

	h.clock.Set(60000 + 45*60000)
	assert.Eventually(t, func() bool { return h.engine.ActiveBooking() == nil }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.count(events.BookingExpired))
	assert.Equal(t, 1, h.count(events.BookingCancelled))
}

func TestScheduler_InertWithoutBooking(t *testing.T) {
	h := newHarness(t, newTestStore(t), nil, me, newClock(0))
	before := h.engine.Inventory()
	runScheduler(t, h.engine)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, before, h.engine.Inventory())
}

func TestBookingKey(t *testing.T) {
	assert.Empty(t, bookingKey(nil))
	assert.Equal(t, "W1@1000", bookingKey(&model.ActiveBooking{MachineID: "W1", StartTime: 1000}))
}
