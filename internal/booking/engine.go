// Package booking owns the kiosk's machine inventory and its single active
// booking. Every mutation goes through the Engine, which persists the new
// state and broadcasts the inventory to the other kiosks of the facility.
package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"laundry-kiosk/internal/events"
	"laundry-kiosk/internal/identity"
	"laundry-kiosk/internal/model"
	"laundry-kiosk/internal/store"
	"laundry-kiosk/internal/syncbus"
)

var (
	ErrUnknownMachine     = errors.New("unknown machine")
	ErrMachineUnavailable = errors.New("machine is not available")
	ErrBookingActive      = errors.New("a booking is already active")
	ErrNoActiveBooking    = errors.New("no active booking")
	ErrMalformedSnapshot  = errors.New("malformed snapshot")
	ErrPersist            = errors.New("failed to persist state")
)

// Options wires the engine's collaborators.
type Options struct {
	Identity      string
	Store         store.Store
	Channel       syncbus.Channel
	Catalog       model.Inventory
	Durations     map[model.MachineType]int
	Clock         func() time.Time
	Events        *events.Bus
	Logger        zerolog.Logger
	SyncIndicator time.Duration
}

// Engine serializes every state transition of one kiosk behind a mutex.
type Engine struct {
	mu sync.Mutex

	identity      string
	store         store.Store
	channel       syncbus.Channel
	catalog       model.Inventory
	durations     map[model.MachineType]int
	clock         func() time.Time
	events        *events.Bus
	log           zerolog.Logger
	syncIndicator time.Duration

	inventory  model.Inventory
	booking    *model.ActiveBooking
	completed  *model.ActiveBooking
	syncedAt   time.Time
	persistErr error

	changes chan struct{}
}

// Status is the read model behind the kiosk header and countdown screen.
type Status struct {
	Identity     string               `json:"identity"`
	IdentityTail string               `json:"identityTail"`
	Booking      *model.ActiveBooking `json:"booking,omitempty"`
	SecondsLeft  int64                `json:"timeLeft"`
	Syncing      bool                 `json:"syncing"`
	Completed    *model.ActiveBooking `json:"completed,omitempty"`
	PersistError string               `json:"persistError,omitempty"`
}

// TickResult reports what a countdown tick observed.
type TickResult struct {
	Active           bool
	Expired          bool
	SecondsLeft      int64
	RemainingMinutes int
}

// New creates an engine. Call Load before serving requests.
func New(opts Options) *Engine {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	durations := opts.Durations
	if durations == nil {
		durations = map[model.MachineType]int{model.Washer: 35, model.Dryer: 45}
	}
	indicator := opts.SyncIndicator
	if indicator <= 0 {
		indicator = 2 * time.Second
	}
	e := &Engine{
		identity:      opts.Identity,
		store:         opts.Store,
		channel:       opts.Channel,
		catalog:       opts.Catalog.Clone(),
		durations:     durations,
		clock:         clock,
		events:        opts.Events,
		log:           opts.Logger.With().Str("component", "booking").Logger(),
		syncIndicator: indicator,
		inventory:     opts.Catalog.Clone(),
		changes:       make(chan struct{}, 1),
	}
	if e.channel != nil {
		e.channel.Subscribe(e.HandleSync)
	}
	return e
}

// Load restores the persisted inventory and booking. A missing or corrupt
// inventory falls back to the catalog. A booking that ended while the kiosk
// was down is discarded without a completion notice and its machine is
// released.
func (e *Engine) Load(ctx context.Context) error {
	var out batch
	e.mu.Lock()
	defer func() { e.mu.Unlock(); out.publish(e.events) }()

	e.persistErr = nil
	var persistErr error
	keep := func(err error) {
		if err != nil && persistErr == nil {
			persistErr = err
		}
	}

	var inv model.Inventory
	found, err := store.GetJSON(ctx, e.store, store.KeyInventory, &inv)
	if err == nil && found {
		err = inv.Validate()
	}
	switch {
	case err != nil:
		e.log.Warn().Err(err).Msg("stored inventory unreadable, restoring catalog")
		fallthrough
	case !found:
		e.inventory = e.catalog.Clone()
		keep(e.persistInventory(ctx, &out))
	default:
		e.inventory = inv
	}

	var b model.ActiveBooking
	found, err = store.GetJSON(ctx, e.store, store.KeyActiveBooking, &b)
	switch {
	case err != nil:
		e.log.Warn().Err(err).Msg("stored booking unreadable, discarding")
		e.booking = nil
		keep(e.persistBooking(ctx, &out))
	case found:
		e.booking = &b
	default:
		e.booking = nil
	}

	now := e.clock()
	released := false
	if e.booking != nil && !now.Before(e.booking.EndsAt()) {
		stale := *e.booking
		e.log.Info().Str("machine", stale.MachineID).Msg("discarding booking that ended while offline")
		released = e.releaseMachine(stale.MachineID, &out)
		e.booking = nil
		keep(e.persistBooking(ctx, &out))
		e.archive(ctx, stale, model.OutcomeDiscarded, now)
		out.add(events.Event{Type: events.BookingDiscarded, Booking: &stale})
	}
	for i := range e.inventory {
		m := e.inventory[i]
		if !m.OwnedBy(e.identity) {
			continue
		}
		if e.booking != nil && e.booking.MachineID == m.ID {
			continue
		}
		e.log.Info().Str("machine", m.ID).Msg("releasing machine held without a booking")
		if e.releaseMachine(m.ID, &out) {
			released = true
		}
	}
	if released {
		keep(e.persistInventory(ctx, &out))
		e.broadcast(ctx, &out)
	}

	e.signal()
	if persistErr != nil {
		return fmt.Errorf("%w: %w", ErrPersist, persistErr)
	}
	return nil
}

// Book reserves an available machine for this kiosk's identity.
func (e *Engine) Book(ctx context.Context, machineID string) (model.Inventory, error) {
	var out batch
	e.mu.Lock()
	defer func() { e.mu.Unlock(); out.publish(e.events) }()

	idx, ok := e.inventory.Index(machineID)
	if !ok {
		return e.reject(machineID, ErrUnknownMachine, &out)
	}
	if e.booking != nil {
		return e.reject(machineID, ErrBookingActive, &out)
	}
	m := e.inventory[idx]
	if m.Status() != model.StatusAvailable {
		return e.reject(machineID, ErrMachineUnavailable, &out)
	}

	e.inventory[idx].State = model.Busy{OwnerID: e.identity}
	b := model.ActiveBooking{
		MachineID:       m.ID,
		MachineName:     m.Name,
		Type:            m.Type,
		StartTime:       e.clock().UnixMilli(),
		DurationMinutes: e.durations[m.Type],
	}
	e.booking = &b

	e.persistErr = nil
	booked := e.inventory[idx].Clone()
	out.add(events.Event{Type: events.BookingCreated, Machine: &booked, Booking: &b})
	e.log.Info().Str("machine", m.ID).Int("minutes", b.DurationMinutes).Msg("machine booked")

	err := firstErr(e.persistInventory(ctx, &out), e.persistBooking(ctx, &out))
	e.broadcast(ctx, &out)
	e.signal()
	return e.inventory.Clone(), wrapPersist(err)
}

// Cancel ends the active booking early and frees its machine.
func (e *Engine) Cancel(ctx context.Context) (model.Inventory, error) {
	var out batch
	e.mu.Lock()
	defer func() { e.mu.Unlock(); out.publish(e.events) }()

	if e.booking == nil {
		return e.inventory.Clone(), ErrNoActiveBooking
	}
	b := *e.booking
	err := e.finish(ctx, b, model.OutcomeCancelled, &out)
	out.add(events.Event{Type: events.BookingCancelled, Booking: &b})
	e.log.Info().Str("machine", b.MachineID).Msg("booking cancelled")
	return e.inventory.Clone(), wrapPersist(err)
}

// Expire completes booking if it is still the active one. It is driven by
// the countdown and is a no-op for a booking that already ended.
func (e *Engine) Expire(ctx context.Context, b model.ActiveBooking) error {
	var out batch
	e.mu.Lock()
	defer func() { e.mu.Unlock(); out.publish(e.events) }()

	return e.expire(ctx, b, &out)
}

func (e *Engine) expire(ctx context.Context, b model.ActiveBooking, out *batch) error {
	if e.booking == nil || !e.booking.Same(b) {
		return nil
	}
	err := e.finish(ctx, b, model.OutcomeExpired, out)
	e.completed = &b
	out.add(events.Event{Type: events.BookingExpired, Booking: &b})
	e.log.Info().Str("machine", b.MachineID).Msg("booking completed")
	return wrapPersist(err)
}

// finish frees the machine of b, clears the booking, persists, archives and
// broadcasts.
func (e *Engine) finish(ctx context.Context, b model.ActiveBooking, outcome string, out *batch) error {
	e.releaseMachine(b.MachineID, out)
	e.booking = nil
	e.persistErr = nil
	err := firstErr(e.persistInventory(ctx, out), e.persistBooking(ctx, out))
	e.archive(ctx, b, outcome, e.clock())
	e.broadcast(ctx, out)
	e.signal()
	return err
}

// Tick advances the countdown to now. The end instant is always derived from
// the booking's start time, so a late or skipped tick never drifts.
func (e *Engine) Tick(ctx context.Context, now time.Time) (TickResult, error) {
	var out batch
	e.mu.Lock()
	defer func() { e.mu.Unlock(); out.publish(e.events) }()

	if e.booking == nil {
		return TickResult{}, nil
	}
	b := *e.booking
	diff := b.EndsAt().Sub(now).Milliseconds()
	if diff <= 0 {
		err := e.expire(ctx, b, &out)
		return TickResult{Active: true, Expired: true}, err
	}

	secondsLeft := diff / 1000
	remaining := int((secondsLeft + 59) / 60)
	if idx, ok := e.inventory.Index(b.MachineID); ok {
		if busy, ok := e.inventory[idx].State.(model.Busy); ok {
			busy.RemainingMinutes = &remaining
			e.inventory[idx].State = busy
		}
	}
	return TickResult{Active: true, SecondsLeft: secondsLeft, RemainingMinutes: remaining}, nil
}

// HandleSync is the channel handler. Messages of other types are ignored.
func (e *Engine) HandleSync(ctx context.Context, msg syncbus.Message) {
	if msg.Type != syncbus.TypeSyncMachines {
		e.log.Debug().Str("type", msg.Type).Msg("ignoring sync message")
		return
	}
	inv, err := syncbus.DecodeInventory(msg)
	if err != nil {
		e.log.Warn().Err(err).Str("origin", msg.Origin).Msg("rejecting sync snapshot")
		e.events.Publish(events.Event{Type: events.SyncRejected, Err: err})
		return
	}
	if err := e.MergeRemote(ctx, inv); err != nil && !errors.Is(err, ErrPersist) {
		e.log.Warn().Err(err).Msg("failed to merge sync snapshot")
	}
}

// MergeRemote replaces the local inventory with a peer's snapshot. The whole
// list is taken as is; the local booking is left untouched.
func (e *Engine) MergeRemote(ctx context.Context, snapshot model.Inventory) error {
	if err := snapshot.Validate(); err != nil {
		e.events.Publish(events.Event{Type: events.SyncRejected, Err: err})
		return fmt.Errorf("%w: %w", ErrMalformedSnapshot, err)
	}

	var out batch
	e.mu.Lock()
	defer func() { e.mu.Unlock(); out.publish(e.events) }()

	e.inventory = snapshot.Clone()
	e.syncedAt = e.clock()
	e.persistErr = nil
	out.add(events.Event{Type: events.SyncReceived})
	return wrapPersist(e.persistInventory(ctx, &out))
}

// Reset restores the catalog, drops the local booking and broadcasts the
// fresh inventory. Used by the admin CLI.
func (e *Engine) Reset(ctx context.Context) error {
	var out batch
	e.mu.Lock()
	defer func() { e.mu.Unlock(); out.publish(e.events) }()

	e.inventory = e.catalog.Clone()
	e.booking = nil
	e.completed = nil
	e.persistErr = nil
	err := firstErr(e.persistInventory(ctx, &out), e.persistBooking(ctx, &out))
	e.broadcast(ctx, &out)
	e.signal()
	return wrapPersist(err)
}

// Inventory returns a copy of the local inventory.
func (e *Engine) Inventory() model.Inventory {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inventory.Clone()
}

// Machines returns the machines of type t, or all machines when t is empty.
func (e *Engine) Machines(t model.MachineType) model.Inventory {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t == "" {
		return e.inventory.Clone()
	}
	return e.inventory.OfType(t)
}

// ActiveBooking returns a copy of the active booking, or nil.
func (e *Engine) ActiveBooking() *model.ActiveBooking {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.booking == nil {
		return nil
	}
	b := *e.booking
	return &b
}

// Identity returns the identity bookings are made under.
func (e *Engine) Identity() string {
	return e.identity
}

// Status builds the read model at now.
func (e *Engine) Status(now time.Time) Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{Identity: e.identity, IdentityTail: identity.Tail(e.identity)}
	if e.booking != nil {
		b := *e.booking
		st.Booking = &b
		if left := b.Remaining(now); left > 0 {
			st.SecondsLeft = int64(left / time.Second)
		}
	}
	if !e.syncedAt.IsZero() && now.Sub(e.syncedAt) < e.syncIndicator {
		st.Syncing = true
	}
	if e.completed != nil {
		c := *e.completed
		st.Completed = &c
	}
	if e.persistErr != nil {
		st.PersistError = e.persistErr.Error()
	}
	return st
}

// AcknowledgeCompletion clears the completion notice.
func (e *Engine) AcknowledgeCompletion() {
	e.mu.Lock()
	e.completed = nil
	e.mu.Unlock()
}

// Changes signals whenever the active booking changes.
func (e *Engine) Changes() <-chan struct{} {
	return e.changes
}

// Close detaches the engine from its sync channel.
func (e *Engine) Close() error {
	if e.channel == nil {
		return nil
	}
	return e.channel.Close()
}

func (e *Engine) reject(machineID string, err error, out *batch) (model.Inventory, error) {
	e.log.Debug().Err(err).Str("machine", machineID).Msg("booking rejected")
	out.add(events.Event{Type: events.BookingRejected, Err: err})
	return e.inventory.Clone(), err
}

// releaseMachine frees machineID if this kiosk still holds it. A machine a
// peer has since taken over or put into maintenance is left alone.
func (e *Engine) releaseMachine(machineID string, out *batch) bool {
	idx, ok := e.inventory.Index(machineID)
	if !ok || !e.inventory[idx].OwnedBy(e.identity) {
		return false
	}
	e.inventory[idx].State = model.Available{}
	m := e.inventory[idx].Clone()
	out.add(events.Event{Type: events.MachineReleased, Machine: &m})
	return true
}

func (e *Engine) persistInventory(ctx context.Context, out *batch) error {
	return e.persisted(store.SetJSON(ctx, e.store, store.KeyInventory, e.inventory), out)
}

func (e *Engine) persistBooking(ctx context.Context, out *batch) error {
	if e.booking == nil {
		return e.persisted(e.store.Delete(ctx, store.KeyActiveBooking), out)
	}
	return e.persisted(store.SetJSON(ctx, e.store, store.KeyActiveBooking, e.booking), out)
}

func (e *Engine) persisted(err error, out *batch) error {
	if err != nil {
		e.log.Error().Err(err).Msg("failed to persist kiosk state")
		e.persistErr = err
		out.add(events.Event{Type: events.PersistFailed, Err: err})
		return err
	}
	return nil
}

func (e *Engine) archive(ctx context.Context, b model.ActiveBooking, outcome string, observed time.Time) {
	rec := model.BookingRecord{
		MachineID:   b.MachineID,
		MachineName: b.MachineName,
		Type:        b.Type,
		Outcome:     outcome,
		PeriodStart: time.UnixMilli(b.StartTime).UTC(),
		PeriodEnd:   b.EndsAt().UTC(),
		ObservedAt:  observed.UTC(),
	}
	if err := e.store.Archive(ctx, rec); err != nil {
		e.log.Warn().Err(err).Str("machine", b.MachineID).Msg("failed to archive booking")
	}
}

func (e *Engine) broadcast(ctx context.Context, out *batch) {
	if e.channel == nil {
		return
	}
	if err := e.channel.Publish(ctx, e.inventory.Clone()); err != nil {
		e.log.Warn().Err(err).Msg("failed to broadcast inventory")
		out.add(events.Event{Type: events.BroadcastFailed, Err: err})
		return
	}
	out.add(events.Event{Type: events.SyncPublished})
}

func (e *Engine) signal() {
	select {
	case e.changes <- struct{}{}:
	default:
	}
}

// batch collects events raised under the lock; they are published after
// it is released so handlers may call back into the engine.
type batch []events.Event

func (b *batch) add(ev events.Event) { *b = append(*b, ev) }

func (b batch) publish(bus *events.Bus) {
	for _, ev := range b {
		bus.Publish(ev)
	}
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func wrapPersist(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPersist, err)
}
