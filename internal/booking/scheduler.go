package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"laundry-kiosk/internal/model"
)

// Scheduler drives the countdown of the active booking. It keeps a single
// ticker, armed only while a booking exists.
type Scheduler struct {
	engine   *Engine
	interval time.Duration
	clock    func() time.Time
	log      zerolog.Logger
}

// NewScheduler creates a scheduler ticking every interval.
func NewScheduler(engine *Engine, interval time.Duration, log zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Scheduler{
		engine:   engine,
		interval: interval,
		clock:    engine.clock,
		log:      log.With().Str("component", "scheduler").Logger(),
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	var (
		ticker *time.Ticker
		tickC  <-chan time.Time
		armed  string
	)
	stop := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tickC = nil, nil
		}
	}
	defer stop()

	rearm := func() {
		b := s.engine.ActiveBooking()
		key := bookingKey(b)
		if key == armed {
			return
		}
		stop()
		armed = key
		if b != nil {
			ticker = time.NewTicker(s.interval)
			tickC = ticker.C
			s.log.Debug().Str("machine", b.MachineID).Msg("countdown armed")
		}
	}
	rearm()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.engine.Changes():
			rearm()
		case <-tickC:
			res, err := s.engine.Tick(ctx, s.clock())
			if err != nil {
				s.log.Error().Err(err).Msg("countdown tick failed")
			}
			if res.Expired {
				rearm()
			}
		}
	}
}

func bookingKey(b *model.ActiveBooking) string {
	if b == nil {
		return ""
	}
	return fmt.Sprintf("%s@%d", b.MachineID, b.StartTime)
}
