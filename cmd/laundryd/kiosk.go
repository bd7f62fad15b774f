package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"laundry-kiosk/config"
	"laundry-kiosk/internal/booking"
	"laundry-kiosk/internal/db"
	"laundry-kiosk/internal/events"
	"laundry-kiosk/internal/identity"
	"laundry-kiosk/internal/store"
	"laundry-kiosk/internal/syncbus"
)

// kiosk is the set of long-lived services one process runs.
type kiosk struct {
	db     *gorm.DB
	store  store.Store
	bus    *events.Bus
	engine *booking.Engine

	closers []func() error
}

func openKiosk(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*kiosk, error) {
	gormDB, err := db.Init(&cfg.Database, log)
	if err != nil {
		return nil, err
	}
	k := &kiosk{db: gormDB, store: store.NewGormStore(gormDB), bus: events.NewBus()}
	k.closers = append(k.closers, func() error {
		sqlDB, err := gormDB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	id, err := identity.NewProvider(k.store).Identity(ctx)
	if err != nil {
		k.Close()
		return nil, err
	}
	log.Info().Str("identity", id).Msg("profile identity resolved")

	catalog, err := cfg.Inventory()
	if err != nil {
		k.Close()
		return nil, err
	}

	channel, err := k.openChannel(ctx, cfg.Sync, id, log)
	if err != nil {
		k.Close()
		return nil, err
	}

	k.engine = booking.New(booking.Options{
		Identity:      id,
		Store:         k.store,
		Channel:       channel,
		Catalog:       catalog,
		Durations:     cfg.Durations(),
		Events:        k.bus,
		Logger:        log.With().Str("component", "booking").Logger(),
		SyncIndicator: cfg.Booking.SyncIndicator,
	})
	// The engine owns the channel from here on.
	k.closers = append(k.closers, k.engine.Close)
	return k, nil
}

func (k *kiosk) openChannel(ctx context.Context, cfg config.SyncConfig, id string, log zerolog.Logger) (syncbus.Channel, error) {
	log = log.With().Str("component", "syncbus").Str("transport", cfg.Transport).Logger()

	switch cfg.Transport {
	case "local":
		log.Warn().Msg("local transport only reaches kiosks inside this process")
		return syncbus.NewHub(log).Join(), nil

	case "redis":
		if cfg.Redis.Address == "" {
			return nil, errors.New("sync.redis.address is required for the redis transport")
		}
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		k.closers = append(k.closers, rdb.Close)
		ch, err := syncbus.NewRedisChannel(ctx, rdb, cfg.Channel, log)
		if err != nil {
			return nil, err
		}
		log.Info().Str("address", cfg.Redis.Address).Str("channel", cfg.Channel).Msg("joined redis channel")
		return ch, nil

	case "mqtt":
		if cfg.MQTT.Broker == "" {
			return nil, errors.New("sync.mqtt.broker is required for the mqtt transport")
		}
		clientID := cfg.MQTT.ClientID
		if clientID == "" {
			clientID = "laundryd-" + identity.Tail(id)
		}
		ch, err := syncbus.DialMQTT(syncbus.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: clientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			Topic:    cfg.MQTT.Topic,
		}, log)
		if err != nil {
			return nil, err
		}
		log.Info().Str("broker", cfg.MQTT.Broker).Str("topic", cfg.MQTT.Topic).Msg("joined mqtt topic")
		return ch, nil

	default:
		return nil, fmt.Errorf("unknown sync transport %q", cfg.Transport)
	}
}

// Close releases everything in reverse order of acquisition.
func (k *kiosk) Close() error {
	var errs []error
	for i := len(k.closers) - 1; i >= 0; i-- {
		if err := k.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	k.closers = nil
	return errors.Join(errs...)
}
