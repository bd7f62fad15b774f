package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"laundry-kiosk/internal/model"
	"laundry-kiosk/internal/parse"
)

// Config represents the overall kiosk configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Sync       SyncConfig       `yaml:"sync"`
	Booking    BookingConfig    `yaml:"booking"`
	Catalog    []MachineConfig  `yaml:"catalog"`
	Assets     AssetsConfig     `yaml:"assets"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds the HTTP API configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig selects and tunes the profile store.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // sqlite | postgres
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level"`
}

// SyncConfig selects the broadcast transport shared by the kiosks.
type SyncConfig struct {
	Transport string      `yaml:"transport"` // local | redis | mqtt
	Channel   string      `yaml:"channel"`
	Redis     RedisConfig `yaml:"redis"`
	MQTT      MQTTConfig  `yaml:"mqtt"`
}

// RedisConfig holds the Redis pub/sub connection settings.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MQTTConfig holds the MQTT broker settings.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
}

// BookingConfig holds the booking lifecycle timings.
type BookingConfig struct {
	WasherMinutes        int           `yaml:"washer_minutes"`
	DryerMinutes         int           `yaml:"dryer_minutes"`
	TickIntervalMillis   int           `yaml:"tick_interval_ms"`
	TickInterval         time.Duration `yaml:"-"`
	SyncIndicatorSeconds int           `yaml:"sync_indicator_seconds"`
	SyncIndicator        time.Duration `yaml:"-"`
}

// MachineConfig is one catalog entry. Type and Name may be left out when the
// id carries them (W1, D2, ...).
type MachineConfig struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Status string `yaml:"status"`
}

// AssetsConfig limits uploaded images and points at optional static content.
type AssetsConfig struct {
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	GuideFile      string `yaml:"guide_file"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// LoggingConfig controls the zerolog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console | json
}

// Load reads the configuration from the given path. An empty path yields the
// defaults; environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "kiosk.db"
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}

	if cfg.Sync.Transport == "" {
		cfg.Sync.Transport = "local"
	}
	if cfg.Sync.Channel == "" {
		cfg.Sync.Channel = "cempaka_sync"
	}
	if cfg.Sync.MQTT.Topic == "" {
		cfg.Sync.MQTT.Topic = "laundry/" + cfg.Sync.Channel
	}

	if cfg.Booking.WasherMinutes <= 0 {
		cfg.Booking.WasherMinutes = 35
	}
	if cfg.Booking.DryerMinutes <= 0 {
		cfg.Booking.DryerMinutes = 45
	}
	if cfg.Booking.TickIntervalMillis <= 0 {
		cfg.Booking.TickIntervalMillis = 1000
	}
	cfg.Booking.TickInterval = time.Duration(cfg.Booking.TickIntervalMillis) * time.Millisecond
	if cfg.Booking.SyncIndicatorSeconds <= 0 {
		cfg.Booking.SyncIndicatorSeconds = 2
	}
	cfg.Booking.SyncIndicator = time.Duration(cfg.Booking.SyncIndicatorSeconds) * time.Second

	if cfg.Assets.MaxUploadBytes <= 0 {
		cfg.Assets.MaxUploadBytes = 2 << 20
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}
	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

// applyEnv lets deployments override the settings that differ per kiosk.
func applyEnv(cfg *Config) {
	if v := os.Getenv("KIOSK_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("KIOSK_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("KIOSK_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("KIOSK_SYNC_TRANSPORT"); v != "" {
		cfg.Sync.Transport = v
	}
	if v := os.Getenv("KIOSK_REDIS_ADDR"); v != "" {
		cfg.Sync.Redis.Address = v
	}
	if v := os.Getenv("KIOSK_MQTT_BROKER"); v != "" {
		cfg.Sync.MQTT.Broker = v
	}
	if v := os.Getenv("KIOSK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// DefaultCatalog is the facility inventory used when no catalog is configured.
func DefaultCatalog() model.Inventory {
	return model.Inventory{
		{ID: "W1", Name: "Washer 01", Type: model.Washer, State: model.Available{}},
		{ID: "W2", Name: "Washer 02", Type: model.Washer, State: model.Available{}},
		{ID: "W3", Name: "Washer 03", Type: model.Washer, State: model.Available{}},
		{ID: "W4", Name: "Washer 04", Type: model.Washer, State: model.Available{}},
		{ID: "D1", Name: "Dryer 01", Type: model.Dryer, State: model.Available{}},
		{ID: "D2", Name: "Dryer 02", Type: model.Dryer, State: model.Available{}},
		{ID: "D3", Name: "Dryer 03", Type: model.Dryer, State: model.Available{}},
		{ID: "D4", Name: "Dryer 04", Type: model.Dryer, State: model.Available{}},
	}
}

// Inventory builds the initial inventory from the catalog section.
func (c *Config) Inventory() (model.Inventory, error) {
	if len(c.Catalog) == 0 {
		return DefaultCatalog(), nil
	}

	inv := make(model.Inventory, 0, len(c.Catalog))
	for _, entry := range c.Catalog {
		m := model.Machine{
			ID:    strings.TrimSpace(entry.ID),
			Name:  strings.TrimSpace(entry.Name),
			Type:  model.MachineType(strings.ToUpper(strings.TrimSpace(entry.Type))),
			State: model.Available{},
		}

		if m.Type == "" || m.Name == "" {
			parsed, err := parse.ParseMachineID(m.ID)
			if err != nil {
				return nil, fmt.Errorf("catalog entry %q: %w", entry.ID, err)
			}
			if m.Type == "" {
				m.Type = parsed.Type
			}
			if m.Name == "" {
				m.Name = parse.DisplayName(parsed)
			}
		}

		switch model.MachineStatus(strings.ToUpper(strings.TrimSpace(entry.Status))) {
		case "", model.StatusAvailable:
		case model.StatusMaintenance:
			m.State = model.Maintenance{}
		default:
			return nil, fmt.Errorf("catalog entry %q: status %q cannot be configured", entry.ID, entry.Status)
		}
		inv = append(inv, m)
	}

	if err := inv.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return inv, nil
}

// Durations returns the booking length for each machine type.
func (c *Config) Durations() map[model.MachineType]int {
	return map[model.MachineType]int{
		model.Washer: c.Booking.WasherMinutes,
		model.Dryer:  c.Booking.DryerMinutes,
	}
}
