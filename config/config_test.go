package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laundry-kiosk/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "kiosk.db", cfg.Database.DSN)
	assert.Equal(t, "local", cfg.Sync.Transport)
	assert.Equal(t, "cempaka_sync", cfg.Sync.Channel)
	assert.Equal(t, 35, cfg.Booking.WasherMinutes)
	assert.Equal(t, 45, cfg.Booking.DryerMinutes)
	assert.Equal(t, time.Second, cfg.Booking.TickInterval)
	assert.Equal(t, 2*time.Second, cfg.Booking.SyncIndicator)
	assert.Equal(t, 1, cfg.WorkerPool.Size)

	inv, err := cfg.Inventory()
	require.NoError(t, err)
	assert.Len(t, inv, 8)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
sync:
  transport: redis
  channel: block_a
  redis:
    address: localhost:6379
booking:
  washer_minutes: 30
`)
	t.Setenv("KIOSK_PORT", "9100")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port, "env overrides the file")
	assert.Equal(t, "redis", cfg.Sync.Transport)
	assert.Equal(t, "block_a", cfg.Sync.Channel)
	assert.Equal(t, "laundry/block_a", cfg.Sync.MQTT.Topic)
	assert.Equal(t, 30, cfg.Durations()[model.Washer])
	assert.Equal(t, 45, cfg.Durations()[model.Dryer])
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestConfig_Inventory(t *testing.T) {
	cfg := &Config{Catalog: []MachineConfig{
		{ID: "W1"},
		{ID: "D2", Name: "Big Dryer", Status: "maintenance"},
		{ID: "X9", Name: "Extra", Type: "washer"},
	}}

	inv, err := cfg.Inventory()
	require.NoError(t, err)
	require.Len(t, inv, 3)

	assert.Equal(t, "Washer 01", inv[0].Name)
	assert.Equal(t, model.Washer, inv[0].Type)
	assert.Equal(t, model.StatusAvailable, inv[0].Status())

	assert.Equal(t, "Big Dryer", inv[1].Name)
	assert.Equal(t, model.Dryer, inv[1].Type)
	assert.Equal(t, model.StatusMaintenance, inv[1].Status())

	assert.Equal(t, model.Washer, inv[2].Type)

	_, err = (&Config{Catalog: []MachineConfig{{ID: "W1", Status: "BUSY"}}}).Inventory()
	assert.Error(t, err, "BUSY is never configured statically")

	_, err = (&Config{Catalog: []MachineConfig{{ID: "W1"}, {ID: "W1"}}}).Inventory()
	assert.Error(t, err, "duplicate ids")

	_, err = (&Config{Catalog: []MachineConfig{{ID: "??"}}}).Inventory()
	assert.Error(t, err, "type cannot be inferred")
}
