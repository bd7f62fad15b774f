package syncbus

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laundry-kiosk/internal/model"
)

func intPtr(v int) *int { return &v }

func snapshot() model.Inventory {
	return model.Inventory{
		{ID: "W1", Name: "Washer 01", Type: model.Washer, State: model.Busy{OwnerID: "user_abc", RemainingMinutes: intPtr(12)}},
		{ID: "W2", Name: "Washer 02", Type: model.Washer, State: model.Available{}},
		{ID: "D1", Name: "Dryer 01", Type: model.Dryer, State: model.Maintenance{}},
	}
}

// recorder collects delivered messages.
type recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *recorder) handle(_ context.Context, msg Message) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func (r *recorder) last() Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.msgs[len(r.msgs)-1]
}

func TestEncodeDecode(t *testing.T) {
	data, err := Encode("origin-1", snapshot())
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, TypeSyncMachines, raw["type"])

	msg, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "origin-1", msg.Origin)

	inv, err := DecodeInventory(msg)
	require.NoError(t, err)
	assert.Equal(t, snapshot(), inv)
}

func TestDecode_Rejects(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"payload":[]}`))
	assert.Error(t, err)
}

func TestDecodeInventory_Rejects(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"wrong type", Message{Type: "PING", Payload: json.RawMessage(`[]`)}},
		{"not a list", Message{Type: TypeSyncMachines, Payload: json.RawMessage(`{"id":"W1"}`)}},
		{"empty list", Message{Type: TypeSyncMachines, Payload: json.RawMessage(`[]`)}},
		{"busy without owner", Message{Type: TypeSyncMachines, Payload: json.RawMessage(`[{"id":"W1","name":"Washer 01","type":"WASHER","status":"BUSY"}]`)}},
		{"duplicate ids", Message{Type: TypeSyncMachines, Payload: json.RawMessage(
			`[{"id":"W1","name":"a","type":"WASHER","status":"AVAILABLE"},{"id":"W1","name":"b","type":"WASHER","status":"AVAILABLE"}]`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeInventory(tt.msg)
			assert.Error(t, err)
		})
	}
}

func TestHub_DeliversToPeersOnly(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a, b, c := hub.Join(), hub.Join(), hub.Join()
	defer a.Close()
	defer b.Close()
	defer c.Close()

	var ra, rb, rc recorder
	a.Subscribe(ra.handle)
	b.Subscribe(rb.handle)
	c.Subscribe(rc.handle)

	require.NoError(t, a.Publish(context.Background(), snapshot()))

	assert.Eventually(t, func() bool { return rb.count() == 1 && rc.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return ra.count() > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	inv, err := DecodeInventory(rb.last())
	require.NoError(t, err)
	assert.Equal(t, snapshot(), inv)
}

func TestHub_ClosedChannel(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a, b := hub.Join(), hub.Join()
	defer a.Close()

	var rb recorder
	b.Subscribe(rb.handle)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	require.NoError(t, a.Publish(context.Background(), snapshot()))
	assert.ErrorIs(t, b.Publish(context.Background(), snapshot()), ErrClosed)
	assert.Never(t, func() bool { return rb.count() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestRedisChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	a, err := NewRedisChannel(ctx, rdb, "cempaka_sync", zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()
	b, err := NewRedisChannel(ctx, rdb, "cempaka_sync", zerolog.Nop())
	require.NoError(t, err)
	defer b.Close()

	var ra, rb recorder
	a.Subscribe(ra.handle)
	b.Subscribe(rb.handle)

	require.NoError(t, a.Publish(ctx, snapshot()))

	assert.Eventually(t, func() bool { return rb.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool { return ra.count() > 0 }, 100*time.Millisecond, 10*time.Millisecond)

	inv, err := DecodeInventory(rb.last())
	require.NoError(t, err)
	assert.Equal(t, snapshot(), inv)
}

func TestRedisChannel_IgnoresGarbage(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	a, err := NewRedisChannel(ctx, rdb, "cempaka_sync", zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	var ra recorder
	a.Subscribe(ra.handle)

	require.NoError(t, rdb.Publish(ctx, "cempaka_sync", "garbage").Err())
	data, err := Encode("someone-else", snapshot())
	require.NoError(t, err)
	require.NoError(t, rdb.Publish(ctx, "cempaka_sync", data).Err())

	assert.Eventually(t, func() bool { return ra.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "someone-else", ra.last().Origin)
}

type fakeMessage struct {
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return "laundry/cempaka_sync" }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestMQTTChannel_OnMessage(t *testing.T) {
	c := NewMQTTChannel(nil, "laundry/cempaka_sync", zerolog.Nop())
	var r recorder
	c.Subscribe(r.handle)

	own, err := Encode(c.origin, snapshot())
	require.NoError(t, err)
	peer, err := Encode("peer", snapshot())
	require.NoError(t, err)

	c.onMessage(nil, fakeMessage{payload: own})
	c.onMessage(nil, fakeMessage{payload: []byte("{")})
	c.onMessage(nil, fakeMessage{payload: peer})

	require.Equal(t, 1, r.count())
	assert.Equal(t, "peer", r.last().Origin)
}
