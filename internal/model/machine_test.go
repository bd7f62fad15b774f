package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachine_MarshalJSON(t *testing.T) {
	left := 12
	busy := Machine{ID: "W1", Name: "Washer 01", Type: Washer, State: Busy{OwnerID: "user_abc", RemainingMinutes: &left}}
	data, err := json.Marshal(busy)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"W1","name":"Washer 01","type":"WASHER","status":"BUSY","ownerId":"user_abc","remainingMinutes":12}`, string(data))

	free := Machine{ID: "D1", Name: "Dryer 01", Type: Dryer, State: Available{}}
	data, err = json.Marshal(free)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"D1","name":"Dryer 01","type":"DRYER","status":"AVAILABLE"}`, string(data))
}

func TestMachine_UnmarshalJSON(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		expected  MachineState
		expectErr bool
	}{
		{
			name:     "Available",
			raw:      `{"id":"W1","name":"Washer 01","type":"WASHER","status":"AVAILABLE"}`,
			expected: Available{},
		},
		{
			name:     "Busy without countdown",
			raw:      `{"id":"W1","name":"Washer 01","type":"WASHER","status":"BUSY","ownerId":"user_abc"}`,
			expected: Busy{OwnerID: "user_abc"},
		},
		{
			name:     "Maintenance",
			raw:      `{"id":"D4","name":"Dryer 04","type":"DRYER","status":"MAINTENANCE"}`,
			expected: Maintenance{},
		},
		{
			name:      "Busy without owner",
			raw:       `{"id":"W1","name":"Washer 01","type":"WASHER","status":"BUSY"}`,
			expectErr: true,
		},
		{
			name:      "Available with owner",
			raw:       `{"id":"W1","name":"Washer 01","type":"WASHER","status":"AVAILABLE","ownerId":"user_abc"}`,
			expectErr: true,
		},
		{
			name:      "Available with countdown",
			raw:       `{"id":"W1","name":"Washer 01","type":"WASHER","status":"AVAILABLE","remainingMinutes":3}`,
			expectErr: true,
		},
		{
			name:      "Unknown status",
			raw:       `{"id":"W1","name":"Washer 01","type":"WASHER","status":"BROKEN"}`,
			expectErr: true,
		},
		{
			name:      "Unknown type",
			raw:       `{"id":"X1","name":"Mangle","type":"MANGLE","status":"AVAILABLE"}`,
			expectErr: true,
		},
		{
			name:      "Missing id",
			raw:       `{"name":"Washer 01","type":"WASHER","status":"AVAILABLE"}`,
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var m Machine
			err := json.Unmarshal([]byte(tc.raw), &m)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, m.State)
		})
	}
}

func TestInventory_Validate(t *testing.T) {
	valid := Inventory{
		{ID: "W1", Name: "Washer 01", Type: Washer, State: Available{}},
		{ID: "D1", Name: "Dryer 01", Type: Dryer, State: Busy{OwnerID: "user_abc"}},
	}
	assert.NoError(t, valid.Validate())

	assert.Error(t, Inventory{}.Validate(), "empty snapshot")
	assert.Error(t, Inventory{valid[0], valid[0]}.Validate(), "duplicate ids")
	assert.Error(t, Inventory{{ID: "W1", Type: Washer}}.Validate(), "missing state")
	assert.Error(t, Inventory{{ID: "W1", Type: Washer, State: Busy{}}}.Validate(), "busy without owner")
}

func TestInventory_CloneIsDeep(t *testing.T) {
	left := 5
	inv := Inventory{{ID: "W1", Type: Washer, State: Busy{OwnerID: "u", RemainingMinutes: &left}}}
	clone := inv.Clone()
	left = 1

	assert.Equal(t, 5, *clone[0].RemainingMinutes())
	assert.Equal(t, 1, *inv[0].RemainingMinutes())
}

func TestActiveBooking_EndsAt(t *testing.T) {
	b := ActiveBooking{MachineID: "W1", StartTime: 1000, DurationMinutes: 35}
	assert.Equal(t, time.UnixMilli(1000+35*60000), b.EndsAt())
	assert.Equal(t, 500*time.Millisecond, b.Remaining(time.UnixMilli(1000+35*60000-500)))
}
