package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MachineType distinguishes washers from dryers.
type MachineType string

const (
	Washer MachineType = "WASHER"
	Dryer  MachineType = "DRYER"
)

// Valid reports whether t is a known machine type.
func (t MachineType) Valid() bool {
	return t == Washer || t == Dryer
}

// MachineStatus is the status reported on the wire for a machine.
type MachineStatus string

const (
	StatusAvailable   MachineStatus = "AVAILABLE"
	StatusBusy        MachineStatus = "BUSY"
	StatusMaintenance MachineStatus = "MAINTENANCE"
)

// MachineState is the per-status payload of a machine. Only the variants in
// this package implement it, so a BUSY machine always carries an owner and
// the other statuses never do.
type MachineState interface {
	Status() MachineStatus
	isMachineState()
}

// Available is a free machine.
type Available struct{}

// Busy is a machine held by a booking. RemainingMinutes is a display cache
// refreshed by the countdown; expiry never reads it.
type Busy struct {
	OwnerID          string
	RemainingMinutes *int
}

// Maintenance is an administratively disabled machine.
type Maintenance struct{}

func (Available) Status() MachineStatus   { return StatusAvailable }
func (Busy) Status() MachineStatus        { return StatusBusy }
func (Maintenance) Status() MachineStatus { return StatusMaintenance }

func (Available) isMachineState()   {}
func (Busy) isMachineState()        {}
func (Maintenance) isMachineState() {}

// Machine is one permanent kiosk slot of the facility.
type Machine struct {
	ID    string
	Name  string
	Type  MachineType
	State MachineState
}

// Status returns the machine's status; a zero machine counts as available.
func (m Machine) Status() MachineStatus {
	if m.State == nil {
		return StatusAvailable
	}
	return m.State.Status()
}

// OwnerID returns the owner of a busy machine, or "".
func (m Machine) OwnerID() string {
	if b, ok := m.State.(Busy); ok {
		return b.OwnerID
	}
	return ""
}

// OwnedBy reports whether the machine is busy and held by identity.
func (m Machine) OwnedBy(identity string) bool {
	return identity != "" && m.OwnerID() == identity
}

// RemainingMinutes returns the advisory countdown of a busy machine.
func (m Machine) RemainingMinutes() *int {
	if b, ok := m.State.(Busy); ok {
		return b.RemainingMinutes
	}
	return nil
}

// Clone returns a copy that shares no pointers with m.
func (m Machine) Clone() Machine {
	if b, ok := m.State.(Busy); ok && b.RemainingMinutes != nil {
		left := *b.RemainingMinutes
		b.RemainingMinutes = &left
		m.State = b
	}
	return m
}

// machineJSON is the flat wire and storage form of a Machine.
type machineJSON struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Type             MachineType   `json:"type"`
	Status           MachineStatus `json:"status"`
	OwnerID          string        `json:"ownerId,omitempty"`
	RemainingMinutes *int          `json:"remainingMinutes,omitempty"`
}

// MarshalJSON flattens the state variant into status/ownerId/remainingMinutes.
func (m Machine) MarshalJSON() ([]byte, error) {
	out := machineJSON{ID: m.ID, Name: m.Name, Type: m.Type, Status: m.Status()}
	if b, ok := m.State.(Busy); ok {
		out.OwnerID = b.OwnerID
		out.RemainingMinutes = b.RemainingMinutes
	}
	return json.Marshal(out)
}

// UnmarshalJSON rebuilds the state variant and rejects combinations that
// cannot be represented, such as a BUSY machine without an owner.
func (m *Machine) UnmarshalJSON(data []byte) error {
	var in machineJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.ID == "" {
		return errors.New("machine id is required")
	}
	if !in.Type.Valid() {
		return fmt.Errorf("machine %s: unknown type %q", in.ID, in.Type)
	}

	var state MachineState
	switch in.Status {
	case StatusAvailable, StatusMaintenance:
		if in.OwnerID != "" || in.RemainingMinutes != nil {
			return fmt.Errorf("machine %s: %s machine cannot carry an owner or countdown", in.ID, in.Status)
		}
		if in.Status == StatusAvailable {
			state = Available{}
		} else {
			state = Maintenance{}
		}
	case StatusBusy:
		if in.OwnerID == "" {
			return fmt.Errorf("machine %s: BUSY machine has no owner", in.ID)
		}
		state = Busy{OwnerID: in.OwnerID, RemainingMinutes: in.RemainingMinutes}
	default:
		return fmt.Errorf("machine %s: unknown status %q", in.ID, in.Status)
	}

	*m = Machine{ID: in.ID, Name: in.Name, Type: in.Type, State: state}
	return nil
}
