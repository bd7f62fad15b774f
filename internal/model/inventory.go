package model

import (
	"errors"
	"fmt"
)

// Inventory is the full, ordered machine list of a facility. It is the unit
// of persistence and of synchronization between kiosks.
type Inventory []Machine

// Validate checks the structural invariants of a snapshot.
func (inv Inventory) Validate() error {
	if len(inv) == 0 {
		return errors.New("inventory is empty")
	}
	seen := make(map[string]struct{}, len(inv))
	for i, m := range inv {
		if m.ID == "" {
			return fmt.Errorf("machine #%d has no id", i)
		}
		if _, dup := seen[m.ID]; dup {
			return fmt.Errorf("duplicate machine id %q", m.ID)
		}
		seen[m.ID] = struct{}{}
		if !m.Type.Valid() {
			return fmt.Errorf("machine %s: unknown type %q", m.ID, m.Type)
		}
		if m.State == nil {
			return fmt.Errorf("machine %s has no state", m.ID)
		}
		if b, ok := m.State.(Busy); ok && b.OwnerID == "" {
			return fmt.Errorf("machine %s: BUSY machine has no owner", m.ID)
		}
	}
	return nil
}

// Clone returns a deep copy of the inventory.
func (inv Inventory) Clone() Inventory {
	if inv == nil {
		return nil
	}
	out := make(Inventory, len(inv))
	for i, m := range inv {
		out[i] = m.Clone()
	}
	return out
}

// Index returns the position of the machine with the given id.
func (inv Inventory) Index(id string) (int, bool) {
	for i, m := range inv {
		if m.ID == id {
			return i, true
		}
	}
	return -1, false
}

// OfType returns copies of the machines of type t, in inventory order.
func (inv Inventory) OfType(t MachineType) Inventory {
	out := make(Inventory, 0, len(inv))
	for _, m := range inv {
		if m.Type == t {
			out = append(out, m.Clone())
		}
	}
	return out
}
