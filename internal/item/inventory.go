package item

import (
	"encoding/json"
	"fmt"
)

// Storage is what a trade may ask of a party's personal storage.
// Implementations must tolerate being changed by others between calls.
type Storage interface {
	// CanAccept reports whether the whole stack would fit
	CanAccept(s Stack) bool
	// AddUntilPossible adds as much of the stack as fits and returns the
	// amount that did not fit. With simulate set nothing is changed.
	AddUntilPossible(s Stack, simulate bool) int
	// Add stores the whole stack or nothing
	Add(s Stack) bool
	// Clone returns an independent scratch copy for multi-stack simulation
	Clone() Storage
}

// DefaultSize matches a player's main storage grid
const DefaultSize = 36

// Inventory is a fixed-size grid of slots
type Inventory struct {
	slots []Stack
}

// NewInventory creates an empty inventory with the given number of slots
func NewInventory(size int) *Inventory {
	if size <= 0 {
		size = DefaultSize
	}
	return &Inventory{slots: make([]Stack, size)}
}

// Size returns the number of slots
func (inv *Inventory) Size() int {
	return len(inv.slots)
}

// CanAccept reports whether the whole stack would fit
func (inv *Inventory) CanAccept(s Stack) bool {
	return inv.AddUntilPossible(s, true) == 0
}

// AddUntilPossible fills matching partial stacks first, then empty slots
func (inv *Inventory) AddUntilPossible(s Stack, simulate bool) int {
	if s.IsEmpty() {
		return 0
	}

	remaining := s.Amount
	max := s.Max()

	for i := range inv.slots {
		if remaining == 0 {
			break
		}
		cur := inv.slots[i]
		if cur.IsEmpty() || !cur.Similar(s) || cur.Amount >= max {
			continue
		}
		n := min(max-cur.Amount, remaining)
		remaining -= n
		if !simulate {
			inv.slots[i].Amount += n
		}
	}

	for i := range inv.slots {
		if remaining == 0 {
			break
		}
		if !inv.slots[i].IsEmpty() {
			continue
		}
		n := min(max, remaining)
		remaining -= n
		if !simulate {
			inv.slots[i] = s.WithAmount(n)
		}
	}

	return remaining
}

// Add stores the whole stack or nothing
func (inv *Inventory) Add(s Stack) bool {
	if !inv.CanAccept(s) {
		return false
	}
	inv.AddUntilPossible(s, false)
	return true
}

// Clone returns a deep copy
func (inv *Inventory) Clone() Storage {
	return inv.Copy()
}

// Copy returns a deep copy with the concrete type
func (inv *Inventory) Copy() *Inventory {
	c := &Inventory{slots: make([]Stack, len(inv.slots))}
	for i, s := range inv.slots {
		c.slots[i] = s.WithAmount(s.Amount)
	}
	return c
}

// Slot returns a copy of the stack in slot i, empty when out of range
func (inv *Inventory) Slot(i int) Stack {
	if i < 0 || i >= len(inv.slots) {
		return Stack{}
	}
	s := inv.slots[i]
	return s.WithAmount(s.Amount)
}

// Take removes up to n items from slot i and returns them. n <= 0 takes the whole slot.
func (inv *Inventory) Take(i, n int) Stack {
	if i < 0 || i >= len(inv.slots) || inv.slots[i].IsEmpty() {
		return Stack{}
	}
	cur := inv.slots[i]
	if n <= 0 || n > cur.Amount {
		n = cur.Amount
	}
	inv.slots[i].Amount -= n
	if inv.slots[i].Amount == 0 {
		inv.slots[i] = Stack{}
	}
	return cur.WithAmount(n)
}

// Remove takes up to s.Amount items similar to s and returns how many were removed
func (inv *Inventory) Remove(s Stack) int {
	remaining := s.Amount
	for i := len(inv.slots) - 1; i >= 0 && remaining > 0; i-- {
		cur := inv.slots[i]
		if cur.IsEmpty() || !cur.Similar(s) {
			continue
		}
		n := min(cur.Amount, remaining)
		remaining -= n
		inv.slots[i].Amount -= n
		if inv.slots[i].Amount == 0 {
			inv.slots[i] = Stack{}
		}
	}
	return s.Amount - remaining
}

// Count returns the total amount of items similar to s
func (inv *Inventory) Count(s Stack) int {
	total := 0
	for _, cur := range inv.slots {
		if !cur.IsEmpty() && cur.Similar(s) {
			total += cur.Amount
		}
	}
	return total
}

// CountMaterial sums all stacks of a material regardless of metadata
func (inv *Inventory) CountMaterial(material string) int {
	total := 0
	for _, cur := range inv.slots {
		if !cur.IsEmpty() && cur.Material == material {
			total += cur.Amount
		}
	}
	return total
}

// Contents returns the non-empty stacks in slot order
func (inv *Inventory) Contents() []Stack {
	out := make([]Stack, 0, len(inv.slots))
	for _, s := range inv.slots {
		if !s.IsEmpty() {
			out = append(out, s.WithAmount(s.Amount))
		}
	}
	return out
}

// FreeSlots returns the number of empty slots
func (inv *Inventory) FreeSlots() int {
	n := 0
	for _, s := range inv.slots {
		if s.IsEmpty() {
			n++
		}
	}
	return n
}

type inventoryJSON struct {
	Size  int     `json:"size"`
	Slots []Stack `json:"slots"`
}

// MarshalJSON stores the slot grid including empty slots
func (inv *Inventory) MarshalJSON() ([]byte, error) {
	return json.Marshal(inventoryJSON{Size: len(inv.slots), Slots: inv.slots})
}

// UnmarshalJSON restores a grid written by MarshalJSON
func (inv *Inventory) UnmarshalJSON(data []byte) error {
	var raw inventoryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Size <= 0 {
		raw.Size = DefaultSize
	}
	if len(raw.Slots) > raw.Size {
		return fmt.Errorf("inventory has %d slots but size %d", len(raw.Slots), raw.Size)
	}
	inv.slots = make([]Stack, raw.Size)
	copy(inv.slots, raw.Slots)
	return nil
}
