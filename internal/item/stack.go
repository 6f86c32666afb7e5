package item

import (
	"strings"
)

// DefaultMaxStack is used when a stack does not declare its own limit
const DefaultMaxStack = 64

// Stack is a quantity of one item type
type Stack struct {
	Material string   `json:"material"`
	Name     string   `json:"name,omitempty"` // Display name, empty = derived from material
	Lore     []string `json:"lore,omitempty"`
	Amount   int      `json:"amount"`
	MaxStack int      `json:"max_stack,omitempty"`
}

// New creates a plain stack without metadata
func New(material string, amount int) Stack {
	return Stack{Material: material, Amount: amount}
}

// IsEmpty reports whether the stack holds nothing
func (s Stack) IsEmpty() bool {
	return s.Material == "" || s.Amount <= 0
}

// Max returns how many items of this type fit into one slot
func (s Stack) Max() int {
	if s.MaxStack <= 0 {
		return DefaultMaxStack
	}
	return s.MaxStack
}

// Similar reports whether both stacks are the same item type, ignoring amount
func (s Stack) Similar(o Stack) bool {
	if s.Material != o.Material || s.Name != o.Name || s.Max() != o.Max() {
		return false
	}
	if len(s.Lore) != len(o.Lore) {
		return false
	}
	for i := range s.Lore {
		if s.Lore[i] != o.Lore[i] {
			return false
		}
	}
	return true
}

// Key identifies the item type of the stack. Similar stacks share a key.
func (s Stack) Key() string {
	var b strings.Builder
	b.WriteString(s.Material)
	b.WriteByte('|')
	b.WriteString(s.Name)
	for _, l := range s.Lore {
		b.WriteByte('|')
		b.WriteString(l)
	}
	return b.String()
}

// WithAmount returns a copy of the stack holding n items
func (s Stack) WithAmount(n int) Stack {
	c := s
	if s.Lore != nil {
		c.Lore = append([]string(nil), s.Lore...)
	}
	c.Amount = n
	return c
}
