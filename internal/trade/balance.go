package trade

import (
	"errors"
	"fmt"
	"log"
	"sort"

	"barter/internal/item"
)

var (
	ErrNotOwnSlot   = errors.New("slot is not an offer slot")
	ErrSlotOccupied = errors.New("slot holds a different item")
	ErrEmptyStack   = errors.New("stack is empty")
	ErrPartnerFull  = errors.New("partner cannot receive more of this item")
	ErrStorageFull  = errors.New("storage is full")
)

// placeholderCursor reserves room for an item held on the cursor
var placeholderCursor = item.Stack{Material: "PLACEHOLDER_CURSOR", Amount: 1, MaxStack: 1}

// Offer places a stack the UI layer already took from the party into an
// offer slot. Only as much as the partner can receive is accepted; the
// returned amount is what the caller keeps.
func (t *Trade) Offer(side Side, slot int, s item.Stack) (int, error) {
	if err := t.check(side); err != nil {
		return s.Amount, err
	}
	ts := t.tradeSlot(side, slot)
	if ts == nil {
		return s.Amount, t.reject(fmt.Errorf("%w: %d", ErrNotOwnSlot, slot))
	}
	if s.IsEmpty() {
		return 0, ErrEmptyStack
	}
	if !ts.stack.IsEmpty() && !ts.stack.Similar(s) {
		return s.Amount, ErrSlotOccupied
	}

	current := 0
	if !ts.stack.IsEmpty() {
		current = ts.stack.Amount
	}
	n := min(s.Max()-current, s.Amount)
	if n <= 0 {
		return s.Amount, ErrSlotOccupied
	}

	// The partner has to be able to hold the whole offer, not just this stack
	scratch := t.parties[side.Other()].Storage().Clone()
	for _, other := range t.ownSlots {
		if other == slot {
			continue
		}
		if st := t.tradeSlot(side, other).stack; !st.IsEmpty() {
			scratch.AddUntilPossible(st, false)
		}
	}
	wanted := s.WithAmount(current + n)
	fits := wanted.Amount - scratch.AddUntilPossible(wanted, false)
	n = fits - current
	if n <= 0 {
		return s.Amount, ErrPartnerFull
	}

	ts.stack = s.WithAmount(current + n)
	t.invalidate(side, true)
	return s.Amount - n, nil
}

// Withdraw moves up to amount items from an offer slot back into the
// party's storage. amount <= 0 withdraws the whole slot.
func (t *Trade) Withdraw(side Side, slot int, amount int) (int, error) {
	if err := t.check(side); err != nil {
		return 0, err
	}
	ts := t.tradeSlot(side, slot)
	if ts == nil {
		return 0, t.reject(fmt.Errorf("%w: %d", ErrNotOwnSlot, slot))
	}
	if ts.stack.IsEmpty() {
		return 0, ErrEmptyStack
	}
	if amount <= 0 || amount > ts.stack.Amount {
		amount = ts.stack.Amount
	}

	leftover := t.parties[side].Storage().AddUntilPossible(ts.stack.WithAmount(amount), false)
	moved := amount - leftover
	if moved == 0 {
		return 0, ErrStorageFull
	}

	ts.stack.Amount -= moved
	if ts.stack.Amount <= 0 {
		ts.stack = item.Stack{}
	}
	t.invalidate(side, true)

	// Less room for what the partner offers
	t.balance(side.Other())
	return moved, nil
}

// Balance trims a side's offer to what the partner's storage can receive
// right now. Safe to call at any time; without intervening changes a second
// call changes nothing.
func (t *Trade) Balance(side Side) error {
	if err := t.check(side); err != nil {
		return err
	}
	t.balance(side)
	return nil
}

func (t *Trade) balance(side Side) {
	type entry struct {
		slot int
		ts   *TradeSlot
	}

	var entries []entry
	for _, slot := range t.ownSlots {
		if ts := t.tradeSlot(side, slot); !ts.stack.IsEmpty() {
			entries = append(entries, entry{slot: slot, ts: ts})
		}
	}
	if len(entries) == 0 {
		t.update()
		return
	}

	// Largest piles claim room first so only the smallest get trimmed
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ts.stack.Amount > entries[j].ts.stack.Amount
	})

	scratch := t.parties[side.Other()].Storage().Clone()
	changed := false
	for _, e := range entries {
		leftover := scratch.AddUntilPossible(e.ts.stack, false)
		if leftover <= 0 {
			continue
		}

		removed := e.ts.stack.WithAmount(leftover)
		e.ts.stack.Amount -= leftover
		if e.ts.stack.Amount <= 0 {
			e.ts.stack = item.Stack{}
		}
		changed = true

		if t.returnTo(side, removed) {
			t.parties[side].Send(t.cfg.Messages.ItemsDropped)
		}
	}

	if changed {
		log.Printf("[Trade] %s trimmed offer of %s to fit %s", t.id, t.ids[side], t.ids[side.Other()])
		t.invalidate(side, true)
		return
	}
	t.update()
}

// returnTo puts a stack back into a side's storage and drops what does not
// fit. It reports whether anything was dropped.
func (t *Trade) returnTo(side Side, s item.Stack) bool {
	leftover := t.parties[side].Storage().AddUntilPossible(s, false)
	if leftover <= 0 {
		return false
	}
	t.parties[side].Drop(s.WithAmount(leftover))
	t.dropped[side] = true
	log.Printf("[Trade] %s dropped %dx %s for %s", t.id, leftover, s.Material, t.ids[side])
	return true
}

// deliver hands an offered stack to the partner of from
func (t *Trade) deliver(from Side, s item.Stack) {
	to := from.Other()
	t.transfers = append(t.transfers, Transfer{From: from, Stack: s.WithAmount(s.Amount)})
	t.returnTo(to, s)
}

// CanPickup reports whether a side could pick up a stack without losing the
// room needed to take back its own offer on cancellation
func (t *Trade) CanPickup(side Side, s item.Stack) bool {
	if !side.Valid() {
		return true
	}
	scratch := t.parties[side].Storage().Clone()
	for _, slot := range t.ownSlots {
		if st := t.tradeSlot(side, slot).stack; !st.IsEmpty() {
			if scratch.AddUntilPossible(st, false) > 0 {
				return false
			}
		}
	}
	if t.states[side].HoldingItem && !scratch.Add(placeholderCursor) {
		return false
	}
	return scratch.Add(s)
}

// handlePickup is registered with the world while the trade runs
func (t *Trade) handlePickup(id PartyID, s item.Stack) bool {
	side := t.SideOf(id)
	if side == NoSide || t.closed() {
		return true
	}
	if !t.CanPickup(side, s) {
		t.states[side].AwaitingPickup = true
		return false
	}
	t.states[side].AwaitingPickup = false

	// The pickup lands after this event; re-check the partner's offer then
	t.sched.After(1, func() {
		if !t.closed() {
			t.balance(side.Other())
		}
	})
	return true
}
