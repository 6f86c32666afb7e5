package trade

import (
	"log"

	"barter/internal/item"
)

// Cancel ends the trade and returns every offered item to its owner.
// reason is sent to both parties; empty sends the generic message. Calling
// it again, or on a finished trade, does nothing.
func (t *Trade) Cancel(reason string) {
	if t.cancelling || t.phase.Terminal() {
		return
	}
	t.cancelling = true
	t.phase = Cancelling

	if t.countdown != nil {
		t.countdown.Stop()
		t.countdown = nil
	}

	// Secondary views go first so nothing they hold is lost with the panel
	t.clearPrompts()
	dropped := t.returnOffers()

	if t.unlisten != nil {
		t.unlisten()
		t.unlisten = nil
	}
	for _, side := range sides {
		t.parties[side].Cue(CueCancel)
	}
	t.teardown()

	t.record(Aborted, reason)

	for _, side := range sides {
		if reason != "" {
			t.parties[side].Send(reason)
		} else {
			t.parties[side].Send(t.cfg.Messages.Cancelled)
		}
	}
	for _, side := range sides {
		if dropped[side] {
			t.parties[side].Send(t.cfg.Messages.ItemsDropped)
		}
	}

	t.phase = Cancelled
	if reason == "" {
		reason = "no reason"
	}
	log.Printf("[Trade] %s cancelled: %s", t.id, reason)
}

// Cancelling reports whether cancellation has begun
func (t *Trade) Cancelling() bool {
	return t.cancelling
}

func (t *Trade) clearPrompts() {
	for _, side := range sides {
		if t.prompts[side] >= 0 {
			t.parties[side].View().ClosePrompt()
			t.prompts[side] = -1
		}
		t.states[side].Paused = false

		l := t.layouts[side]
		for _, slot := range l.Slots() {
			if pc, ok := l.Icon(slot).(PendingClearer); ok {
				pc.ClearPending()
			}
		}
	}
}

// returnOffers empties every offer slot into its owner's storage
func (t *Trade) returnOffers() [2]bool {
	var dropped [2]bool
	for _, side := range sides {
		for _, slot := range t.ownSlots {
			ts := t.tradeSlot(side, slot)
			if ts.stack.IsEmpty() {
				continue
			}
			s := ts.stack
			ts.stack = item.Stack{}
			if t.returnTo(side, s) {
				dropped[side] = true
			}
		}
	}
	return dropped
}
