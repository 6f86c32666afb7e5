package trade

import (
	"fmt"

	"barter/internal/item"
)

// TradeSlot holds a stack a party offers
type TradeSlot struct {
	slot  int
	stack item.Stack
}

func (s *TradeSlot) Key() string { return string(KindTradeSlot) }

// Stack returns the offered stack, empty if the slot is free
func (s *TradeSlot) Stack() item.Stack { return s.stack }

func (s *TradeSlot) Render(t *Trade, side Side) Face {
	f := Face{Kind: KindTradeSlot}
	if !s.stack.IsEmpty() {
		st := s.stack.WithAmount(s.stack.Amount)
		f.Stack = &st
	}
	return f
}

func (s *TradeSlot) TryFinish(t *Trade, side Side) FinishResult {
	return Pass
}

// Finish hands the offered stack to the partner
func (s *TradeSlot) Finish(t *Trade, side Side) {
	if s.stack.IsEmpty() {
		return
	}
	t.deliver(side, s.stack)
	s.stack = item.Stack{}
}

// MirrorSlot shows the partner's offer at the mirrored position. It never
// stores anything itself.
type MirrorSlot struct {
	slot int
}

func (s *MirrorSlot) Key() string { return string(KindMirrorSlot) }

func (s *MirrorSlot) Render(t *Trade, side Side) Face {
	f := Face{Kind: KindMirrorSlot}
	if st, ok := t.Mirrored(side, s.slot); ok {
		f.Stack = &st
	}
	return f
}

// StatusIcon toggles the owner's ready flag
type StatusIcon struct{}

func (s *StatusIcon) Key() string { return string(KindStatus) }

func (s *StatusIcon) Click(t *Trade, side Side, c Click) Result {
	if t.State(side).Ready {
		return NotReady
	}
	return Ready
}

func (s *StatusIcon) Render(t *Trade, side Side) Face {
	st := t.State(side)
	label := "Click when ready"
	if st.Ready {
		label = "Ready"
		if !t.State(side.Other()).Ready {
			label = "Ready, waiting for partner"
		}
	}
	return Face{Kind: KindStatus, Label: label, Lit: st.Ready}
}

// PartnerStatusIcon shows whether the partner is ready
type PartnerStatusIcon struct{}

func (s *PartnerStatusIcon) Key() string { return string(KindPartnerStatus) }

func (s *PartnerStatusIcon) Render(t *Trade, side Side) Face {
	ready := t.State(side.Other()).Ready
	label := "Partner is not ready"
	if ready {
		label = "Partner is ready"
	}
	return Face{Kind: KindPartnerStatus, Label: label, Lit: ready}
}

// CancelIcon ends the trade
type CancelIcon struct{}

func (s *CancelIcon) Key() string { return string(KindCancel) }

func (s *CancelIcon) Click(t *Trade, side Side, c Click) Result {
	return Cancel
}

func (s *CancelIcon) Render(t *Trade, side Side) Face {
	return Face{Kind: KindCancel, Label: "Cancel trade"}
}

// DecorationIcon fills a slot without behaviour
type DecorationIcon struct {
	slot int
}

func (s *DecorationIcon) Key() string { return fmt.Sprintf("%s:%d", KindDecoration, s.slot) }

func (s *DecorationIcon) Render(t *Trade, side Side) Face {
	return Face{Kind: KindDecoration}
}
