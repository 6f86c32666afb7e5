package game

import (
	"errors"
	"fmt"

	"barter/internal/item"
	"barter/internal/trade"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrEmptySlot      = errors.New("inventory slot is empty")
	ErrUnknownPlayer  = errors.New("player is not online")
)

// Command types sent by clients
const (
	CmdInvite   = "invite"
	CmdDeny     = "deny"
	CmdOffer    = "offer"
	CmdWithdraw = "withdraw"
	CmdClick    = "click"
	CmdInput    = "input"
	CmdResume   = "resume"
	CmdClose    = "close"
	CmdHold     = "hold"
	CmdPickup   = "pickup"
)

// Command is one client action
type Command struct {
	Type   string `json:"type"`
	Target string `json:"target,omitempty"` // invite, deny
	Slot   int    `json:"slot,omitempty"`   // trade panel slot
	From   int    `json:"from,omitempty"`   // inventory slot for offers
	Amount int    `json:"amount,omitempty"` // 0 = whole stack
	Action string `json:"action,omitempty"` // left, right, shift
	Value  string `json:"value,omitempty"`  // secondary view input
	Drop   int64  `json:"drop,omitempty"`   // dropped item id
	Held   bool   `json:"held,omitempty"`   // an item sits on the cursor
}

func parseAction(s string) (trade.ClickAction, error) {
	switch s {
	case "", "left":
		return trade.LeftClick, nil
	case "right":
		return trade.RightClick, nil
	case "shift":
		return trade.ShiftClick, nil
	default:
		return 0, fmt.Errorf("%w: click %q", ErrUnknownCommand, s)
	}
}

func (s *Service) handle(id trade.PartyID, cmd Command) error {
	p := s.players[id]
	if p == nil {
		return ErrNotConnected
	}
	defer p.pushInventory()

	switch cmd.Type {
	case CmdInvite:
		target := s.players[trade.PartyID(cmd.Target)]
		if target == nil {
			return fmt.Errorf("%w: %s", ErrUnknownPlayer, cmd.Target)
		}
		_, err := s.manager.Invite(p, target)
		return err

	case CmdDeny:
		return s.manager.Deny(p, trade.PartyID(cmd.Target))

	case CmdPickup:
		return s.world.Pickup(p, cmd.Drop)
	}

	tr := s.manager.Of(id)
	if tr == nil {
		return ErrNotTrading
	}
	side := tr.SideOf(id)

	switch cmd.Type {
	case CmdOffer:
		return s.offer(p, tr, side, cmd)

	case CmdWithdraw:
		_, err := tr.Withdraw(side, cmd.Slot, cmd.Amount)
		return err

	case CmdClick:
		action, err := parseAction(cmd.Action)
		if err != nil {
			return err
		}
		return tr.Click(side, cmd.Slot, trade.Click{Action: action})

	case CmdInput:
		err := tr.Submit(side, cmd.Slot, cmd.Value)
		p.ClosePrompt()
		return err

	case CmdResume:
		p.prompt = false
		return tr.Resume(side)

	case CmdHold:
		return tr.SetHoldingItem(side, cmd.Held)

	case CmdClose:
		if !p.prompt {
			p.open = false
		}
		return tr.Closed(side)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
}

// offer moves items from an inventory slot into a trade slot. Whatever the
// trade does not accept goes back to the inventory.
func (s *Service) offer(p *Player, tr *trade.Trade, side trade.Side, cmd Command) error {
	if p.inv.Slot(cmd.From).IsEmpty() {
		return fmt.Errorf("%w: %d", ErrEmptySlot, cmd.From)
	}
	stack := p.inv.Take(cmd.From, cmd.Amount)

	leftover, err := tr.Offer(side, cmd.Slot, stack)
	if leftover > 0 {
		s.restore(p, stack.WithAmount(leftover))
	}
	return err
}

// restore puts items back into the inventory and drops what no longer fits
func (s *Service) restore(p *Player, st item.Stack) {
	if rest := p.inv.AddUntilPossible(st, false); rest > 0 {
		p.Drop(st.WithAmount(rest))
	}
}
