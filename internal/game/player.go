package game

import (
	"errors"
	"log"

	"barter/internal/item"
	"barter/internal/store"
	"barter/internal/trade"
)

var ErrViewClosed = errors.New("trade view is not open")

// Message types pushed to clients
const (
	MsgOpen        = "open"
	MsgClose       = "close"
	MsgView        = "view"
	MsgPrompt      = "prompt"
	MsgPromptClose = "prompt_close"
	MsgMessage     = "message"
	MsgCue         = "cue"
	MsgInventory   = "inventory"
	MsgError       = "error"
	MsgTradeEnd    = "trade_end"
)

// Message is pushed to a connected player
type Message struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Cue       string          `json:"cue,omitempty"`
	View      *trade.Snapshot `json:"view,omitempty"`
	Prompt    *trade.Prompt   `json:"prompt,omitempty"`
	Inventory *item.Inventory `json:"inventory,omitempty"`
	TradeID   string          `json:"trade_id,omitempty"`
	Outcome   string          `json:"outcome,omitempty"`
}

// Outbox delivers messages to a client. Push is called from the tick loop
// and must neither block nor keep references into the message after returning.
type Outbox interface {
	Push(msg Message)
}

// Player is a connected user taking part in trades
type Player struct {
	svc    *Service
	user   *store.User
	inv    *item.Inventory
	out    Outbox
	open   bool
	prompt bool
}

func (p *Player) ID() trade.PartyID { return trade.PartyID(p.user.Username) }

func (p *Player) Storage() item.Storage { return p.inv }

func (p *Player) View() trade.View { return p }

func (p *Player) Send(text string) {
	p.out.Push(Message{Type: MsgMessage, Text: text})
}

func (p *Player) Cue(c trade.Cue) {
	p.out.Push(Message{Type: MsgCue, Cue: c.String()})
}

// Drop leaves the stack in the world where the player can pick it up later
func (p *Player) Drop(s item.Stack) {
	p.svc.world.Drop(p.ID(), s)
}

func (p *Player) Open() error {
	if p.open {
		return trade.ErrAlreadyOpen
	}
	p.open = true
	p.out.Push(Message{Type: MsgOpen})
	return nil
}

func (p *Player) Close() {
	if !p.open {
		return
	}
	p.open = false
	p.prompt = false
	p.out.Push(Message{Type: MsgClose, Inventory: p.inv.Copy()})
}

func (p *Player) Render(s trade.Snapshot) {
	p.out.Push(Message{Type: MsgView, View: &s, Inventory: p.inv.Copy()})
}

func (p *Player) OpenPrompt(pr trade.Prompt) error {
	if !p.open {
		return ErrViewClosed
	}
	if p.prompt {
		return trade.ErrAlreadyOpen
	}
	p.prompt = true
	p.out.Push(Message{Type: MsgPrompt, Prompt: &pr})
	return nil
}

func (p *Player) ClosePrompt() {
	if !p.prompt {
		return
	}
	p.prompt = false
	p.out.Push(Message{Type: MsgPromptClose})
}

// pushInventory sends the current inventory
func (p *Player) pushInventory() {
	p.out.Push(Message{Type: MsgInventory, Inventory: p.inv.Copy()})
}

// save persists the inventory
func (p *Player) save() {
	if err := p.svc.store.SaveInventory(p.user.ID, p.inv); err != nil {
		log.Printf("[Game] failed to save inventory of %s: %v", p.user.Username, err)
	}
}
