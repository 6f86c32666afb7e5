package trade

import (
	"errors"
	"fmt"
	"log"

	"barter/internal/tick"
)

var (
	ErrSelfTrade = errors.New("cannot trade with yourself")
	ErrBusy      = errors.New("party is already trading")
	ErrNoInvite  = errors.New("no pending trade request")
)

type invite struct {
	from  Party
	to    Party
	timer tick.Timer
}

type pair struct {
	from, to PartyID
}

// Manager keeps at most one trade per party and turns mutual requests into trades
type Manager struct {
	opts    Options
	trades  map[PartyID]*Trade
	invites map[pair]*invite
}

// NewManager creates a manager that builds every trade with opts
func NewManager(opts Options) *Manager {
	opts.Config = opts.Config.withDefaults()
	return &Manager{
		opts:    opts,
		trades:  make(map[PartyID]*Trade),
		invites: make(map[pair]*invite),
	}
}

// Of returns the trade a party takes part in, or nil
func (m *Manager) Of(id PartyID) *Trade {
	return m.trades[id]
}

// Active returns the number of running trades
func (m *Manager) Active() int {
	return len(m.trades) / 2
}

// Invite records that from wants to trade with to. When to already asked
// for the same, the trade starts and is returned; otherwise the result is nil.
func (m *Manager) Invite(from, to Party) (*Trade, error) {
	if from.ID() == to.ID() {
		return nil, ErrSelfTrade
	}
	if m.trades[from.ID()] != nil {
		return nil, fmt.Errorf("%s: %w", from.ID(), ErrBusy)
	}
	if m.trades[to.ID()] != nil {
		return nil, fmt.Errorf("%s: %w", to.ID(), ErrBusy)
	}

	if back, ok := m.invites[pair{to.ID(), from.ID()}]; ok {
		m.dropInvite(back)
		return m.start(to, from)
	}

	key := pair{from.ID(), to.ID()}
	if _, ok := m.invites[key]; ok {
		return nil, nil
	}

	inv := &invite{from: from, to: to}
	inv.timer = m.opts.Scheduler.After(m.opts.Config.InviteTicks, func() {
		if m.invites[key] != inv {
			return
		}
		delete(m.invites, key)
		from.Send(fmt.Sprintf(m.opts.Config.Messages.InviteExpired, to.ID()))
	})
	m.invites[key] = inv

	from.Send(fmt.Sprintf(m.opts.Config.Messages.InviteSent, to.ID()))
	to.Send(fmt.Sprintf(m.opts.Config.Messages.Invited, from.ID()))
	return nil, nil
}

// Deny rejects the request from inviter to invitee
func (m *Manager) Deny(invitee Party, inviter PartyID) error {
	inv, ok := m.invites[pair{inviter, invitee.ID()}]
	if !ok {
		return ErrNoInvite
	}
	m.dropInvite(inv)
	inv.from.Send(fmt.Sprintf(m.opts.Config.Messages.InviteDenied, invitee.ID()))
	return nil
}

// Pending reports whether from has an open request to to
func (m *Manager) Pending(from, to PartyID) bool {
	_, ok := m.invites[pair{from, to}]
	return ok
}

// Leave cancels the trade and requests of a party that disconnected
func (m *Manager) Leave(id PartyID) {
	for key, inv := range m.invites {
		if key.from == id || key.to == id {
			m.dropInvite(inv)
		}
	}
	if t := m.trades[id]; t != nil {
		t.Cancel(m.opts.Config.Messages.PartnerLeft)
	}
}

// CancelAll cancels every running trade, e.g. on shutdown
func (m *Manager) CancelAll(reason string) {
	seen := make(map[*Trade]bool)
	for _, t := range m.trades {
		if !seen[t] {
			seen[t] = true
			t.Cancel(reason)
		}
	}
}

func (m *Manager) dropInvite(inv *invite) {
	if inv.timer != nil {
		inv.timer.Stop()
	}
	delete(m.invites, pair{inv.from.ID(), inv.to.ID()})
}

func (m *Manager) start(a, b Party) (*Trade, error) {
	t, err := New(a, b, m.opts)
	if err != nil {
		return nil, err
	}

	t.onClose = m.release
	m.trades[a.ID()] = t
	m.trades[b.ID()] = t

	// Requests either party made to someone else are void now
	for key, inv := range m.invites {
		if key.from == a.ID() || key.from == b.ID() {
			m.dropInvite(inv)
		}
	}

	if err := t.Start(); err != nil {
		return nil, err
	}
	return t, nil
}

func (m *Manager) release(t *Trade) {
	for _, id := range t.ids {
		if m.trades[id] == t {
			delete(m.trades, id)
		}
	}
	log.Printf("[Manager] released trade %s (%d active)", t.id, m.Active())
}
