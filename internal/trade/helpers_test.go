package trade

import (
	"errors"
	"testing"

	"barter/internal/item"
	"barter/internal/tick"
)

type fakeView struct {
	open      bool
	opens     int
	closes    int
	renders   int
	last      Snapshot
	prompt    *Prompt
	openErr   error
	promptErr error
}

func (v *fakeView) Open() error {
	if v.openErr != nil {
		return v.openErr
	}
	v.open = true
	v.opens++
	return nil
}

func (v *fakeView) Close() {
	v.open = false
	v.closes++
}

func (v *fakeView) Render(s Snapshot) {
	v.renders++
	v.last = s
}

func (v *fakeView) OpenPrompt(p Prompt) error {
	if v.promptErr != nil {
		return v.promptErr
	}
	v.prompt = &p
	return nil
}

func (v *fakeView) ClosePrompt() {
	v.prompt = nil
}

type fakeParty struct {
	id       PartyID
	inv      *item.Inventory
	view     *fakeView
	messages []string
	cues     []Cue
	drops    []item.Stack
}

func newFakeParty(id string, size int) *fakeParty {
	return &fakeParty{id: PartyID(id), inv: item.NewInventory(size), view: &fakeView{}}
}

func (p *fakeParty) ID() PartyID           { return p.id }
func (p *fakeParty) Storage() item.Storage { return p.inv }
func (p *fakeParty) View() View            { return p.view }
func (p *fakeParty) Send(text string)      { p.messages = append(p.messages, text) }
func (p *fakeParty) Cue(c Cue)             { p.cues = append(p.cues, c) }
func (p *fakeParty) Drop(s item.Stack)     { p.drops = append(p.drops, s) }

func (p *fakeParty) received(text string) int {
	n := 0
	for _, m := range p.messages {
		if m == text {
			n++
		}
	}
	return n
}

func (p *fakeParty) cued(c Cue) int {
	n := 0
	for _, x := range p.cues {
		if x == c {
			n++
		}
	}
	return n
}

type fakeWallet struct {
	balances map[PartyID]int64
	err      error
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{balances: make(map[PartyID]int64)}
}

func (w *fakeWallet) Balance(id PartyID) (int64, error) {
	if w.err != nil {
		return 0, w.err
	}
	return w.balances[id], nil
}

func (w *fakeWallet) Deposit(id PartyID, amount int64) error {
	w.balances[id] += amount
	return nil
}

func (w *fakeWallet) Withdraw(id PartyID, amount int64) error {
	if w.balances[id] < amount {
		return errors.New("insufficient funds")
	}
	w.balances[id] -= amount
	return nil
}

type fakeRecorder struct {
	events []Event
}

func (r *fakeRecorder) Record(ev Event) {
	r.events = append(r.events, ev)
}

type fakeWorld struct {
	fn           PickupFunc
	unregistered int
}

func (w *fakeWorld) ListenPickup(fn PickupFunc) func() {
	w.fn = fn
	return func() {
		w.fn = nil
		w.unregistered++
	}
}

type testEnv struct {
	loop     *tick.Loop
	a, b     *fakeParty
	gold     *fakeWallet
	recorder *fakeRecorder
	world    *fakeWorld
	opts     Options
	trade    *Trade
}

// Default pattern slots used throughout the tests
const (
	slotStatus  = 45
	slotCancel  = 46
	slotEconomy = 47
	slotNote    = 48
	slotPreview = 51
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.CountdownSteps = 3
	cfg.TicksPerStep = 2
	cfg.InviteTicks = 100
	return cfg
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		loop:     tick.NewLoop(),
		a:        newFakeParty("alice", item.DefaultSize),
		b:        newFakeParty("bob", item.DefaultSize),
		gold:     newFakeWallet(),
		recorder: &fakeRecorder{},
		world:    &fakeWorld{},
	}
	env.opts = Options{
		Pattern: DefaultPattern("gold"),
		Currencies: Currencies{
			"gold": {Name: "gold", Plural: "gold", Wallet: env.gold},
		},
		Scheduler: env.loop,
		World:     env.world,
		Recorder:  env.recorder,
		Config:    testConfig(),
	}

	tr, err := New(env.a, env.b, env.opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := tr.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	env.trade = tr
	return env
}

// give puts items into a party's storage
func give(t *testing.T, p *fakeParty, s item.Stack) {
	t.Helper()
	if !p.inv.Add(s) {
		t.Fatalf("could not give %dx %s to %s", s.Amount, s.Material, p.id)
	}
}

// offer takes items out of storage the way the UI layer does and places them
func offer(t *testing.T, env *testEnv, side Side, slot int, s item.Stack) {
	t.Helper()
	p := env.a
	if side == Second {
		p = env.b
	}
	if p.inv.Remove(s) != s.Amount {
		t.Fatalf("%s does not own %dx %s", p.id, s.Amount, s.Material)
	}
	leftover, err := env.trade.Offer(side, slot, s)
	if err != nil {
		t.Fatalf("Offer failed: %v", err)
	}
	if leftover != 0 {
		t.Fatalf("expected the whole stack to be offered, %d left", leftover)
	}
}

func runCountdown(env *testEnv) {
	env.loop.Advance(env.opts.Config.CountdownSteps * env.opts.Config.TicksPerStep)
}
