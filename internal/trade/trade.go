// Package trade implements the two-party barter negotiation: mirrored
// offers, ready flags, the commit countdown and clean rollback.
//
// A Trade is not safe for concurrent use. Every call must come from the
// tick loop that owns it.
package trade

import (
	"errors"
	"fmt"
	"log"
	"sort"

	"barter/internal/item"
	"barter/internal/report"
	"barter/internal/tick"

	"github.com/google/uuid"
)

var (
	ErrNotMember    = errors.New("party is not a member of this trade")
	ErrClosed       = errors.New("trade is closed")
	ErrNoIcon       = errors.New("no icon in slot")
	ErrNotClickable = errors.New("icon cannot be clicked")
	ErrNoPrompt     = errors.New("icon has no secondary view")
	ErrProtocol     = errors.New("trade protocol violation")
)

// Options are the collaborators a trade needs
type Options struct {
	Pattern    *Pattern
	Currencies Currencies
	Scheduler  tick.Scheduler
	World      World    // Optional
	Recorder   Recorder // Optional
	Config     Config
}

// Trade is one running negotiation
type Trade struct {
	id       string
	parties  [2]Party
	ids      [2]PartyID
	cfg      Config
	sched    tick.Scheduler
	world    World
	recorder Recorder
	reports  report.Builder

	layouts     [2]*Layout
	states      [2]PartyState
	prompts     [2]int // Slot with an open secondary view, -1 = none
	ownSlots    []int
	mirrorSlots []int

	phase          Phase
	countdown      tick.Timer
	countdownTicks int
	countdownGen   int
	cancelling     bool

	unlisten func()
	onClose  func(*Trade)

	transfers  []Transfer
	currencies [2][]report.Currency
	currencyTx []CurrencyTransfer
	dropped    [2]bool
}

// New builds a trade between two parties. Call Start to open the views.
func New(a, b Party, opts Options) (*Trade, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("trade needs two parties")
	}
	if a.ID() == b.ID() {
		return nil, ErrSelfTrade
	}
	if opts.Pattern == nil || opts.Scheduler == nil {
		return nil, fmt.Errorf("trade needs a pattern and a scheduler")
	}

	cfg := opts.Config.withDefaults()
	t := &Trade{
		id:       uuid.New().String(),
		parties:  [2]Party{a, b},
		ids:      [2]PartyID{a.ID(), b.ID()},
		cfg:      cfg,
		sched:    opts.Scheduler,
		world:    opts.World,
		recorder: opts.Recorder,
		reports:  report.Builder{Templates: cfg.Templates},
		prompts:  [2]int{-1, -1},
		phase:    Negotiating,
	}

	for _, side := range sides {
		l, err := opts.Pattern.Build(opts.Currencies)
		if err != nil {
			return nil, err
		}
		t.layouts[side] = l
	}
	t.buildSlots(opts.Pattern)

	return t, nil
}

// buildSlots orders the mirror slots row by row and right to left within a
// row so that both panels look like mirror images of each other
func (t *Trade) buildSlots(p *Pattern) {
	t.ownSlots = p.SlotsOf(KindTradeSlot)
	t.mirrorSlots = p.SlotsOf(KindMirrorSlot)
	sort.Slice(t.mirrorSlots, func(i, j int) bool {
		ri, rj := t.mirrorSlots[i]/RowWidth, t.mirrorSlots[j]/RowWidth
		if ri != rj {
			return ri < rj
		}
		return t.mirrorSlots[i] > t.mirrorSlots[j]
	})
}

// Start opens both views and begins listening for pickups
func (t *Trade) Start() error {
	if t.closed() {
		return ErrClosed
	}

	for _, side := range sides {
		if err := t.parties[side].View().Open(); err != nil && !errors.Is(err, ErrAlreadyOpen) {
			log.Printf("[Trade] %s could not open view for %s: %v", t.id, t.ids[side], err)
			t.Cancel(t.cfg.Messages.OpenViewError)
			return fmt.Errorf("open view for %s: %w", t.ids[side], err)
		}
	}

	if t.world != nil {
		t.unlisten = t.world.ListenPickup(t.handlePickup)
	}

	t.render()
	for _, side := range sides {
		t.parties[side].Cue(CueStart)
	}

	log.Printf("[Trade] %s started between %s and %s", t.id, t.ids[0], t.ids[1])
	return nil
}

// ID returns the trade identifier
func (t *Trade) ID() string { return t.id }

// Phase returns the current negotiation phase
func (t *Trade) Phase() Phase { return t.phase }

// Parties returns the identifiers of both sides
func (t *Trade) Parties() [2]PartyID { return t.ids }

// Party returns the party on a side
func (t *Trade) Party(side Side) Party {
	if !side.Valid() {
		return nil
	}
	return t.parties[side]
}

// State returns a copy of the flags of a side
func (t *Trade) State(side Side) PartyState {
	if !side.Valid() {
		return PartyState{}
	}
	return t.states[side]
}

// Layout returns a side's layout
func (t *Trade) Layout(side Side) *Layout {
	if !side.Valid() {
		return nil
	}
	return t.layouts[side]
}

// Other returns the partner's side
func (t *Trade) Other(side Side) Side {
	if !side.Valid() {
		return NoSide
	}
	return side.Other()
}

// SideOf returns the side of a party or NoSide
func (t *Trade) SideOf(id PartyID) Side {
	switch id {
	case t.ids[First]:
		return First
	case t.ids[Second]:
		return Second
	default:
		return NoSide
	}
}

// OwnSlots returns the offer slots in ascending order
func (t *Trade) OwnSlots() []int { return t.ownSlots }

// MirrorSlots returns the mirror slots in the order matching OwnSlots
func (t *Trade) MirrorSlots() []int { return t.mirrorSlots }

// Countdown reports whether the commit countdown runs and how many steps remain
func (t *Trade) Countdown() (bool, int) {
	if t.countdown == nil {
		return false, 0
	}
	return true, t.cfg.CountdownSteps - t.countdownTicks
}

// Offered returns the non-empty stacks a side offers in slot order
func (t *Trade) Offered(side Side) []item.Stack {
	if !side.Valid() {
		return nil
	}
	var out []item.Stack
	for _, slot := range t.ownSlots {
		if s := t.tradeSlot(side, slot).stack; !s.IsEmpty() {
			out = append(out, s.WithAmount(s.Amount))
		}
	}
	return out
}

// Mirrored returns the partner's stack shown in a mirror slot
func (t *Trade) Mirrored(side Side, mirrorSlot int) (item.Stack, bool) {
	for i, slot := range t.mirrorSlots {
		if slot != mirrorSlot {
			continue
		}
		s := t.tradeSlot(side.Other(), t.ownSlots[i]).stack
		if s.IsEmpty() {
			return item.Stack{}, false
		}
		return s.WithAmount(s.Amount), true
	}
	return item.Stack{}, false
}

func (t *Trade) tradeSlot(side Side, slot int) *TradeSlot {
	ts, _ := t.layouts[side].Icon(slot).(*TradeSlot)
	return ts
}

func (t *Trade) closed() bool {
	return t.cancelling || t.phase.Terminal()
}

// check validates that an action may be applied
func (t *Trade) check(side Side) error {
	if !side.Valid() {
		return t.reject(fmt.Errorf("%w: side %d", ErrNotMember, side))
	}
	if t.closed() {
		return ErrClosed
	}
	return nil
}

// reject logs a programming error by the caller
func (t *Trade) reject(err error) error {
	log.Printf("[Trade] %s rejected action: %v", t.id, err)
	return err
}

// SetReady sets a side's ready flag and re-evaluates the countdown
func (t *Trade) SetReady(side Side, ready bool) error {
	if err := t.check(side); err != nil {
		return err
	}
	t.states[side].Ready = ready
	t.update()
	return nil
}

// SetHoldingItem records whether a side holds an item on the cursor
func (t *Trade) SetHoldingItem(side Side, holding bool) error {
	if err := t.check(side); err != nil {
		return err
	}
	t.states[side].HoldingItem = holding
	return nil
}

// SetAwaitingPickup records whether a side waits for a pickup to be retried
func (t *Trade) SetAwaitingPickup(side Side, waiting bool) error {
	if err := t.check(side); err != nil {
		return err
	}
	t.states[side].AwaitingPickup = waiting
	return nil
}

// invalidate drops readiness after a mutating action. When the offer itself
// changed the partner's consent no longer applies either.
func (t *Trade) invalidate(side Side, offerChanged bool) {
	t.states[side].Ready = false
	if offerChanged {
		t.states[side.Other()].Ready = false
	}
	t.update()
}

// update re-renders both views and starts or stops the countdown
func (t *Trade) update() {
	if t.closed() {
		return
	}
	t.render()

	if t.states[First].Ready && t.states[Second].Ready {
		t.startCountdown()
	} else if t.countdown != nil {
		t.stopCountdown()
	}
}

// updateLater schedules a fresh evaluation for state that is not known yet
func (t *Trade) updateLater(delay int, icon Icon, side Side) {
	if delay < t.cfg.UpdateLaterTicks {
		delay = t.cfg.UpdateLaterTicks
	}
	t.sched.After(delay, func() {
		if t.closed() {
			return
		}
		tr, ok := icon.(Transition)
		if !ok {
			t.update()
			return
		}
		if err := t.propagate(side, tr); err != nil {
			t.abort(err)
			return
		}
		// The partner may have readied against the old value
		t.invalidate(side, true)
	})
}

func (t *Trade) startCountdown() {
	if t.countdown != nil {
		return
	}
	t.phase = CountingDown
	t.countdownTicks = 0
	t.countdownGen++
	t.scheduleStep(t.countdownGen)
	t.render()
}

func (t *Trade) scheduleStep(gen int) {
	t.countdown = t.sched.After(t.cfg.TicksPerStep, func() { t.countdownStep(gen) })
}

// countdownStep re-checks that nothing changed since it was scheduled
func (t *Trade) countdownStep(gen int) {
	if gen != t.countdownGen || t.closed() || t.phase != CountingDown {
		return
	}
	if !t.states[First].Ready || !t.states[Second].Ready {
		t.stopCountdown()
		return
	}

	t.countdownTicks++
	if t.countdownTicks >= t.cfg.CountdownSteps {
		t.countdown = nil
		t.countdownTicks = 0
		t.commit()
		return
	}

	for _, side := range sides {
		t.parties[side].Cue(CueCountdown)
	}
	t.scheduleStep(gen)
	t.render()
}

func (t *Trade) stopCountdown() {
	if t.countdown != nil {
		t.countdown.Stop()
	}
	t.countdown = nil
	t.countdownTicks = 0
	t.countdownGen++
	if t.phase == CountingDown {
		t.phase = Negotiating
	}
	for _, side := range sides {
		t.parties[side].Cue(CueCountdownStop)
	}
	t.render()
}

func (t *Trade) title(side Side) string {
	if t.countdown != nil {
		return fmt.Sprintf(t.cfg.Messages.CountdownTitle, t.cfg.CountdownSteps-t.countdownTicks)
	}
	return fmt.Sprintf(t.cfg.Messages.Title, t.ids[side.Other()])
}

func (t *Trade) render() {
	for _, side := range sides {
		t.renderSide(side)
	}
}

func (t *Trade) renderSide(side Side) {
	l := t.layouts[side]
	snap := Snapshot{
		TradeID: t.id,
		Title:   t.title(side),
		Rows:    l.Rows(),
		Faces:   make(map[int]Face, len(l.Slots())),
	}
	for _, slot := range l.Slots() {
		if r, ok := l.Icon(slot).(Renderer); ok {
			snap.Faces[slot] = r.Render(t, side)
		}
	}
	t.parties[side].View().Render(snap)
}

// Click handles a click from the UI layer on one of a side's slots
func (t *Trade) Click(side Side, slot int, c Click) error {
	if err := t.check(side); err != nil {
		return err
	}
	icon := t.layouts[side].Icon(slot)
	if icon == nil {
		return t.reject(fmt.Errorf("%w: %d", ErrNoIcon, slot))
	}
	clickable, ok := icon.(Clickable)
	if !ok {
		return t.reject(fmt.Errorf("%w: %s in slot %d", ErrNotClickable, icon.Key(), slot))
	}
	return t.handle(icon, side, clickable.Click(t, side, c), c.Delay)
}

// Submit delivers the value entered into a secondary view
func (t *Trade) Submit(side Side, slot int, value string) error {
	if err := t.check(side); err != nil {
		return err
	}
	if t.prompts[side] != slot {
		return t.reject(fmt.Errorf("%w: no secondary view open for slot %d", ErrNoPrompt, slot))
	}
	icon := t.layouts[side].Icon(slot)
	in, ok := icon.(Inputter)
	if !ok {
		return t.reject(fmt.Errorf("%w: slot %d takes no input", ErrNoPrompt, slot))
	}
	t.states[side].Paused = false
	t.prompts[side] = -1
	return t.handle(icon, side, in.Input(t, side, value), 0)
}

// Resume is called when a secondary view closed without input
func (t *Trade) Resume(side Side) error {
	if err := t.check(side); err != nil {
		return err
	}
	if slot := t.prompts[side]; slot >= 0 {
		if pc, ok := t.layouts[side].Icon(slot).(PendingClearer); ok {
			pc.ClearPending()
		}
	}
	t.states[side].Paused = false
	t.prompts[side] = -1
	t.renderSide(side)
	return nil
}

// Closed is called when a party closed the trade view. It cancels the trade
// unless a secondary view replaced it.
func (t *Trade) Closed(side Side) error {
	if err := t.check(side); err != nil {
		return err
	}
	if t.states[side].Paused {
		return nil
	}
	t.Cancel("")
	return nil
}

// handle applies an icon result
func (t *Trade) handle(icon Icon, side Side, r Result, delay int) error {
	switch r {
	case Ignore:
		return nil

	case Update:
		_, transition := icon.(Transition)
		t.states[side].Ready = false
		if transition {
			t.states[side.Other()].Ready = false
			if err := t.propagate(side, icon.(Transition)); err != nil {
				t.abort(err)
				return err
			}
		}
		t.update()

	case UpdateLater:
		_, transition := icon.(Transition)
		t.invalidate(side, transition)
		t.updateLater(delay, icon, side)

	case OpenView:
		return t.openPrompt(side, icon)

	case Ready:
		return t.SetReady(side, true)

	case NotReady:
		return t.SetReady(side, false)

	case Cancel:
		t.Cancel("")

	default:
		err := fmt.Errorf("%w: unexpected result %d from %s", ErrProtocol, r, icon.Key())
		t.abort(err)
		return err
	}
	return nil
}

// propagate pushes a transition icon's state into the partner's counterpart
func (t *Trade) propagate(side Side, tr Transition) error {
	other := side.Other()
	target := t.layouts[other].Find(tr.TargetKey())
	if target == nil {
		return fmt.Errorf("%w: %s has no counterpart %s", ErrProtocol, tr.Key(), tr.TargetKey())
	}
	rcv, ok := target.(Receiver)
	if !ok {
		return fmt.Errorf("%w: %s cannot receive transitions", ErrProtocol, tr.TargetKey())
	}
	if err := rcv.ReceiveTransition(tr.TransitionState()); err != nil {
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	return nil
}

func (t *Trade) openPrompt(side Side, icon Icon) error {
	p, ok := icon.(Prompter)
	if !ok {
		err := fmt.Errorf("%w: %s has no secondary view", ErrProtocol, icon.Key())
		t.abort(err)
		return err
	}

	slot := -1
	for _, s := range t.layouts[side].Slots() {
		if t.layouts[side].Icon(s) == icon {
			slot = s
			break
		}
	}

	prompt := p.Prompt(t, side)
	prompt.Slot = slot
	if err := t.parties[side].View().OpenPrompt(prompt); err != nil && !errors.Is(err, ErrAlreadyOpen) {
		log.Printf("[Trade] %s could not open secondary view for %s: %v", t.id, t.ids[side], err)
		if pc, ok := icon.(PendingClearer); ok {
			pc.ClearPending()
		}
		return err
	}

	t.states[side].Paused = true
	t.prompts[side] = slot
	return nil
}

// abort ends a trade whose two views could no longer agree
func (t *Trade) abort(err error) {
	log.Printf("[Trade] %s aborted: %v", t.id, err)
	t.Cancel(t.cfg.Messages.ProtocolError)
}

func (t *Trade) recordCurrency(side Side, key string, c Currency, diff int64) {
	t.currencies[side] = append(t.currencies[side], report.Currency{
		Name:    c.Name,
		Plural:  c.Plural,
		Decimal: c.Decimal,
		Diff:    diff,
	})
	t.currencyTx = append(t.currencyTx, CurrencyTransfer{Side: side, Currency: key, Diff: diff})
}
