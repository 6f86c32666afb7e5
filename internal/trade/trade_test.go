package trade

import (
	"errors"
	"testing"

	"barter/internal/item"
)

func TestTradeCompletes(t *testing.T) {
	env := setupEnv(t)
	give(t, env.a, item.New("DIAMOND", 1))
	give(t, env.b, item.New("WOOD", 64))

	offer(t, env, First, 0, item.New("DIAMOND", 1))
	offer(t, env, Second, 0, item.New("WOOD", 64))

	env.trade.SetReady(First, true)
	env.trade.SetReady(Second, true)

	if env.trade.Phase() != CountingDown {
		t.Fatalf("expected COUNTDOWN, got %s", env.trade.Phase())
	}

	env.loop.Advance(5)
	if env.trade.Phase() != CountingDown {
		t.Fatalf("committed too early: %s", env.trade.Phase())
	}
	env.loop.Step()

	if env.trade.Phase() != Done {
		t.Fatalf("expected DONE, got %s", env.trade.Phase())
	}
	if n := env.a.inv.CountMaterial("WOOD"); n != 64 {
		t.Errorf("expected alice to hold 64 wood, got %d", n)
	}
	if n := env.a.inv.CountMaterial("DIAMOND"); n != 0 {
		t.Errorf("expected alice to hold no diamond, got %d", n)
	}
	if n := env.b.inv.CountMaterial("DIAMOND"); n != 1 {
		t.Errorf("expected bob to hold 1 diamond, got %d", n)
	}
	if n := env.b.inv.CountMaterial("WOOD"); n != 0 {
		t.Errorf("expected bob to hold no wood, got %d", n)
	}

	if len(env.recorder.events) != 1 || env.recorder.events[0].Outcome != Completed {
		t.Fatalf("expected one completed event, got %+v", env.recorder.events)
	}
	if len(env.recorder.events[0].Items) != 2 {
		t.Errorf("expected 2 transfers in the event, got %d", len(env.recorder.events[0].Items))
	}
	if env.a.received("Received 64x Wood") != 1 || env.a.received("Sent 1x Diamond") != 1 {
		t.Errorf("unexpected report for alice: %v", env.a.messages)
	}
	if env.b.received("Received 1x Diamond") != 1 {
		t.Errorf("unexpected report for bob: %v", env.b.messages)
	}
	if env.a.view.open || env.b.view.open {
		t.Error("expected both views to be closed")
	}
	if env.world.unregistered != 1 {
		t.Errorf("expected pickup listener to be unregistered once, got %d", env.world.unregistered)
	}
	if env.a.cued(CueFinish) != 1 {
		t.Error("expected finish cue")
	}
}

func TestMutatingActionClearsReady(t *testing.T) {
	env := setupEnv(t)
	give(t, env.a, item.New("STONE", 10))

	env.trade.SetReady(First, true)
	env.trade.SetReady(Second, true)
	if active, _ := env.trade.Countdown(); !active {
		t.Fatal("expected countdown to run")
	}

	offer(t, env, First, 0, item.New("STONE", 10))

	if env.trade.State(First).Ready {
		t.Error("expected the acting side to lose ready")
	}
	if env.trade.State(Second).Ready {
		t.Error("expected the partner to lose ready after the offer changed")
	}
	if active, _ := env.trade.Countdown(); active {
		t.Error("expected countdown to stop")
	}
	if env.trade.Phase() != Negotiating {
		t.Errorf("expected NEGOTIATING, got %s", env.trade.Phase())
	}
	if env.a.cued(CueCountdownStop) != 1 {
		t.Errorf("expected one countdown stop cue, got %d", env.a.cued(CueCountdownStop))
	}

	runCountdown(env)
	if env.trade.Phase() != Negotiating {
		t.Errorf("stale countdown fired: %s", env.trade.Phase())
	}
}

func TestCountdownExistsOnlyWhileBothReady(t *testing.T) {
	env := setupEnv(t)

	env.trade.SetReady(First, true)
	if active, _ := env.trade.Countdown(); active {
		t.Fatal("countdown must not start with one side ready")
	}

	env.trade.SetReady(Second, true)
	active, remaining := env.trade.Countdown()
	if !active || remaining != 3 {
		t.Fatalf("expected countdown with 3 steps, got %v %d", active, remaining)
	}
	if env.a.view.last.Title != "Trading in 3..." {
		t.Errorf("unexpected title %q", env.a.view.last.Title)
	}

	env.loop.Advance(2)
	if _, remaining := env.trade.Countdown(); remaining != 2 {
		t.Errorf("expected 2 steps remaining, got %d", remaining)
	}

	env.trade.SetReady(Second, false)
	if active, _ := env.trade.Countdown(); active {
		t.Fatal("countdown must stop in the same step the flag drops")
	}
	if env.loop.Pending() != 0 {
		t.Errorf("expected the countdown timer to be stopped, %d pending", env.loop.Pending())
	}
	if env.a.cued(CueCountdownStop) != 1 || env.b.cued(CueCountdownStop) != 1 {
		t.Errorf("expected one stop cue per side, got %d / %d", env.a.cued(CueCountdownStop), env.b.cued(CueCountdownStop))
	}
	if env.trade.Phase() != Negotiating {
		t.Errorf("expected NEGOTIATING after the flag dropped, got %s", env.trade.Phase())
	}
	if env.a.view.last.Title != "Trade with bob" {
		t.Errorf("unexpected title %q", env.a.view.last.Title)
	}

	runCountdown(env)
	if env.trade.Phase() == Done {
		t.Error("trade committed without both sides ready")
	}
}

func TestStatusIconTogglesReady(t *testing.T) {
	env := setupEnv(t)

	if err := env.trade.Click(First, slotStatus, Click{}); err != nil {
		t.Fatalf("Click failed: %v", err)
	}
	if !env.trade.State(First).Ready {
		t.Fatal("expected ready after clicking status")
	}
	face := env.b.view.last.Faces[53]
	if !face.Lit || face.Kind != KindPartnerStatus {
		t.Errorf("expected bob to see alice ready, got %+v", face)
	}

	env.trade.Click(First, slotStatus, Click{})
	if env.trade.State(First).Ready {
		t.Error("expected second click to clear ready")
	}
}

func TestMirrorSlotsShowPartnerOffer(t *testing.T) {
	env := setupEnv(t)
	give(t, env.a, item.New("STONE", 5))
	give(t, env.a, item.New("SAND", 7))

	want := []int{8, 7, 6, 5, 17}
	for i, slot := range want {
		if env.trade.MirrorSlots()[i] != slot {
			t.Fatalf("mirror slot %d = %d, want %d", i, env.trade.MirrorSlots()[i], slot)
		}
	}

	offer(t, env, First, 0, item.New("STONE", 5))
	offer(t, env, First, 9, item.New("SAND", 7))

	for i, own := range env.trade.OwnSlots() {
		mirror := env.trade.MirrorSlots()[i]
		ownStack := env.trade.tradeSlot(First, own).Stack()
		shown, ok := env.trade.Mirrored(Second, mirror)
		if ownStack.IsEmpty() != !ok {
			t.Fatalf("mirror %d disagrees with own slot %d", mirror, own)
		}
		if ok && (shown.Amount != ownStack.Amount || !shown.Similar(ownStack)) {
			t.Errorf("mirror %d shows %+v, own slot %d holds %+v", mirror, shown, own, ownStack)
		}
	}

	face := env.b.view.last.Faces[17]
	if face.Stack == nil || face.Stack.Material != "SAND" {
		t.Errorf("expected bob to see sand in slot 17, got %+v", face)
	}
}

func TestOfferCannotExceedPartnerStorage(t *testing.T) {
	env := setupEnv(t)
	env.b.inv = item.NewInventory(1)
	give(t, env.a, item.New("STONE", 64))
	give(t, env.a, item.New("WOOD", 10))

	offer(t, env, First, 0, item.New("STONE", 64))

	env.a.inv.Remove(item.New("WOOD", 10))
	leftover, err := env.trade.Offer(First, 1, item.New("WOOD", 10))
	if !errors.Is(err, ErrPartnerFull) {
		t.Fatalf("expected ErrPartnerFull, got %v", err)
	}
	if leftover != 10 {
		t.Errorf("expected caller to keep 10, got %d", leftover)
	}
}

func TestOfferMergesSimilarStacks(t *testing.T) {
	env := setupEnv(t)
	give(t, env.a, item.New("STONE", 70))

	offer(t, env, First, 0, item.New("STONE", 40))

	env.a.inv.Remove(item.New("STONE", 30))
	leftover, err := env.trade.Offer(First, 0, item.New("STONE", 30))
	if err != nil {
		t.Fatalf("Offer failed: %v", err)
	}
	if leftover != 6 {
		t.Errorf("expected 6 not to fit into the slot, got %d", leftover)
	}

	if _, err := env.trade.Offer(First, 0, item.New("WOOD", 1)); !errors.Is(err, ErrSlotOccupied) {
		t.Errorf("expected ErrSlotOccupied, got %v", err)
	}
}

func TestWithdrawReturnsToStorage(t *testing.T) {
	env := setupEnv(t)
	give(t, env.a, item.New("STONE", 20))
	offer(t, env, First, 0, item.New("STONE", 20))
	env.trade.SetReady(First, true)

	moved, err := env.trade.Withdraw(First, 0, 5)
	if err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}
	if moved != 5 {
		t.Errorf("expected 5 moved, got %d", moved)
	}
	if n := env.a.inv.CountMaterial("STONE"); n != 5 {
		t.Errorf("expected 5 stone back, got %d", n)
	}
	if got := env.trade.Offered(First); len(got) != 1 || got[0].Amount != 15 {
		t.Errorf("expected 15 stone offered, got %+v", got)
	}
	if env.trade.State(First).Ready {
		t.Error("withdraw must clear ready")
	}

	if _, err := env.trade.Withdraw(First, 1, 0); !errors.Is(err, ErrEmptyStack) {
		t.Errorf("expected ErrEmptyStack, got %v", err)
	}
}

func TestBalanceTrimsSmallestFirst(t *testing.T) {
	env := setupEnv(t)
	env.b.inv = item.NewInventory(3)
	give(t, env.b, item.New("DIRT", 64))
	give(t, env.a, item.New("STONE", 10))
	give(t, env.a, item.New("WOOD", 64))

	offer(t, env, First, 0, item.New("STONE", 10))
	offer(t, env, First, 1, item.New("WOOD", 64))

	// Bob's storage shrinks behind the trade's back
	give(t, env.b, item.New("GRAVEL", 64))

	if err := env.trade.Balance(First); err != nil {
		t.Fatalf("Balance failed: %v", err)
	}

	got := env.trade.Offered(First)
	if len(got) != 1 || got[0].Material != "WOOD" || got[0].Amount != 64 {
		t.Fatalf("expected only the 64 wood to stay, got %+v", got)
	}
	if n := env.a.inv.CountMaterial("STONE"); n != 10 {
		t.Errorf("expected the stone back in alice's storage, got %d", n)
	}
	if n := env.b.inv.CountMaterial("STONE"); n != 0 {
		t.Errorf("trimmed items must never go to the partner, bob has %d", n)
	}

	before := env.a.inv.Contents()
	env.trade.Balance(First)
	after := env.trade.Offered(First)
	if len(after) != 1 || after[0].Amount != 64 {
		t.Errorf("second balance changed the offer: %+v", after)
	}
	if len(env.a.inv.Contents()) != len(before) {
		t.Error("second balance changed alice's storage")
	}
}

func TestBalancePartiallyTrimsStack(t *testing.T) {
	env := setupEnv(t)
	env.b.inv = item.NewInventory(1)
	give(t, env.a, item.New("STONE", 40))
	offer(t, env, First, 0, item.New("STONE", 40))

	give(t, env.b, item.New("STONE", 30))
	env.trade.Balance(First)

	got := env.trade.Offered(First)
	if len(got) != 1 || got[0].Amount != 34 {
		t.Fatalf("expected 34 stone to stay, got %+v", got)
	}
	if n := env.a.inv.CountMaterial("STONE"); n != 6 {
		t.Errorf("expected 6 stone returned, got %d", n)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	env := setupEnv(t)
	give(t, env.a, item.New("DIAMOND", 3))
	offer(t, env, First, 0, item.New("DIAMOND", 3))

	env.trade.Cancel("")
	env.trade.Cancel("")

	if env.trade.Phase() != Cancelled {
		t.Fatalf("expected CANCELLED, got %s", env.trade.Phase())
	}
	if len(env.recorder.events) != 1 || env.recorder.events[0].Outcome != Aborted {
		t.Fatalf("expected exactly one cancelled event, got %+v", env.recorder.events)
	}
	if env.a.view.closes != 1 || env.b.view.closes != 1 {
		t.Errorf("expected one teardown per view, got %d and %d", env.a.view.closes, env.b.view.closes)
	}
	if env.a.received(DefaultMessages().Cancelled) != 1 || env.b.received(DefaultMessages().Cancelled) != 1 {
		t.Errorf("expected one cancel message each, got %v / %v", env.a.messages, env.b.messages)
	}
	if env.a.cued(CueCancel) != 1 {
		t.Errorf("expected one cancel cue, got %d", env.a.cued(CueCancel))
	}
	if n := env.a.inv.CountMaterial("DIAMOND"); n != 3 {
		t.Errorf("expected diamonds returned, got %d", n)
	}
	if env.world.unregistered != 1 {
		t.Errorf("expected listener unregistered once, got %d", env.world.unregistered)
	}

	if err := env.trade.SetReady(First, true); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after cancel, got %v", err)
	}
}

func TestCancelWithReason(t *testing.T) {
	env := setupEnv(t)

	env.trade.Cancel("bob was kicked")

	if env.a.received("bob was kicked") != 1 || env.b.received("bob was kicked") != 1 {
		t.Errorf("expected the reason for both, got %v / %v", env.a.messages, env.b.messages)
	}
	if env.a.received(DefaultMessages().Cancelled) != 0 {
		t.Error("generic message must not accompany a reason")
	}
	if env.recorder.events[0].Reason != "bob was kicked" {
		t.Errorf("expected reason in event, got %q", env.recorder.events[0].Reason)
	}
}

func TestPartialConfigRecords(t *testing.T) {
	env := setupEnv(t)
	env.opts.Config = Config{CountdownSteps: 3, TicksPerStep: 2}

	tr, err := New(env.a, env.b, env.opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := tr.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	tr.Cancel("")

	if len(env.recorder.events) != 1 || env.recorder.events[0].TradeID != tr.ID() {
		t.Fatalf("expected the cancelled trade to be recorded, got %+v", env.recorder.events)
	}
}

func TestRemoteTradeDoesNotRecord(t *testing.T) {
	env := setupEnv(t)
	env.opts.Config.Remote = true

	tr, err := New(env.a, env.b, env.opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := tr.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	tr.Cancel("")

	if len(env.recorder.events) != 0 {
		t.Errorf("a remote trade must not be recorded, got %+v", env.recorder.events)
	}
	if tr.Phase() != Cancelled {
		t.Errorf("expected CANCELLED, got %s", tr.Phase())
	}
}

func TestCancelDropsWhatCannotBeReturned(t *testing.T) {
	env := setupEnv(t)
	env.a.inv = item.NewInventory(1)
	give(t, env.a, item.New("DIAMOND", 1))
	offer(t, env, First, 0, item.New("DIAMOND", 1))

	give(t, env.a, item.New("DIRT", 64))
	env.trade.Cancel("")

	if len(env.a.drops) != 1 || env.a.drops[0].Material != "DIAMOND" {
		t.Fatalf("expected the diamond to be dropped, got %+v", env.a.drops)
	}
	if env.a.received(DefaultMessages().ItemsDropped) != 1 {
		t.Errorf("expected a drop notice, got %v", env.a.messages)
	}
	if env.b.received(DefaultMessages().ItemsDropped) != 0 {
		t.Error("bob lost nothing and must not get a drop notice")
	}
}

func TestClosingViewCancelsUnlessPaused(t *testing.T) {
	env := setupEnv(t)

	if err := env.trade.Click(First, slotNote, Click{}); err != nil {
		t.Fatalf("Click failed: %v", err)
	}
	if !env.trade.State(First).Paused || env.a.view.prompt == nil {
		t.Fatal("expected a secondary view and paused state")
	}

	env.trade.Closed(First)
	if env.trade.Phase() == Cancelled {
		t.Fatal("closing the panel for a secondary view must not cancel")
	}

	env.trade.Resume(First)
	if env.trade.State(First).Paused {
		t.Error("expected resume to clear pause")
	}

	env.trade.Closed(First)
	if env.trade.Phase() != Cancelled {
		t.Errorf("expected CANCELLED, got %s", env.trade.Phase())
	}
}

func TestCancelClosesOpenPrompts(t *testing.T) {
	env := setupEnv(t)
	env.trade.Click(First, slotNote, Click{})
	note := env.trade.Layout(First).Icon(slotNote).(*NoteIcon)

	env.trade.Cancel("")

	if env.a.view.prompt != nil {
		t.Error("expected the secondary view to be closed")
	}
	if note.Editing() {
		t.Error("expected pending note edit to be cleared")
	}
}

func TestCancelButton(t *testing.T) {
	env := setupEnv(t)
	env.trade.Click(Second, slotCancel, Click{})
	if env.trade.Phase() != Cancelled {
		t.Errorf("expected CANCELLED, got %s", env.trade.Phase())
	}
}

func TestValidationErrors(t *testing.T) {
	env := setupEnv(t)

	if err := env.trade.Click(NoSide, slotStatus, Click{}); !errors.Is(err, ErrNotMember) {
		t.Errorf("expected ErrNotMember, got %v", err)
	}
	if _, err := env.trade.Offer(First, 8, item.New("STONE", 1)); !errors.Is(err, ErrNotOwnSlot) {
		t.Errorf("expected ErrNotOwnSlot for a mirror slot, got %v", err)
	}
	if err := env.trade.Click(First, 0, Click{}); !errors.Is(err, ErrNotClickable) {
		t.Errorf("expected ErrNotClickable, got %v", err)
	}
	if err := env.trade.Submit(First, slotNote, "hi"); !errors.Is(err, ErrNoPrompt) {
		t.Errorf("expected ErrNoPrompt without an open view, got %v", err)
	}
	if env.trade.Phase() != Negotiating {
		t.Errorf("validation errors must not change state, got %s", env.trade.Phase())
	}
}

func TestSideLookups(t *testing.T) {
	env := setupEnv(t)

	if env.trade.SideOf("alice") != First || env.trade.SideOf("bob") != Second {
		t.Error("unexpected sides")
	}
	if env.trade.SideOf("carol") != NoSide {
		t.Error("expected NoSide for a stranger")
	}
	if env.trade.Other(First) != Second || env.trade.Other(NoSide) != NoSide {
		t.Error("unexpected Other")
	}
}

func TestStartToleratesAlreadyOpenView(t *testing.T) {
	env := setupEnv(t)
	a := newFakeParty("carol", item.DefaultSize)
	b := newFakeParty("dave", item.DefaultSize)
	a.view.openErr = ErrAlreadyOpen

	tr, err := New(a, b, env.opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := tr.Start(); err != nil {
		t.Fatalf("expected already-open to be tolerated, got %v", err)
	}

	c := newFakeParty("erin", item.DefaultSize)
	c.view.openErr = errors.New("client gone")
	tr, _ = New(c, newFakeParty("frank", item.DefaultSize), env.opts)
	if err := tr.Start(); err == nil {
		t.Fatal("expected open failure to surface")
	}
	if tr.Phase() != Cancelled {
		t.Errorf("expected CANCELLED, got %s", tr.Phase())
	}
	if c.received(DefaultMessages().OpenViewError) != 1 {
		t.Errorf("expected open error message, got %v", c.messages)
	}
}

func TestPickupGuard(t *testing.T) {
	env := setupEnv(t)
	env.a.inv = item.NewInventory(2)
	give(t, env.a, item.New("WOOD", 64))
	offer(t, env, First, 0, item.New("WOOD", 64))
	give(t, env.a, item.New("DIRT", 64))

	if env.world.fn == nil {
		t.Fatal("expected a pickup listener")
	}
	if env.world.fn("alice", item.New("STONE", 1)) {
		t.Error("pickup must be refused when the offer could not be returned")
	}
	if !env.trade.State(First).AwaitingPickup {
		t.Error("expected awaiting pickup after a refusal")
	}
	if !env.world.fn("carol", item.New("STONE", 1)) {
		t.Error("pickups of strangers are not ours to refuse")
	}
}

func TestPickupRebalancesPartner(t *testing.T) {
	env := setupEnv(t)
	env.b.inv = item.NewInventory(1)
	give(t, env.a, item.New("STONE", 64))
	offer(t, env, First, 0, item.New("STONE", 64))

	if !env.world.fn("bob", item.New("DIRT", 1)) {
		t.Fatal("bob can pick up, nothing of his is offered")
	}
	give(t, env.b, item.New("DIRT", 1))
	env.loop.Step()

	if got := env.trade.Offered(First); len(got) != 0 {
		t.Errorf("expected alice's offer to be trimmed away, got %+v", got)
	}
	if n := env.a.inv.CountMaterial("STONE"); n != 64 {
		t.Errorf("expected stone back with alice, got %d", n)
	}
}

func TestHoldingItemReservesRoom(t *testing.T) {
	env := setupEnv(t)
	env.a.inv = item.NewInventory(1)

	if !env.trade.CanPickup(First, item.New("STONE", 1)) {
		t.Fatal("expected empty storage to accept a pickup")
	}
	env.trade.SetHoldingItem(First, true)
	if env.trade.CanPickup(First, item.New("STONE", 1)) {
		t.Error("the held item needs the only free slot")
	}
}
