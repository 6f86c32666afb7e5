package trade

import (
	"errors"
	"strings"
	"testing"

	"barter/internal/item"
)

const marketPattern = `
name = "market"
rows = 2

[[slot]]
kind = "trade_slot"
at = [0, 1]

[[slot]]
kind = "mirror_slot"
at = [7, 8]

[[slot]]
kind = "status"
at = [9]

[[slot]]
kind = "economy"
currency = "gold"
at = [10]

[[slot]]
kind = "economy_preview"
currency = "gold"
at = [11]

[[slot]]
kind = "economy"
currency = "gem"
at = [12]

[[slot]]
kind = "economy_preview"
currency = "gem"
at = [13]

[[slot]]
kind = "cancel"
at = [17]
`

type marketEnv struct {
	*testEnv
	gems *fakeWallet
}

func setupMarket(t *testing.T) *marketEnv {
	t.Helper()

	p, err := ParsePattern(marketPattern)
	if err != nil {
		t.Fatalf("ParsePattern failed: %v", err)
	}

	env := setupEnv(t)
	gems := newFakeWallet()
	env.opts.Pattern = p
	env.opts.Currencies["gem"] = Currency{Name: "gem", Plural: "gems", Wallet: gems}

	tr, err := New(env.a, env.b, env.opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := tr.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	env.trade = tr
	return &marketEnv{testEnv: env, gems: gems}
}

// enter opens the secondary view of an icon and submits a value
func enter(t *testing.T, tr *Trade, side Side, slot int, value string) {
	t.Helper()
	if err := tr.Click(side, slot, Click{}); err != nil {
		t.Fatalf("Click on %d failed: %v", slot, err)
	}
	if err := tr.Submit(side, slot, value); err != nil {
		t.Fatalf("Submit on %d failed: %v", slot, err)
	}
}

func previewAmount(tr *Trade, side Side, slot int) int64 {
	return tr.Layout(side).Icon(slot).(*EconomyPreviewIcon).amount
}

func TestCurrencyTradeCompletes(t *testing.T) {
	env := setupMarket(t)
	env.gold.balances["alice"] = 100
	env.gems.balances["bob"] = 5

	enter(t, env.trade, First, 10, "50")
	if got := previewAmount(env.trade, Second, 11); got != 50 {
		t.Fatalf("expected bob to see 50 gold offered, got %d", got)
	}
	enter(t, env.trade, Second, 12, "1")

	env.trade.SetReady(First, true)
	env.trade.SetReady(Second, true)
	runCountdown(env.testEnv)

	if env.trade.Phase() != Done {
		t.Fatalf("expected DONE, got %s", env.trade.Phase())
	}
	if env.gold.balances["alice"] != 50 || env.gold.balances["bob"] != 50 {
		t.Errorf("unexpected gold balances: %v", env.gold.balances)
	}
	if env.gems.balances["alice"] != 1 || env.gems.balances["bob"] != 4 {
		t.Errorf("unexpected gem balances: %v", env.gems.balances)
	}

	if env.b.received("Received 50 gold") != 1 || env.b.received("Sent 1 gem") != 1 {
		t.Errorf("unexpected report for bob: %v", env.b.messages)
	}
	if env.a.received("Received 1 gem") != 1 || env.a.received("Sent 50 gold") != 1 {
		t.Errorf("unexpected report for alice: %v", env.a.messages)
	}

	ev := env.recorder.events[0]
	if len(ev.Currencies) != 4 {
		t.Errorf("expected 4 currency changes, got %+v", ev.Currencies)
	}
}

func TestEconomyTrialFailureRollsBack(t *testing.T) {
	env := setupEnv(t)
	env.gold.balances["alice"] = 50
	give(t, env.a, item.New("DIAMOND", 2))

	offer(t, env, First, 0, item.New("DIAMOND", 2))
	enter(t, env.trade, First, slotEconomy, "50")

	env.trade.SetReady(First, true)
	env.trade.SetReady(Second, true)

	// Alice spends the gold elsewhere during the countdown
	env.gold.balances["alice"] = 10
	runCountdown(env)

	if env.trade.Phase() != Cancelled {
		t.Fatalf("expected CANCELLED, got %s", env.trade.Phase())
	}
	if env.gold.balances["alice"] != 10 || env.gold.balances["bob"] != 0 {
		t.Errorf("no wallet may change on a failed trial: %v", env.gold.balances)
	}
	if n := env.b.inv.CountMaterial("DIAMOND"); n != 0 {
		t.Errorf("bob must not receive anything, has %d diamonds", n)
	}
	if n := env.a.inv.CountMaterial("DIAMOND"); n != 2 {
		t.Errorf("expected diamonds back with alice, got %d", n)
	}
	if len(env.trade.Transfers()) != 0 {
		t.Errorf("expected no transfers, got %+v", env.trade.Transfers())
	}

	msg := DefaultMessages().EconomyError
	if env.a.received(msg) != 1 || env.b.received(msg) != 1 {
		t.Errorf("expected economy error for both, got %v / %v", env.a.messages, env.b.messages)
	}
	if len(env.recorder.events) != 1 || env.recorder.events[0].Outcome != Aborted {
		t.Fatalf("expected one cancelled event, got %+v", env.recorder.events)
	}
	if env.recorder.events[0].Reason != msg {
		t.Errorf("unexpected reason %q", env.recorder.events[0].Reason)
	}
}

func TestEconomyInputCapsAtBalance(t *testing.T) {
	env := setupEnv(t)
	env.gold.balances["alice"] = 30

	enter(t, env.trade, First, slotEconomy, "1,000")

	icon := env.trade.Layout(First).Icon(slotEconomy).(*EconomyIcon)
	if icon.Amount() != 30 {
		t.Errorf("expected offer capped at 30, got %d", icon.Amount())
	}
	if got := previewAmount(env.trade, Second, slotPreview); got != 30 {
		t.Errorf("expected preview of 30, got %d", got)
	}
}

func TestEconomyInvalidInput(t *testing.T) {
	env := setupEnv(t)
	env.gold.balances["alice"] = 30

	enter(t, env.trade, First, slotEconomy, "lots")

	if env.a.received(`"lots" is not a valid amount.`) != 1 {
		t.Errorf("expected invalid amount message, got %v", env.a.messages)
	}
	if icon := env.trade.Layout(First).Icon(slotEconomy).(*EconomyIcon); icon.Amount() != 0 {
		t.Errorf("invalid input must not change the offer, got %d", icon.Amount())
	}
}

func TestEconomyRejectsOutOfRangeAmounts(t *testing.T) {
	env := setupEnv(t)
	env.gold.balances["alice"] = 30
	icon := env.trade.Layout(First).Icon(slotEconomy).(*EconomyIcon)
	icon.currency.Decimal = true

	for _, value := range []string{"-0.50", "4611686018427387903.00"} {
		enter(t, env.trade, First, slotEconomy, value)
		if env.a.received(`"`+value+`" is not a valid amount.`) != 1 {
			t.Errorf("expected invalid amount message for %q, got %v", value, env.a.messages)
		}
	}

	if icon.Amount() != 0 {
		t.Fatalf("out of range input must not change the offer, got %d", icon.Amount())
	}
	if got := previewAmount(env.trade, Second, slotPreview); got != 0 {
		t.Errorf("expected an empty preview, got %d", got)
	}
}

func TestEconomyRightClickResets(t *testing.T) {
	env := setupEnv(t)
	env.gold.balances["alice"] = 30
	enter(t, env.trade, First, slotEconomy, "20")
	env.trade.SetReady(Second, true)

	if err := env.trade.Click(First, slotEconomy, Click{Action: RightClick}); err != nil {
		t.Fatalf("Click failed: %v", err)
	}
	if got := previewAmount(env.trade, Second, slotPreview); got != 0 {
		t.Errorf("expected preview reset, got %d", got)
	}
	if env.trade.State(Second).Ready {
		t.Error("a changed currency offer must clear the partner's ready flag")
	}
}

func TestEconomyUpdateLater(t *testing.T) {
	env := setupEnv(t)
	env.gold.err = errors.New("bank is slow")

	enter(t, env.trade, First, slotEconomy, "20")
	if got := previewAmount(env.trade, Second, slotPreview); got != 0 {
		t.Fatalf("preview must wait for the deferred update, got %d", got)
	}

	env.loop.Step()
	if got := previewAmount(env.trade, Second, slotPreview); got != 20 {
		t.Errorf("expected deferred preview of 20, got %d", got)
	}
}

func TestEconomyUpdateLaterClearsReady(t *testing.T) {
	env := setupEnv(t)
	env.gold.balances["alice"] = 100
	enter(t, env.trade, First, slotEconomy, "20")

	env.gold.err = errors.New("bank is slow")
	enter(t, env.trade, First, slotEconomy, "0")

	env.trade.SetReady(First, true)
	env.trade.SetReady(Second, true)
	if active, _ := env.trade.Countdown(); !active {
		t.Fatal("expected the countdown to start")
	}

	env.loop.Step()
	if got := previewAmount(env.trade, Second, slotPreview); got != 0 {
		t.Fatalf("expected deferred preview of 0, got %d", got)
	}
	if env.trade.State(First).Ready || env.trade.State(Second).Ready {
		t.Error("a deferred offer change must clear both ready flags")
	}
	if active, _ := env.trade.Countdown(); active {
		t.Error("countdown must stop when the deferred offer lands")
	}
	if env.trade.Phase() != Negotiating {
		t.Errorf("expected NEGOTIATING, got %s", env.trade.Phase())
	}

	runCountdown(env)
	if env.trade.Phase() == Done {
		t.Fatal("trade committed against a stale offer")
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		value   string
		decimal bool
		want    int64
		wantErr bool
	}{
		{"50", false, 50, false},
		{"1,250", false, 1250, false},
		{" 7 ", false, 7, false},
		{"12.50", true, 1250, false},
		{"12.5", true, 1250, false},
		{".5", true, 50, false},
		{"3", true, 300, false},
		{"1.234", true, 0, true},
		{"-5", false, 0, true},
		{"+5", false, 0, true},
		{"-0.50", true, 0, true},
		{"1.-5", true, 0, true},
		{"92233720368547757.99", true, 9223372036854775799, false},
		{"92233720368547759.00", true, 0, true},
		{"4611686018427387903.00", true, 0, true},
		{"", false, 0, true},
		{"abc", true, 0, true},
	}

	for _, tt := range tests {
		got, err := ParseAmount(tt.value, tt.decimal)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAmount(%q, %v) error = %v, wantErr %v", tt.value, tt.decimal, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAmount(%q, %v) = %d, want %d", tt.value, tt.decimal, got, tt.want)
		}
	}
}

func TestNoteTransition(t *testing.T) {
	env := setupEnv(t)
	env.trade.SetReady(Second, true)

	enter(t, env.trade, First, slotNote, "  two   diamonds\tfor wood ")

	preview := env.trade.Layout(Second).Find(string(KindNotePreview)).(*NotePreviewIcon)
	if preview.Text() != "two diamonds for wood" {
		t.Errorf("unexpected note %q", preview.Text())
	}
	if env.trade.State(First).Paused {
		t.Error("submitting must close the secondary view")
	}
	if env.trade.State(Second).Ready {
		t.Error("a changed note must clear the partner's ready flag")
	}

	enter(t, env.trade, First, slotNote, strings.Repeat("x", 100))
	if n := len([]rune(preview.Text())); n != MaxNoteLength {
		t.Errorf("expected note truncated to %d, got %d", MaxNoteLength, n)
	}
}

func TestMissingCounterpartAborts(t *testing.T) {
	env := setupEnv(t)
	give(t, env.a, item.New("DIAMOND", 1))
	offer(t, env, First, 0, item.New("DIAMOND", 1))

	delete(env.trade.layouts[Second].byKey, string(KindNotePreview))

	env.trade.Click(First, slotNote, Click{})
	err := env.trade.Submit(First, slotNote, "hello")
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("expected ErrProtocol, got %v", err)
	}
	if env.trade.Phase() != Cancelled {
		t.Errorf("expected CANCELLED, got %s", env.trade.Phase())
	}
	if env.b.received(DefaultMessages().ProtocolError) != 1 {
		t.Errorf("expected protocol error for bob, got %v", env.b.messages)
	}
	if n := env.a.inv.CountMaterial("DIAMOND"); n != 1 {
		t.Errorf("expected the diamond back, got %d", n)
	}
}

type strayIcon struct{}

func (s *strayIcon) Key() string                                { return "stray" }
func (s *strayIcon) Click(t *Trade, side Side, c Click) Result  { return Result(99) }
func (s *strayIcon) TryFinish(t *Trade, side Side) FinishResult { return FinishResult(7) }
func (s *strayIcon) Finish(t *Trade, side Side)                 {}

func TestUnknownClickResultAborts(t *testing.T) {
	env := setupEnv(t)
	env.trade.layouts[First].icons[49] = &strayIcon{}

	err := env.trade.Click(First, 49, Click{})
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("expected ErrProtocol, got %v", err)
	}
	if env.trade.Phase() != Cancelled {
		t.Errorf("expected CANCELLED, got %s", env.trade.Phase())
	}
}

func TestUnknownFinishResultAborts(t *testing.T) {
	env := setupEnv(t)
	give(t, env.b, item.New("WOOD", 64))
	offer(t, env, Second, 0, item.New("WOOD", 64))
	env.trade.layouts[First].icons[49] = &strayIcon{}

	env.trade.SetReady(First, true)
	env.trade.SetReady(Second, true)
	runCountdown(env)

	if env.trade.Phase() != Cancelled {
		t.Fatalf("expected CANCELLED, got %s", env.trade.Phase())
	}
	if n := env.b.inv.CountMaterial("WOOD"); n != 64 {
		t.Errorf("expected wood back with bob, got %d", n)
	}
	if n := env.a.inv.CountMaterial("WOOD"); n != 0 {
		t.Errorf("alice must not receive anything, has %d", n)
	}
}
