package trade

import (
	"errors"
	"testing"

	"barter/internal/item"
)

func setupManager(t *testing.T) (*testEnv, *Manager, *fakeParty, *fakeParty, *fakeParty) {
	t.Helper()
	env := setupEnv(t)
	m := NewManager(env.opts)
	return env, m,
		newFakeParty("carol", item.DefaultSize),
		newFakeParty("dave", item.DefaultSize),
		newFakeParty("erin", item.DefaultSize)
}

func TestManagerMutualInviteStartsTrade(t *testing.T) {
	_, m, carol, dave, _ := setupManager(t)

	tr, err := m.Invite(carol, dave)
	if err != nil || tr != nil {
		t.Fatalf("first invite should only be recorded, got %v, %v", tr, err)
	}
	if !m.Pending("carol", "dave") {
		t.Fatal("expected a pending request")
	}
	if dave.received("carol wants to trade with you.") != 1 {
		t.Errorf("expected dave to be notified, got %v", dave.messages)
	}

	tr, err = m.Invite(dave, carol)
	if err != nil {
		t.Fatalf("accepting invite failed: %v", err)
	}
	if tr == nil {
		t.Fatal("expected the trade to start")
	}
	if m.Of("carol") != tr || m.Of("dave") != tr {
		t.Error("both parties should be mapped to the trade")
	}
	if m.Active() != 1 {
		t.Errorf("expected 1 active trade, got %d", m.Active())
	}
	if m.Pending("carol", "dave") {
		t.Error("request should be consumed")
	}
	if tr.SideOf("carol") != First {
		t.Error("the inviter should be the first side")
	}
	if !carol.view.open || !dave.view.open {
		t.Error("expected both views open")
	}
}

func TestManagerRejectsBusyAndSelf(t *testing.T) {
	_, m, carol, dave, erin := setupManager(t)

	if _, err := m.Invite(carol, carol); !errors.Is(err, ErrSelfTrade) {
		t.Errorf("expected ErrSelfTrade, got %v", err)
	}

	m.Invite(carol, dave)
	m.Invite(dave, carol)

	if _, err := m.Invite(erin, carol); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
	if _, err := m.Invite(carol, erin); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
}

func TestManagerReleasesFinishedTrades(t *testing.T) {
	_, m, carol, dave, _ := setupManager(t)

	m.Invite(carol, dave)
	tr, _ := m.Invite(dave, carol)
	tr.Cancel("")

	if m.Of("carol") != nil || m.Of("dave") != nil {
		t.Error("cancelled trade should be released")
	}
	if m.Active() != 0 {
		t.Errorf("expected no active trades, got %d", m.Active())
	}

	m.Invite(carol, dave)
	if tr, _ := m.Invite(dave, carol); tr == nil {
		t.Error("parties should be able to trade again")
	}
}

func TestManagerInviteExpires(t *testing.T) {
	env, m, carol, dave, _ := setupManager(t)

	m.Invite(carol, dave)
	env.loop.Advance(env.opts.Config.InviteTicks)

	if m.Pending("carol", "dave") {
		t.Fatal("request should have expired")
	}
	if carol.received("Your trade request to dave expired.") != 1 {
		t.Errorf("expected expiry notice, got %v", carol.messages)
	}
	if tr, _ := m.Invite(dave, carol); tr != nil {
		t.Error("an expired request must not be accepted")
	}
}

func TestManagerDeny(t *testing.T) {
	env, m, carol, dave, _ := setupManager(t)

	m.Invite(carol, dave)
	if err := m.Deny(dave, "carol"); err != nil {
		t.Fatalf("Deny failed: %v", err)
	}
	if carol.received("dave declined your trade request.") != 1 {
		t.Errorf("expected denial notice, got %v", carol.messages)
	}
	if err := m.Deny(dave, "carol"); !errors.Is(err, ErrNoInvite) {
		t.Errorf("expected ErrNoInvite, got %v", err)
	}

	env.loop.Advance(env.opts.Config.InviteTicks)
	if carol.received("Your trade request to dave expired.") != 0 {
		t.Error("a denied request must not expire later")
	}
}

func TestManagerStartVoidsOtherRequests(t *testing.T) {
	_, m, carol, dave, erin := setupManager(t)

	m.Invite(carol, erin)
	m.Invite(dave, carol)
	m.Invite(carol, dave)

	if m.Pending("carol", "erin") {
		t.Error("carol's request to erin should be void once trading")
	}
}

func TestManagerLeave(t *testing.T) {
	_, m, carol, dave, erin := setupManager(t)

	m.Invite(erin, carol)
	m.Invite(carol, dave)
	tr, _ := m.Invite(dave, carol)

	m.Leave("carol")

	if tr.Phase() != Cancelled {
		t.Errorf("expected CANCELLED, got %s", tr.Phase())
	}
	if dave.received(DefaultMessages().PartnerLeft) != 1 {
		t.Errorf("expected partner left message, got %v", dave.messages)
	}
	if m.Pending("erin", "carol") {
		t.Error("requests to a party that left should be dropped")
	}
	if m.Of("dave") != nil {
		t.Error("dave should be free again")
	}
}

func TestManagerCancelAll(t *testing.T) {
	_, m, carol, dave, _ := setupManager(t)

	m.Invite(carol, dave)
	tr, _ := m.Invite(dave, carol)

	m.CancelAll("server stopping")

	if tr.Phase() != Cancelled {
		t.Errorf("expected CANCELLED, got %s", tr.Phase())
	}
	if carol.received("server stopping") != 1 {
		t.Errorf("expected shutdown reason, got %v", carol.messages)
	}
	if m.Active() != 0 {
		t.Errorf("expected no active trades, got %d", m.Active())
	}
}
