package trade

import (
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"

	"barter/internal/report"
)

var ErrInvalidAmount = errors.New("invalid amount")

// Currency is a tradeable balance backed by a wallet
type Currency struct {
	Name    string
	Plural  string
	Decimal bool  // Amounts are hundredths
	Max     int64 // Upper bound per offer, 0 = unlimited
	Wallet  Wallet
}

// Currencies maps currency keys used in patterns to their definitions
type Currencies map[string]Currency

// EconomyIcon is the amount of one currency a party offers. Its value is
// mirrored into the partner's EconomyPreviewIcon.
type EconomyIcon struct {
	key      string
	currency Currency
	amount   int64
}

func (e *EconomyIcon) Key() string { return string(KindEconomy) + ":" + e.key }

// TargetKey is the partner's preview icon for the same currency
func (e *EconomyIcon) TargetKey() string { return string(KindEconomyPreview) + ":" + e.key }

func (e *EconomyIcon) TransitionState() any { return e.amount }

// Amount returns the offered amount
func (e *EconomyIcon) Amount() int64 { return e.amount }

func (e *EconomyIcon) Click(t *Trade, side Side, c Click) Result {
	if c.Action == RightClick {
		if e.amount == 0 {
			return Ignore
		}
		e.amount = 0
		return Update
	}
	return OpenView
}

func (e *EconomyIcon) Prompt(t *Trade, side Side) Prompt {
	return Prompt{
		Title: "Offer " + e.currency.plural(),
		Value: report.FormatAmount(e.amount, e.currency.Decimal),
	}
}

// Input sets the offered amount, capped at the balance. When the wallet
// cannot answer yet the value is kept and re-evaluated later.
func (e *EconomyIcon) Input(t *Trade, side Side, value string) Result {
	amount, err := ParseAmount(value, e.currency.Decimal)
	if err != nil || amount < 0 {
		t.parties[side].Send(fmt.Sprintf(t.cfg.Messages.InvalidAmount, value))
		return Ignore
	}
	if e.currency.Max > 0 && amount > e.currency.Max {
		amount = e.currency.Max
	}

	balance, err := e.currency.Wallet.Balance(t.ids[side])
	if err != nil {
		log.Printf("[Trade] %s balance lookup for %s failed: %v", t.id, t.ids[side], err)
		e.amount = amount
		return UpdateLater
	}
	if amount > balance {
		amount = balance
	}
	if amount == e.amount {
		return Ignore
	}
	e.amount = amount
	return Update
}

// NetDifference is what the side gains (positive) or pays (negative)
func (e *EconomyIcon) NetDifference(t *Trade, side Side) int64 {
	var partner int64
	if other, ok := t.layouts[side.Other()].Find(e.Key()).(*EconomyIcon); ok {
		partner = other.amount
	}
	return partner - e.amount
}

func (e *EconomyIcon) TryFinish(t *Trade, side Side) FinishResult {
	diff := e.NetDifference(t, side)
	if diff >= 0 {
		return Pass
	}
	balance, err := e.currency.Wallet.Balance(t.ids[side])
	if err != nil || balance < -diff {
		return ErrorEconomy
	}
	return Pass
}

// Finish applies the net difference for the side
func (e *EconomyIcon) Finish(t *Trade, side Side) {
	if !e.Apply(t, side) {
		log.Printf("[Trade] %s applying %s for %s failed after a successful trial", t.id, e.key, t.ids[side])
	}
}

// Apply moves the net difference through the wallet
func (e *EconomyIcon) Apply(t *Trade, side Side) bool {
	diff := e.NetDifference(t, side)
	if diff == 0 {
		return true
	}

	var err error
	if diff > 0 {
		err = e.currency.Wallet.Deposit(t.ids[side], diff)
	} else {
		err = e.currency.Wallet.Withdraw(t.ids[side], -diff)
	}
	if err != nil {
		return false
	}

	t.recordCurrency(side, e.key, e.currency, diff)
	return true
}

func (e *EconomyIcon) Render(t *Trade, side Side) Face {
	return Face{
		Kind:  KindEconomy,
		Label: "Your offer: " + report.FormatAmount(e.amount, e.currency.Decimal) + " " + e.currency.plural(),
		Lit:   e.amount > 0,
	}
}

// EconomyPreviewIcon shows the partner's offered amount
type EconomyPreviewIcon struct {
	key      string
	currency Currency
	amount   int64
}

func (e *EconomyPreviewIcon) Key() string { return string(KindEconomyPreview) + ":" + e.key }

func (e *EconomyPreviewIcon) ReceiveTransition(state any) error {
	amount, ok := state.(int64)
	if !ok {
		return fmt.Errorf("economy preview %s cannot take %T", e.key, state)
	}
	e.amount = amount
	return nil
}

func (e *EconomyPreviewIcon) Render(t *Trade, side Side) Face {
	return Face{
		Kind:  KindEconomyPreview,
		Label: "Partner offers: " + report.FormatAmount(e.amount, e.currency.Decimal) + " " + e.currency.plural(),
		Lit:   e.amount > 0,
	}
}

func (c Currency) plural() string {
	if c.Plural != "" {
		return c.Plural
	}
	return c.Name + "s"
}

// ParseAmount reads "1,250" or, for decimal currencies, "12.50" as hundredths
func ParseAmount(value string, decimal bool) (int64, error) {
	v := strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	if v == "" || v[0] == '-' || v[0] == '+' {
		return 0, ErrInvalidAmount
	}

	if !decimal {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return 0, ErrInvalidAmount
		}
		return n, nil
	}

	whole, frac, _ := strings.Cut(v, ".")
	if len(frac) > 2 {
		return 0, ErrInvalidAmount
	}
	for len(frac) < 2 {
		frac += "0"
	}
	if whole == "" {
		whole = "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w < 0 || w > (math.MaxInt64-99)/100 {
		return 0, ErrInvalidAmount
	}
	f, err := strconv.ParseUint(frac, 10, 8)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return w*100 + int64(f), nil
}
