package game

import (
	"log"

	"barter/internal/store"
	"barter/internal/trade"
)

// storeWallet exposes one currency of the store's wallets to trades
type storeWallet struct {
	svc      *Service
	currency string
}

func (w storeWallet) Balance(id trade.PartyID) (int64, error) {
	uid, err := w.svc.userID(id)
	if err != nil {
		return 0, err
	}
	return w.svc.store.Balance(uid, w.currency)
}

func (w storeWallet) Deposit(id trade.PartyID, amount int64) error {
	uid, err := w.svc.userID(id)
	if err != nil {
		return err
	}
	return w.svc.store.Deposit(uid, w.currency, amount)
}

func (w storeWallet) Withdraw(id trade.PartyID, amount int64) error {
	uid, err := w.svc.userID(id)
	if err != nil {
		return err
	}
	return w.svc.store.Withdraw(uid, w.currency, amount)
}

// tradeLog writes terminal trade events to the store and persists the
// inventories the trade changed
type tradeLog struct {
	svc *Service
}

func (l tradeLog) Record(ev trade.Event) {
	rec := store.TradeRecord{
		ID:          ev.TradeID,
		FirstParty:  string(ev.Parties[trade.First]),
		SecondParty: string(ev.Parties[trade.Second]),
		Outcome:     ev.Outcome.String(),
		Reason:      ev.Reason,
		CreatedAt:   ev.At,
	}
	for _, tr := range ev.Items {
		rec.Items = append(rec.Items, store.TradeItem{
			From:  string(ev.Parties[tr.From]),
			To:    string(ev.Parties[tr.From.Other()]),
			Stack: tr.Stack,
		})
	}
	for _, c := range ev.Currencies {
		rec.Currencies = append(rec.Currencies, store.CurrencyChange{
			Party:    string(ev.Parties[c.Side]),
			Currency: c.Currency,
			Diff:     c.Diff,
		})
	}

	if err := l.svc.store.SaveTrade(rec); err != nil {
		log.Printf("[Game] failed to save trade %s: %v", ev.TradeID, err)
	}

	for _, id := range ev.Parties {
		if p := l.svc.players[id]; p != nil {
			p.save()
		}
	}

	for _, fn := range l.svc.onTradeEnd {
		fn(ev)
	}
}
