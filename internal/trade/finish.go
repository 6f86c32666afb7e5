package trade

import (
	"fmt"
	"log"
	"time"

	"barter/internal/report"
)

// commit runs the two-phase finish: every icon of both sides is tried
// before any of them is executed
func (t *Trade) commit() {
	t.phase = Committing

	for _, side := range sides {
		if !t.trialFinish(side) {
			return
		}
	}

	for _, side := range sides {
		t.executeFinish(side)
	}

	t.phase = Done
	t.complete()
}

func (t *Trade) trialFinish(side Side) bool {
	l := t.layouts[side]
	for _, slot := range l.Slots() {
		f, ok := l.Icon(slot).(Finisher)
		if !ok {
			continue
		}

		switch r := f.TryFinish(t, side); r {
		case Pass:
		case ErrorEconomy:
			log.Printf("[Trade] %s economy trial failed for %s in slot %d", t.id, t.ids[side], slot)
			t.Cancel(t.cfg.Messages.EconomyError)
			return false
		default:
			t.abort(fmt.Errorf("%w: unknown finish result %d in slot %d", ErrProtocol, r, slot))
			return false
		}
	}
	return true
}

func (t *Trade) executeFinish(side Side) {
	l := t.layouts[side]
	for _, slot := range l.Slots() {
		if f, ok := l.Icon(slot).(Finisher); ok {
			f.Finish(t, side)
		}
	}
}

// complete tears the trade down after a successful commit
func (t *Trade) complete() {
	t.teardown()

	for _, side := range sides {
		p := t.parties[side]
		p.Cue(CueFinish)
		p.Send(fmt.Sprintf(t.cfg.Messages.Completed, t.ids[side.Other()]))

		r := t.Report(side)
		if r.Empty() {
			p.Send(t.cfg.Messages.NothingTraded)
		}
		for _, line := range r.Lines() {
			p.Send(line)
		}
		if t.dropped[side] {
			p.Send(t.cfg.Messages.ItemsDropped)
		}
	}

	t.record(Completed, "")
	log.Printf("[Trade] %s completed: %d stacks, %d currency changes", t.id, len(t.transfers), len(t.currencyTx))
}

// Report builds the summary of exchanged items and currencies for a side
func (t *Trade) Report(side Side) report.Report {
	if !side.Valid() {
		return report.Report{}
	}
	var ex []report.Exchange
	for _, tr := range t.transfers {
		dir := report.Sent
		if tr.From != side {
			dir = report.Received
		}
		ex = append(ex, report.Exchange{Stack: tr.Stack, Direction: dir})
	}
	return t.reports.Build(report.Result{Items: ex, Currencies: t.currencies[side]})
}

// Transfers returns every stack that moved during the commit
func (t *Trade) Transfers() []Transfer {
	return append([]Transfer(nil), t.transfers...)
}

func (t *Trade) record(outcome Outcome, reason string) {
	if t.cfg.Remote || t.recorder == nil {
		return
	}
	t.recorder.Record(Event{
		TradeID:    t.id,
		Parties:    t.ids,
		Outcome:    outcome,
		Reason:     reason,
		Items:      t.Transfers(),
		Currencies: append([]CurrencyTransfer(nil), t.currencyTx...),
		At:         time.Now(),
	})
}

// teardown closes everything that outlives a single action
func (t *Trade) teardown() {
	if t.countdown != nil {
		t.countdown.Stop()
		t.countdown = nil
	}
	if t.unlisten != nil {
		t.unlisten()
		t.unlisten = nil
	}
	for _, side := range sides {
		t.parties[side].View().Close()
	}
	if t.onClose != nil {
		t.onClose(t)
	}
}
