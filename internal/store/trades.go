package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"barter/internal/item"
)

var ErrTradeNotFound = errors.New("trade not found")

// TradeRecord is a finished or cancelled trade
type TradeRecord struct {
	ID          string
	FirstParty  string
	SecondParty string
	Outcome     string
	Reason      string
	CreatedAt   time.Time
	Items       []TradeItem
	Currencies  []CurrencyChange
}

// TradeItem is one stack that changed hands
type TradeItem struct {
	From  string
	To    string
	Stack item.Stack
}

// CurrencyChange is the net balance change of one party
type CurrencyChange struct {
	Party    string
	Currency string
	Diff     int64
}

// SaveTrade stores a trade together with everything it exchanged
func (s *Store) SaveTrade(rec TradeRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO trades (id, first_party, second_party, outcome, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.FirstParty, rec.SecondParty, rec.Outcome, rec.Reason, rec.CreatedAt.UTC())
	if err != nil {
		return err
	}

	for _, it := range rec.Items {
		data, err := json.Marshal(it.Stack)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
			INSERT INTO trade_items (trade_id, from_party, to_party, material, amount, stack)
			VALUES (?, ?, ?, ?, ?, ?)
		`, rec.ID, it.From, it.To, it.Stack.Material, it.Stack.Amount, string(data))
		if err != nil {
			return err
		}
	}

	for _, c := range rec.Currencies {
		_, err = tx.Exec(`
			INSERT INTO trade_currencies (trade_id, party, currency, diff)
			VALUES (?, ?, ?, ?)
		`, rec.ID, c.Party, c.Currency, c.Diff)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetTrade loads one trade with its items and currency changes
func (s *Store) GetTrade(id string) (*TradeRecord, error) {
	rec := &TradeRecord{}
	err := s.db.QueryRow(`
		SELECT id, first_party, second_party, outcome, reason, created_at
		FROM trades WHERE id = ?
	`, id).Scan(&rec.ID, &rec.FirstParty, &rec.SecondParty, &rec.Outcome, &rec.Reason, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTradeNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadTradeDetails(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// TradesFor returns the most recent trades a party took part in, newest first
func (s *Store) TradesFor(party string, limit int) ([]TradeRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(`
		SELECT id, first_party, second_party, outcome, reason, created_at
		FROM trades
		WHERE first_party = ? OR second_party = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, party, party, limit)
	if err != nil {
		return nil, err
	}

	var records []TradeRecord
	for rows.Next() {
		var rec TradeRecord
		if err := rows.Scan(&rec.ID, &rec.FirstParty, &rec.SecondParty, &rec.Outcome, &rec.Reason, &rec.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		records = append(records, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Details need the single connection the rows held
	for i := range records {
		if err := s.loadTradeDetails(&records[i]); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func (s *Store) loadTradeDetails(rec *TradeRecord) error {
	rows, err := s.db.Query(
		"SELECT from_party, to_party, stack FROM trade_items WHERE trade_id = ? ORDER BY id",
		rec.ID,
	)
	if err != nil {
		return err
	}
	for rows.Next() {
		var it TradeItem
		var data string
		if err := rows.Scan(&it.From, &it.To, &data); err != nil {
			rows.Close()
			return err
		}
		if err := json.Unmarshal([]byte(data), &it.Stack); err != nil {
			rows.Close()
			return err
		}
		rec.Items = append(rec.Items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.db.Query(
		"SELECT party, currency, diff FROM trade_currencies WHERE trade_id = ? ORDER BY id",
		rec.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var c CurrencyChange
		if err := rows.Scan(&c.Party, &c.Currency, &c.Diff); err != nil {
			return err
		}
		rec.Currencies = append(rec.Currencies, c)
	}
	return rows.Err()
}
