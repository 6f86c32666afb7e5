package store

import (
	"encoding/json"
	"time"

	"barter/internal/item"
)

// Drop is an item left in the world because its owner's storage was full
type Drop struct {
	ID        int64
	Party     string
	Stack     item.Stack
	CreatedAt time.Time
}

// RecordDrop remembers a stack dropped for a party
func (s *Store) RecordDrop(party string, st item.Stack) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		"INSERT INTO dropped_items (party, material, amount, stack) VALUES (?, ?, ?, ?)",
		party, st.Material, st.Amount, string(data),
	)
	return err
}

// DropsFor returns the items lying in the world for a party, oldest first
func (s *Store) DropsFor(party string) ([]Drop, error) {
	rows, err := s.db.Query(
		"SELECT id, party, stack, created_at FROM dropped_items WHERE party = ? ORDER BY id",
		party,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drops []Drop
	for rows.Next() {
		var d Drop
		var data string
		if err := rows.Scan(&d.ID, &d.Party, &data, &d.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &d.Stack); err != nil {
			return nil, err
		}
		drops = append(drops, d)
	}
	return drops, rows.Err()
}

// RemoveDrop deletes a drop once it was picked up
func (s *Store) RemoveDrop(id int64) error {
	_, err := s.db.Exec("DELETE FROM dropped_items WHERE id = ?", id)
	return err
}
