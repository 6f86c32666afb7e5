package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"barter/internal/item"
)

// LoadInventory returns a user's saved inventory, or an empty one of the given size
func (s *Store) LoadInventory(userID string, size int) (*item.Inventory, error) {
	var contents string
	err := s.db.QueryRow("SELECT contents FROM inventories WHERE user_id = ?", userID).Scan(&contents)
	if err == sql.ErrNoRows {
		return item.NewInventory(size), nil
	}
	if err != nil {
		return nil, err
	}

	inv := item.NewInventory(size)
	if err := json.Unmarshal([]byte(contents), inv); err != nil {
		return nil, fmt.Errorf("decode inventory of %s: %w", userID, err)
	}
	return inv, nil
}

// SaveInventory replaces a user's saved inventory
func (s *Store) SaveInventory(userID string, inv *item.Inventory) error {
	data, err := json.Marshal(inv)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO inventories (user_id, contents) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			contents = excluded.contents,
			updated_at = CURRENT_TIMESTAMP
	`, userID, string(data))
	return err
}
