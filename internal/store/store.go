// Package store persists accounts, wallets, inventories and the trade log in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"
)

// Store provides SQLite persistence for the barter server
type Store struct {
	db *sql.DB
}

// New opens the database and applies pending migrations
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One connection so ":memory:" databases are shared and writes never race
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", dbPath, err)
	}

	log.Printf("[Store] opened %s", dbPath)
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// User represents a registered user
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Wallet is the balance of one currency owned by a user
type Wallet struct {
	UserID    string
	Currency  string
	Balance   int64
	UpdatedAt time.Time
}
