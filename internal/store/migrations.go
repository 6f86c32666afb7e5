package store

import "fmt"

// Migration represents a database schema migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// migrations is the ordered list of all migrations
// New migrations should be appended to the end with incrementing version numbers
var migrations = []Migration{
	{
		Version:     1,
		Description: "Users and sessions",
		SQL: `
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			expires_at DATETIME NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
		CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);
		`,
	},
	{
		Version:     2,
		Description: "Wallets and inventories",
		SQL: `
		CREATE TABLE IF NOT EXISTS wallets (
			user_id TEXT NOT NULL REFERENCES users(id),
			currency TEXT NOT NULL,
			balance INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, currency)
		);

		CREATE TABLE IF NOT EXISTS inventories (
			user_id TEXT PRIMARY KEY REFERENCES users(id),
			contents TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		`,
	},
	{
		Version:     3,
		Description: "Trade log",
		SQL: `
		CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			first_party TEXT NOT NULL,
			second_party TEXT NOT NULL,
			outcome TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS trade_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			trade_id TEXT NOT NULL REFERENCES trades(id),
			from_party TEXT NOT NULL,
			to_party TEXT NOT NULL,
			material TEXT NOT NULL,
			amount INTEGER NOT NULL,
			stack TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS trade_currencies (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			trade_id TEXT NOT NULL REFERENCES trades(id),
			party TEXT NOT NULL,
			currency TEXT NOT NULL,
			diff INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_trades_first ON trades(first_party);
		CREATE INDEX IF NOT EXISTS idx_trades_second ON trades(second_party);
		CREATE INDEX IF NOT EXISTS idx_trade_items_trade ON trade_items(trade_id);
		CREATE INDEX IF NOT EXISTS idx_trade_currencies_trade ON trade_currencies(trade_id);
		`,
	},
	{
		Version:     4,
		Description: "Dropped items",
		SQL: `
		CREATE TABLE IF NOT EXISTS dropped_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			party TEXT NOT NULL,
			material TEXT NOT NULL,
			amount INTEGER NOT NULL,
			stack TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_dropped_items_party ON dropped_items(party);
		`,
	},
}

// initMigrationsTable creates the migrations tracking table
func (s *Store) initMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

// getCurrentVersion returns the highest applied migration version
func (s *Store) getCurrentVersion() (int, error) {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

// Migrate runs all pending migrations
func (s *Store) Migrate() error {
	if err := s.initMigrationsTable(); err != nil {
		return fmt.Errorf("failed to init migrations table: %w", err)
	}

	currentVersion, err := s.getCurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}
		if err := s.applyMigration(m); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
	}

	return nil
}

// applyMigration runs a single migration in a transaction
func (s *Store) applyMigration(m Migration) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.SQL); err != nil {
		return err
	}
	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
		m.Version, m.Description,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// MigrationStatus returns applied and pending migrations
func (s *Store) MigrationStatus() (applied []int, pending []int, err error) {
	if err := s.initMigrationsTable(); err != nil {
		return nil, nil, err
	}

	rows, err := s.db.Query("SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	appliedSet := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, nil, err
		}
		applied = append(applied, v)
		appliedSet[v] = true
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	for _, m := range migrations {
		if !appliedSet[m.Version] {
			pending = append(pending, m.Version)
		}
	}

	return applied, pending, nil
}
