package store

import (
	"database/sql"
	"errors"
	"fmt"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNegativeAmount    = errors.New("amount must not be negative")
)

// Balance returns a user's balance in a currency. Users without a wallet have zero.
func (s *Store) Balance(userID, currency string) (int64, error) {
	var balance int64
	err := s.db.QueryRow(
		"SELECT balance FROM wallets WHERE user_id = ? AND currency = ?",
		userID, currency,
	).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// Deposit adds amount to a user's wallet, creating it on first use
func (s *Store) Deposit(userID, currency string, amount int64) error {
	if amount < 0 {
		return ErrNegativeAmount
	}
	_, err := s.db.Exec(`
		INSERT INTO wallets (user_id, currency, balance) VALUES (?, ?, ?)
		ON CONFLICT(user_id, currency) DO UPDATE SET
			balance = balance + excluded.balance,
			updated_at = CURRENT_TIMESTAMP
	`, userID, currency, amount)
	return err
}

// Withdraw removes amount from a user's wallet. The balance never goes negative.
func (s *Store) Withdraw(userID, currency string, amount int64) error {
	if amount < 0 {
		return ErrNegativeAmount
	}
	if amount == 0 {
		return nil
	}

	res, err := s.db.Exec(`
		UPDATE wallets SET balance = balance - ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND currency = ? AND balance >= ?
	`, amount, userID, currency, amount)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("withdraw %d %s: %w", amount, currency, ErrInsufficientFunds)
	}
	return nil
}

// Wallets returns every wallet of a user ordered by currency
func (s *Store) Wallets(userID string) ([]Wallet, error) {
	rows, err := s.db.Query(
		"SELECT user_id, currency, balance, updated_at FROM wallets WHERE user_id = ? ORDER BY currency",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wallets []Wallet
	for rows.Next() {
		var w Wallet
		if err := rows.Scan(&w.UserID, &w.Currency, &w.Balance, &w.UpdatedAt); err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}
