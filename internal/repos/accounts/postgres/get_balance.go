package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/duelpit/duelpit/internal/repos/accounts"
)

func (r *accountsRepo) GetBalance(ctx context.Context, accountID int64) (accounts.Balance, error) {
	b := accounts.Balance{AccountID: accountID}

	err := r.db.QueryRowContext(ctx, `
		SELECT available, locked
		FROM accounts
		WHERE id = $1
	`, accountID).Scan(&b.Available, &b.Locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return accounts.Balance{}, accounts.ErrAccountNotFound
		}

		return accounts.Balance{}, fmt.Errorf("get balance: %w", err)
	}

	return b, nil
}

func (r *accountsRepo) LockAndGetBalance(tx *sql.Tx, accountID int64) (accounts.Balance, error) {
	b := accounts.Balance{AccountID: accountID}

	err := tx.QueryRow(`
		SELECT available, locked
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`, accountID).Scan(&b.Available, &b.Locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return accounts.Balance{}, accounts.ErrAccountNotFound
		}

		return accounts.Balance{}, fmt.Errorf("lock/get balance: %w", err)
	}

	return b, nil
}
