package accounts

import (
	"database/sql"
	"fmt"

	"github.com/duelpit/duelpit/internal/repos/accounts"
)

func (r *accountsRepo) AddAvailable(tx *sql.Tx, accountID, amount int64) error {
	_, err := tx.Exec(`
		UPDATE accounts
		SET available = available + $2
		WHERE id = $1
	`, accountID, amount)
	if err != nil {
		return fmt.Errorf("add available: %w", err)
	}

	return nil
}

func (r *accountsRepo) SubAvailable(tx *sql.Tx, accountID, amount int64) error {
	res, err := tx.Exec(`
		UPDATE accounts
		SET available = available - $2
		WHERE id = $1
		  AND available >= $2
	`, accountID, amount)
	if err != nil {
		return fmt.Errorf("sub available: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return accounts.ErrInsufficientFunds
	}

	return nil
}
