package accounts

import (
	"database/sql"
	"fmt"

	"github.com/duelpit/duelpit/internal/repos/accounts"
)

func (r *accountsRepo) MoveToLocked(tx *sql.Tx, accountID, amount int64) error {
	res, err := tx.Exec(`
		UPDATE accounts
		SET available = available - $2,
		    locked    = locked + $2
		WHERE id = $1
		  AND available >= $2
	`, accountID, amount)
	if err != nil {
		return fmt.Errorf("move to locked: %w", err)
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

func (r *accountsRepo) MoveToAvailable(tx *sql.Tx, accountID, amount int64) error {
	res, err := tx.Exec(`
		UPDATE accounts
		SET available = available + $2,
		    locked    = locked - $2
		WHERE id = $1
		  AND locked >= $2
	`, accountID, amount)
	if err != nil {
		return fmt.Errorf("move to available: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return accounts.ErrInvariantViolation
	}

	return nil
}

func (r *accountsRepo) ReleaseLocked(tx *sql.Tx, accountID, amount int64) error {
	res, err := tx.Exec(`
		UPDATE accounts
		SET locked = locked - $2
		WHERE id = $1
		  AND locked >= $2
	`, accountID, amount)
	if err != nil {
		return fmt.Errorf("release locked: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return accounts.ErrInvariantViolation
	}

	return nil
}
