package accounts

import (
	"context"
	"database/sql"
	"errors"
)

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvariantViolation marks a balance mutation that would drive a
	// bucket negative. Unreachable under correct use; callers must abort.
	ErrInvariantViolation = errors.New("balance invariant violation")
)

// Balance is one account's two funds buckets. Only available is spendable.
type Balance struct {
	AccountID int64
	Available int64
	Locked    int64
}

type Accounts interface {
	Exists(tx *sql.Tx, accountID int64) error
	GetBalance(ctx context.Context, accountID int64) (Balance, error)
	// LockAndGetBalance takes the per-account row lock (FOR UPDATE) that
	// serializes all concurrent funds movement on one account.
	LockAndGetBalance(tx *sql.Tx, accountID int64) (Balance, error)
	// MoveToLocked escrows amount (available -> locked). Fails with
	// ErrInsufficientFunds when available < amount.
	MoveToLocked(tx *sql.Tx, accountID, amount int64) error
	// MoveToAvailable reverses an escrow (locked -> available). Fails with
	// ErrInvariantViolation when locked < amount.
	MoveToAvailable(tx *sql.Tx, accountID, amount int64) error
	// ReleaseLocked clears amount out of locked without returning it to
	// available; used when a stake is paid into the pot at settlement.
	ReleaseLocked(tx *sql.Tx, accountID, amount int64) error
	AddAvailable(tx *sql.Tx, accountID, amount int64) error
	// SubAvailable fails with ErrInsufficientFunds when available < amount.
	SubAvailable(tx *sql.Tx, accountID, amount int64) error
}
