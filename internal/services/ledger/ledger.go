// Package ledger is the only component that moves funds. Every operation
// runs inside the caller's transaction so that the state transition that
// implied the movement and the movement itself commit or roll back together.
// Each balance change appends exactly one ledger row.
package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/duelpit/duelpit/internal/repos/accounts"
	"github.com/duelpit/duelpit/internal/repos/ledgertx"
)

type Service struct {
	accounts accounts.Accounts
	entries  ledgertx.Ledger
}

func New(accountsRepo accounts.Accounts, entriesRepo ledgertx.Ledger) *Service {
	return &Service{accounts: accountsRepo, entries: entriesRepo}
}

// Lock escrows amount from available into locked and appends a LOCK row.
// Returns accounts.ErrInsufficientFunds when available < amount.
func (s *Service) Lock(tx *sql.Tx, accountID, amount int64, description string, wagerID *uuid.UUID) error {
	err := s.accounts.MoveToLocked(tx, accountID, amount)
	if err != nil {
		return fmt.Errorf("lock funds: %w", err)
	}

	err = s.entries.Insert(tx, ledgertx.Entry{
		ID:          uuid.New(),
		AccountID:   accountID,
		Amount:      -amount,
		Kind:        ledgertx.KindLock,
		Description: description,
		WagerID:     wagerID,
	})
	if err != nil {
		return fmt.Errorf("record lock: %w", err)
	}

	return nil
}

// Unlock reverses a prior lock and appends an UNLOCK row. Returns
// accounts.ErrInvariantViolation (a programming-error guard, not a
// user-facing condition) when it would drive locked below zero.
func (s *Service) Unlock(tx *sql.Tx, accountID, amount int64, description string, wagerID *uuid.UUID) error {
	err := s.accounts.MoveToAvailable(tx, accountID, amount)
	if err != nil {
		return fmt.Errorf("unlock funds: %w", err)
	}

	err = s.entries.Insert(tx, ledgertx.Entry{
		ID:          uuid.New(),
		AccountID:   accountID,
		Amount:      amount,
		Kind:        ledgertx.KindUnlock,
		Description: description,
		WagerID:     wagerID,
	})
	if err != nil {
		return fmt.Errorf("record unlock: %w", err)
	}

	return nil
}

// Refund is an unlock performed by an administrative reversal; it differs
// from Unlock only in the ledger row kind.
func (s *Service) Refund(tx *sql.Tx, accountID, amount int64, description string, wagerID *uuid.UUID) error {
	err := s.accounts.MoveToAvailable(tx, accountID, amount)
	if err != nil {
		return fmt.Errorf("refund funds: %w", err)
	}

	err = s.entries.Insert(tx, ledgertx.Entry{
		ID:          uuid.New(),
		AccountID:   accountID,
		Amount:      amount,
		Kind:        ledgertx.KindRefund,
		Description: description,
		WagerID:     wagerID,
	})
	if err != nil {
		return fmt.Errorf("record refund: %w", err)
	}

	return nil
}

// Release clears a stake out of locked when it is paid into a pot. The
// original LOCK row remains the audit trail; no new row is appended and
// available is untouched.
func (s *Service) Release(tx *sql.Tx, accountID, amount int64) error {
	err := s.accounts.ReleaseLocked(tx, accountID, amount)
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}

	return nil
}

// Credit adds amount to available and appends a row of the given kind.
func (s *Service) Credit(tx *sql.Tx, accountID, amount int64, kind ledgertx.Kind, description string, wagerID *uuid.UUID) error {
	err := s.accounts.AddAvailable(tx, accountID, amount)
	if err != nil {
		return fmt.Errorf("credit funds: %w", err)
	}

	err = s.entries.Insert(tx, ledgertx.Entry{
		ID:          uuid.New(),
		AccountID:   accountID,
		Amount:      amount,
		Kind:        kind,
		Description: description,
		WagerID:     wagerID,
	})
	if err != nil {
		return fmt.Errorf("record credit: %w", err)
	}

	return nil
}

// Debit removes amount from available and appends a row of the given kind.
func (s *Service) Debit(tx *sql.Tx, accountID, amount int64, kind ledgertx.Kind, description string, wagerID *uuid.UUID) error {
	err := s.accounts.SubAvailable(tx, accountID, amount)
	if err != nil {
		return fmt.Errorf("debit funds: %w", err)
	}

	err = s.entries.Insert(tx, ledgertx.Entry{
		ID:          uuid.New(),
		AccountID:   accountID,
		Amount:      -amount,
		Kind:        kind,
		Description: description,
		WagerID:     wagerID,
	})
	if err != nil {
		return fmt.Errorf("record debit: %w", err)
	}

	return nil
}

// Balance reads an account's buckets outside any transaction.
func (s *Service) Balance(ctx context.Context, accountID int64) (accounts.Balance, error) {
	b, err := s.accounts.GetBalance(ctx, accountID)
	if err != nil {
		return accounts.Balance{}, fmt.Errorf("get balance: %w", err)
	}

	return b, nil
}

// History returns an account's most recent ledger entries.
func (s *Service) History(ctx context.Context, accountID int64, limit int) ([]ledgertx.Entry, error) {
	entries, err := s.entries.ListByAccount(ctx, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	return entries, nil
}
