package accounts

import (
	"errors"
	"testing"

	"github.com/duelpit/duelpit/internal/infra/pgtestutil"
	"github.com/duelpit/duelpit/internal/repos/accounts"
)

func TestAccounts_GetBalance(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	seedAccount(t, db, 5, 12_345, 678)

	repo := New(db)

	got, err := repo.GetBalance(t.Context(), 5)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if got.AccountID != 5 || got.Available != 12_345 || got.Locked != 678 {
		t.Fatalf("balance = %+v, want {5 12345 678}", got)
	}
}

func TestAccounts_GetBalance_NotFound(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New(db)

	_, err := repo.GetBalance(t.Context(), 999)
	if !errors.Is(err, accounts.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestAccounts_Exists(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	seedAccount(t, db, 3, 0, 0)

	repo := New(db)

	tx, err := db.BeginTx(t.Context(), nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := repo.Exists(tx, 3); err != nil {
		t.Fatalf("exists(3): %v", err)
	}
	if err := repo.Exists(tx, 4); !errors.Is(err, accounts.ErrAccountNotFound) {
		t.Fatalf("exists(4) = %v, want ErrAccountNotFound", err)
	}
}
