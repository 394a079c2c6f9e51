package accounts

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/duelpit/duelpit/internal/infra/pgtestutil"
	"github.com/duelpit/duelpit/internal/repos/accounts"
)

func seedAccount(t *testing.T, db *sql.DB, id, available, locked int64) {
	t.Helper()

	_, err := db.Exec(`
		INSERT INTO accounts (id, available, locked) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET available = EXCLUDED.available, locked = EXCLUDED.locked
	`, id, available, locked)
	if err != nil {
		t.Fatalf("seed account(%d): %v", id, err)
	}
}

func TestAccounts_MoveToLocked_Table(t *testing.T) {
	t.Parallel()

	type tc struct {
		name          string
		available     int64
		locked        int64
		amount        int64
		wantAvailable int64
		wantLocked    int64
		wantErr       error
	}

	tests := []tc{
		{
			name:          "sufficient_funds",
			available:     1_000,
			amount:        250,
			wantAvailable: 750,
			wantLocked:    250,
		},
		{
			name:          "exact_to_zero",
			available:     300,
			amount:        300,
			wantAvailable: 0,
			wantLocked:    300,
		},
		{
			name:          "insufficient_funds_unchanged",
			available:     200,
			locked:        50,
			amount:        300,
			wantAvailable: 200,
			wantLocked:    50,
			wantErr:       accounts.ErrInsufficientFunds,
		},
		{
			name:    "locked_bucket_does_not_cover",
			locked:  1_000,
			amount:  100,
			wantErr: accounts.ErrInsufficientFunds,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db, cleanup := pgtestutil.NewTestDB(t)
			defer cleanup()

			const accountID = 7
			seedAccount(t, db, accountID, tt.available, tt.locked)

			repo := New(db)

			ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
			defer cancel()

			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				t.Fatalf("begin tx: %v", err)
			}
			defer func() { _ = tx.Rollback() }()

			err = repo.MoveToLocked(tx, accountID, tt.amount)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("MoveToLocked err = %v, want %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("move to locked: %v", err)
			}
			if err := tx.Commit(); err != nil {
				t.Fatalf("commit: %v", err)
			}

			got, err := repo.GetBalance(ctx, accountID)
			if err != nil {
				t.Fatalf("get balance: %v", err)
			}
			if got.Available != tt.wantAvailable || got.Locked != tt.wantLocked {
				t.Fatalf("balance = {available:%d locked:%d}, want {available:%d locked:%d}",
					got.Available, got.Locked, tt.wantAvailable, tt.wantLocked)
			}
		})
	}
}

func TestAccounts_MoveToAvailable_InvariantViolation(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	seedAccount(t, db, 7, 500, 100)

	repo := New(db)

	tx, err := db.BeginTx(t.Context(), nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Unlocking more than is escrowed is a bookkeeping bug, not a user error.
	err = repo.MoveToAvailable(tx, 7, 200)
	if !errors.Is(err, accounts.ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation, got %v", err)
	}
}

func TestAccounts_ReleaseLocked_DrainsEscrow(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	seedAccount(t, db, 9, 0, 400)

	repo := New(db)

	tx, err := db.BeginTx(t.Context(), nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := repo.ReleaseLocked(tx, 9, 400); err != nil {
		t.Fatalf("release locked: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := repo.GetBalance(t.Context(), 9)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if got.Available != 0 || got.Locked != 0 {
		t.Fatalf("balance = {available:%d locked:%d}, want both zero", got.Available, got.Locked)
	}
}

// Two transactions racing to escrow the same last funds: the row lock
// serializes them and only one can win.
func TestAccounts_MoveToLocked_ConcurrentGuard(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	seedAccount(t, db, 1, 1_000, 0)

	repo := New(db)

	var wg sync.WaitGroup
	var mu sync.Mutex
	success, insufficient := 0, 0

	worker := func(name string) {
		defer wg.Done()

		ctx := context.Background()
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			t.Errorf("[%s] begin tx: %v", name, err)
			return
		}
		defer func() { _ = tx.Rollback() }()

		_, err = repo.LockAndGetBalance(tx, 1)
		if err != nil {
			t.Errorf("[%s] lock balance: %v", name, err)
			return
		}

		err = repo.MoveToLocked(tx, 1, 1_000)
		if err == nil {
			mu.Lock()
			success++
			mu.Unlock()
			if err := tx.Commit(); err != nil {
				t.Errorf("[%s] commit: %v", name, err)
			}
			return
		}

		if errors.Is(err, accounts.ErrInsufficientFunds) {
			mu.Lock()
			insufficient++
			mu.Unlock()
			return
		}

		t.Errorf("[%s] unexpected error: %v", name, err)
	}

	wg.Add(2)
	go worker("A")
	go worker("B")
	wg.Wait()

	if success != 1 || insufficient != 1 {
		t.Fatalf("want 1 success and 1 insufficient, got success=%d insufficient=%d", success, insufficient)
	}
}
