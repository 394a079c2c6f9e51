package registry

import (
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/duelpit/duelpit/internal/auth"
	"github.com/duelpit/duelpit/internal/infra/pgtestutil"
	"github.com/duelpit/duelpit/internal/notify"
	"github.com/duelpit/duelpit/internal/repos/accounts"
	accountspg "github.com/duelpit/duelpit/internal/repos/accounts/postgres"
	ledgertxpg "github.com/duelpit/duelpit/internal/repos/ledgertx/postgres"
	matchespg "github.com/duelpit/duelpit/internal/repos/matches/postgres"
	"github.com/duelpit/duelpit/internal/repos/wagers"
	wagerspg "github.com/duelpit/duelpit/internal/repos/wagers/postgres"
	"github.com/duelpit/duelpit/internal/services/ledger"
)

var testCfg = Config{
	Expiry:       15 * time.Minute,
	LocationPool: []string{"eu-west", "eu-east", "na-east"},
	MapPool:      []string{"de_dust2", "de_mirage", "de_inferno"},
}

func newTestService(t *testing.T) (*Service, *sql.DB, *ledger.Service) {
	t.Helper()

	db, cleanup := pgtestutil.NewTestDB(t)
	t.Cleanup(cleanup)

	accountsRepo := accountspg.New(db)
	entriesRepo := ledgertxpg.New(db)
	ledgerSvc := ledger.New(accountsRepo, entriesRepo)

	svc := New(db, testCfg, wagerspg.New(db), matchespg.New(db), accountsRepo, ledgerSvc, notify.LogNotifier{})

	return svc, db, ledgerSvc
}

func seedAccount(t *testing.T, db *sql.DB, id, available int64) {
	t.Helper()

	_, err := db.Exec(`INSERT INTO accounts (id, available, locked) VALUES ($1, $2, 0)`, id, available)
	if err != nil {
		t.Fatalf("seed account(%d): %v", id, err)
	}
}

func player(id int64) auth.Identity {
	return auth.Identity{AccountID: id, Role: auth.RolePlayer}
}

func TestRegistry_Create_EscrowsStake(t *testing.T) {
	t.Parallel()

	svc, db, ledgerSvc := newTestService(t)
	seedAccount(t, db, 1, 1_000)

	w, err := svc.Create(t.Context(), player(1), 500, "de_dust2", "wingman")
	if err != nil {
		t.Fatalf("create wager: %v", err)
	}

	if w.Status != wagers.StatusWaiting {
		t.Fatalf("status = %s, want WAITING", w.Status)
	}
	if got := w.ExpiresAt.Sub(w.CreatedAt); got != testCfg.Expiry {
		t.Fatalf("expiry window = %s, want %s", got, testCfg.Expiry)
	}

	b, err := ledgerSvc.Balance(t.Context(), 1)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if b.Available != 500 || b.Locked != 500 {
		t.Fatalf("balance = {available:%d locked:%d}, want {500 500}", b.Available, b.Locked)
	}

	history, err := ledgerSvc.History(t.Context(), 1, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Amount != -500 {
		t.Fatalf("history = %+v, want one LOCK of -500", history)
	}
}

func TestRegistry_Create_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		seed    int64
		caller  auth.Identity
		stake   int64
		gameMap string
		mode    string
		wantErr error
	}{
		{
			name:    "zero_stake",
			seed:    1_000,
			caller:  player(1),
			stake:   0,
			gameMap: "de_dust2",
			mode:    "wingman",
			wantErr: ErrInvalidStake,
		},
		{
			name:    "negative_stake",
			seed:    1_000,
			caller:  player(1),
			stake:   -50,
			gameMap: "de_dust2",
			mode:    "wingman",
			wantErr: ErrInvalidStake,
		},
		{
			name:    "missing_map",
			seed:    1_000,
			caller:  player(1),
			stake:   100,
			gameMap: "",
			mode:    "wingman",
			wantErr: ErrInvalidMap,
		},
		{
			name:    "insufficient_funds",
			seed:    100,
			caller:  player(1),
			stake:   500,
			gameMap: "de_dust2",
			mode:    "wingman",
			wantErr: accounts.ErrInsufficientFunds,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, db, ledgerSvc := newTestService(t)
			seedAccount(t, db, 1, tt.seed)

			_, err := svc.Create(t.Context(), tt.caller, tt.stake, tt.gameMap, tt.mode)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Create err = %v, want %v", err, tt.wantErr)
			}

			// A rejected create must leave the balance untouched.
			b, berr := ledgerSvc.Balance(t.Context(), 1)
			if berr != nil {
				t.Fatalf("balance: %v", berr)
			}
			if b.Available != tt.seed || b.Locked != 0 {
				t.Fatalf("balance after rejection = %+v, want untouched", b)
			}
		})
	}
}

func TestRegistry_Accept_LocksBothStakes(t *testing.T) {
	t.Parallel()

	svc, db, ledgerSvc := newTestService(t)
	seedAccount(t, db, 1, 1_000)
	seedAccount(t, db, 2, 1_000)

	w, err := svc.Create(t.Context(), player(1), 500, "de_dust2", "wingman")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	accepted, m, err := svc.Accept(t.Context(), player(2), w.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}

	if accepted.Status != wagers.StatusLocked || accepted.Pot != 1_000 {
		t.Fatalf("wager = %+v, want LOCKED with pot 1000", accepted)
	}
	if m.CreatorID != 1 || m.OpponentID != 2 {
		t.Fatalf("match participants = %d vs %d, want 1 vs 2", m.CreatorID, m.OpponentID)
	}

	for _, id := range []int64{1, 2} {
		b, berr := ledgerSvc.Balance(t.Context(), id)
		if berr != nil {
			t.Fatalf("balance(%d): %v", id, berr)
		}
		if b.Available != 500 || b.Locked != 500 {
			t.Fatalf("account %d balance = %+v, want {500 500}", id, b)
		}
	}
}

func TestRegistry_Accept_SelfAccept(t *testing.T) {
	t.Parallel()

	svc, db, _ := newTestService(t)
	seedAccount(t, db, 1, 1_000)

	w, err := svc.Create(t.Context(), player(1), 100, "de_dust2", "wingman")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, _, err = svc.Accept(t.Context(), player(1), w.ID)
	if !errors.Is(err, ErrSelfAccept) {
		t.Fatalf("Accept err = %v, want ErrSelfAccept", err)
	}
}

func TestRegistry_Accept_Expired(t *testing.T) {
	t.Parallel()

	svc, db, _ := newTestService(t)
	seedAccount(t, db, 1, 1_000)
	seedAccount(t, db, 2, 1_000)

	w, err := svc.Create(t.Context(), player(1), 100, "de_dust2", "wingman")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = db.Exec(`UPDATE wagers SET expires_at = now() - interval '1 minute' WHERE id = $1`, w.ID)
	if err != nil {
		t.Fatalf("age wager: %v", err)
	}

	_, _, err = svc.Accept(t.Context(), player(2), w.ID)
	if !errors.Is(err, ErrWagerExpired) {
		t.Fatalf("Accept err = %v, want ErrWagerExpired", err)
	}
}

// Two acceptors race for the same offer: exactly one wins, and only the
// winner's stake joins escrow.
func TestRegistry_Accept_ConcurrentRace(t *testing.T) {
	t.Parallel()

	svc, db, ledgerSvc := newTestService(t)
	seedAccount(t, db, 1, 1_000)
	seedAccount(t, db, 2, 1_000)
	seedAccount(t, db, 3, 1_000)

	w, err := svc.Create(t.Context(), player(1), 500, "de_dust2", "wingman")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	won, lost := 0, 0

	accept := func(id int64) {
		defer wg.Done()

		_, _, aerr := svc.Accept(t.Context(), player(id), w.ID)
		mu.Lock()
		defer mu.Unlock()

		switch {
		case aerr == nil:
			won++
		case errors.Is(aerr, ErrAlreadyMatched):
			lost++
		default:
			t.Errorf("acceptor %d unexpected error: %v", id, aerr)
		}
	}

	wg.Add(2)
	go accept(2)
	go accept(3)
	wg.Wait()

	if won != 1 || lost != 1 {
		t.Fatalf("want 1 winner and 1 loser, got won=%d lost=%d", won, lost)
	}

	// Exactly one acceptor escrowed; total locked across both candidates is
	// one stake.
	var totalLocked int64
	for _, id := range []int64{2, 3} {
		b, berr := ledgerSvc.Balance(t.Context(), id)
		if berr != nil {
			t.Fatalf("balance(%d): %v", id, berr)
		}
		totalLocked += b.Locked
	}
	if totalLocked != 500 {
		t.Fatalf("acceptors' locked total = %d, want 500", totalLocked)
	}
}

func TestRegistry_Cancel(t *testing.T) {
	t.Parallel()

	svc, db, ledgerSvc := newTestService(t)
	seedAccount(t, db, 1, 1_000)
	seedAccount(t, db, 2, 1_000)

	w, err := svc.Create(t.Context(), player(1), 500, "de_dust2", "wingman")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Only the creator may withdraw an open offer.
	if err := svc.Cancel(t.Context(), player(2), w.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger Cancel err = %v, want ErrForbidden", err)
	}

	if err := svc.Cancel(t.Context(), player(1), w.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	b, err := ledgerSvc.Balance(t.Context(), 1)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if b.Available != 1_000 || b.Locked != 0 {
		t.Fatalf("balance after cancel = %+v, want fully restored", b)
	}

	got, err := svc.Get(t.Context(), w.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != wagers.StatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", got.Status)
	}

	// Cancelling again is a no-op conflict, not a second refund.
	if err := svc.Cancel(t.Context(), player(1), w.ID); !errors.Is(err, ErrNotCancellable) {
		t.Fatalf("second Cancel err = %v, want ErrNotCancellable", err)
	}
}

func TestRegistry_ListOpen_HidesExpiredAndMatched(t *testing.T) {
	t.Parallel()

	svc, db, _ := newTestService(t)
	seedAccount(t, db, 1, 10_000)
	seedAccount(t, db, 2, 10_000)

	open, err := svc.Create(t.Context(), player(1), 100, "de_dust2", "wingman")
	if err != nil {
		t.Fatalf("create open: %v", err)
	}

	expired, err := svc.Create(t.Context(), player(1), 100, "de_mirage", "wingman")
	if err != nil {
		t.Fatalf("create expired: %v", err)
	}
	_, err = db.Exec(`UPDATE wagers SET expires_at = now() - interval '1 minute' WHERE id = $1`, expired.ID)
	if err != nil {
		t.Fatalf("age wager: %v", err)
	}

	matched, err := svc.Create(t.Context(), player(1), 100, "de_inferno", "wingman")
	if err != nil {
		t.Fatalf("create matched: %v", err)
	}
	if _, _, err := svc.Accept(t.Context(), player(2), matched.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	got, err := svc.ListOpen(t.Context(), 100)
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(got) != 1 || got[0].ID != open.ID {
		t.Fatalf("open wagers = %+v, want exactly the fresh offer", got)
	}
}

func TestRegistry_SweepExpired(t *testing.T) {
	t.Parallel()

	svc, db, ledgerSvc := newTestService(t)
	seedAccount(t, db, 1, 1_000)

	w, err := svc.Create(t.Context(), player(1), 400, "de_dust2", "wingman")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = db.Exec(`UPDATE wagers SET expires_at = now() - interval '1 minute' WHERE id = $1`, w.ID)
	if err != nil {
		t.Fatalf("age wager: %v", err)
	}

	n, err := svc.SweepExpired(t.Context(), time.Now().UTC())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("swept %d wagers, want 1", n)
	}

	got, err := svc.Get(t.Context(), w.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != wagers.StatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", got.Status)
	}

	b, err := ledgerSvc.Balance(t.Context(), 1)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if b.Available != 1_000 || b.Locked != 0 {
		t.Fatalf("balance after sweep = %+v, want fully restored", b)
	}

	// A second sweep finds nothing to do.
	n, err = svc.SweepExpired(t.Context(), time.Now().UTC())
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if n != 0 {
		t.Fatalf("second sweep handled %d wagers, want 0", n)
	}
}
