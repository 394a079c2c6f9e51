package settlement

import (
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/duelpit/duelpit/internal/auth"
	"github.com/duelpit/duelpit/internal/infra/pgtestutil"
	"github.com/duelpit/duelpit/internal/notify"
	accountspg "github.com/duelpit/duelpit/internal/repos/accounts/postgres"
	"github.com/duelpit/duelpit/internal/repos/ledgertx"
	ledgertxpg "github.com/duelpit/duelpit/internal/repos/ledgertx/postgres"
	matchespg "github.com/duelpit/duelpit/internal/repos/matches/postgres"
	"github.com/duelpit/duelpit/internal/repos/wagers"
	wagerspg "github.com/duelpit/duelpit/internal/repos/wagers/postgres"
	"github.com/duelpit/duelpit/internal/services/ledger"
	"github.com/duelpit/duelpit/internal/services/registry"
)

var admin = auth.Identity{AccountID: 99, Role: auth.RoleAdmin}

func player(id int64) auth.Identity {
	return auth.Identity{AccountID: id, Role: auth.RolePlayer}
}

type fixture struct {
	db         *sql.DB
	registry   *registry.Service
	settlement *Service
	ledger     *ledger.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, cleanup := pgtestutil.NewTestDB(t)
	t.Cleanup(cleanup)

	accountsRepo := accountspg.New(db)
	entriesRepo := ledgertxpg.New(db)
	wagersRepo := wagerspg.New(db)
	ledgerSvc := ledger.New(accountsRepo, entriesRepo)

	cfg := registry.Config{
		Expiry:       15 * time.Minute,
		LocationPool: []string{"eu-west", "eu-east", "na-east"},
		MapPool:      []string{"de_dust2", "de_mirage", "de_inferno"},
	}

	return &fixture{
		db:         db,
		registry:   registry.New(db, cfg, wagersRepo, matchespg.New(db), accountsRepo, ledgerSvc, notify.LogNotifier{}),
		settlement: New(db, 10, wagersRepo, accountsRepo, ledgerSvc, entriesRepo, notify.LogNotifier{}),
		ledger:     ledgerSvc,
	}
}

func (f *fixture) seedAccount(t *testing.T, id, available int64) {
	t.Helper()

	_, err := f.db.Exec(`INSERT INTO accounts (id, available, locked) VALUES ($1, $2, 0)`, id, available)
	if err != nil {
		t.Fatalf("seed account(%d): %v", id, err)
	}
}

// lockedWager creates and accepts a 500-stake wager between accounts 1 and
// 2, each seeded with 1000. Result: LOCKED, pot 1000, both stakes escrowed.
func (f *fixture) lockedWager(t *testing.T) uuid.UUID {
	t.Helper()

	f.seedAccount(t, 1, 1_000)
	f.seedAccount(t, 2, 1_000)

	w, err := f.registry.Create(t.Context(), player(1), 500, "de_dust2", "wingman")
	if err != nil {
		t.Fatalf("create wager: %v", err)
	}
	if _, _, err := f.registry.Accept(t.Context(), player(2), w.ID); err != nil {
		t.Fatalf("accept wager: %v", err)
	}

	return w.ID
}

func (f *fixture) assertBalance(t *testing.T, id, available, locked int64) {
	t.Helper()

	b, err := f.ledger.Balance(t.Context(), id)
	if err != nil {
		t.Fatalf("balance(%d): %v", id, err)
	}
	if b.Available != available || b.Locked != locked {
		t.Fatalf("account %d balance = {available:%d locked:%d}, want {available:%d locked:%d}",
			id, b.Available, b.Locked, available, locked)
	}
}

func TestFee(t *testing.T) {
	t.Parallel()

	svc := &Service{feePercent: 10}

	tests := []struct {
		pot  int64
		want int64
	}{
		{1_000, 100},
		{999, 99}, // truncates toward zero
		{10, 1},
		{9, 0},
		{0, 0},
	}
	for _, tt := range tests {
		if got := svc.Fee(tt.pot); got != tt.want {
			t.Fatalf("Fee(%d) = %d, want %d", tt.pot, got, tt.want)
		}
	}
}

func TestSettlement_ForceWinner_PaysPotMinusFee(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	wagerID := f.lockedWager(t)

	err := f.settlement.AdminForceWinner(t.Context(), admin, wagerID, 1, true, "opponent abandoned")
	if err != nil {
		t.Fatalf("force winner: %v", err)
	}

	// Pot 1000, fee 100: winner nets 900 on top of the 500 still available.
	f.assertBalance(t, 1, 1_400, 0)
	f.assertBalance(t, 2, 500, 0)

	// Winner's history carries the WIN and the FEE.
	history, err := f.ledger.History(t.Context(), 1, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	kinds := map[ledgertx.Kind]int64{}
	for _, e := range history {
		kinds[e.Kind] = e.Amount
	}
	if kinds[ledgertx.KindWin] != 1_000 || kinds[ledgertx.KindFee] != -100 {
		t.Fatalf("winner history = %+v, want WIN +1000 and FEE -100", kinds)
	}
}

func TestSettlement_ForceWinner_FeeWaived(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	wagerID := f.lockedWager(t)

	err := f.settlement.AdminForceWinner(t.Context(), admin, wagerID, 2, false, "creator cheated")
	if err != nil {
		t.Fatalf("force winner: %v", err)
	}

	f.assertBalance(t, 2, 1_500, 0)
	f.assertBalance(t, 1, 500, 0)
}

func TestSettlement_ForceWinner_Rejections(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	wagerID := f.lockedWager(t)

	tests := []struct {
		name     string
		caller   auth.Identity
		winnerID int64
		reason   string
		wantErr  error
	}{
		{"player_is_not_admin", player(1), 1, "because", ErrForbidden},
		{"reason_required", admin, 1, "", ErrMissingReason},
		{"winner_must_participate", admin, 7, "because", ErrNotParticipant},
	}

	for _, tt := range tests {
		err := f.settlement.AdminForceWinner(t.Context(), tt.caller, wagerID, tt.winnerID, true, tt.reason)
		if !errors.Is(err, tt.wantErr) {
			t.Fatalf("%s: err = %v, want %v", tt.name, err, tt.wantErr)
		}
	}

	// None of the rejected attempts may have moved funds.
	f.assertBalance(t, 1, 500, 500)
	f.assertBalance(t, 2, 500, 500)
}

func TestSettlement_AdminRefund_UnwindsBothStakes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	wagerID := f.lockedWager(t)

	err := f.settlement.AdminRefund(t.Context(), admin, wagerID, "server region unavailable")
	if err != nil {
		t.Fatalf("refund: %v", err)
	}

	f.assertBalance(t, 1, 1_000, 0)
	f.assertBalance(t, 2, 1_000, 0)

	w, err := f.registry.Get(t.Context(), wagerID)
	if err != nil {
		t.Fatalf("get wager: %v", err)
	}
	if w.Status != wagers.StatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", w.Status)
	}
	if w.ResolvedBy == nil || *w.ResolvedBy != admin.AccountID {
		t.Fatalf("resolved_by = %v, want %d", w.ResolvedBy, admin.AccountID)
	}

	// No WIN or FEE rows on a refund.
	for _, id := range []int64{1, 2} {
		history, herr := f.ledger.History(t.Context(), id, 10)
		if herr != nil {
			t.Fatalf("history(%d): %v", id, herr)
		}
		for _, e := range history {
			if e.Kind == ledgertx.KindWin || e.Kind == ledgertx.KindFee {
				t.Fatalf("account %d has %s entry after refund", id, e.Kind)
			}
		}
	}

	// Running the refund again must not double-pay.
	err = f.settlement.AdminRefund(t.Context(), admin, wagerID, "again")
	if !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("second refund err = %v, want ErrAlreadyResolved", err)
	}
	f.assertBalance(t, 1, 1_000, 0)
}

func TestSettlement_AdminRefund_WaitingRefundsCreatorOnly(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedAccount(t, 1, 1_000)

	w, err := f.registry.Create(t.Context(), player(1), 500, "de_dust2", "wingman")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	err = f.settlement.AdminRefund(t.Context(), admin, w.ID, "operator cleanup")
	if err != nil {
		t.Fatalf("refund: %v", err)
	}

	f.assertBalance(t, 1, 1_000, 0)
}

func TestSettlement_AdminMarkDisputed_Idempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	wagerID := f.lockedWager(t)

	if err := f.settlement.AdminMarkDisputed(t.Context(), admin, wagerID, "score feed inconsistent"); err != nil {
		t.Fatalf("dispute: %v", err)
	}

	w, err := f.registry.Get(t.Context(), wagerID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if w.Status != wagers.StatusDisputed {
		t.Fatalf("status = %s, want DISPUTED", w.Status)
	}

	// Funds stay frozen in escrow.
	f.assertBalance(t, 1, 500, 500)
	f.assertBalance(t, 2, 500, 500)

	// Flagging twice is fine.
	if err := f.settlement.AdminMarkDisputed(t.Context(), admin, wagerID, "still inconsistent"); err != nil {
		t.Fatalf("second dispute: %v", err)
	}

	// And a disputed wager can still be resolved to a winner.
	if err := f.settlement.AdminForceWinner(t.Context(), admin, wagerID, 1, true, "manual review done"); err != nil {
		t.Fatalf("resolve dispute: %v", err)
	}
	f.assertBalance(t, 1, 1_400, 0)
}

// Two admins racing to resolve the same wager: the row lock plus status CAS
// lets exactly one payout commit.
func TestSettlement_ForceWinner_ExactlyOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	wagerID := f.lockedWager(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	resolved, conflicted := 0, 0

	force := func(winnerID int64) {
		defer wg.Done()

		err := f.settlement.AdminForceWinner(t.Context(), admin, wagerID, winnerID, true, "race")
		mu.Lock()
		defer mu.Unlock()

		switch {
		case err == nil:
			resolved++
		case errors.Is(err, ErrAlreadyResolved):
			conflicted++
		default:
			t.Errorf("force winner %d: %v", winnerID, err)
		}
	}

	wg.Add(2)
	go force(1)
	go force(2)
	wg.Wait()

	if resolved != 1 || conflicted != 1 {
		t.Fatalf("want 1 resolved and 1 conflicted, got resolved=%d conflicted=%d", resolved, conflicted)
	}

	// Whoever won, total money in the system is conserved minus the fee.
	var total int64
	for _, id := range []int64{1, 2} {
		b, err := f.ledger.Balance(t.Context(), id)
		if err != nil {
			t.Fatalf("balance(%d): %v", id, err)
		}
		if b.Locked != 0 {
			t.Fatalf("account %d still has %d locked after settlement", id, b.Locked)
		}
		total += b.Available
	}
	if total != 1_900 {
		t.Fatalf("total across accounts = %d, want 1900 (2000 minus 100 fee)", total)
	}
}

func TestSettlement_AdminRefund_ConcurrentCrossWagers(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedAccount(t, 1, 2_000)
	f.seedAccount(t, 2, 2_000)

	// Two LOCKED wagers between the same pair with the participants
	// swapped, so naive participant-order locking would grab the account
	// rows in opposite orders.
	makeWager := func(creator, acceptor int64) uuid.UUID {
		w, err := f.registry.Create(t.Context(), player(creator), 500, "de_dust2", "wingman")
		if err != nil {
			t.Fatalf("create wager by %d: %v", creator, err)
		}
		if _, _, err := f.registry.Accept(t.Context(), player(acceptor), w.ID); err != nil {
			t.Fatalf("accept wager by %d: %v", acceptor, err)
		}
		return w.ID
	}

	first := makeWager(1, 2)
	second := makeWager(2, 1)

	var wg sync.WaitGroup
	wg.Add(2)
	for _, id := range []uuid.UUID{first, second} {
		go func() {
			defer wg.Done()

			if err := f.settlement.AdminRefund(t.Context(), admin, id, "cross refund"); err != nil {
				t.Errorf("refund %s: %v", id, err)
			}
		}()
	}
	wg.Wait()

	f.assertBalance(t, 1, 2_000, 0)
	f.assertBalance(t, 2, 2_000, 0)
}
