// Package settlement moves escrowed funds to their final resting place,
// exactly once per wager. Automatic settlement and the administrative
// overrides all funnel through the same row-lock plus compare-and-swap
// discipline: whichever path commits first wins and the other observes a
// non-matching status and aborts cleanly.
package settlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/duelpit/duelpit/internal/auth"
	"github.com/duelpit/duelpit/internal/infra/pgutils"
	"github.com/duelpit/duelpit/internal/notify"
	"github.com/duelpit/duelpit/internal/repos/accounts"
	"github.com/duelpit/duelpit/internal/repos/ledgertx"
	"github.com/duelpit/duelpit/internal/repos/wagers"
	"github.com/duelpit/duelpit/internal/services/ledger"
)

var (
	ErrForbidden       = errors.New("caller lacks the required capability")
	ErrAlreadyResolved = errors.New("wager already resolved")
	ErrNotParticipant  = errors.New("winner must be a wager participant")
	ErrMissingReason   = errors.New("administrative actions require a reason")
	ErrNotResolvable   = errors.New("wager is not in a resolvable state")
)

type Service struct {
	db         *sql.DB
	feePercent int64
	wagers     wagers.Wagers
	accounts   accounts.Accounts
	ledger     *ledger.Service
	entries    ledgertx.Ledger
	notifier   notify.Notifier
}

func New(
	db *sql.DB,
	feePercent int64,
	wagersRepo wagers.Wagers,
	accountsRepo accounts.Accounts,
	ledgerSvc *ledger.Service,
	entriesRepo ledgertx.Ledger,
	notifier notify.Notifier,
) *Service {
	return &Service{
		db:         db,
		feePercent: feePercent,
		wagers:     wagersRepo,
		accounts:   accountsRepo,
		ledger:     ledgerSvc,
		entries:    entriesRepo,
		notifier:   notifier,
	}
}

// Fee returns the service fee taken from a pot.
func (s *Service) Fee(pot int64) int64 {
	return pot * s.feePercent / 100
}

// SettleTx performs the standard win payout inside the caller's
// transaction: CAS the wager out of `from`, release both stakes into the
// pot, credit the winner pot minus fee. Returns ErrAlreadyResolved when the
// wager has already moved, which callers must treat as "someone else
// settled first", not a failure.
func (s *Service) SettleTx(tx *sql.Tx, w *wagers.Wager, winnerID int64, applyFee bool, reason *string, resolvedBy *int64, from ...wagers.Status) error {
	if !w.IsParticipant(winnerID) || w.OpponentID == nil {
		return ErrNotParticipant
	}

	loserID := w.Opponent(winnerID)

	err := s.wagers.MarkFinished(tx, w.ID, winnerID, reason, resolvedBy, from...)
	if err != nil {
		if errors.Is(err, wagers.ErrStatusConflict) {
			return ErrAlreadyResolved
		}
		return fmt.Errorf("finish wager: %w", err)
	}

	// Deterministic lock order across both accounts.
	first, second := winnerID, loserID
	if second < first {
		first, second = second, first
	}
	if _, err := s.accounts.LockAndGetBalance(tx, first); err != nil {
		return fmt.Errorf("lock account %d: %w", first, err)
	}
	if _, err := s.accounts.LockAndGetBalance(tx, second); err != nil {
		return fmt.Errorf("lock account %d: %w", second, err)
	}

	// Both stakes leave escrow and form the pot; the winner's payout is the
	// only credit that comes back out.
	if err := s.ledger.Release(tx, winnerID, w.Stake); err != nil {
		return fmt.Errorf("release winner stake: %w", err)
	}
	if err := s.ledger.Release(tx, loserID, w.Stake); err != nil {
		return fmt.Errorf("release loser stake: %w", err)
	}

	if err := s.ledger.Credit(tx, winnerID, w.Pot, ledgertx.KindWin, "wager won", &w.ID); err != nil {
		return fmt.Errorf("credit winner: %w", err)
	}

	if applyFee {
		fee := s.Fee(w.Pot)
		if fee > 0 {
			if err := s.ledger.Debit(tx, winnerID, fee, ledgertx.KindFee, "service fee", &w.ID); err != nil {
				return fmt.Errorf("debit fee: %w", err)
			}
		}
	}

	return nil
}

// AdminForceWinner resolves a LOCKED, LIVE, or DISPUTED wager to a winner
// chosen by an administrator, optionally waiving the fee. The escape hatch
// for cheating and crashes; audited with the reason and the acting admin.
func (s *Service) AdminForceWinner(ctx context.Context, admin auth.Identity, wagerID uuid.UUID, winnerID int64, applyFee bool, reason string) error {
	if !admin.Can(auth.CapAdminForce) {
		return ErrForbidden
	}
	if reason == "" {
		return ErrMissingReason
	}

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		w, err := s.wagers.LockAndGet(tx, wagerID)
		if err != nil {
			return fmt.Errorf("lock wager: %w", err)
		}

		switch w.Status {
		case wagers.StatusLocked, wagers.StatusLive, wagers.StatusDisputed:
		case wagers.StatusFinished, wagers.StatusCancelled:
			return ErrAlreadyResolved
		default:
			return ErrNotResolvable
		}

		return s.SettleTx(tx, w, winnerID, applyFee, &reason, &admin.AccountID,
			wagers.StatusLocked, wagers.StatusLive, wagers.StatusDisputed)
	})
	if err != nil {
		return fmt.Errorf("force winner: %w", err)
	}

	slog.Info("wager resolved by admin",
		"wagerId", wagerID, "winnerId", winnerID, "admin", admin.AccountID, "feeApplied", applyFee)

	s.notifier.Notify(ctx, notify.Event{
		Kind: "wager.force_resolved",
		Payload: map[string]any{
			"wagerId":  wagerID.String(),
			"winnerId": winnerID,
			"admin":    admin.AccountID,
		},
	})

	return nil
}

// AdminRefund unwinds a wager's escrow in full, with no fee, and cancels
// it. Valid from WAITING, LOCKED, LIVE, and DISPUTED. Refusing to run twice
// comes from the same CAS as every other resolution.
func (s *Service) AdminRefund(ctx context.Context, admin auth.Identity, wagerID uuid.UUID, reason string) error {
	if !admin.Can(auth.CapAdminRefund) {
		return ErrForbidden
	}
	if reason == "" {
		return ErrMissingReason
	}

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		w, err := s.wagers.LockAndGet(tx, wagerID)
		if err != nil {
			return fmt.Errorf("lock wager: %w", err)
		}

		switch w.Status {
		case wagers.StatusWaiting, wagers.StatusLocked, wagers.StatusLive, wagers.StatusDisputed:
		case wagers.StatusFinished, wagers.StatusCancelled:
			return ErrAlreadyResolved
		default:
			return ErrNotResolvable
		}

		err = s.wagers.MarkCancelled(tx, w.ID, reason, &admin.AccountID,
			wagers.StatusWaiting, wagers.StatusLocked, wagers.StatusLive, wagers.StatusDisputed)
		if err != nil {
			if errors.Is(err, wagers.ErrStatusConflict) {
				return ErrAlreadyResolved
			}
			return fmt.Errorf("cancel wager: %w", err)
		}

		// Deterministic lock order across both accounts, same as SettleTx.
		ids := []int64{w.CreatorID}
		if w.OpponentID != nil {
			ids = append(ids, *w.OpponentID)
			if ids[1] < ids[0] {
				ids[0], ids[1] = ids[1], ids[0]
			}
		}

		for _, id := range ids {
			if _, err := s.accounts.LockAndGetBalance(tx, id); err != nil {
				return fmt.Errorf("lock account %d: %w", id, err)
			}
		}

		for _, id := range ids {
			err = s.ledger.Refund(tx, id, w.Stake, "stake refunded: "+reason, &w.ID)
			if err != nil {
				return fmt.Errorf("refund account %d: %w", id, err)
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("admin refund: %w", err)
	}

	slog.Info("wager refunded by admin", "wagerId", wagerID, "admin", admin.AccountID, "reason", reason)

	return nil
}

// AdminMarkDisputed freezes a wager for manual resolution. No funds move.
func (s *Service) AdminMarkDisputed(ctx context.Context, admin auth.Identity, wagerID uuid.UUID, reason string) error {
	if !admin.Can(auth.CapAdminDispute) {
		return ErrForbidden
	}
	if reason == "" {
		return ErrMissingReason
	}

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		w, err := s.wagers.LockAndGet(tx, wagerID)
		if err != nil {
			return fmt.Errorf("lock wager: %w", err)
		}

		switch w.Status {
		case wagers.StatusLocked, wagers.StatusLive:
		case wagers.StatusDisputed:
			return nil // already flagged; idempotent
		default:
			return ErrNotResolvable
		}

		err = s.wagers.MarkDisputed(tx, w.ID, reason, wagers.StatusLocked, wagers.StatusLive)
		if err != nil {
			if errors.Is(err, wagers.ErrStatusConflict) {
				return ErrAlreadyResolved
			}
			return fmt.Errorf("mark disputed: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("admin dispute: %w", err)
	}

	return nil
}

// ListTransactions returns recent ledger entries for admin tooling.
func (s *Service) ListTransactions(ctx context.Context, admin auth.Identity, limit int) ([]ledgertx.Entry, error) {
	if !admin.Can(auth.CapAdminRead) {
		return nil, ErrForbidden
	}
	return s.entries.ListAll(ctx, limit)
}
