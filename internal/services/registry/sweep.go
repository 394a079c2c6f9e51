package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/duelpit/duelpit/internal/infra/pgutils"
	"github.com/duelpit/duelpit/internal/repos/wagers"
)

const sweepBatchSize = 100

// SweepExpired cancels WAITING wagers past their expiry and returns the
// number cancelled. Idempotent: a wager already moved by a concurrent
// sweep, accept, or cancel is skipped, not an error, so duplicate sweep
// runs are harmless.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.wagers.ListExpiredWaiting(ctx, now, sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list expired wagers: %w", err)
	}

	cancelled := 0

	for _, id := range ids {
		err := s.expireOne(ctx, id, now)
		if err != nil {
			if errors.Is(err, wagers.ErrStatusConflict) {
				continue
			}
			return cancelled, fmt.Errorf("expire wager %s: %w", id, err)
		}

		cancelled++
	}

	if cancelled > 0 {
		slog.Info("expired wagers swept", "count", cancelled)
	}

	return cancelled, nil
}

func (s *Service) expireOne(ctx context.Context, id uuid.UUID, now time.Time) error {
	return pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		w, err := s.wagers.LockAndGet(tx, id)
		if err != nil {
			return fmt.Errorf("lock wager: %w", err)
		}

		// Re-check under the row lock; the listing read was unlocked.
		if w.Status != wagers.StatusWaiting || w.ExpiresAt.After(now) {
			return wagers.ErrStatusConflict
		}

		err = s.wagers.MarkCancelled(tx, w.ID, "offer expired", nil, wagers.StatusWaiting)
		if err != nil {
			return err
		}

		err = s.ledger.Unlock(tx, w.CreatorID, w.Stake, "stake returned on expiry", &w.ID)
		if err != nil {
			return fmt.Errorf("return creator stake: %w", err)
		}

		return nil
	})
}
