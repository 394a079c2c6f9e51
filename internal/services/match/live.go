package match

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/duelpit/duelpit/internal/infra/pgutils"
	"github.com/duelpit/duelpit/internal/notify"
	"github.com/duelpit/duelpit/internal/provision"
	"github.com/duelpit/duelpit/internal/repos/matches"
	"github.com/duelpit/duelpit/internal/repos/wagers"
	"github.com/duelpit/duelpit/internal/services/settlement"
)

// PollTick reads the live result feed for every playing match. Intermediate
// scores are advisory; only a terminal finished signal moves the match to
// FINISHED, and that transition commits in the same transaction as the
// settlement it triggers.
func (s *Service) PollTick(ctx context.Context) error {
	playing, err := s.matches.ListPlaying(ctx, workerBatchSize)
	if err != nil {
		return fmt.Errorf("list playing matches: %w", err)
	}

	for i := range playing {
		s.pollOne(ctx, &playing[i])
	}

	return nil
}

func (s *Service) pollOne(ctx context.Context, m *matches.Match) {
	st, err := s.gateway.PollStatus(ctx, m.ID)
	if err != nil {
		// The feed is unreliable; the next tick retries.
		slog.Warn("poll live status", "matchId", m.ID, "error", err)
		return
	}

	if st.Finished {
		err = s.finishAndSettle(ctx, m, st)
		if err != nil {
			slog.Error("finish match", "matchId", m.ID, "error", err)
		}
		return
	}

	if m.Phase == matches.PhaseWarmup {
		err = pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
			return s.matches.MarkLive(tx, m.ID)
		})
		if err != nil && !errors.Is(err, matches.ErrPhaseConflict) {
			slog.Error("mark match live", "matchId", m.ID, "error", err)
			return
		}
	}

	err = s.matches.UpdateScores(ctx, m.ID, st.CreatorScore, st.OpponentScore)
	if err != nil {
		slog.Warn("update scores", "matchId", m.ID, "error", err)
	}
}

// finishAndSettle commits the terminal transition and its settlement as one
// atomic unit. A duplicate finished signal loses the phase CAS and no-ops;
// an admin resolution that already moved the wager leaves the match
// finished with no second payout. Equal terminal scores are a feed
// consistency error: the match ends winnerless and the wager is flagged
// for manual resolution, with funds untouched.
func (s *Service) finishAndSettle(ctx context.Context, m *matches.Match, st provision.Status) error {
	var (
		disputed bool
		winnerID int64
	)

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		w, err := s.wagers.LockAndGet(tx, m.WagerID)
		if err != nil {
			return fmt.Errorf("lock wager: %w", err)
		}

		err = s.matches.Finish(tx, m.ID, st.CreatorScore, st.OpponentScore, time.Now().UTC())
		if err != nil {
			if errors.Is(err, matches.ErrPhaseConflict) {
				return nil // already finished; duplicate signal
			}
			return fmt.Errorf("finish match: %w", err)
		}

		if st.CreatorScore == st.OpponentScore {
			disputed = true

			err = s.wagers.MarkDisputed(tx, w.ID, "ambiguous terminal score", wagers.StatusLive)
			if err != nil && !errors.Is(err, wagers.ErrStatusConflict) {
				return fmt.Errorf("flag ambiguous result: %w", err)
			}

			return nil
		}

		winnerID = w.CreatorID
		if st.OpponentScore > st.CreatorScore {
			if w.OpponentID == nil {
				return fmt.Errorf("live wager %s has no opponent", w.ID)
			}
			winnerID = *w.OpponentID
		}

		err = s.settlement.SettleTx(tx, w, winnerID, true, nil, nil, wagers.StatusLive)
		if err != nil {
			if errors.Is(err, settlement.ErrAlreadyResolved) {
				// An admin override committed first; nothing left to pay.
				return nil
			}
			return fmt.Errorf("settle: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	if disputed {
		slog.Error("match finished with ambiguous score, wager disputed",
			"matchId", m.ID, "score", st.CreatorScore)
	} else {
		slog.Info("match finished and settled", "matchId", m.ID, "winnerId", winnerID)
	}

	s.notifier.Notify(ctx, notify.Event{
		Kind: "match.finished",
		Payload: map[string]any{
			"matchId":       m.ID.String(),
			"creatorScore":  st.CreatorScore,
			"opponentScore": st.OpponentScore,
			"disputed":      disputed,
		},
	})

	return nil
}
