// Package match drives a single match through negotiation and play:
// alternating vetoes, the hand-off to the server provisioner, and the live
// result feed that eventually finishes the match and triggers settlement.
package match

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/duelpit/duelpit/internal/auth"
	"github.com/duelpit/duelpit/internal/infra/pgutils"
	"github.com/duelpit/duelpit/internal/notify"
	"github.com/duelpit/duelpit/internal/provision"
	"github.com/duelpit/duelpit/internal/repos/matches"
	"github.com/duelpit/duelpit/internal/repos/wagers"
	"github.com/duelpit/duelpit/internal/services/settlement"
)

var (
	ErrForbidden = errors.New("caller lacks the required capability")
	// ErrWagerClosed means the owning wager was resolved out from under the
	// match, by an admin refund or forced result.
	ErrWagerClosed = errors.New("owning wager is no longer active")
)

const defaultProvisionClaimTTL = 2 * time.Minute

type Config struct {
	// MaxProvisionAttempts bounds gateway retries before the wager is
	// escalated to DISPUTED.
	MaxProvisionAttempts int
	// ProvisionClaimTTL is how long a provisioning claim is honored before
	// another worker may reclaim it. Zero means defaultProvisionClaimTTL.
	ProvisionClaimTTL time.Duration
}

type Service struct {
	db         *sql.DB
	cfg        Config
	matches    matches.Matches
	wagers     wagers.Wagers
	settlement *settlement.Service
	gateway    provision.Gateway
	notifier   notify.Notifier
}

func New(
	db *sql.DB,
	cfg Config,
	matchesRepo matches.Matches,
	wagersRepo wagers.Wagers,
	settlementSvc *settlement.Service,
	gateway provision.Gateway,
	notifier notify.Notifier,
) *Service {
	return &Service{
		db:         db,
		cfg:        cfg,
		matches:    matchesRepo,
		wagers:     wagersRepo,
		settlement: settlementSvc,
		gateway:    gateway,
		notifier:   notifier,
	}
}

// Detail is a match plus its ordered ban list, for read endpoints.
type Detail struct {
	Match *matches.Match
	Bans  []matches.Ban
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Detail, error) {
	m, err := s.matches.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	bans, err := s.matches.ListBans(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list bans: %w", err)
	}

	return &Detail{Match: m, Bans: bans}, nil
}

// SubmitBan applies one veto ban for the calling participant. The match row
// lock serializes racing bans; the ban table's unique indexes are the
// backstop. When the ban leaves a single survivor the selection is recorded
// and the phase advances in the same transaction.
//
// Locks go wager first, then match, the same order settlement uses.
func (s *Service) SubmitBan(ctx context.Context, caller auth.Identity, matchID uuid.UUID, candidate string) (*matches.Match, error) {
	if !caller.Can(auth.CapMatchBan) {
		return nil, ErrForbidden
	}

	plain, err := s.matches.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}

	var updated *matches.Match

	err = pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		w, err := s.wagers.LockAndGet(tx, plain.WagerID)
		if err != nil {
			return fmt.Errorf("lock wager: %w", err)
		}
		if w.Status != wagers.StatusLocked {
			return ErrWagerClosed
		}

		m, err := s.matches.LockAndGet(tx, matchID)
		if err != nil {
			return fmt.Errorf("lock match: %w", err)
		}

		side := m.SideOf(caller.AccountID)
		if side == "" {
			return ErrNotParticipant
		}

		bans, err := s.matches.ListBansTx(tx, matchID)
		if err != nil {
			return fmt.Errorf("list bans: %w", err)
		}

		out, err := ApplyBan(m, bans, side, candidate)
		if err != nil {
			return err
		}

		err = s.matches.InsertBan(tx, out.Ban)
		if err != nil {
			if errors.Is(err, matches.ErrBanConflict) {
				return ErrAlreadyBanned
			}
			return fmt.Errorf("insert ban: %w", err)
		}

		if out.Resolved {
			err = s.matches.SetSelection(tx, m.ID, out.Ban.Pool, out.Survivor, m.Phase, out.NextPhase)
			if err != nil {
				return fmt.Errorf("record selection: %w", err)
			}

			switch out.Ban.Pool {
			case matches.PoolLocation:
				m.SelectedLocation = &out.Survivor
			case matches.PoolMap:
				m.SelectedMap = &out.Survivor
			}
		}

		m.Phase = out.NextPhase
		updated = m

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("submit ban: %w", err)
	}

	return updated, nil
}
