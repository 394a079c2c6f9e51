// Package registry owns the wager lifecycle up to settlement: creating open
// offers, the accept race, cancellation, and expiry. It is the only caller
// of ledger escrow on behalf of players.
package registry

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
	"github.com/duelpit/duelpit/internal/repos/accounts"
	"github.com/duelpit/duelpit/internal/repos/matches"
	"github.com/duelpit/duelpit/internal/repos/wagers"
	"github.com/duelpit/duelpit/internal/services/ledger"
)

var (
	ErrInvalidStake   = errors.New("stake must be positive")
	ErrInvalidMap     = errors.New("map and mode must be set")
	ErrForbidden      = errors.New("caller lacks the required capability")
	ErrSelfAccept     = errors.New("cannot accept your own wager")
	ErrWagerExpired   = errors.New("wager offer has expired")
	ErrAlreadyMatched = errors.New("wager already matched")
	ErrNotCancellable = errors.New("wager can no longer be cancelled through this path")
)

type Config struct {
	Expiry       time.Duration
	LocationPool []string
	MapPool      []string
}

type Service struct {
	db       *sql.DB
	cfg      Config
	wagers   wagers.Wagers
	matches  matches.Matches
	accounts accounts.Accounts
	ledger   *ledger.Service
	notifier notify.Notifier
}

func New(
	db *sql.DB,
	cfg Config,
	wagersRepo wagers.Wagers,
	matchesRepo matches.Matches,
	accountsRepo accounts.Accounts,
	ledgerSvc *ledger.Service,
	notifier notify.Notifier,
) *Service {
	return &Service{
		db:       db,
		cfg:      cfg,
		wagers:   wagersRepo,
		matches:  matchesRepo,
		accounts: accountsRepo,
		ledger:   ledgerSvc,
		notifier: notifier,
	}
}

// Create opens a wager offer, locking the creator's stake in the same
// transaction that persists the offer.
func (s *Service) Create(ctx context.Context, caller auth.Identity, stake int64, gameMap, mode string) (*wagers.Wager, error) {
	if !caller.Can(auth.CapWagerCreate) {
		return nil, ErrForbidden
	}
	if stake <= 0 {
		return nil, ErrInvalidStake
	}
	if gameMap == "" || mode == "" {
		return nil, ErrInvalidMap
	}

	now := time.Now().UTC()
	w := &wagers.Wager{
		ID:        uuid.New(),
		CreatorID: caller.AccountID,
		Stake:     stake,
		GameMap:   gameMap,
		Mode:      mode,
		Status:    wagers.StatusWaiting,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.Expiry),
	}

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		err := s.accounts.Exists(tx, caller.AccountID)
		if err != nil {
			return fmt.Errorf("check creator: %w", err)
		}

		// Per-account serialization for the funds check.
		_, err = s.accounts.LockAndGetBalance(tx, caller.AccountID)
		if err != nil {
			return fmt.Errorf("lock creator balance: %w", err)
		}

		err = s.wagers.Insert(tx, w)
		if err != nil {
			return fmt.Errorf("insert wager: %w", err)
		}

		err = s.ledger.Lock(tx, caller.AccountID, stake, "stake escrowed for wager offer", &w.ID)
		if err != nil {
			return fmt.Errorf("escrow creator stake: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create wager: %w", err)
	}

	return w, nil
}

// Accept joins an open wager. The WAITING->LOCKED compare-and-swap decides
// the race between concurrent acceptors: exactly one commits, the rest see
// ErrAlreadyMatched. Opponent escrow, pot, and match creation ride the same
// transaction.
func (s *Service) Accept(ctx context.Context, caller auth.Identity, wagerID uuid.UUID) (*wagers.Wager, *matches.Match, error) {
	if !caller.Can(auth.CapWagerAccept) {
		return nil, nil, ErrForbidden
	}

	var (
		accepted *wagers.Wager
		m        *matches.Match
	)

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		w, err := s.wagers.LockAndGet(tx, wagerID)
		if err != nil {
			return fmt.Errorf("lock wager: %w", err)
		}

		if w.Status != wagers.StatusWaiting {
			return ErrAlreadyMatched
		}
		if time.Now().UTC().After(w.ExpiresAt) {
			return ErrWagerExpired
		}
		if w.CreatorID == caller.AccountID {
			return ErrSelfAccept
		}

		err = s.accounts.Exists(tx, caller.AccountID)
		if err != nil {
			return fmt.Errorf("check acceptor: %w", err)
		}

		_, err = s.accounts.LockAndGetBalance(tx, caller.AccountID)
		if err != nil {
			return fmt.Errorf("lock acceptor balance: %w", err)
		}

		m = &matches.Match{
			ID:           uuid.New(),
			WagerID:      w.ID,
			CreatorID:    w.CreatorID,
			OpponentID:   caller.AccountID,
			Phase:        matches.PhaseVetoLocation,
			LocationPool: s.cfg.LocationPool,
			MapPool:      s.cfg.MapPool,
			CreatedAt:    time.Now().UTC(),
		}

		err = s.matches.Insert(tx, m)
		if err != nil {
			return fmt.Errorf("insert match: %w", err)
		}

		pot := 2 * w.Stake

		err = s.wagers.MarkLocked(tx, w.ID, caller.AccountID, pot, m.ID)
		if err != nil {
			if errors.Is(err, wagers.ErrStatusConflict) {
				return ErrAlreadyMatched
			}
			return fmt.Errorf("lock wager status: %w", err)
		}

		err = s.ledger.Lock(tx, caller.AccountID, w.Stake, "stake escrowed on wager accept", &w.ID)
		if err != nil {
			return fmt.Errorf("escrow acceptor stake: %w", err)
		}

		opponentID := caller.AccountID
		w.Status = wagers.StatusLocked
		w.OpponentID = &opponentID
		w.Pot = pot
		w.MatchID = &m.ID
		accepted = w

		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("accept wager: %w", err)
	}

	s.notifier.Notify(ctx, notify.Event{
		Kind: "wager.accepted",
		Payload: map[string]any{
			"wagerId": accepted.ID.String(),
			"matchId": m.ID.String(),
			"pot":     accepted.Pot,
		},
	})

	return accepted, m, nil
}

// Cancel withdraws an open offer. Only the creator may cancel, and only
// while the wager is WAITING; anything later goes through the admin path.
func (s *Service) Cancel(ctx context.Context, caller auth.Identity, wagerID uuid.UUID) error {
	if !caller.Can(auth.CapWagerCancel) {
		return ErrForbidden
	}

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		w, err := s.wagers.LockAndGet(tx, wagerID)
		if err != nil {
			return fmt.Errorf("lock wager: %w", err)
		}

		if w.CreatorID != caller.AccountID {
			return ErrForbidden
		}
		if w.Status != wagers.StatusWaiting {
			return ErrNotCancellable
		}

		err = s.wagers.MarkCancelled(tx, w.ID, "withdrawn by creator", nil, wagers.StatusWaiting)
		if err != nil {
			if errors.Is(err, wagers.ErrStatusConflict) {
				return ErrNotCancellable
			}
			return fmt.Errorf("cancel wager: %w", err)
		}

		err = s.ledger.Unlock(tx, w.CreatorID, w.Stake, "stake returned on cancel", &w.ID)
		if err != nil {
			return fmt.Errorf("return creator stake: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("cancel wager: %w", err)
	}

	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*wagers.Wager, error) {
	return s.wagers.Get(ctx, id)
}

func (s *Service) ListOpen(ctx context.Context, limit int) ([]wagers.Wager, error) {
	return s.wagers.ListOpen(ctx, time.Now().UTC(), limit)
}

func (s *Service) ListAll(ctx context.Context, caller auth.Identity, limit int) ([]wagers.Wager, error) {
	if !caller.Can(auth.CapAdminRead) {
		return nil, ErrForbidden
	}
	return s.wagers.ListAll(ctx, limit)
}
