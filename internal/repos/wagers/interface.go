package wagers

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrWagerNotFound = errors.New("wager not found")
	// ErrStatusConflict means a conditional status transition found the
	// wager in a different state than expected; somebody else won the race.
	ErrStatusConflict = errors.New("wager status conflict")
)

type Status string

const (
	StatusWaiting   Status = "WAITING"
	StatusLocked    Status = "LOCKED"
	StatusLive      Status = "LIVE"
	StatusFinished  Status = "FINISHED"
	StatusCancelled Status = "CANCELLED"
	StatusDisputed  Status = "DISPUTED"
)

// Wager is a stake offer and, once matched, a live bet.
type Wager struct {
	ID          uuid.UUID
	CreatorID   int64
	OpponentID  *int64
	Stake       int64
	GameMap     string
	Mode        string
	Status      Status
	Pot         int64
	WinnerID    *int64
	MatchID     *uuid.UUID
	AuditReason *string
	ResolvedBy  *int64
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// IsParticipant reports whether the account is the creator or the opponent.
func (w *Wager) IsParticipant(accountID int64) bool {
	if w.CreatorID == accountID {
		return true
	}
	return w.OpponentID != nil && *w.OpponentID == accountID
}

// Opponent returns the other participant's account id, or 0 when the
// account is not a participant or no opponent has joined yet.
func (w *Wager) Opponent(accountID int64) int64 {
	if w.OpponentID == nil {
		return 0
	}
	switch accountID {
	case w.CreatorID:
		return *w.OpponentID
	case *w.OpponentID:
		return w.CreatorID
	}
	return 0
}

type Wagers interface {
	Insert(tx *sql.Tx, w *Wager) error
	Get(ctx context.Context, id uuid.UUID) (*Wager, error)
	// LockAndGet takes the wager row lock; every status transition starts here.
	LockAndGet(tx *sql.Tx, id uuid.UUID) (*Wager, error)
	ListOpen(ctx context.Context, now time.Time, limit int) ([]Wager, error)
	ListAll(ctx context.Context, limit int) ([]Wager, error)
	// ListExpiredWaiting returns ids of WAITING wagers past their expiry.
	ListExpiredWaiting(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)

	// Conditional transitions. All of them are compare-and-swap on status
	// and return ErrStatusConflict when zero rows match.
	MarkLocked(tx *sql.Tx, id uuid.UUID, opponentID, pot int64, matchID uuid.UUID) error
	MarkLive(tx *sql.Tx, id uuid.UUID) error
	MarkCancelled(tx *sql.Tx, id uuid.UUID, reason string, resolvedBy *int64, from ...Status) error
	MarkDisputed(tx *sql.Tx, id uuid.UUID, reason string, from ...Status) error
	MarkFinished(tx *sql.Tx, id uuid.UUID, winnerID int64, reason *string, resolvedBy *int64, from ...Status) error
}
