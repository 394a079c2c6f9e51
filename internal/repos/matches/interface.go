package matches

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrMatchNotFound = errors.New("match not found")
	// ErrPhaseConflict means a conditional phase transition found the match
	// in a different phase than expected.
	ErrPhaseConflict = errors.New("match phase conflict")
	// ErrBanConflict means a ban hit a unique index: either the slot was
	// taken by a racing ban or the candidate is already banned.
	ErrBanConflict = errors.New("ban conflict")
)

type Phase string

const (
	PhaseVetoLocation Phase = "VETO_LOCATION"
	PhaseVetoMap      Phase = "VETO_MAP"
	PhaseConfiguring  Phase = "CONFIGURING"
	PhaseWarmup       Phase = "WARMUP"
	PhaseLive         Phase = "LIVE"
	PhaseFinished     Phase = "FINISHED"
)

type Side string

const (
	SideCreator  Side = "creator"
	SideOpponent Side = "opponent"
)

type Pool string

const (
	PoolLocation Pool = "location"
	PoolMap      Pool = "map"
)

// Match is one game instance, owned 1:1 by a wager.
type Match struct {
	ID                uuid.UUID
	WagerID           uuid.UUID
	CreatorID         int64
	OpponentID        int64
	Phase             Phase
	LocationPool      []string
	MapPool           []string
	SelectedLocation  *string
	SelectedMap       *string
	ServerEndpoint    *string
	ProvisionClaimed  bool
	ProvisionAttempts int
	CreatorScore      int
	OpponentScore     int
	CreatedAt         time.Time
	FinishedAt        *time.Time
}

// Side returns which side of the match the account plays, or "" if neither.
func (m *Match) SideOf(accountID int64) Side {
	switch accountID {
	case m.CreatorID:
		return SideCreator
	case m.OpponentID:
		return SideOpponent
	}
	return ""
}

// Ban is one entry in a match's ordered, append-only ban list. Ordinal is
// the position in the combined list across both pools.
type Ban struct {
	MatchID   uuid.UUID
	Ordinal   int
	Pool      Pool
	Candidate string
	Side      Side
	BannedAt  time.Time
}

type Matches interface {
	Insert(tx *sql.Tx, m *Match) error
	Get(ctx context.Context, id uuid.UUID) (*Match, error)
	// LockAndGet takes the match row lock that serializes veto actions.
	LockAndGet(tx *sql.Tx, id uuid.UUID) (*Match, error)

	InsertBan(tx *sql.Tx, b Ban) error
	ListBans(ctx context.Context, matchID uuid.UUID) ([]Ban, error)
	ListBansTx(tx *sql.Tx, matchID uuid.UUID) ([]Ban, error)

	// SetSelection records a pool survivor and advances the phase, CAS on
	// the current phase.
	SetSelection(tx *sql.Tx, id uuid.UUID, pool Pool, candidate string, from, to Phase) error

	// ClaimProvisioning flips the single-flight provisioning flag; only the
	// caller that observes the flip may call the gateway. The claim is a
	// lease stamped with now: a claim stamped at or before staleBefore is
	// treated as abandoned and may be taken over.
	ClaimProvisioning(ctx context.Context, id uuid.UUID, now, staleBefore time.Time) (bool, error)
	// ProvisionFailed releases the claim and returns the new attempt count.
	ProvisionFailed(ctx context.Context, id uuid.UUID) (int, error)
	ProvisionSucceeded(tx *sql.Tx, id uuid.UUID, endpoint string) error

	MarkLive(tx *sql.Tx, id uuid.UUID) error
	UpdateScores(ctx context.Context, id uuid.UUID, creatorScore, opponentScore int) error
	// Finish is the terminal CAS; a duplicate finished signal observes
	// ErrPhaseConflict and must treat it as already handled.
	Finish(tx *sql.Tx, id uuid.UUID, creatorScore, opponentScore int, at time.Time) error

	// ListConfiguring returns CONFIGURING matches whose wager is still
	// LOCKED and whose provisioning claim is free or stale, for the
	// provisioning worker.
	ListConfiguring(ctx context.Context, staleBefore time.Time, limit int) ([]Match, error)
	// ListPlaying returns WARMUP and LIVE matches whose wager is LIVE, for
	// the score poller.
	ListPlaying(ctx context.Context, limit int) ([]Match, error)
}
