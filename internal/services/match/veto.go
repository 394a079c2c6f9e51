package match

import (
	"errors"

	"github.com/duelpit/duelpit/internal/repos/matches"
)

var (
	ErrNotParticipant = errors.New("not a participant of this match")
	ErrNotYourTurn    = errors.New("not your turn to ban")
	ErrAlreadyBanned  = errors.New("candidate already banned")
	ErrWrongPhase     = errors.New("match is not in a veto phase")
	ErrUnknownPick    = errors.New("candidate is not in the pool")
)

// SideToAct returns which side bans next. The creator opens, and parity is
// derived from the total ban count across both pools; the alternation does
// not reset when the veto moves from locations to maps.
func SideToAct(totalBans int) matches.Side {
	if totalBans%2 == 0 {
		return matches.SideCreator
	}
	return matches.SideOpponent
}

// Survivors returns the pool candidates that have no ban against them, in
// pool order.
func Survivors(pool []string, bans []matches.Ban, which matches.Pool) []string {
	banned := make(map[string]bool, len(bans))
	for _, b := range bans {
		if b.Pool == which {
			banned[b.Candidate] = true
		}
	}

	var out []string
	for _, c := range pool {
		if !banned[c] {
			out = append(out, c)
		}
	}
	return out
}

// Outcome describes the effect of one valid ban.
type Outcome struct {
	Ban matches.Ban
	// Resolved is set when the ban leaves exactly one survivor in its pool.
	Resolved bool
	Survivor string
	// NextPhase is the phase after the ban: unchanged while the pool is
	// open, advanced once it resolves.
	NextPhase matches.Phase
}

// ApplyBan validates one ban against the current match state and returns
// its outcome. It is pure: persistence and locking are the caller's job.
func ApplyBan(m *matches.Match, bans []matches.Ban, side matches.Side, candidate string) (Outcome, error) {
	var (
		pool    []string
		which   matches.Pool
		advance matches.Phase
	)

	switch m.Phase {
	case matches.PhaseVetoLocation:
		pool, which, advance = m.LocationPool, matches.PoolLocation, matches.PhaseVetoMap
	case matches.PhaseVetoMap:
		pool, which, advance = m.MapPool, matches.PoolMap, matches.PhaseConfiguring
	default:
		return Outcome{}, ErrWrongPhase
	}

	if side != matches.SideCreator && side != matches.SideOpponent {
		return Outcome{}, ErrNotParticipant
	}
	if side != SideToAct(len(bans)) {
		return Outcome{}, ErrNotYourTurn
	}

	inPool := false
	for _, c := range pool {
		if c == candidate {
			inPool = true
			break
		}
	}
	if !inPool {
		return Outcome{}, ErrUnknownPick
	}

	alive := Survivors(pool, bans, which)
	if len(alive) <= 1 {
		// The pool already resolved; the phase should have advanced.
		return Outcome{}, ErrWrongPhase
	}

	stillAlive := false
	for _, c := range alive {
		if c == candidate {
			stillAlive = true
			break
		}
	}
	if !stillAlive {
		return Outcome{}, ErrAlreadyBanned
	}

	out := Outcome{
		Ban: matches.Ban{
			MatchID:   m.ID,
			Ordinal:   len(bans),
			Pool:      which,
			Candidate: candidate,
			Side:      side,
		},
		NextPhase: m.Phase,
	}

	if len(alive) == 2 {
		// This ban leaves a single survivor: the pool resolves.
		out.Resolved = true
		out.NextPhase = advance
		for _, c := range alive {
			if c != candidate {
				out.Survivor = c
				break
			}
		}
	}

	return out, nil
}
