package wagers

import (
	"database/sql"
	"fmt"

	"github.com/duelpit/duelpit/internal/repos/wagers"
)

var _ wagers.Wagers = (*wagersRepo)(nil)

type wagersRepo struct{ db *sql.DB }

func New(db *sql.DB) *wagersRepo {
	return &wagersRepo{db: db}
}

const wagerColumns = `id, creator_id, opponent_id, stake, game_map, mode, status,
	pot, winner_id, match_id, audit_reason, resolved_by, created_at, expires_at`

func scanWager(row interface{ Scan(...any) error }) (*wagers.Wager, error) {
	var w wagers.Wager

	err := row.Scan(
		&w.ID, &w.CreatorID, &w.OpponentID, &w.Stake, &w.GameMap, &w.Mode,
		&w.Status, &w.Pot, &w.WinnerID, &w.MatchID, &w.AuditReason,
		&w.ResolvedBy, &w.CreatedAt, &w.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	return &w, nil
}

func casResult(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return wagers.ErrStatusConflict
	}

	return nil
}

func statusStrings(from []wagers.Status) []string {
	out := make([]string, len(from))
	for i, s := range from {
		out[i] = string(s)
	}
	return out
}
