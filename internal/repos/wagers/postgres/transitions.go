package wagers

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/duelpit/duelpit/internal/repos/wagers"
)

func (r *wagersRepo) MarkLocked(tx *sql.Tx, id uuid.UUID, opponentID, pot int64, matchID uuid.UUID) error {
	res, err := tx.Exec(`
		UPDATE wagers
		SET status = 'LOCKED',
		    opponent_id = $2,
		    pot = $3,
		    match_id = $4
		WHERE id = $1
		  AND status = 'WAITING'
	`, id, opponentID, pot, matchID)
	if err != nil {
		return fmt.Errorf("mark locked: %w", err)
	}

	return casResult(res)
}

func (r *wagersRepo) MarkLive(tx *sql.Tx, id uuid.UUID) error {
	res, err := tx.Exec(`
		UPDATE wagers
		SET status = 'LIVE'
		WHERE id = $1
		  AND status = 'LOCKED'
	`, id)
	if err != nil {
		return fmt.Errorf("mark live: %w", err)
	}

	return casResult(res)
}

func (r *wagersRepo) MarkCancelled(tx *sql.Tx, id uuid.UUID, reason string, resolvedBy *int64, from ...wagers.Status) error {
	res, err := tx.Exec(`
		UPDATE wagers
		SET status = 'CANCELLED',
		    audit_reason = $2,
		    resolved_by = $3
		WHERE id = $1
		  AND status = ANY(string_to_array($4, ','))
	`, id, reason, resolvedBy, strings.Join(statusStrings(from), ","))
	if err != nil {
		return fmt.Errorf("mark cancelled: %w", err)
	}

	return casResult(res)
}

func (r *wagersRepo) MarkDisputed(tx *sql.Tx, id uuid.UUID, reason string, from ...wagers.Status) error {
	res, err := tx.Exec(`
		UPDATE wagers
		SET status = 'DISPUTED',
		    audit_reason = $2
		WHERE id = $1
		  AND status = ANY(string_to_array($3, ','))
	`, id, reason, strings.Join(statusStrings(from), ","))
	if err != nil {
		return fmt.Errorf("mark disputed: %w", err)
	}

	return casResult(res)
}

func (r *wagersRepo) MarkFinished(tx *sql.Tx, id uuid.UUID, winnerID int64, reason *string, resolvedBy *int64, from ...wagers.Status) error {
	res, err := tx.Exec(`
		UPDATE wagers
		SET status = 'FINISHED',
		    winner_id = $2,
		    audit_reason = COALESCE($3, audit_reason),
		    resolved_by = COALESCE($4, resolved_by)
		WHERE id = $1
		  AND status = ANY(string_to_array($5, ','))
	`, id, winnerID, reason, resolvedBy, strings.Join(statusStrings(from), ","))
	if err != nil {
		return fmt.Errorf("mark finished: %w", err)
	}

	return casResult(res)
}
