package matches

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/duelpit/duelpit/internal/repos/matches"
)

func (r *matchesRepo) SetSelection(tx *sql.Tx, id uuid.UUID, pool matches.Pool, candidate string, from, to matches.Phase) error {
	var query string

	switch pool {
	case matches.PoolLocation:
		query = `
			UPDATE matches
			SET selected_location = $2, phase = $3
			WHERE id = $1 AND phase = $4`
	case matches.PoolMap:
		query = `
			UPDATE matches
			SET selected_map = $2, phase = $3
			WHERE id = $1 AND phase = $4`
	default:
		return fmt.Errorf("unknown pool %q", pool)
	}

	res, err := tx.Exec(query, id, candidate, to, from)
	if err != nil {
		return fmt.Errorf("set selection: %w", err)
	}

	return casResult(res)
}

func (r *matchesRepo) ClaimProvisioning(ctx context.Context, id uuid.UUID, now, staleBefore time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE matches
		SET provision_claimed = TRUE,
		    provision_claimed_at = $2
		WHERE id = $1
		  AND phase = 'CONFIGURING'
		  AND (provision_claimed = FALSE OR provision_claimed_at <= $3)
	`, id, now, staleBefore)
	if err != nil {
		return false, fmt.Errorf("claim provisioning: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected == 1, nil
}

func (r *matchesRepo) ProvisionFailed(ctx context.Context, id uuid.UUID) (int, error) {
	var attempts int

	err := r.db.QueryRowContext(ctx, `
		UPDATE matches
		SET provision_claimed = FALSE,
		    provision_claimed_at = NULL,
		    provision_attempts = provision_attempts + 1
		WHERE id = $1
		RETURNING provision_attempts
	`, id).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("record provision failure: %w", err)
	}

	return attempts, nil
}

func (r *matchesRepo) ProvisionSucceeded(tx *sql.Tx, id uuid.UUID, endpoint string) error {
	res, err := tx.Exec(`
		UPDATE matches
		SET server_endpoint = $2,
		    phase = 'WARMUP',
		    provision_claimed_at = NULL
		WHERE id = $1
		  AND phase = 'CONFIGURING'
	`, id, endpoint)
	if err != nil {
		return fmt.Errorf("record provision success: %w", err)
	}

	return casResult(res)
}

func (r *matchesRepo) MarkLive(tx *sql.Tx, id uuid.UUID) error {
	res, err := tx.Exec(`
		UPDATE matches
		SET phase = 'LIVE'
		WHERE id = $1
		  AND phase = 'WARMUP'
	`, id)
	if err != nil {
		return fmt.Errorf("mark live: %w", err)
	}

	return casResult(res)
}

func (r *matchesRepo) UpdateScores(ctx context.Context, id uuid.UUID, creatorScore, opponentScore int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE matches
		SET creator_score = $2,
		    opponent_score = $3
		WHERE id = $1
		  AND phase = 'LIVE'
	`, id, creatorScore, opponentScore)
	if err != nil {
		return fmt.Errorf("update scores: %w", err)
	}

	return nil
}

func (r *matchesRepo) Finish(tx *sql.Tx, id uuid.UUID, creatorScore, opponentScore int, at time.Time) error {
	res, err := tx.Exec(`
		UPDATE matches
		SET phase = 'FINISHED',
		    creator_score = $2,
		    opponent_score = $3,
		    finished_at = $4
		WHERE id = $1
		  AND phase IN ('WARMUP', 'LIVE')
	`, id, creatorScore, opponentScore, at)
	if err != nil {
		return fmt.Errorf("finish match: %w", err)
	}

	return casResult(res)
}
