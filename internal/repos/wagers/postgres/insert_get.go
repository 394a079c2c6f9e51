package wagers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/duelpit/duelpit/internal/repos/wagers"
)

func (r *wagersRepo) Insert(tx *sql.Tx, w *wagers.Wager) error {
	_, err := tx.Exec(`
		INSERT INTO wagers (id, creator_id, stake, game_map, mode, status, pot, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, w.ID, w.CreatorID, w.Stake, w.GameMap, w.Mode, w.Status, w.Pot, w.CreatedAt, w.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert wager: %w", err)
	}

	return nil
}

func (r *wagersRepo) Get(ctx context.Context, id uuid.UUID) (*wagers.Wager, error) {
	w, err := scanWager(r.db.QueryRowContext(ctx, `
		SELECT `+wagerColumns+`
		FROM wagers
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, wagers.ErrWagerNotFound
		}

		return nil, fmt.Errorf("get wager: %w", err)
	}

	return w, nil
}

func (r *wagersRepo) LockAndGet(tx *sql.Tx, id uuid.UUID) (*wagers.Wager, error) {
	w, err := scanWager(tx.QueryRow(`
		SELECT `+wagerColumns+`
		FROM wagers
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, wagers.ErrWagerNotFound
		}

		return nil, fmt.Errorf("lock/get wager: %w", err)
	}

	return w, nil
}
