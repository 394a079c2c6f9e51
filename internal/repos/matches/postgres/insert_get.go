package matches

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/duelpit/duelpit/internal/repos/matches"
)

func (r *matchesRepo) Insert(tx *sql.Tx, m *matches.Match) error {
	_, err := tx.Exec(`
		INSERT INTO matches (id, wager_id, creator_id, opponent_id, phase,
			location_pool, map_pool, created_at)
		VALUES ($1, $2, $3, $4, $5, string_to_array($6, ','), string_to_array($7, ','), $8)
	`, m.ID, m.WagerID, m.CreatorID, m.OpponentID, m.Phase,
		strings.Join(m.LocationPool, ","), strings.Join(m.MapPool, ","), m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}

	return nil
}

func (r *matchesRepo) Get(ctx context.Context, id uuid.UUID) (*matches.Match, error) {
	m, err := scanMatch(r.db.QueryRowContext(ctx, `
		SELECT `+matchColumns+`
		FROM matches
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, matches.ErrMatchNotFound
		}

		return nil, fmt.Errorf("get match: %w", err)
	}

	return m, nil
}

func (r *matchesRepo) LockAndGet(tx *sql.Tx, id uuid.UUID) (*matches.Match, error) {
	m, err := scanMatch(tx.QueryRow(`
		SELECT `+matchColumns+`
		FROM matches
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, matches.ErrMatchNotFound
		}

		return nil, fmt.Errorf("lock/get match: %w", err)
	}

	return m, nil
}
