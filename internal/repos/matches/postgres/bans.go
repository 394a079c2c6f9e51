package matches

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/duelpit/duelpit/internal/repos/matches"
)

func (r *matchesRepo) InsertBan(tx *sql.Tx, b matches.Ban) error {
	_, err := tx.Exec(`
		INSERT INTO match_bans (match_id, ordinal, pool, candidate, side)
		VALUES ($1, $2, $3, $4, $5)
	`, b.MatchID, b.Ordinal, b.Pool, b.Candidate, b.Side)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" { // unique_violation
				return matches.ErrBanConflict
			}
		}

		return fmt.Errorf("insert ban: %w", err)
	}

	return nil
}

const banColumns = `match_id, ordinal, pool, candidate, side, banned_at`

func (r *matchesRepo) ListBans(ctx context.Context, matchID uuid.UUID) ([]matches.Ban, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+banColumns+`
		FROM match_bans
		WHERE match_id = $1
		ORDER BY ordinal
	`, matchID)
	if err != nil {
		return nil, fmt.Errorf("list bans: %w", err)
	}
	defer rows.Close()

	return collectBans(rows)
}

func (r *matchesRepo) ListBansTx(tx *sql.Tx, matchID uuid.UUID) ([]matches.Ban, error) {
	rows, err := tx.Query(`
		SELECT `+banColumns+`
		FROM match_bans
		WHERE match_id = $1
		ORDER BY ordinal
	`, matchID)
	if err != nil {
		return nil, fmt.Errorf("list bans in tx: %w", err)
	}
	defer rows.Close()

	return collectBans(rows)
}

func collectBans(rows *sql.Rows) ([]matches.Ban, error) {
	var out []matches.Ban

	for rows.Next() {
		var b matches.Ban

		err := rows.Scan(&b.MatchID, &b.Ordinal, &b.Pool, &b.Candidate, &b.Side, &b.BannedAt)
		if err != nil {
			return nil, fmt.Errorf("scan ban: %w", err)
		}

		out = append(out, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bans: %w", err)
	}

	return out, nil
}
