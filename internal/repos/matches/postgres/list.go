package matches

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/duelpit/duelpit/internal/repos/matches"
)

func (r *matchesRepo) ListConfiguring(ctx context.Context, staleBefore time.Time, limit int) ([]matches.Match, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+prefixedMatchColumns+`
		FROM matches m
		JOIN wagers w ON w.id = m.wager_id
		WHERE m.phase = 'CONFIGURING'
		  AND (m.provision_claimed = FALSE OR m.provision_claimed_at <= $1)
		  AND w.status = 'LOCKED'
		ORDER BY m.created_at
		LIMIT $2
	`, staleBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list configuring: %w", err)
	}
	defer rows.Close()

	return collectMatches(rows)
}

func (r *matchesRepo) ListPlaying(ctx context.Context, limit int) ([]matches.Match, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+prefixedMatchColumns+`
		FROM matches m
		JOIN wagers w ON w.id = m.wager_id
		WHERE m.phase IN ('WARMUP', 'LIVE')
		  AND w.status = 'LIVE'
		ORDER BY m.created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list playing: %w", err)
	}
	defer rows.Close()

	return collectMatches(rows)
}

const prefixedMatchColumns = `m.id, m.wager_id, m.creator_id, m.opponent_id, m.phase,
	array_to_string(m.location_pool, ','), array_to_string(m.map_pool, ','),
	m.selected_location, m.selected_map, m.server_endpoint,
	m.provision_claimed, m.provision_attempts, m.creator_score, m.opponent_score,
	m.created_at, m.finished_at`

func collectMatches(rows *sql.Rows) ([]matches.Match, error) {
	var out []matches.Match

	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		out = append(out, *m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}

	return out, nil
}
