package matches

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/duelpit/duelpit/internal/repos/matches"
)

var _ matches.Matches = (*matchesRepo)(nil)

type matchesRepo struct{ db *sql.DB }

func New(db *sql.DB) *matchesRepo {
	return &matchesRepo{db: db}
}

// Pools are TEXT[] columns; they cross the driver as comma-joined strings
// (array_to_string / string_to_array) to stay within database/sql scanning.
const matchColumns = `id, wager_id, creator_id, opponent_id, phase,
	array_to_string(location_pool, ','), array_to_string(map_pool, ','),
	selected_location, selected_map, server_endpoint,
	provision_claimed, provision_attempts, creator_score, opponent_score,
	created_at, finished_at`

func scanMatch(row interface{ Scan(...any) error }) (*matches.Match, error) {
	var (
		m            matches.Match
		locationsCSV string
		mapsCSV      string
	)

	err := row.Scan(
		&m.ID, &m.WagerID, &m.CreatorID, &m.OpponentID, &m.Phase,
		&locationsCSV, &mapsCSV,
		&m.SelectedLocation, &m.SelectedMap, &m.ServerEndpoint,
		&m.ProvisionClaimed, &m.ProvisionAttempts, &m.CreatorScore, &m.OpponentScore,
		&m.CreatedAt, &m.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	m.LocationPool = strings.Split(locationsCSV, ",")
	m.MapPool = strings.Split(mapsCSV, ",")

	return &m, nil
}

func casResult(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return matches.ErrPhaseConflict
	}

	return nil
}
