package wagers

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/duelpit/duelpit/internal/repos/wagers"
)

func (r *wagersRepo) ListOpen(ctx context.Context, now time.Time, limit int) ([]wagers.Wager, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+wagerColumns+`
		FROM wagers
		WHERE status = 'WAITING'
		  AND expires_at > $1
		ORDER BY created_at DESC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list open wagers: %w", err)
	}
	defer rows.Close()

	return collectWagers(rows)
}

func (r *wagersRepo) ListAll(ctx context.Context, limit int) ([]wagers.Wager, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+wagerColumns+`
		FROM wagers
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list all wagers: %w", err)
	}
	defer rows.Close()

	return collectWagers(rows)
}

func (r *wagersRepo) ListExpiredWaiting(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id
		FROM wagers
		WHERE status = 'WAITING'
		  AND expires_at <= $1
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired waiting: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan wager id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wager ids: %w", err)
	}

	return ids, nil
}

func collectWagers(rows *sql.Rows) ([]wagers.Wager, error) {
	var out []wagers.Wager

	for rows.Next() {
		w, err := scanWager(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wager: %w", err)
		}
		out = append(out, *w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wagers: %w", err)
	}

	return out, nil
}
