package ledgertx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/duelpit/duelpit/internal/repos/ledgertx"
)

var _ ledgertx.Ledger = (*ledgerRepo)(nil)

type ledgerRepo struct{ db *sql.DB }

func New(db *sql.DB) *ledgerRepo {
	return &ledgerRepo{db: db}
}

func (r *ledgerRepo) Insert(tx *sql.Tx, e ledgertx.Entry) error {
	_, err := tx.Exec(`
		INSERT INTO ledger_transactions (id, account_id, amount, kind, description, wager_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.AccountID, e.Amount, e.Kind, e.Description, e.WagerID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" { // unique_violation
				return ledgertx.ErrDuplicateEntry
			}
		}

		return fmt.Errorf("insert ledger entry: %w", err)
	}

	return nil
}

func (r *ledgerRepo) ListByAccount(ctx context.Context, accountID int64, limit int) ([]ledgertx.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, amount, kind, description, wager_id, created_at
		FROM ledger_transactions
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list by account: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func (r *ledgerRepo) ListAll(ctx context.Context, limit int) ([]ledgertx.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, amount, kind, description, wager_id, created_at
		FROM ledger_transactions
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list all: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func (r *ledgerRepo) SumByAccount(ctx context.Context, accountID int64) (int64, error) {
	var sum int64

	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_transactions
		WHERE account_id = $1
	`, accountID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum by account: %w", err)
	}

	return sum, nil
}

func scanEntries(rows *sql.Rows) ([]ledgertx.Entry, error) {
	var out []ledgertx.Entry

	for rows.Next() {
		var e ledgertx.Entry

		err := rows.Scan(&e.ID, &e.AccountID, &e.Amount, &e.Kind, &e.Description, &e.WagerID, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}

		out = append(out, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}

	return out, nil
}
