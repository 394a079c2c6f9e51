package ledgertx

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrDuplicateEntry = errors.New("duplicate ledger entry")

// Kind classifies a ledger entry.
type Kind string

const (
	KindLock    Kind = "LOCK"
	KindUnlock  Kind = "UNLOCK"
	KindWin     Kind = "WIN"
	KindRefund  Kind = "REFUND"
	KindFee     Kind = "FEE"
	KindDeposit Kind = "DEPOSIT"
)

// Entry is one immutable ledger row. Amount is the signed delta applied to
// the account's available bucket; rows are created, never updated.
type Entry struct {
	ID          uuid.UUID
	AccountID   int64
	Amount      int64
	Kind        Kind
	Description string
	WagerID     *uuid.UUID
	CreatedAt   time.Time
}

type Ledger interface {
	Insert(tx *sql.Tx, e Entry) error
	ListByAccount(ctx context.Context, accountID int64, limit int) ([]Entry, error)
	ListAll(ctx context.Context, limit int) ([]Entry, error)
	// SumByAccount returns the sum of all entry amounts for an account;
	// the reconciliation check against the available bucket.
	SumByAccount(ctx context.Context, accountID int64) (int64, error)
}
