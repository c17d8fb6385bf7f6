package ports

import (
	"context"
	"time"
)

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

const (
	EntryKindCredit = "credit"
	EntryKindDebit  = "debit"
)

type Account struct {
	AccountID string
	Balance   int64
	CreatedAt time.Time
}

// Entry is an immutable ledger record. Amount is always positive; Kind
// carries the sign.
type Entry struct {
	EntryID   string
	AccountID string
	Amount    int64
	Kind      string
	Reason    string
	CreatedAt time.Time
}

type Delta struct {
	AccountID string
	Amount    int64
	Kind      string
	Reason    string
}

type Repository interface {
	EnsureAccount(ctx context.Context, accountID string, now time.Time) (Account, error)
	GetAccount(ctx context.Context, accountID string) (Account, error)
	// ApplyDelta mutates the balance and appends the entry in one atomic unit.
	// It performs no sufficiency check; callers own that precondition.
	ApplyDelta(ctx context.Context, delta Delta, now time.Time) (Account, Entry, error)
	ListEntries(ctx context.Context, accountID string, limit int) ([]Entry, error)
}
