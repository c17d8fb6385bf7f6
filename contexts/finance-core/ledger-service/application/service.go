package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	domainerrors "agegate/contexts/finance-core/ledger-service/domain/errors"
	"agegate/contexts/finance-core/ledger-service/ports"
)

type Service struct {
	Repo   ports.Repository
	Clock  ports.Clock
	Logger *slog.Logger
}

// Deposit is the signed-credit-delta primitive consumed by the external
// checkout flow. The account is created on first contact.
func (s Service) Deposit(ctx context.Context, accountID string, amount int64, reason string) (ports.Account, ports.Entry, error) {
	accountID = strings.TrimSpace(accountID)
	reason = strings.TrimSpace(reason)
	if accountID == "" {
		return ports.Account{}, ports.Entry{}, domainerrors.ErrInvalidRequest
	}
	if amount <= 0 {
		return ports.Account{}, ports.Entry{}, domainerrors.ErrInvalidAmount
	}
	if reason == "" {
		reason = "balance deposit"
	}

	now := s.now()
	if _, err := s.Repo.EnsureAccount(ctx, accountID, now); err != nil {
		return ports.Account{}, ports.Entry{}, err
	}
	account, entry, err := s.Repo.ApplyDelta(ctx, ports.Delta{
		AccountID: accountID,
		Amount:    amount,
		Kind:      ports.EntryKindCredit,
		Reason:    reason,
	}, now)
	if err != nil {
		return ports.Account{}, ports.Entry{}, err
	}

	resolveLogger(s.Logger).Info("ledger deposit applied",
		"event", "ledger_deposit_applied",
		"module", "finance-core/ledger-service",
		"layer", "application",
		"account_id", accountID,
		"amount", amount,
		"balance", account.Balance,
	)
	return account, entry, nil
}

func (s Service) Balance(ctx context.Context, accountID string) (ports.Account, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return ports.Account{}, domainerrors.ErrInvalidRequest
	}
	return s.Repo.GetAccount(ctx, accountID)
}

func (s Service) Statement(ctx context.Context, accountID string, limit int) ([]ports.Entry, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, domainerrors.ErrInvalidRequest
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	return s.Repo.ListEntries(ctx, accountID, limit)
}

func (s Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}
