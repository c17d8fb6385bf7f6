package application

import (
	"context"
	"errors"
	"testing"

	"agegate/contexts/finance-core/ledger-service/adapters/memory"
	domainerrors "agegate/contexts/finance-core/ledger-service/domain/errors"
	"agegate/contexts/finance-core/ledger-service/ports"
)

func TestDepositCreatesAccountOnFirstContact(t *testing.T) {
	store := memory.NewStore()
	svc := Service{Repo: store, Clock: store}

	account, entry, err := svc.Deposit(context.Background(), "user-1", 300, "checkout")
	if err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if account.Balance != 300 {
		t.Fatalf("expected balance 300, got %d", account.Balance)
	}
	if entry.Kind != ports.EntryKindCredit || entry.Amount != 300 {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestDepositRejectsNonPositiveAmount(t *testing.T) {
	store := memory.NewStore()
	svc := Service{Repo: store, Clock: store}

	_, _, err := svc.Deposit(context.Background(), "user-1", 0, "")
	if !errors.Is(err, domainerrors.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	_, _, err = svc.Deposit(context.Background(), "user-1", -50, "")
	if !errors.Is(err, domainerrors.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}

func TestBalanceUnknownAccount(t *testing.T) {
	store := memory.NewStore()
	svc := Service{Repo: store, Clock: store}

	_, err := svc.Balance(context.Background(), "nobody")
	if !errors.Is(err, domainerrors.ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
}

func TestStatementReconstructsBalance(t *testing.T) {
	store := memory.NewStore()
	svc := Service{Repo: store, Clock: store}
	ctx := context.Background()

	if _, _, err := svc.Deposit(ctx, "user-1", 300, "first"); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if _, _, err := svc.Deposit(ctx, "user-1", 200, "second"); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if _, _, err := store.ApplyDelta(ctx, ports.Delta{
		AccountID: "user-1",
		Amount:    300,
		Kind:      ports.EntryKindDebit,
		Reason:    "review request fee",
	}, store.Now()); err != nil {
		t.Fatalf("debit failed: %v", err)
	}

	entries, err := svc.Statement(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("statement failed: %v", err)
	}
	var sum int64
	for _, entry := range entries {
		if entry.Amount <= 0 {
			t.Fatalf("entry amount must stay positive: %+v", entry)
		}
		if entry.Kind == ports.EntryKindCredit {
			sum += entry.Amount
		} else {
			sum -= entry.Amount
		}
	}
	account, err := svc.Balance(ctx, "user-1")
	if err != nil {
		t.Fatalf("balance failed: %v", err)
	}
	if sum != account.Balance {
		t.Fatalf("entries sum %d does not reconstruct balance %d", sum, account.Balance)
	}
	if account.Balance != 200 {
		t.Fatalf("expected balance 200, got %d", account.Balance)
	}
}
