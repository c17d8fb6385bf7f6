package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	domainerrors "agegate/contexts/finance-core/ledger-service/domain/errors"
	"agegate/contexts/finance-core/ledger-service/ports"
)

type Store struct {
	mu sync.RWMutex

	accounts map[string]ports.Account
	entries  map[string][]ports.Entry
	sequence uint64
}

func NewStore() *Store {
	return &Store{
		accounts: map[string]ports.Account{},
		entries:  map[string][]ports.Entry{},
	}
}

func (s *Store) EnsureAccount(ctx context.Context, accountID string, now time.Time) (ports.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureAccountLocked(accountID, now), nil
}

func (s *Store) GetAccount(ctx context.Context, accountID string) (ports.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[accountID]
	if !ok {
		return ports.Account{}, domainerrors.ErrAccountNotFound
	}
	return account, nil
}

func (s *Store) ApplyDelta(ctx context.Context, delta ports.Delta, now time.Time) (ports.Account, ports.Entry, error) {
	if delta.Amount <= 0 {
		return ports.Account{}, ports.Entry{}, domainerrors.ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	account := s.ensureAccountLocked(delta.AccountID, now)
	switch delta.Kind {
	case ports.EntryKindCredit:
		account.Balance += delta.Amount
	case ports.EntryKindDebit:
		account.Balance -= delta.Amount
	default:
		return ports.Account{}, ports.Entry{}, domainerrors.ErrInvalidRequest
	}
	s.accounts[delta.AccountID] = account

	s.sequence++
	entry := ports.Entry{
		EntryID:   fmt.Sprintf("entry-%d", s.sequence),
		AccountID: delta.AccountID,
		Amount:    delta.Amount,
		Kind:      delta.Kind,
		Reason:    delta.Reason,
		CreatedAt: now.UTC(),
	}
	s.entries[delta.AccountID] = append(s.entries[delta.AccountID], entry)
	return account, entry, nil
}

func (s *Store) ListEntries(ctx context.Context, accountID string, limit int) ([]ports.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.accounts[accountID]; !ok {
		return nil, domainerrors.ErrAccountNotFound
	}
	all := s.entries[accountID]
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	// newest first
	items := make([]ports.Entry, 0, limit)
	for i := len(all) - 1; i >= 0 && len(items) < limit; i-- {
		items = append(items, all[i])
	}
	return items, nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) ensureAccountLocked(accountID string, now time.Time) ports.Account {
	account, ok := s.accounts[accountID]
	if !ok {
		account = ports.Account{
			AccountID: accountID,
			Balance:   0,
			CreatedAt: now.UTC(),
		}
		s.accounts[accountID] = account
	}
	return account
}

var _ ports.Repository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
