package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domainerrors "agegate/contexts/identity-access/accounts-service/domain/errors"
	"agegate/contexts/identity-access/accounts-service/ports"
)

type Store struct {
	mu       sync.RWMutex
	accounts map[string]ports.Account
}

func NewStore() *Store {
	return &Store{
		accounts: map[string]ports.Account{},
	}
}

func (s *Store) EnsureAccount(ctx context.Context, accountID string, displayName string, now time.Time) (ports.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[accountID]
	if !ok {
		account = ports.Account{
			AccountID:   accountID,
			DisplayName: displayName,
			Role:        ports.RoleRequester,
			CreatedAt:   now.UTC(),
		}
		s.accounts[accountID] = account
		return account, nil
	}
	if account.DisplayName == "" && displayName != "" {
		account.DisplayName = displayName
		s.accounts[accountID] = account
	}
	return account, nil
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

func (s *Store) SetRole(ctx context.Context, accountID string, role ports.Role) (ports.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[accountID]
	if !ok {
		return ports.Account{}, domainerrors.ErrAccountNotFound
	}
	account.Role = role
	s.accounts[accountID] = account
	return account, nil
}

func (s *Store) ListByRole(ctx context.Context, role ports.Role) ([]ports.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]ports.Account, 0)
	for _, account := range s.accounts {
		if account.Role == role {
			items = append(items, account)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].AccountID < items[j].AccountID
	})
	return items, nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

var _ ports.Repository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
