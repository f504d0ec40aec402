// Package store holds the account stores a ledger can run on.
package store

import (
	"context"
	"sync"

	"github.com/lightsparkdev/kylan-go/common"
	"github.com/lightsparkdev/kylan-go/ledger"
)

// MemoryStore keeps accounts in a map. It is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[common.Address]*ledger.Account
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[common.Address]*ledger.Account)}
}

func (s *MemoryStore) GetAccount(_ context.Context, address common.Address) (*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[address]
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}
	return account.Clone(), nil
}

func (s *MemoryStore) ProgramAccounts(_ context.Context, owner common.Address) ([]*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var results []*ledger.Account
	for _, address := range common.SortedAddresses(s.accounts) {
		if account := s.accounts[address]; account.Owner == owner {
			results = append(results, account.Clone())
		}
	}
	return results, nil
}

func (s *MemoryStore) Apply(_ context.Context, accounts []*ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, account := range accounts {
		s.accounts[account.Address] = account.Clone()
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
