package application

import (
	"sync"

	accounts "decoder-ledger/internal/accounts/domain"
)

// State is the in-process snapshot of every account. Readers get deep copies.
// Exclusive serialises read-decide-write sequences against the snapshot.
type State struct {
	mu       sync.RWMutex
	accounts []accounts.Account
	loaded   bool

	opMu sync.Mutex
}

// NewState constructs an empty container.
func NewState() *State {
	return &State{}
}

// Snapshot returns a consistent deep copy of all accounts.
func (s *State) Snapshot() []accounts.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.accounts)
}

// Loaded reports whether the container was filled from the store at least once.
func (s *State) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Replace swaps the whole snapshot.
func (s *State) Replace(all []accounts.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = cloneAll(all)
	s.loaded = true
}

// Find returns a copy of one account.
func (s *State) Find(id string) (accounts.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, account := range s.accounts {
		if account.ID == id {
			return account.Clone(), true
		}
	}
	return accounts.Account{}, false
}

// Put replaces the account with the same id in place, or appends it.
func (s *State) Put(account accounts.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.accounts {
		if s.accounts[i].ID == account.ID {
			s.accounts[i] = account.Clone()
			return
		}
	}
	s.accounts = append(s.accounts, account.Clone())
}

// Remove drops an account from the snapshot.
func (s *State) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.accounts {
		if s.accounts[i].ID == id {
			s.accounts = append(s.accounts[:i], s.accounts[i+1:]...)
			return
		}
	}
}

// Exclusive runs fn while holding the operation lock.
func (s *State) Exclusive(fn func() error) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return fn()
}

func cloneAll(in []accounts.Account) []accounts.Account {
	out := make([]accounts.Account, len(in))
	for i, account := range in {
		out[i] = account.Clone()
	}
	return out
}
