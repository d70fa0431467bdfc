package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	accounts "decoder-ledger/internal/accounts/domain"
)

// AccountRepository is an in-memory repository for local runs and tests.
type AccountRepository struct {
	mu   sync.RWMutex
	data map[string]accounts.Account
}

// NewAccountRepository constructs a repository seeded with accounts.
func NewAccountRepository(seed ...accounts.Account) *AccountRepository {
	repo := &AccountRepository{data: make(map[string]accounts.Account, len(seed))}
	for _, account := range seed {
		repo.data[account.ID] = account.Clone()
	}
	return repo
}

// List returns every account ordered by creation.
func (r *AccountRepository) List(ctx context.Context) ([]accounts.Account, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]accounts.Account, 0, len(r.data))
	for _, account := range r.data {
		out = append(out, account.Clone())
	}
	sortAccounts(out)
	return out, nil
}

// ListByEmail returns the accounts sharing email.
func (r *AccountRepository) ListByEmail(ctx context.Context, email string) ([]accounts.Account, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	return accounts.GroupByEmail(all, email), nil
}

// Get loads one account.
func (r *AccountRepository) Get(ctx context.Context, id string) (*accounts.Account, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.data[id]
	if !ok {
		return nil, nil
	}
	clone := account.Clone()
	return &clone, nil
}

// Insert stores a new account.
func (r *AccountRepository) Insert(ctx context.Context, account accounts.Account) error {
	_ = ctx
	if account.ID == "" {
		return errors.New("account repo: empty id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.data[account.ID]; exists {
		return errors.New("account repo: duplicate id")
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	if account.UpdatedAt.IsZero() {
		account.UpdatedAt = account.CreatedAt
	}
	r.data[account.ID] = account.Clone()
	return nil
}

// Update overwrites an existing account.
func (r *AccountRepository) Update(ctx context.Context, account accounts.Account) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.data[account.ID]
	if !ok {
		return accounts.ErrAccountNotFound
	}
	account.CreatedAt = current.CreatedAt
	if account.UpdatedAt.IsZero() {
		account.UpdatedAt = time.Now().UTC()
	}
	r.data[account.ID] = account.Clone()
	return nil
}

// Delete removes an account.
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[id]; !ok {
		return accounts.ErrAccountNotFound
	}
	delete(r.data, id)
	return nil
}

func sortAccounts(list []accounts.Account) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}

// LedgerRepository keeps propagation records in memory.
type LedgerRepository struct {
	mu   sync.RWMutex
	data map[string]accounts.Propagation
}

// NewLedgerRepository constructs an empty ledger.
func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{data: make(map[string]accounts.Propagation)}
}

// Save upserts a propagation.
func (r *LedgerRepository) Save(ctx context.Context, p accounts.Propagation) error {
	_ = ctx
	if p.ID == "" {
		return errors.New("ledger repo: empty id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[p.ID] = p.Clone()
	return nil
}

// Get loads a propagation.
func (r *LedgerRepository) Get(ctx context.Context, id string) (*accounts.Propagation, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.data[id]
	if !ok {
		return nil, nil
	}
	clone := p.Clone()
	return &clone, nil
}
