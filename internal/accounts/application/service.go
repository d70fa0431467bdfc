package application

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	accounts "decoder-ledger/internal/accounts/domain"
)

// Service manages accounts and their devices on top of the shared snapshot.
type Service struct {
	repo       accounts.Repository
	state      *State
	propagator *CutoffPropagator
	logger     *zap.Logger
	clock      Clock
	newID      func() string
}

// ServiceOption customizes the account service.
type ServiceOption func(*Service)

// WithLogger assigns a logger.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithAccountIDGenerator overrides account id generation.
func WithAccountIDGenerator(fn func() string) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewService constructs an account service.
func NewService(repo accounts.Repository, state *State, propagator *CutoffPropagator, opts ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, errors.New("account service: nil repository")
	}
	if state == nil {
		return nil, errors.New("account service: nil state")
	}
	if propagator == nil {
		return nil, errors.New("account service: nil propagator")
	}
	s := &Service{
		repo:       repo,
		state:      state,
		propagator: propagator,
		logger:     zap.NewNop(),
		clock:      systemClock{},
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CardMatch is the result of an access card lookup.
type CardMatch struct {
	AccountID   string          `json:"account_id"`
	Email       string          `json:"email"`
	Alias       string          `json:"alias"`
	DeviceIndex int             `json:"device_index"`
	Device      accounts.Device `json:"device"`
}

// CreateResult reports whether a create merged into an existing row.
type CreateResult struct {
	Account accounts.Account `json:"account"`
	Merged  bool             `json:"merged"`
}

// Refresh reloads the snapshot from the store. On failure the previous snapshot is kept.
func (s *Service) Refresh(ctx context.Context) ([]accounts.Account, error) {
	var list []accounts.Account
	err := s.state.Exclusive(func() error {
		loaded, err := s.repo.List(ctx)
		if err != nil {
			return err
		}
		s.state.Replace(loaded)
		list = s.state.Snapshot()
		return nil
	})
	if err != nil {
		s.logger.Warn("account refresh failed, keeping previous snapshot", zap.Error(err))
		return nil, err
	}
	s.logger.Debug("accounts refreshed", zap.Int("count", len(list)))
	return list, nil
}

// List returns the snapshot, loading it on first use.
func (s *Service) List(ctx context.Context) ([]accounts.Account, error) {
	if !s.state.Loaded() {
		return s.Refresh(ctx)
	}
	return s.state.Snapshot(), nil
}

// Get returns one account from the snapshot.
func (s *Service) Get(ctx context.Context, id string) (accounts.Account, error) {
	if _, err := s.List(ctx); err != nil {
		return accounts.Account{}, err
	}
	account, ok := s.state.Find(id)
	if !ok {
		return accounts.Account{}, accounts.ErrAccountNotFound
	}
	return account, nil
}

// FilterByEmail returns the accounts registered under email. An empty email returns all.
func (s *Service) FilterByEmail(ctx context.Context, email string) ([]accounts.Account, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(email) == "" {
		return all, nil
	}
	return accounts.GroupByEmail(all, email), nil
}

// Emails returns the distinct emails, sorted.
func (s *Service) Emails(ctx context.Context) ([]string, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(all))
	out := make([]string, 0, len(all))
	for _, account := range all {
		email := strings.TrimSpace(account.Email)
		if email == "" {
			continue
		}
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		out = append(out, email)
	}
	sort.Strings(out)
	return out, nil
}

// FindByAccessCard returns the first device holding card.
func (s *Service) FindByAccessCard(ctx context.Context, card string) (CardMatch, error) {
	all, err := s.List(ctx)
	if err != nil {
		return CardMatch{}, err
	}
	account, index, ok := accounts.FindByAccessCard(all, card)
	if !ok {
		return CardMatch{}, accounts.ErrDeviceNotFound
	}
	return CardMatch{
		AccountID:   account.ID,
		Email:       account.Email,
		Alias:       account.Alias,
		DeviceIndex: index,
		Device:      account.Devices[index],
	}, nil
}

// Create inserts a new account, or merges the devices into the oldest account
// already registered under the same email.
func (s *Service) Create(ctx context.Context, input accounts.NewAccount) (CreateResult, error) {
	normalized, err := input.Normalize()
	if err != nil {
		return CreateResult{}, err
	}
	if _, err := s.List(ctx); err != nil {
		return CreateResult{}, err
	}

	var result CreateResult
	err = s.state.Exclusive(func() error {
		now := s.clock.Now().UTC()
		existing, err := s.repo.ListByEmail(ctx, normalized.Email)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			target := existing[0]
			target.Devices = accounts.MergeDevices(target.Devices, normalized.DeviceList())
			target.Alias = normalized.Alias
			target.UpdatedAt = now
			if err := s.repo.Update(ctx, target); err != nil {
				return err
			}
			s.state.Put(target)
			result = CreateResult{Account: target, Merged: true}
			return nil
		}
		account := accounts.Account{
			ID:        s.newID(),
			Email:     normalized.Email,
			Alias:     normalized.Alias,
			Devices:   normalized.DeviceList(),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.Insert(ctx, account); err != nil {
			return err
		}
		s.state.Put(account)
		result = CreateResult{Account: account}
		return nil
	})
	if err != nil {
		return CreateResult{}, err
	}
	s.logger.Info("account saved",
		zap.String("account_id", result.Account.ID),
		zap.Bool("merged", result.Merged),
		zap.Int("devices", len(result.Account.Devices)))
	return result, nil
}

// UpdateDevice edits one device. A changed cutoff date is propagated to every
// account sharing the email; the returned result is nil when no propagation ran.
// The other fields are committed by their own write before the propagation, so
// when the propagation fails on this account the row keeps the edited fields
// with its previous cutoff date.
func (s *Service) UpdateDevice(ctx context.Context, accountID string, index int, update accounts.DeviceUpdate) (accounts.Account, *accounts.PropagationResult, error) {
	normalized, err := update.Normalize()
	if err != nil {
		return accounts.Account{}, nil, err
	}
	if _, err := s.List(ctx); err != nil {
		return accounts.Account{}, nil, err
	}

	var cutoffChanged bool
	err = s.state.Exclusive(func() error {
		account, ok := s.state.Find(accountID)
		if !ok {
			return accounts.ErrAccountNotFound
		}
		if index < 0 || index >= len(account.Devices) {
			return accounts.ErrDeviceNotFound
		}
		current := account.Devices[index]
		if normalized.CutoffDate != nil && *normalized.CutoffDate != current.CutoffDate {
			cutoffChanged = true
		}
		edited := normalized.Apply(current)
		if edited == current {
			return nil
		}
		account.Devices[index] = edited
		account.UpdatedAt = s.clock.Now().UTC()
		if err := s.repo.Update(ctx, account); err != nil {
			return err
		}
		s.state.Put(account)
		return nil
	})
	if err != nil {
		return accounts.Account{}, nil, err
	}

	var propagation *accounts.PropagationResult
	if cutoffChanged {
		result, err := s.propagator.ApplyCutoffChange(ctx, accountID, index, *normalized.CutoffDate)
		if err != nil && !errors.Is(err, accounts.ErrPartialPropagation) {
			return accounts.Account{}, nil, err
		}
		propagation = &result
		if err != nil {
			account, _ := s.state.Find(accountID)
			return account, propagation, err
		}
	}
	account, ok := s.state.Find(accountID)
	if !ok {
		return accounts.Account{}, propagation, accounts.ErrAccountNotFound
	}
	return account, propagation, nil
}

// ApplyCutoff propagates a cutoff date from one device to every sibling account.
func (s *Service) ApplyCutoff(ctx context.Context, accountID string, index int, cutoff string) (accounts.PropagationResult, error) {
	if _, err := s.List(ctx); err != nil {
		return accounts.PropagationResult{}, err
	}
	return s.propagator.ApplyCutoffChange(ctx, accountID, index, cutoff)
}

// RetryPropagation re-issues the failed writes of a propagation.
func (s *Service) RetryPropagation(ctx context.Context, propagationID string) (accounts.PropagationResult, error) {
	if _, err := s.List(ctx); err != nil {
		return accounts.PropagationResult{}, err
	}
	return s.propagator.RetryFailed(ctx, propagationID)
}

// DeleteAccount removes an account with all its devices.
func (s *Service) DeleteAccount(ctx context.Context, id string) error {
	if _, err := s.List(ctx); err != nil {
		return err
	}
	err := s.state.Exclusive(func() error {
		if _, ok := s.state.Find(id); !ok {
			return accounts.ErrAccountNotFound
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		s.state.Remove(id)
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("account deleted", zap.String("account_id", id))
	return nil
}

// DeleteDevice removes one device. The account is kept even when it ends up empty.
func (s *Service) DeleteDevice(ctx context.Context, id string, index int) (accounts.Account, error) {
	if _, err := s.List(ctx); err != nil {
		return accounts.Account{}, err
	}
	var updated accounts.Account
	err := s.state.Exclusive(func() error {
		account, ok := s.state.Find(id)
		if !ok {
			return accounts.ErrAccountNotFound
		}
		if index < 0 || index >= len(account.Devices) {
			return accounts.ErrDeviceNotFound
		}
		account.Devices = append(account.Devices[:index], account.Devices[index+1:]...)
		account.UpdatedAt = s.clock.Now().UTC()
		if err := s.repo.Update(ctx, account); err != nil {
			return err
		}
		s.state.Put(account)
		updated = account
		return nil
	})
	if err != nil {
		return accounts.Account{}, err
	}
	return updated, nil
}
