package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	accounts "decoder-ledger/internal/accounts/domain"
	"decoder-ledger/internal/expiry"
	"decoder-ledger/internal/observability/metrics"
)

const defaultMaxConcurrentWrites = 8

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// CutoffPropagator applies a cutoff date to every account sharing the edited account's email.
type CutoffPropagator struct {
	repo          accounts.Repository
	ledger        accounts.PropagationLedger
	state         *State
	logger        *zap.Logger
	clock         Clock
	newID         func() string
	maxConcurrent int
}

// PropagatorOption customizes the propagator.
type PropagatorOption func(*CutoffPropagator)

// WithPropagatorClock assigns a clock.
func WithPropagatorClock(clock Clock) PropagatorOption {
	return func(p *CutoffPropagator) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithPropagatorLogger assigns a logger.
func WithPropagatorLogger(logger *zap.Logger) PropagatorOption {
	return func(p *CutoffPropagator) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithIDGenerator overrides propagation id generation.
func WithIDGenerator(fn func() string) PropagatorOption {
	return func(p *CutoffPropagator) {
		if fn != nil {
			p.newID = fn
		}
	}
}

// WithMaxConcurrentWrites bounds in-flight sibling writes.
func WithMaxConcurrentWrites(n int) PropagatorOption {
	return func(p *CutoffPropagator) {
		if n > 0 {
			p.maxConcurrent = n
		}
	}
}

// NewCutoffPropagator constructs a propagator.
func NewCutoffPropagator(repo accounts.Repository, ledger accounts.PropagationLedger, state *State, opts ...PropagatorOption) (*CutoffPropagator, error) {
	if repo == nil {
		return nil, errors.New("cutoff propagator: nil repository")
	}
	if ledger == nil {
		return nil, errors.New("cutoff propagator: nil ledger")
	}
	if state == nil {
		return nil, errors.New("cutoff propagator: nil state")
	}
	p := &CutoffPropagator{
		repo:          repo,
		ledger:        ledger,
		state:         state,
		logger:        zap.NewNop(),
		clock:         systemClock{},
		newID:         uuid.NewString,
		maxConcurrent: defaultMaxConcurrentWrites,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// ApplyCutoffChange sets newCutoff on every device of every account that shares
// the edited account's email. Siblings are written concurrently and merged into
// the snapshot only after all writes settle; failed rows keep their previous devices.
func (p *CutoffPropagator) ApplyCutoffChange(ctx context.Context, accountID string, deviceIndex int, newCutoff string) (accounts.PropagationResult, error) {
	cutoff, err := expiry.NormalizeCutoff(newCutoff)
	if err != nil {
		return accounts.PropagationResult{}, fmt.Errorf("%w: %w", accounts.ErrValidation, err)
	}

	start := time.Now()
	var prop accounts.Propagation
	err = p.state.Exclusive(func() error {
		snapshot := p.state.Snapshot()
		source, ok := findAccount(snapshot, accountID)
		if !ok {
			return accounts.ErrAccountNotFound
		}
		if deviceIndex < 0 || deviceIndex >= len(source.Devices) {
			return accounts.ErrDeviceNotFound
		}

		now := p.clock.Now().UTC()
		siblings := accounts.GroupByEmail(snapshot, source.Email)
		prop = accounts.Propagation{
			ID:              p.newID(),
			SourceAccountID: source.ID,
			DeviceIndex:     deviceIndex,
			Email:           source.Email,
			NewCutoff:       cutoff,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		targets := make(map[int]accounts.Account, len(siblings))
		for i, sibling := range siblings {
			updated := sibling.WithCutoff(cutoff)
			updated.UpdatedAt = now
			targets[i] = updated
			prop.Rows = append(prop.Rows, accounts.PropagationRow{AccountID: sibling.ID, State: accounts.WriteComputed})
		}
		p.saveLedger(ctx, prop)

		p.persist(ctx, &prop, targets)
		return nil
	})
	if err != nil {
		metrics.ObservePropagation(metrics.ResultError, time.Since(start))
		return accounts.PropagationResult{}, err
	}

	return p.finish(prop, start)
}

// RetryFailed re-issues the failed writes of a recorded propagation against the
// current snapshot of each failed account.
func (p *CutoffPropagator) RetryFailed(ctx context.Context, propagationID string) (accounts.PropagationResult, error) {
	start := time.Now()
	var prop accounts.Propagation
	err := p.state.Exclusive(func() error {
		stored, err := p.ledger.Get(ctx, propagationID)
		if err != nil {
			return err
		}
		if stored == nil {
			return accounts.ErrPropagationNotFound
		}
		prop = stored.Clone()

		now := p.clock.Now().UTC()
		targets := make(map[int]accounts.Account)
		for i, row := range prop.Rows {
			if row.State != accounts.WriteFailed {
				continue
			}
			current, ok := p.state.Find(row.AccountID)
			if !ok {
				prop.Rows[i].Attempts++
				prop.Rows[i].Error = accounts.ErrAccountNotFound.Error()
				continue
			}
			updated := current.WithCutoff(prop.NewCutoff)
			updated.UpdatedAt = now
			targets[i] = updated
		}
		prop.UpdatedAt = now
		p.persist(ctx, &prop, targets)
		return nil
	})
	if err != nil {
		metrics.ObservePropagation(metrics.ResultError, time.Since(start))
		return accounts.PropagationResult{}, err
	}
	return p.finish(prop, start)
}

// persist writes targets concurrently and records each row's outcome. It must
// run under State.Exclusive.
func (p *CutoffPropagator) persist(ctx context.Context, prop *accounts.Propagation, targets map[int]accounts.Account) {
	if len(targets) == 0 {
		p.saveLedger(ctx, *prop)
		return
	}
	for i := range targets {
		prop.Rows[i].State = accounts.WritePending
	}
	p.saveLedger(ctx, *prop)

	// Sibling writes are not abandoned when the caller goes away.
	writeCtx := context.WithoutCancel(ctx)
	results := make([]error, len(prop.Rows))
	var g errgroup.Group
	g.SetLimit(p.maxConcurrent)
	for i, target := range targets {
		g.Go(func() error {
			results[i] = p.repo.Update(writeCtx, target)
			return nil
		})
	}
	_ = g.Wait()

	succeeded, failed := 0, 0
	for i, target := range targets {
		prop.Rows[i].Attempts++
		if err := results[i]; err != nil {
			prop.Rows[i].State = accounts.WriteFailed
			prop.Rows[i].Error = err.Error()
			failed++
			p.logger.Warn("cutoff write failed",
				zap.String("propagation_id", prop.ID),
				zap.String("account_id", target.ID),
				zap.Error(err))
			continue
		}
		prop.Rows[i].State = accounts.WritePersisted
		prop.Rows[i].Error = ""
		p.state.Put(target)
		succeeded++
	}
	metrics.AddPropagationWrites(metrics.ResultSuccess, succeeded)
	metrics.AddPropagationWrites(metrics.ResultError, failed)
	p.saveLedger(ctx, *prop)
}

func (p *CutoffPropagator) finish(prop accounts.Propagation, start time.Time) (accounts.PropagationResult, error) {
	result := prop.Result()
	if result.Partial() {
		metrics.ObservePropagation(metrics.ResultPartial, time.Since(start))
		p.logger.Warn("cutoff propagation partially failed",
			zap.String("propagation_id", prop.ID),
			zap.String("email", prop.Email),
			zap.Int("succeeded", len(result.Succeeded)),
			zap.Int("failed", len(result.Failed)))
		return result, fmt.Errorf("%w: %d of %d writes failed", accounts.ErrPartialPropagation, len(result.Failed), len(prop.Rows))
	}
	metrics.ObservePropagation(metrics.ResultSuccess, time.Since(start))
	p.logger.Info("cutoff propagated",
		zap.String("propagation_id", prop.ID),
		zap.String("email", prop.Email),
		zap.String("cutoff", prop.NewCutoff),
		zap.Int("accounts", len(result.Succeeded)))
	return result, nil
}

func (p *CutoffPropagator) saveLedger(ctx context.Context, prop accounts.Propagation) {
	if err := p.ledger.Save(context.WithoutCancel(ctx), prop); err != nil {
		p.logger.Error("propagation ledger save failed",
			zap.String("propagation_id", prop.ID),
			zap.Error(err))
	}
}

func findAccount(all []accounts.Account, id string) (accounts.Account, bool) {
	for _, account := range all {
		if account.ID == id {
			return account, true
		}
	}
	return accounts.Account{}, false
}
