package application

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	inventory "decoder-ledger/internal/inventory/domain"
	"decoder-ledger/internal/inventory/importer"
	"decoder-ledger/internal/observability/metrics"
)

// Service manages the equipment inventory.
type Service struct {
	repo   inventory.Repository
	logger *zap.Logger
	newID  func() string
	now    func() time.Time
}

// Option configures the service.
type Option func(*Service)

// WithLogger assigns a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIDGenerator overrides id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewService constructs an inventory service.
func NewService(repo inventory.Repository, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("inventory service: nil repository")
	}
	s := &Service{
		repo:   repo,
		logger: zap.NewNop(),
		newID:  uuid.NewString,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Listing is a filtered inventory with stats over the whole inventory.
type Listing struct {
	Items []inventory.Item `json:"items"`
	Stats inventory.Stats  `json:"stats"`
	Types []string         `json:"types"`
}

// List returns the items matching search and equipmentType.
func (s *Service) List(ctx context.Context, search, equipmentType string) (Listing, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return Listing{}, err
	}
	return Listing{
		Items: inventory.Filter(all, search, equipmentType),
		Stats: inventory.ComputeStats(all),
		Types: inventory.EquipmentTypes,
	}, nil
}

// Save validates and upserts one item. Validation fails before the store is touched.
func (s *Service) Save(ctx context.Context, item inventory.Item) (inventory.Item, error) {
	normalized, err := inventory.Normalize(item)
	if err != nil {
		return inventory.Item{}, err
	}
	if normalized.ID == "" {
		normalized.ID = s.newID()
	}
	normalized.UpdatedAt = s.now().UTC()
	return s.repo.Upsert(ctx, normalized)
}

// Delete removes an item.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Import parses a workbook and upserts every row in one batch, returning the row count.
func (s *Service) Import(ctx context.Context, r io.Reader) (int, error) {
	items, err := importer.Parse(r)
	if err != nil {
		metrics.ObserveImport(metrics.ResultError, 0)
		return 0, err
	}
	now := s.now().UTC()
	batch := make([]inventory.Item, 0, len(items))
	for _, item := range items {
		normalized, err := inventory.Normalize(item)
		if err != nil {
			metrics.ObserveImport(metrics.ResultError, 0)
			return 0, err
		}
		normalized.ID = s.newID()
		normalized.UpdatedAt = now
		batch = append(batch, normalized)
	}
	if err := s.repo.UpsertBatch(ctx, batch); err != nil {
		metrics.ObserveImport(metrics.ResultError, 0)
		s.logger.Error("inventory import failed", zap.Int("rows", len(batch)), zap.Error(err))
		return 0, err
	}
	metrics.ObserveImport(metrics.ResultSuccess, len(batch))
	s.logger.Info("inventory imported", zap.Int("rows", len(batch)))
	return len(batch), nil
}
