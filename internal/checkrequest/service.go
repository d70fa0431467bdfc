package checkrequest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	accounts "decoder-ledger/internal/accounts/domain"
	"decoder-ledger/internal/config"
	"decoder-ledger/internal/exchangerate"
	"decoder-ledger/internal/observability/metrics"
)

// AccountLookup resolves the label of an account line.
type AccountLookup interface {
	Get(ctx context.Context, id string) (accounts.Account, error)
}

// RateSource provides the exchange rate for foreign summaries.
type RateSource interface {
	Rate(ctx context.Context) (exchangerate.Rate, error)
}

// ItemInput is one requested account line.
type ItemInput struct {
	AccountID string          `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// Input is the body of a check request.
type Input struct {
	Items    []ItemInput `json:"items"`
	Currency string      `json:"currency"`
}

// Document is a rendered check request.
type Document struct {
	PDF     []byte
	Summary Summary
}

// Service builds check request documents.
type Service struct {
	accounts   AccountLookup
	rates      RateSource
	letterhead config.Letterhead
	now        func() time.Time
	logger     *zap.Logger
}

// Option configures the service.
type Option func(*Service)

// WithNow overrides the clock used for the request date.
func WithNow(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService constructs a check request service. rates may be nil, which
// disables foreign summaries.
func NewService(lookup AccountLookup, rates RateSource, letterhead config.Letterhead, opts ...Option) (*Service, error) {
	if lookup == nil {
		return nil, errors.New("check request service: nil account lookup")
	}
	s := &Service{
		accounts:   lookup,
		rates:      rates,
		letterhead: letterhead,
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Generate validates the items, converts them when needed and renders the PDF.
func (s *Service) Generate(ctx context.Context, input Input) (Document, error) {
	start := time.Now()
	doc, err := s.generate(ctx, input)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveExport("check_request", "pdf", result, time.Since(start))
	return doc, err
}

func (s *Service) generate(ctx context.Context, input Input) (Document, error) {
	currency, err := ParseCurrency(input.Currency)
	if err != nil {
		return Document{}, err
	}
	request := NewRequest()
	for _, item := range input.Items {
		account, err := s.accounts.Get(ctx, item.AccountID)
		if err != nil {
			return Document{}, fmt.Errorf("item %s: %w", item.AccountID, err)
		}
		if err := request.AddItem(account.ID, account.DisplayName(), item.Amount); err != nil {
			return Document{}, err
		}
	}

	var rate decimal.NullDecimal
	if currency == CurrencyForeign {
		if s.rates == nil {
			return Document{}, ErrRateUnavailable
		}
		current, err := s.rates.Rate(ctx)
		if err != nil || !current.Known {
			s.logger.Warn("check request without exchange rate", zap.Error(err))
			return Document{}, ErrRateUnavailable
		}
		rate = decimal.NewNullDecimal(current.Value)
	}

	summary, err := request.Summary(currency, rate)
	if err != nil {
		return Document{}, err
	}
	pdf, err := BuildPDF(s.letterhead, summary, s.now())
	if err != nil {
		return Document{}, fmt.Errorf("render check request: %w", err)
	}
	return Document{PDF: pdf, Summary: summary}, nil
}
