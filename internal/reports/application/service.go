package application

import (
	"context"
	"errors"
	"time"

	accounts "decoder-ledger/internal/accounts/domain"
	"decoder-ledger/internal/expiry"
)

// AccountSource provides the current account snapshot.
type AccountSource interface {
	List(ctx context.Context) ([]accounts.Account, error)
}

// Service resolves today's date and builds views from the live snapshot.
type Service struct {
	source AccountSource
	views  *Views
	calc   *expiry.Calculator
}

// NewService constructs a report service.
func NewService(source AccountSource, views *Views, calc *expiry.Calculator) (*Service, error) {
	if source == nil {
		return nil, errors.New("report service: nil source")
	}
	if views == nil {
		return nil, errors.New("report service: nil views")
	}
	if calc == nil {
		return nil, errors.New("report service: nil calculator")
	}
	return &Service{source: source, views: views, calc: calc}, nil
}

// Today returns the reporting date.
func (s *Service) Today() time.Time {
	return s.calc.Today()
}

func (s *Service) snapshot(ctx context.Context) ([]accounts.Account, time.Time, error) {
	all, err := s.source.List(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}
	return all, s.calc.Today(), nil
}

// Dashboard builds the home summary.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	all, today, err := s.snapshot(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	return s.views.Dashboard(all, today), nil
}

// Cards builds the account cards.
func (s *Service) Cards(ctx context.Context) ([]Card, error) {
	all, today, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.views.Cards(all, today), nil
}

// Rows builds device rows for the given accounts.
func (s *Service) Rows(list []accounts.Account) []Row {
	return s.views.Rows(list, s.calc.Today())
}

// Portfolio builds the financial overview.
func (s *Service) Portfolio(ctx context.Context) (Portfolio, error) {
	all, today, err := s.snapshot(ctx)
	if err != nil {
		return Portfolio{}, err
	}
	return s.views.Portfolio(all, today), nil
}

// StatusReport builds the per-account status report.
func (s *Service) StatusReport(ctx context.Context) ([]StatusLine, error) {
	all, today, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.views.StatusReport(all, today), nil
}
