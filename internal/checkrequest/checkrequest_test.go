package checkrequest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	accounts "decoder-ledger/internal/accounts/domain"
	"decoder-ledger/internal/config"
	"decoder-ledger/internal/exchangerate"
)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func TestAddItemOverwritesAndValidates(t *testing.T) {
	req := NewRequest()
	if err := req.AddItem("a1", "Casa", dec("10")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := req.AddItem("a2", "Lobby", dec("5.5")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := req.AddItem("a1", "", dec("12")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	items := req.Items()
	if len(items) != 2 || !items[0].Amount.Equal(dec("12")) || items[0].Label != "Casa" {
		t.Fatalf("unexpected items %+v", items)
	}
	if !req.Total().Equal(dec("17.5")) {
		t.Fatalf("expected 17.5, got %s", req.Total())
	}
	if err := req.AddItem("a3", "x", decimal.Zero); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := req.AddItem(" ", "x", dec("1")); !errors.Is(err, ErrMissingAccount) {
		t.Fatalf("expected ErrMissingAccount, got %v", err)
	}
	if !req.RemoveItem("a2") || req.RemoveItem("a2") {
		t.Fatalf("expected single removal")
	}
}

func TestSummaryConversion(t *testing.T) {
	req := NewRequest()
	_ = req.AddItem("a1", "Casa", dec("100"))
	_ = req.AddItem("a2", "Lobby", dec("50"))

	local, err := req.Summary(CurrencyLocal, decimal.NullDecimal{})
	if err != nil {
		t.Fatalf("local: %v", err)
	}
	if !local.Total.Equal(dec("150")) {
		t.Fatalf("expected 150, got %s", local.Total)
	}

	if _, err := req.Summary(CurrencyForeign, decimal.NullDecimal{}); !errors.Is(err, ErrRateUnavailable) {
		t.Fatalf("expected ErrRateUnavailable, got %v", err)
	}

	foreign, err := req.Summary(CurrencyForeign, decimal.NewNullDecimal(dec("36")))
	if err != nil {
		t.Fatalf("foreign: %v", err)
	}
	// 100/36 = 2.777.. -> 2.78, 50/36 = 1.388.. -> 1.39
	if !foreign.Lines[0].Amount.Equal(dec("2.78")) || !foreign.Lines[1].Amount.Equal(dec("1.39")) {
		t.Fatalf("unexpected lines %+v", foreign.Lines)
	}
	if !foreign.Total.Equal(dec("4.17")) {
		t.Fatalf("expected 4.17, got %s", foreign.Total)
	}

	half := NewRequest()
	_ = half.AddItem("a1", "x", dec("0.125"))
	rounded, _ := half.Summary(CurrencyLocal, decimal.NullDecimal{})
	if !rounded.Total.Equal(dec("0.13")) {
		t.Fatalf("expected half-up 0.13, got %s", rounded.Total)
	}

	if _, err := NewRequest().Summary(CurrencyLocal, decimal.NullDecimal{}); !errors.Is(err, ErrEmptyRequest) {
		t.Fatalf("expected ErrEmptyRequest, got %v", err)
	}
}

func TestParseCurrency(t *testing.T) {
	if c, err := ParseCurrency("USD"); err != nil || c != CurrencyForeign {
		t.Fatalf("expected foreign, got %s %v", c, err)
	}
	if c, err := ParseCurrency(""); err != nil || c != CurrencyLocal {
		t.Fatalf("expected local default, got %s %v", c, err)
	}
	if _, err := ParseCurrency("eur"); !errors.Is(err, ErrUnknownCurrency) {
		t.Fatalf("expected ErrUnknownCurrency, got %v", err)
	}
}

func TestBuildPDFPaginates(t *testing.T) {
	req := NewRequest()
	for i := 0; i < 45; i++ {
		_ = req.AddItem(fmt.Sprintf("a%d", i), fmt.Sprintf("Habitación %d", i), dec("10"))
	}
	summary, err := req.Summary(CurrencyLocal, decimal.NullDecimal{})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	data, err := BuildPDF(config.DefaultLetterhead(), summary, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("pdf: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("expected pdf output")
	}
	if pages := bytes.Count(data, []byte("/Type /Page")) - bytes.Count(data, []byte("/Type /Pages")); pages < 2 {
		t.Fatalf("expected at least 2 pages, got %d", pages)
	}
}

type stubAccounts map[string]accounts.Account

func (s stubAccounts) Get(ctx context.Context, id string) (accounts.Account, error) {
	account, ok := s[id]
	if !ok {
		return accounts.Account{}, accounts.ErrAccountNotFound
	}
	return account, nil
}

type stubRates struct {
	rate exchangerate.Rate
	err  error
}

func (s stubRates) Rate(ctx context.Context) (exchangerate.Rate, error) {
	return s.rate, s.err
}

func TestServiceGenerate(t *testing.T) {
	lookup := stubAccounts{"a1": {ID: "a1", Email: "x@y.com", Alias: "Casa"}}
	svc, err := NewService(lookup, stubRates{err: exchangerate.ErrUnavailable}, config.DefaultLetterhead())
	if err != nil {
		t.Fatalf("service: %v", err)
	}

	doc, err := svc.Generate(context.Background(), Input{
		Items:    []ItemInput{{AccountID: "a1", Amount: dec("20")}},
		Currency: "local",
	})
	if err != nil {
		t.Fatalf("local generate: %v", err)
	}
	if doc.Summary.Lines[0].Label != "Casa" || len(doc.PDF) == 0 {
		t.Fatalf("unexpected document %+v", doc.Summary)
	}

	_, err = svc.Generate(context.Background(), Input{
		Items:    []ItemInput{{AccountID: "a1", Amount: dec("20")}},
		Currency: "foreign",
	})
	if !errors.Is(err, ErrRateUnavailable) {
		t.Fatalf("expected ErrRateUnavailable, got %v", err)
	}

	_, err = svc.Generate(context.Background(), Input{Items: []ItemInput{{AccountID: "missing", Amount: dec("1")}}})
	if !errors.Is(err, accounts.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}
