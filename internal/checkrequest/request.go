package checkrequest

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Currency selects which checkbox of the form is marked.
type Currency string

const (
	CurrencyLocal   Currency = "local"
	CurrencyForeign Currency = "foreign"
)

// ParseCurrency accepts local/foreign and the usual aliases.
func ParseCurrency(value string) (Currency, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "local", "ves", "bs", "bolivares":
		return CurrencyLocal, nil
	case "foreign", "usd", "dollars", "us dollars":
		return CurrencyForeign, nil
	default:
		return "", ErrUnknownCurrency
	}
}

// Item is one account line of the request.
type Item struct {
	AccountID string          `json:"account_id"`
	Label     string          `json:"label"`
	Amount    decimal.Decimal `json:"amount"`
}

// Request accumulates the accounts to be paid with one check.
type Request struct {
	items []Item
}

// NewRequest returns an empty request.
func NewRequest() *Request {
	return &Request{}
}

// AddItem adds an account line. Adding an account again overwrites its amount and label.
func (r *Request) AddItem(accountID, label string, amount decimal.Decimal) error {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return ErrMissingAccount
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	for i := range r.items {
		if r.items[i].AccountID == accountID {
			r.items[i].Amount = amount
			if label != "" {
				r.items[i].Label = label
			}
			return nil
		}
	}
	r.items = append(r.items, Item{AccountID: accountID, Label: label, Amount: amount})
	return nil
}

// RemoveItem drops the line for accountID and reports whether it existed.
func (r *Request) RemoveItem(accountID string) bool {
	for i := range r.items {
		if r.items[i].AccountID == accountID {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return true
		}
	}
	return false
}

// Items returns a copy of the lines in insertion order.
func (r *Request) Items() []Item {
	out := make([]Item, len(r.items))
	copy(out, r.items)
	return out
}

// Total sums the entered amounts.
func (r *Request) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range r.items {
		total = total.Add(item.Amount)
	}
	return total
}

// Line is a summary line in the selected currency.
type Line struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// Summary is the request expressed in the currency printed on the form.
type Summary struct {
	Currency Currency            `json:"currency"`
	Rate     decimal.NullDecimal `json:"rate"`
	Lines    []Line              `json:"lines"`
	Subtotal decimal.Decimal     `json:"subtotal"`
	Total    decimal.Decimal     `json:"total"`
}

// Summary converts the entered local amounts into currency. Foreign amounts are
// amount / rate; every figure is rounded half-up to two decimals and the total
// is the sum of the rounded lines.
func (r *Request) Summary(currency Currency, rate decimal.NullDecimal) (Summary, error) {
	if len(r.items) == 0 {
		return Summary{}, ErrEmptyRequest
	}
	convert := func(amount decimal.Decimal) decimal.Decimal { return amount }
	switch currency {
	case CurrencyLocal:
	case CurrencyForeign:
		if !rate.Valid || !rate.Decimal.IsPositive() {
			return Summary{}, ErrRateUnavailable
		}
		convert = func(amount decimal.Decimal) decimal.Decimal { return amount.Div(rate.Decimal) }
	default:
		return Summary{}, ErrUnknownCurrency
	}

	out := Summary{Currency: currency, Rate: rate, Lines: make([]Line, 0, len(r.items)), Subtotal: decimal.Zero}
	for _, item := range r.items {
		amount := convert(item.Amount).Round(2)
		out.Lines = append(out.Lines, Line{Label: item.Label, Amount: amount})
		out.Subtotal = out.Subtotal.Add(amount)
	}
	out.Total = out.Subtotal
	return out, nil
}
