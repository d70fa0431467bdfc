package accounts

import (
	"context"
	"strings"
	"time"
)

// Device is one decoder assigned to a room.
type Device struct {
	DecoderID        string  `json:"decoder_id" validate:"required,max=64"`
	AccessCardNumber string  `json:"access_card_number" validate:"max=64"`
	Balance          float64 `json:"balance" validate:"gte=0"`
	CutoffDate       string  `json:"cutoff_date"`
	RoomNumber       string  `json:"room_number" validate:"max=32"`
}

// Account groups devices under a billing email. Several rows may share an email.
type Account struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Alias     string    `json:"alias"`
	Devices   []Device  `json:"devices"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName returns the alias, falling back to the email.
func (a Account) DisplayName() string {
	if strings.TrimSpace(a.Alias) != "" {
		return a.Alias
	}
	return a.Email
}

// Clone returns a deep copy so callers never share device slices.
func (a Account) Clone() Account {
	out := a
	if a.Devices != nil {
		out.Devices = make([]Device, len(a.Devices))
		copy(out.Devices, a.Devices)
	}
	return out
}

// WithCutoff returns a copy whose every device carries cutoff. Other fields are untouched.
func (a Account) WithCutoff(cutoff string) Account {
	out := a.Clone()
	for i := range out.Devices {
		out.Devices[i].CutoffDate = cutoff
	}
	return out
}

// HasCutoff reports whether every device already carries cutoff.
func (a Account) HasCutoff(cutoff string) bool {
	for _, device := range a.Devices {
		if device.CutoffDate != cutoff {
			return false
		}
	}
	return true
}

// RoomNumbers returns the non-empty room numbers in device order.
func (a Account) RoomNumbers() []string {
	rooms := make([]string, 0, len(a.Devices))
	for _, device := range a.Devices {
		if room := strings.TrimSpace(device.RoomNumber); room != "" {
			rooms = append(rooms, room)
		}
	}
	return rooms
}

// SameEmail compares grouping keys, ignoring surrounding whitespace.
func SameEmail(a, b string) bool {
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}

// GroupByEmail selects every account sharing email, preserving input order.
func GroupByEmail(all []Account, email string) []Account {
	var out []Account
	for _, account := range all {
		if SameEmail(account.Email, email) {
			out = append(out, account)
		}
	}
	return out
}

// MergeDevices appends incoming devices to existing ones, skipping decoders
// that are already present. Existing devices keep their position.
func MergeDevices(existing, incoming []Device) []Device {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]Device, 0, len(existing)+len(incoming))
	for _, device := range existing {
		out = append(out, device)
		if device.DecoderID != "" {
			seen[device.DecoderID] = struct{}{}
		}
	}
	for _, device := range incoming {
		if device.DecoderID != "" {
			if _, ok := seen[device.DecoderID]; ok {
				continue
			}
			seen[device.DecoderID] = struct{}{}
		}
		out = append(out, device)
	}
	return out
}

// FindByAccessCard returns the first account and device index holding card.
func FindByAccessCard(all []Account, card string) (Account, int, bool) {
	card = strings.TrimSpace(card)
	if card == "" {
		return Account{}, -1, false
	}
	for _, account := range all {
		for i, device := range account.Devices {
			if device.AccessCardNumber == card {
				return account, i, true
			}
		}
	}
	return Account{}, -1, false
}

// Repository persists accounts. Get returns nil, nil when the row is absent.
type Repository interface {
	List(ctx context.Context) ([]Account, error)
	ListByEmail(ctx context.Context, email string) ([]Account, error)
	Get(ctx context.Context, id string) (*Account, error)
	Insert(ctx context.Context, account Account) error
	Update(ctx context.Context, account Account) error
	Delete(ctx context.Context, id string) error
}
