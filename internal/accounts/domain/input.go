package accounts

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"decoder-ledger/internal/expiry"
)

// NewDevice is the write form of a device.
type NewDevice struct {
	DecoderID        string  `json:"decoder_id" validate:"required,max=64"`
	AccessCardNumber string  `json:"access_card_number" validate:"max=64"`
	Balance          float64 `json:"balance" validate:"gte=0"`
	CutoffDate       string  `json:"cutoff_date" validate:"required"`
	RoomNumber       string  `json:"room_number" validate:"max=32"`
}

// NewAccount is the create-or-merge request.
type NewAccount struct {
	Email   string      `json:"email" validate:"required,email"`
	Alias   string      `json:"alias" validate:"max=128"`
	Devices []NewDevice `json:"devices" validate:"required,min=1,dive"`
}

// DeviceUpdate edits one device. Nil fields are left unchanged.
type DeviceUpdate struct {
	DecoderID        *string  `json:"decoder_id,omitempty" validate:"omitempty,max=64"`
	AccessCardNumber *string  `json:"access_card_number,omitempty" validate:"omitempty,max=64"`
	Balance          *float64 `json:"balance,omitempty" validate:"omitempty,gte=0"`
	CutoffDate       *string  `json:"cutoff_date,omitempty"`
	RoomNumber       *string  `json:"room_number,omitempty" validate:"omitempty,max=32"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Normalize validates the request and returns its trimmed devices with
// canonical cutoff dates.
func (n NewAccount) Normalize() (NewAccount, error) {
	n.Email = strings.TrimSpace(n.Email)
	n.Alias = strings.TrimSpace(n.Alias)
	for i := range n.Devices {
		n.Devices[i].DecoderID = strings.TrimSpace(n.Devices[i].DecoderID)
		n.Devices[i].AccessCardNumber = strings.TrimSpace(n.Devices[i].AccessCardNumber)
		n.Devices[i].RoomNumber = strings.TrimSpace(n.Devices[i].RoomNumber)
	}
	if err := validate.Struct(n); err != nil {
		return NewAccount{}, validationError(err)
	}
	for i := range n.Devices {
		cutoff, err := expiry.NormalizeCutoff(n.Devices[i].CutoffDate)
		if err != nil {
			return NewAccount{}, fmt.Errorf("%w: devices[%d].cutoff_date: %v", ErrValidation, i, err)
		}
		n.Devices[i].CutoffDate = cutoff
	}
	return n, nil
}

// DeviceList converts the request devices to domain devices.
func (n NewAccount) DeviceList() []Device {
	out := make([]Device, 0, len(n.Devices))
	for _, d := range n.Devices {
		out = append(out, Device(d))
	}
	return out
}

// Normalize validates the update and canonicalises the cutoff date when present.
func (u DeviceUpdate) Normalize() (DeviceUpdate, error) {
	if err := validate.Struct(u); err != nil {
		return DeviceUpdate{}, validationError(err)
	}
	if u.CutoffDate != nil {
		cutoff, err := expiry.NormalizeCutoff(*u.CutoffDate)
		if err != nil {
			return DeviceUpdate{}, fmt.Errorf("%w: cutoff_date: %v", ErrValidation, err)
		}
		u.CutoffDate = &cutoff
	}
	return u, nil
}

// ValidateDevices checks devices decoded from the store. The cutoff date is not
// checked here; an unparsable date is rendered as unknown, not rejected.
func ValidateDevices(devices []Device) error {
	for i, device := range devices {
		if err := validate.Struct(device); err != nil {
			return fmt.Errorf("device %d: %w", i, validationError(err))
		}
	}
	return nil
}

// Apply returns device with the non-nil fields of u, excluding the cutoff date.
func (u DeviceUpdate) Apply(device Device) Device {
	if u.DecoderID != nil {
		device.DecoderID = strings.TrimSpace(*u.DecoderID)
	}
	if u.AccessCardNumber != nil {
		device.AccessCardNumber = strings.TrimSpace(*u.AccessCardNumber)
	}
	if u.Balance != nil {
		device.Balance = *u.Balance
	}
	if u.RoomNumber != nil {
		device.RoomNumber = strings.TrimSpace(*u.RoomNumber)
	}
	return device
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(parts, "; "))
}
