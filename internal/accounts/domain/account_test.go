package accounts

import (
	"errors"
	"testing"
)

func TestGroupByEmailPreservesOrder(t *testing.T) {
	all := []Account{
		{ID: "a1", Email: "x@y.com"},
		{ID: "a2", Email: "other@y.com"},
		{ID: "a3", Email: " x@y.com "},
	}
	group := GroupByEmail(all, "x@y.com")
	if len(group) != 2 || group[0].ID != "a1" || group[1].ID != "a3" {
		t.Fatalf("unexpected group %+v", group)
	}
}

func TestMergeDevicesDedupesByDecoder(t *testing.T) {
	existing := []Device{{DecoderID: "D1", CutoffDate: "2025-01-01"}, {DecoderID: "D2"}}
	incoming := []Device{{DecoderID: "D2", CutoffDate: "2030-01-01"}, {DecoderID: "D3"}}
	merged := MergeDevices(existing, incoming)
	if len(merged) != 3 {
		t.Fatalf("expected 3 devices, got %d", len(merged))
	}
	if merged[1].CutoffDate != "" {
		t.Fatalf("expected existing D2 to be kept, got %+v", merged[1])
	}
	if merged[2].DecoderID != "D3" {
		t.Fatalf("expected D3 appended, got %+v", merged[2])
	}
}

func TestWithCutoffLeavesOtherFields(t *testing.T) {
	account := Account{ID: "a1", Devices: []Device{
		{DecoderID: "D1", AccessCardNumber: "C1", Balance: 4, CutoffDate: "2025-01-01", RoomNumber: "101"},
		{DecoderID: "D2", CutoffDate: ""},
	}}
	updated := account.WithCutoff("2025-07-01")
	if account.Devices[0].CutoffDate != "2025-01-01" {
		t.Fatalf("expected original untouched, got %s", account.Devices[0].CutoffDate)
	}
	if !updated.HasCutoff("2025-07-01") {
		t.Fatalf("expected all devices updated, got %+v", updated.Devices)
	}
	d := updated.Devices[0]
	if d.DecoderID != "D1" || d.AccessCardNumber != "C1" || d.Balance != 4 || d.RoomNumber != "101" {
		t.Fatalf("unexpected field change %+v", d)
	}
}

func TestFindByAccessCard(t *testing.T) {
	all := []Account{
		{ID: "a1", Devices: []Device{{AccessCardNumber: "111"}}},
		{ID: "a2", Devices: []Device{{AccessCardNumber: "222"}, {AccessCardNumber: "333"}}},
	}
	account, index, ok := FindByAccessCard(all, "333")
	if !ok || account.ID != "a2" || index != 1 {
		t.Fatalf("expected a2/1, got %s/%d/%v", account.ID, index, ok)
	}
	if _, _, ok := FindByAccessCard(all, ""); ok {
		t.Fatalf("expected empty card to miss")
	}
}

func TestNewAccountNormalize(t *testing.T) {
	input := NewAccount{
		Email: " guest@hotel.com ",
		Alias: "Piso 1",
		Devices: []NewDevice{
			{DecoderID: " D1 ", CutoffDate: "2025-06-10T00:00:00Z", RoomNumber: " 101 "},
		},
	}
	got, err := input.Normalize()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got.Email != "guest@hotel.com" || got.Devices[0].DecoderID != "D1" || got.Devices[0].RoomNumber != "101" {
		t.Fatalf("expected trimmed fields, got %+v", got)
	}
	if got.Devices[0].CutoffDate != "2025-06-10" {
		t.Fatalf("expected canonical date, got %s", got.Devices[0].CutoffDate)
	}
}

func TestNewAccountNormalizeRejects(t *testing.T) {
	cases := []NewAccount{
		{Email: "", Devices: []NewDevice{{DecoderID: "D1", CutoffDate: "2025-06-10"}}},
		{Email: "not-an-email", Devices: []NewDevice{{DecoderID: "D1", CutoffDate: "2025-06-10"}}},
		{Email: "a@b.com"},
		{Email: "a@b.com", Devices: []NewDevice{{DecoderID: "D1", CutoffDate: ""}}},
		{Email: "a@b.com", Devices: []NewDevice{{DecoderID: "D1", CutoffDate: "10/06/2025"}}},
	}
	for i, input := range cases {
		if _, err := input.Normalize(); !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d: expected ErrValidation, got %v", i, err)
		}
	}
}

func TestDeviceUpdateApply(t *testing.T) {
	room := "202"
	cutoff := "2025-08-01"
	update, err := DeviceUpdate{RoomNumber: &room, CutoffDate: &cutoff}.Normalize()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	device := update.Apply(Device{DecoderID: "D1", RoomNumber: "101", CutoffDate: "2025-01-01"})
	if device.RoomNumber != "202" || device.DecoderID != "D1" {
		t.Fatalf("unexpected device %+v", device)
	}
	if device.CutoffDate != "2025-01-01" {
		t.Fatalf("expected Apply to leave cutoff, got %s", device.CutoffDate)
	}
	bad := "soon"
	if _, err := (DeviceUpdate{CutoffDate: &bad}).Normalize(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestPropagationResult(t *testing.T) {
	p := Propagation{ID: "p1", Email: "x@y.com", NewCutoff: "2025-07-01", Rows: []PropagationRow{
		{AccountID: "a1", State: WritePersisted},
		{AccountID: "a2", State: WriteFailed, Error: "boom"},
	}}
	result := p.Result()
	if len(result.Succeeded) != 1 || result.Succeeded[0] != "a1" {
		t.Fatalf("unexpected succeeded %+v", result.Succeeded)
	}
	if !result.Partial() || result.Failed[0].AccountID != "a2" {
		t.Fatalf("unexpected failed %+v", result.Failed)
	}
	if p.FailedCount() != 1 {
		t.Fatalf("expected 1 failed, got %d", p.FailedCount())
	}
}

func TestValidateDevices(t *testing.T) {
	valid := []Device{{DecoderID: "D1", CutoffDate: "not a date"}, {DecoderID: "D2"}}
	if err := ValidateDevices(valid); err != nil {
		t.Fatalf("expected valid devices, got %v", err)
	}
	if err := ValidateDevices([]Device{{DecoderID: "D1"}, {CutoffDate: "2025-06-20"}}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for missing decoder, got %v", err)
	}
	if err := ValidateDevices([]Device{{DecoderID: "D1", Balance: -1}}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for negative balance, got %v", err)
	}
}
