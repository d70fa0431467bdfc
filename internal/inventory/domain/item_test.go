package inventory

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	item, err := Normalize(Item{RoomNumber: " 101 ", EquipmentType: "nevera", IsSmartTV: true})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if item.RoomNumber != "101" || item.EquipmentType != TypeFridge || item.IsSmartTV {
		t.Fatalf("unexpected item %+v", item)
	}

	tv, err := Normalize(Item{RoomNumber: "102", IsSmartTV: true})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if tv.EquipmentType != TypeTV || !tv.IsSmartTV {
		t.Fatalf("expected smart TV default, got %+v", tv)
	}

	if _, err := Normalize(Item{RoomNumber: "  "}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestStatsAndFilter(t *testing.T) {
	items := []Item{
		{RoomNumber: "101", EquipmentType: TypeTV, IsSmartTV: true, Model: "Samsung UN32"},
		{RoomNumber: "101", EquipmentType: TypeFridge},
		{RoomNumber: "202", EquipmentType: TypeWiFi, SerialNumber: "AB-9"},
		{RoomNumber: "203", EquipmentType: TypeTV},
	}
	stats := ComputeStats(items)
	if stats.Total != 4 || stats.TVs != 2 || stats.Fridges != 1 || stats.Others != 1 || stats.SmartTV != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if got := Filter(items, "samsung", ""); len(got) != 1 {
		t.Fatalf("expected 1 model match, got %d", len(got))
	}
	if got := Filter(items, "ab-9", ""); len(got) != 1 || got[0].RoomNumber != "202" {
		t.Fatalf("expected serial match, got %+v", got)
	}
	if got := Filter(items, "10", "televisor"); len(got) != 1 {
		t.Fatalf("expected 1 tv in room 10x, got %d", len(got))
	}
	if got := Filter(items, "", ""); len(got) != 4 {
		t.Fatalf("expected all items, got %d", len(got))
	}
}
