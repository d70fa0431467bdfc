package application

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"

	inventory "decoder-ledger/internal/inventory/domain"
	"decoder-ledger/internal/inventory/importer"
	"decoder-ledger/internal/inventory/infrastructure/memory"
)

type countingRepo struct {
	*memory.ItemRepository
	upserts int
}

func (r *countingRepo) Upsert(ctx context.Context, item inventory.Item) (inventory.Item, error) {
	r.upserts++
	return r.ItemRepository.Upsert(ctx, item)
}

func TestSaveValidatesBeforeStore(t *testing.T) {
	repo := &countingRepo{ItemRepository: memory.NewItemRepository()}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	if _, err := svc.Save(context.Background(), inventory.Item{EquipmentType: "TELEVISOR"}); !errors.Is(err, inventory.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if repo.upserts != 0 {
		t.Fatalf("expected no store call, got %d", repo.upserts)
	}

	first, err := svc.Save(context.Background(), inventory.Item{RoomNumber: "101", Model: "LG"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	second, err := svc.Save(context.Background(), inventory.Item{RoomNumber: "101", EquipmentType: "televisor", Model: "Samsung"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected upsert on room and type, got %s and %s", first.ID, second.ID)
	}
	listing, err := svc.List(context.Background(), "", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listing.Items) != 1 || listing.Items[0].Model != "Samsung" || listing.Stats.TVs != 1 {
		t.Fatalf("unexpected listing %+v", listing)
	}
}

func TestImportUpsertsBatch(t *testing.T) {
	f := excelize.NewFile()
	rows := [][]any{
		{"ITEM", "HABITACION", "MARCA", "MODELO", "EQUIPO", "SMART"},
		{1, "101", "LG", "43", "TELEVISOR", "SI"},
		{2, "101", "Mabe", "", "NEVERA", ""},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("row: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}

	repo := memory.NewItemRepository()
	svc, _ := NewService(repo)
	count, err := svc.Import(context.Background(), &buf)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 rows, got %d", count)
	}
	listing, _ := svc.List(context.Background(), "", "NEVERA")
	if len(listing.Items) != 1 || listing.Stats.Total != 2 || listing.Stats.SmartTV != 1 {
		t.Fatalf("unexpected listing %+v", listing)
	}

	if _, err := svc.Import(context.Background(), bytes.NewReader([]byte("nope"))); !errors.Is(err, importer.ErrUnreadable) {
		t.Fatalf("expected ErrUnreadable, got %v", err)
	}
}

func TestDeleteMissing(t *testing.T) {
	svc, _ := NewService(memory.NewItemRepository())
	if err := svc.Delete(context.Background(), "nope"); !errors.Is(err, inventory.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}
