package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	inventory "decoder-ledger/internal/inventory/domain"
)

const defaultInventoryTable = "equipment_inventory"

// ItemRepository stores inventory rows keyed by (room_number, equipment_type).
type ItemRepository struct {
	db    *sql.DB
	table string
}

// ItemOption configures the repository.
type ItemOption func(*ItemRepository)

// WithItemTable overrides the default table name.
func WithItemTable(table string) ItemOption {
	return func(repo *ItemRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewItemRepository constructs a repository.
func NewItemRepository(db *sql.DB, opts ...ItemOption) *ItemRepository {
	repo := &ItemRepository{db: db, table: defaultInventoryTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// List returns every item ordered by room and type.
func (r *ItemRepository) List(ctx context.Context) ([]inventory.Item, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("inventory repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
SELECT id, item_number, equipment_type, room_number, model, serial_number, asset_number, is_smart_tv, updated_at
FROM %s
ORDER BY room_number ASC, equipment_type ASC`, r.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []inventory.Item
	for rows.Next() {
		var item inventory.Item
		if err := rows.Scan(
			&item.ID,
			&item.ItemNumber,
			&item.EquipmentType,
			&item.RoomNumber,
			&item.Model,
			&item.SerialNumber,
			&item.AssetNumber,
			&item.IsSmartTV,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// Upsert inserts or replaces the row sharing the item's room and type and
// returns the stored row.
func (r *ItemRepository) Upsert(ctx context.Context, item inventory.Item) (inventory.Item, error) {
	if r == nil || r.db == nil {
		return inventory.Item{}, errors.New("inventory repo: nil db")
	}
	return r.upsert(ctx, r.db, item)
}

// UpsertBatch upserts items in one transaction. Any failure rolls back the batch.
func (r *ItemRepository) UpsertBatch(ctx context.Context, items []inventory.Item) error {
	if r == nil || r.db == nil {
		return errors.New("inventory repo: nil db")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, item := range items {
		if _, err := r.upsert(ctx, tx, item); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert %s/%s: %w", item.RoomNumber, item.EquipmentType, err)
		}
	}
	return tx.Commit()
}

func (r *ItemRepository) upsert(ctx context.Context, db rowQuerier, item inventory.Item) (inventory.Item, error) {
	if item.ID == "" {
		return inventory.Item{}, errors.New("inventory repo: empty id")
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = time.Now().UTC()
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id, item_number, equipment_type, room_number, model, serial_number, asset_number, is_smart_tv, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)
ON CONFLICT (room_number, equipment_type) DO UPDATE SET
	item_number = EXCLUDED.item_number,
	model = EXCLUDED.model,
	serial_number = EXCLUDED.serial_number,
	asset_number = EXCLUDED.asset_number,
	is_smart_tv = EXCLUDED.is_smart_tv,
	updated_at = EXCLUDED.updated_at
RETURNING id`, r.table)
	err := db.QueryRowContext(ctx, query,
		item.ID,
		item.ItemNumber,
		item.EquipmentType,
		item.RoomNumber,
		item.Model,
		item.SerialNumber,
		item.AssetNumber,
		item.IsSmartTV,
		item.UpdatedAt,
	).Scan(&item.ID)
	if err != nil {
		return inventory.Item{}, err
	}
	return item, nil
}

// Delete removes an item by id.
func (r *ItemRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("inventory repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return inventory.ErrItemNotFound
	}
	return nil
}
