package inventory

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Equipment types known to the hotel inventory.
const (
	TypeTV      = "TELEVISOR"
	TypeFridge  = "NEVERA"
	TypeWiFi    = "WIFI"
	TypePhone   = "TELEFONO"
	TypeDecoder = "DECODIFICADOR"
	TypeOther   = "OTRO"
)

// EquipmentTypes lists the selectable types in display order.
var EquipmentTypes = []string{TypeTV, TypeFridge, TypeWiFi, TypePhone, TypeDecoder, TypeOther}

// Item is one piece of equipment installed in a room.
type Item struct {
	ID            string    `json:"id"`
	ItemNumber    string    `json:"item_number"`
	EquipmentType string    `json:"equipment_type"`
	RoomNumber    string    `json:"room_number" validate:"required"`
	Model         string    `json:"model"`
	SerialNumber  string    `json:"serial_number"`
	AssetNumber   string    `json:"asset_number"`
	IsSmartTV     bool      `json:"is_smart_tv"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Key is the natural key of an item.
func (i Item) Key() string {
	return i.RoomNumber + "_" + i.EquipmentType
}

// IsTV reports whether the item is a television.
func (i Item) IsTV() bool {
	return strings.Contains(i.EquipmentType, TypeTV) || strings.Contains(i.EquipmentType, "TV")
}

var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	})
	return v
}()

// Normalize trims fields, upper-cases the type (default TELEVISOR) and clears
// the smart flag on anything that is not a TV.
func Normalize(item Item) (Item, error) {
	item.ID = strings.TrimSpace(item.ID)
	item.ItemNumber = strings.TrimSpace(item.ItemNumber)
	item.EquipmentType = strings.ToUpper(strings.TrimSpace(item.EquipmentType))
	if item.EquipmentType == "" {
		item.EquipmentType = TypeTV
	}
	item.RoomNumber = strings.TrimSpace(item.RoomNumber)
	item.Model = strings.TrimSpace(item.Model)
	item.SerialNumber = strings.TrimSpace(item.SerialNumber)
	item.AssetNumber = strings.TrimSpace(item.AssetNumber)
	if !item.IsTV() {
		item.IsSmartTV = false
	}
	if err := validate.Struct(item); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return Item{}, fmt.Errorf("%w: %s is %s", ErrValidation, fieldErrs[0].Field(), fieldErrs[0].Tag())
		}
		return Item{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return item, nil
}

// Stats counts the inventory by category.
type Stats struct {
	Total   int `json:"total"`
	TVs     int `json:"tvs"`
	Fridges int `json:"fridges"`
	Others  int `json:"others"`
	SmartTV int `json:"smart_tvs"`
}

// ComputeStats summarises items.
func ComputeStats(items []Item) Stats {
	stats := Stats{Total: len(items)}
	for _, item := range items {
		switch item.EquipmentType {
		case TypeTV:
			stats.TVs++
		case TypeFridge:
			stats.Fridges++
		default:
			stats.Others++
		}
		if item.IsSmartTV {
			stats.SmartTV++
		}
	}
	return stats
}

// Filter keeps items whose room, type, serial or model contains search
// (case-insensitive) and, when equipmentType is set, whose type matches it.
func Filter(items []Item, search, equipmentType string) []Item {
	search = strings.ToLower(strings.TrimSpace(search))
	equipmentType = strings.ToUpper(strings.TrimSpace(equipmentType))
	out := make([]Item, 0, len(items))
	for _, item := range items {
		if equipmentType != "" && item.EquipmentType != equipmentType {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(item.RoomNumber), search) &&
			!strings.Contains(strings.ToLower(item.EquipmentType), search) &&
			!strings.Contains(strings.ToLower(item.SerialNumber), search) &&
			!strings.Contains(strings.ToLower(item.Model), search) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// Repository persists inventory items. Upserts resolve conflicts on (room_number, equipment_type).
type Repository interface {
	List(ctx context.Context) ([]Item, error)
	Upsert(ctx context.Context, item Item) (Item, error)
	UpsertBatch(ctx context.Context, items []Item) error
	Delete(ctx context.Context, id string) error
}
