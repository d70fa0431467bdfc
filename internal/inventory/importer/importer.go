package importer

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	inventory "decoder-ledger/internal/inventory/domain"
)

const headerScanRows = 10

var (
	// ErrUnreadable is returned when the upload is not a workbook.
	ErrUnreadable = errors.New("importer: unreadable workbook")
	// ErrHeaderNotFound is returned when no header row exists in the first rows.
	ErrHeaderNotFound = errors.New("importer: header row not found")
	// ErrNoRows is returned when no row carries a room number.
	ErrNoRows = errors.New("importer: no valid rows")
)

var (
	headerMarkers = []string{"HABITACION", "ITEM", "EQUIPO"}
	smartTokens   = map[string]struct{}{"SI": {}, "SÍ": {}, "YES": {}, "X": {}, "TRUE": {}, "1": {}}
)

type columns struct {
	item, room, brand, model, serial, asset, equipment, smart int
}

// Parse reads an inventory workbook. The sheet mentioning HABITACION is used
// (else the first one), columns are matched by keyword and rows sharing room
// and equipment type collapse into the last one.
func Parse(r io.Reader) ([]inventory.Item, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrHeaderNotFound
	}
	var rows [][]string
	for i, sheet := range sheets {
		sheetRows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
		}
		if i == 0 {
			rows = sheetRows
		}
		if containsRoomHeader(sheetRows) {
			rows = sheetRows
			break
		}
	}
	return ParseRows(rows)
}

// ParseRows applies the header and column heuristics to raw cell values.
func ParseRows(rows [][]string) ([]inventory.Item, error) {
	headerIndex := findHeader(rows)
	if headerIndex < 0 {
		return nil, ErrHeaderNotFound
	}
	cols := mapColumns(rows[headerIndex])

	byKey := make(map[string]int)
	var items []inventory.Item
	for _, row := range rows[headerIndex+1:] {
		room := strings.TrimSpace(cell(row, cols.room))
		if room == "" {
			continue
		}
		equipment := strings.ToUpper(strings.TrimSpace(cell(row, cols.equipment)))
		if equipment == "" {
			equipment = inventory.TypeTV
		}
		itemNumber := strings.TrimSpace(cell(row, cols.item))
		if n, err := strconv.ParseFloat(itemNumber, 64); err != nil || n == 0 {
			itemNumber = strconv.Itoa(len(items) + 1)
		}
		_, smart := smartTokens[strings.ToUpper(strings.TrimSpace(cell(row, cols.smart)))]

		item := inventory.Item{
			ItemNumber:    itemNumber,
			EquipmentType: equipment,
			RoomNumber:    room,
			Model:         strings.TrimSpace(cell(row, cols.brand) + " " + cell(row, cols.model)),
			SerialNumber:  strings.TrimSpace(cell(row, cols.serial)),
			AssetNumber:   strings.TrimSpace(cell(row, cols.asset)),
			IsSmartTV:     smart,
		}
		if pos, ok := byKey[item.Key()]; ok {
			items[pos] = item
			continue
		}
		byKey[item.Key()] = len(items)
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, ErrNoRows
	}
	return items, nil
}

func containsRoomHeader(rows [][]string) bool {
	for _, row := range rows {
		for _, value := range row {
			if strings.Contains(strings.ToUpper(value), "HABITACION") {
				return true
			}
		}
	}
	return false
}

func findHeader(rows [][]string) int {
	limit := len(rows)
	if limit > headerScanRows {
		limit = headerScanRows
	}
	for i := 0; i < limit; i++ {
		for _, value := range rows[i] {
			normalized := strings.ToUpper(strings.TrimSpace(value))
			for _, marker := range headerMarkers {
				if normalized == marker {
					return i
				}
			}
		}
	}
	return -1
}

func mapColumns(header []string) columns {
	normalized := make([]string, len(header))
	for i, value := range header {
		normalized[i] = strings.ToUpper(strings.TrimSpace(value))
	}
	find := func(keys ...string) int {
		for i, value := range normalized {
			for _, key := range keys {
				if strings.Contains(value, key) {
					return i
				}
			}
		}
		return -1
	}
	return columns{
		item:      find("ITEM", "NRO", "#"),
		room:      find("HABITACION", "ROOM"),
		brand:     find("MARCA", "BRAND"),
		model:     find("MODELO", "MODEL"),
		serial:    find("SERIAL", "SERIE"),
		asset:     find("ACTIVO", "ASSET"),
		equipment: find("EQUIPO", "TIPO", "EQUIPMENT"),
		smart:     find("SMART"),
	}
}

func cell(row []string, index int) string {
	if index < 0 || index >= len(row) {
		return ""
	}
	return row[index]
}
