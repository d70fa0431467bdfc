package application

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	accounts "decoder-ledger/internal/accounts/domain"
	"decoder-ledger/internal/expiry"
)

// UnassignedRoom labels devices without a room in the room breakdown.
const UnassignedRoom = "Sin Asignar"

// Views derives the read models shown by the dashboard from an account snapshot.
type Views struct {
	calc    *expiry.Calculator
	card    expiry.Policy
	report  expiry.Policy
	horizon int
}

// NewViews constructs the view builder. horizon is the look-ahead, in days,
// of the portfolio's expiring list.
func NewViews(calc *expiry.Calculator, card, report expiry.Policy, horizon int) (*Views, error) {
	if calc == nil {
		return nil, errors.New("views: nil calculator")
	}
	if horizon < 0 {
		return nil, expiry.ErrNegativeThreshold
	}
	return &Views{calc: calc, card: card, report: report, horizon: horizon}, nil
}

// Dashboard is the home page summary.
type Dashboard struct {
	TotalAccounts  int     `json:"total_accounts"`
	ActiveDevices  int     `json:"active_devices"`
	ExpiredDevices int     `json:"expired_devices"`
	UnknownDevices int     `json:"unknown_devices"`
	ActivePercent  float64 `json:"active_percent"`
	ExpiredPercent float64 `json:"expired_percent"`
}

// Dashboard counts devices by expiry. Bar percentages are relative to the larger count.
func (v *Views) Dashboard(all []accounts.Account, today time.Time) Dashboard {
	out := Dashboard{TotalAccounts: len(all)}
	for _, account := range all {
		for _, device := range account.Devices {
			a := v.calc.Assess(device.CutoffDate, today, v.card)
			switch {
			case !a.Known:
				out.UnknownDevices++
			case a.DaysRemaining < 0:
				out.ExpiredDevices++
			default:
				out.ActiveDevices++
			}
		}
	}
	denominator := out.ActiveDevices
	if out.ExpiredDevices > denominator {
		denominator = out.ExpiredDevices
	}
	if denominator < 1 {
		denominator = 1
	}
	out.ActivePercent = float64(out.ActiveDevices) / float64(denominator) * 100
	out.ExpiredPercent = float64(out.ExpiredDevices) / float64(denominator) * 100
	return out
}

// Card summarises one account by its nearest cutoff.
type Card struct {
	AccountID     string        `json:"account_id"`
	Name          string        `json:"name"`
	NearestCutoff string        `json:"nearest_cutoff,omitempty"`
	DaysRemaining int           `json:"days_remaining"`
	Status        expiry.Status `json:"status"`
	RoomNumbers   []string      `json:"room_numbers"`
}

// Cards returns one card per account, classified with the card policy.
func (v *Views) Cards(all []accounts.Account, today time.Time) []Card {
	cards := make([]Card, 0, len(all))
	for _, account := range all {
		card := Card{
			AccountID:   account.ID,
			Name:        account.DisplayName(),
			Status:      expiry.StatusUnknown,
			RoomNumbers: account.RoomNumbers(),
		}
		var nearest time.Time
		for _, device := range account.Devices {
			cutoff, err := expiry.ParseCutoff(device.CutoffDate)
			if err != nil {
				continue
			}
			if nearest.IsZero() || cutoff.Before(nearest) {
				nearest = cutoff
			}
		}
		if !nearest.IsZero() {
			card.NearestCutoff = nearest.Format(expiry.DateLayout)
			card.DaysRemaining = expiry.DaysRemaining(nearest, today)
			card.Status = v.card.Classify(card.DaysRemaining)
		}
		cards = append(cards, card)
	}
	return cards
}

// Row is one device line of the account list.
type Row struct {
	AccountID        string          `json:"account_id"`
	Email            string          `json:"email"`
	Alias            string          `json:"alias"`
	DeviceIndex      int             `json:"device_index"`
	DecoderID        string          `json:"decoder_id"`
	AccessCardNumber string          `json:"access_card_number"`
	RoomNumber       string          `json:"room_number"`
	CutoffDate       string          `json:"cutoff_date"`
	StoredBalance    float64         `json:"stored_balance"`
	Balance          decimal.Decimal `json:"balance"`
	Known            bool            `json:"known"`
	DaysRemaining    int             `json:"days_remaining"`
	Status           expiry.Status   `json:"status"`
}

// Rows flattens accounts into device rows. The balance is always derived from the cutoff.
func (v *Views) Rows(all []accounts.Account, today time.Time) []Row {
	var rows []Row
	for _, account := range all {
		for i, device := range account.Devices {
			a := v.calc.Assess(device.CutoffDate, today, v.card)
			rows = append(rows, Row{
				AccountID:        account.ID,
				Email:            account.Email,
				Alias:            account.Alias,
				DeviceIndex:      i,
				DecoderID:        device.DecoderID,
				AccessCardNumber: device.AccessCardNumber,
				RoomNumber:       device.RoomNumber,
				CutoffDate:       device.CutoffDate,
				StoredBalance:    device.Balance,
				Balance:          a.Balance,
				Known:            a.Known,
				DaysRemaining:    a.DaysRemaining,
				Status:           a.Status,
			})
		}
	}
	return rows
}

// ExpiringDevice is a device due within the portfolio horizon.
type ExpiringDevice struct {
	DecoderID  string `json:"decoder_id"`
	CutoffDate string `json:"cutoff_date"`
	DaysLeft   int    `json:"days_left"`
}

// ExpiringGroup collects the expiring devices registered under one alias.
type ExpiringGroup struct {
	Alias       string           `json:"alias"`
	Email       string           `json:"email"`
	Devices     []ExpiringDevice `json:"devices"`
	MinDaysLeft int              `json:"min_days_left"`
}

// RoomCount is the number of devices installed in a room.
type RoomCount struct {
	Room    string `json:"room"`
	Devices int    `json:"devices"`
}

// Portfolio is the financial overview.
type Portfolio struct {
	TotalBalance   decimal.Decimal `json:"total_balance"`
	AverageBalance decimal.Decimal `json:"average_balance"`
	ActiveDevices  int             `json:"active_devices"`
	ExpiredDevices int             `json:"expired_devices"`
	UnknownDevices int             `json:"unknown_devices"`
	HorizonDays    int             `json:"horizon_days"`
	Expiring       []ExpiringGroup `json:"expiring"`
	ByRoom         []RoomCount     `json:"by_room"`
}

// Portfolio aggregates derived balances, expiry counts, expiring groups and rooms.
func (v *Views) Portfolio(all []accounts.Account, today time.Time) Portfolio {
	out := Portfolio{TotalBalance: decimal.Zero, AverageBalance: decimal.Zero, HorizonDays: v.horizon}
	groups := make(map[string]*ExpiringGroup)
	var order []string
	rooms := make(map[string]int)
	devices := 0

	for _, account := range all {
		for _, device := range account.Devices {
			devices++
			room := strings.TrimSpace(device.RoomNumber)
			if room == "" {
				room = UnassignedRoom
			}
			rooms[room]++

			a := v.calc.Assess(device.CutoffDate, today, v.report)
			out.TotalBalance = out.TotalBalance.Add(a.Balance)
			switch {
			case !a.Known:
				out.UnknownDevices++
				continue
			case a.DaysRemaining < 0:
				out.ExpiredDevices++
				continue
			default:
				out.ActiveDevices++
			}
			if a.DaysRemaining > v.horizon {
				continue
			}
			name := account.DisplayName()
			group, ok := groups[name]
			if !ok {
				group = &ExpiringGroup{Alias: name, Email: account.Email}
				groups[name] = group
				order = append(order, name)
			}
			group.Devices = append(group.Devices, ExpiringDevice{
				DecoderID:  device.DecoderID,
				CutoffDate: device.CutoffDate,
				DaysLeft:   a.DaysRemaining,
			})
		}
	}

	if devices > 0 {
		out.AverageBalance = out.TotalBalance.Div(decimal.NewFromInt(int64(devices))).Round(2)
	}

	out.Expiring = make([]ExpiringGroup, 0, len(order))
	for _, name := range order {
		group := groups[name]
		sort.SliceStable(group.Devices, func(i, j int) bool {
			return group.Devices[i].DaysLeft < group.Devices[j].DaysLeft
		})
		group.MinDaysLeft = group.Devices[0].DaysLeft
		out.Expiring = append(out.Expiring, *group)
	}
	sort.SliceStable(out.Expiring, func(i, j int) bool {
		return out.Expiring[i].MinDaysLeft < out.Expiring[j].MinDaysLeft
	})

	out.ByRoom = make([]RoomCount, 0, len(rooms))
	for room, count := range rooms {
		out.ByRoom = append(out.ByRoom, RoomCount{Room: room, Devices: count})
	}
	sort.Slice(out.ByRoom, func(i, j int) bool { return out.ByRoom[i].Room < out.ByRoom[j].Room })
	return out
}

// StatusLine is one account of the status report.
type StatusLine struct {
	AccountID   string        `json:"account_id"`
	Name        string        `json:"name"`
	Rooms       []string      `json:"rooms"`
	Cutoffs     []string      `json:"cutoffs"`
	MinDaysLeft int           `json:"min_days_left"`
	Status      expiry.Status `json:"status"`
}

// StatusReport returns one line per account with devices, classified with the
// report policy and sorted by severity then by the nearest cutoff.
func (v *Views) StatusReport(all []accounts.Account, today time.Time) []StatusLine {
	lines := make([]StatusLine, 0, len(all))
	for _, account := range all {
		if len(account.Devices) == 0 {
			continue
		}
		line := StatusLine{
			AccountID: account.ID,
			Name:      account.DisplayName(),
			Rooms:     distinct(account.RoomNumbers()),
			Status:    expiry.StatusUnknown,
		}
		first := true
		var cutoffs []string
		for _, device := range account.Devices {
			a := v.calc.Assess(device.CutoffDate, today, v.report)
			if !a.Known {
				continue
			}
			cutoffs = append(cutoffs, expiry.FormatDisplay(device.CutoffDate))
			if first || a.DaysRemaining < line.MinDaysLeft {
				line.MinDaysLeft = a.DaysRemaining
			}
			first = false
			line.Status = expiry.Worse(line.Status, a.Status)
		}
		line.Cutoffs = distinct(cutoffs)
		lines = append(lines, line)
	}
	sort.SliceStable(lines, func(i, j int) bool {
		si, sj := lines[i].Status.Severity(), lines[j].Status.Severity()
		if si != sj {
			return si < sj
		}
		return lines[i].MinDaysLeft < lines[j].MinDaysLeft
	})
	return lines
}

func distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
