package expiry

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := ParseCutoff(value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return parsed
}

func TestDaysRemaining(t *testing.T) {
	today := mustDate(t, "2025-06-10")
	cases := []struct {
		cutoff string
		want   int
	}{
		{"2025-06-09", -1},
		{"2025-06-10", 0},
		{"2025-06-16", 6},
		{"2025-07-10", 30},
		{"2024-06-10", -365},
	}
	for _, tc := range cases {
		if got := DaysRemaining(mustDate(t, tc.cutoff), today); got != tc.want {
			t.Fatalf("cutoff %s: expected %d days, got %d", tc.cutoff, tc.want, got)
		}
	}
}

func TestDaysRemainingIgnoresTimeOfDay(t *testing.T) {
	loc := time.FixedZone("VET", -4*3600)
	today := time.Date(2025, 6, 10, 23, 59, 0, 0, loc)
	cutoff := time.Date(2025, 6, 11, 0, 1, 0, 0, loc)
	if got := DaysRemaining(cutoff, today); got != 1 {
		t.Fatalf("expected 1 day, got %d", got)
	}
}

func TestDaysRemainingFarDates(t *testing.T) {
	today := mustDate(t, "2025-06-10")
	if got := DaysRemaining(mustDate(t, "2400-06-10"), today); got != 136966 {
		t.Fatalf("expected 136966, got %d", got)
	}
	if got := DaysRemaining(mustDate(t, "1600-06-10"), today); got != -155228 {
		t.Fatalf("expected -155228, got %d", got)
	}
	balance := EstimateBalance(mustDate(t, "2400-06-10"), today, decimal.RequireFromString("0.8"))
	if !balance.Equal(decimal.RequireFromString("109573.6")) {
		t.Fatalf("expected 109573.6, got %s", balance)
	}
}

func TestClassifyStatusThresholdIsParameter(t *testing.T) {
	if got := ReportPolicy(DefaultReportSoonDays).Classify(6); got != StatusExpiringSoon {
		t.Fatalf("expected expiring_soon under report policy, got %s", got)
	}
	if got := CardPolicy(DefaultCardSoonDays).Classify(6); got != StatusActive {
		t.Fatalf("expected active under card policy, got %s", got)
	}
	if got := ClassifyStatus(0, 5); got != StatusExpiringSoon {
		t.Fatalf("expected expiring_soon on cutoff day, got %s", got)
	}
	if got := ClassifyStatus(5, 5); got != StatusExpiringSoon {
		t.Fatalf("expected inclusive threshold, got %s", got)
	}
	if got := ClassifyStatus(-1, 5); got != StatusExpired {
		t.Fatalf("expected expired, got %s", got)
	}
}

func TestEstimateBalance(t *testing.T) {
	today := mustDate(t, "2025-06-10")
	rate := decimal.RequireFromString("0.8")

	if got := EstimateBalance(mustDate(t, "2025-06-09"), today, rate); !got.IsZero() {
		t.Fatalf("expected zero balance for past cutoff, got %s", got)
	}
	if got := EstimateBalance(mustDate(t, "2025-06-10"), today, rate); !got.Equal(decimal.RequireFromString("0.8")) {
		t.Fatalf("expected 0.8 on cutoff day, got %s", got)
	}
	if got := EstimateBalance(mustDate(t, "2025-06-19"), today, rate); !got.Equal(decimal.NewFromInt(8)) {
		t.Fatalf("expected 8, got %s", got)
	}
}

func TestParseCutoff(t *testing.T) {
	for _, value := range []string{"", "garbage", "2025-13-01", "2025-06-10X"} {
		if _, err := ParseCutoff(value); !errors.Is(err, ErrInvalidCutoff) {
			t.Fatalf("%q: expected ErrInvalidCutoff, got %v", value, err)
		}
	}
	got, err := NormalizeCutoff("2025-06-10T15:04:05Z")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got != "2025-06-10" {
		t.Fatalf("expected 2025-06-10, got %s", got)
	}
	if display := FormatDisplay("2025-06-10"); display != "10/06/2025" {
		t.Fatalf("expected 10/06/2025, got %s", display)
	}
}

func TestAssessUnknownForInvalidDate(t *testing.T) {
	calc, err := NewCalculator(decimal.RequireFromString("0.8"))
	if err != nil {
		t.Fatalf("new calculator: %v", err)
	}
	today := mustDate(t, "2025-06-10")
	got := calc.Assess("", today, CardPolicy(5))
	if got.Known || got.Status != StatusUnknown {
		t.Fatalf("expected unknown assessment, got %+v", got)
	}
	got = calc.Assess("2025-06-09", today, CardPolicy(5))
	if !got.Known || got.Status != StatusExpired || got.DaysRemaining != -1 || !got.Balance.IsZero() {
		t.Fatalf("unexpected assessment %+v", got)
	}
}

func TestCalculatorToday(t *testing.T) {
	loc := time.FixedZone("VET", -4*3600)
	fixed := time.Date(2025, 6, 11, 2, 0, 0, 0, time.UTC)
	calc, err := NewCalculator(decimal.RequireFromString("0.8"), WithLocation(loc), WithNow(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("new calculator: %v", err)
	}
	today := calc.Today()
	if today.Day() != 10 || today.Hour() != 0 {
		t.Fatalf("expected 2025-06-10 midnight local, got %s", today)
	}
	if _, err := NewCalculator(decimal.NewFromInt(-1)); !errors.Is(err, ErrNegativeRate) {
		t.Fatalf("expected ErrNegativeRate, got %v", err)
	}
}

func TestWorse(t *testing.T) {
	if got := Worse(StatusActive, StatusExpired); got != StatusExpired {
		t.Fatalf("expected expired, got %s", got)
	}
	if got := Worse(StatusExpiringSoon, StatusActive); got != StatusExpiringSoon {
		t.Fatalf("expected expiring_soon, got %s", got)
	}
}
