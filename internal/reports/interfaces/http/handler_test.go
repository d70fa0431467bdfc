package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	accounts "decoder-ledger/internal/accounts/domain"
	"decoder-ledger/internal/audit"
	"decoder-ledger/internal/expiry"
	"decoder-ledger/internal/reminders"
	reportapp "decoder-ledger/internal/reports/application"
)

type stubSource struct {
	list []accounts.Account
	err  error
}

func (s stubSource) List(ctx context.Context) ([]accounts.Account, error) {
	return s.list, s.err
}

type countingAudit struct{ count int }

func (c *countingAudit) Log(ctx context.Context, entry audit.Entry) error {
	c.count++
	return nil
}

func newTestHandler(t *testing.T, source stubSource) (*Handler, *countingAudit) {
	t.Helper()
	calc, err := expiry.NewCalculator(decimal.RequireFromString("0.8"),
		expiry.WithNow(func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }))
	if err != nil {
		t.Fatalf("calculator: %v", err)
	}
	views, _ := reportapp.NewViews(calc, expiry.CardPolicy(5), expiry.ReportPolicy(7), 30)
	service, err := reportapp.NewService(source, views, calc)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	reminderService, _ := reminders.NewService(service, "")
	recorder := &countingAudit{}
	handler, err := NewHandler(service, reminderService, recorder, nil)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	return handler, recorder
}

func sample() []accounts.Account {
	return []accounts.Account{
		{ID: "a1", Email: "x@y.com", Alias: "Casa", Devices: []accounts.Device{
			{DecoderID: "D1", CutoffDate: "2025-03-12", RoomNumber: "101"},
		}},
		{ID: "a2", Email: "z@y.com", Devices: []accounts.Device{
			{DecoderID: "D2", CutoffDate: "2025-02-12"},
		}},
	}
}

func TestViews(t *testing.T) {
	handler, _ := newTestHandler(t, stubSource{list: sample()})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/views/dashboard", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var dash reportapp.Dashboard
	_ = json.NewDecoder(rec.Body).Decode(&dash)
	if dash.TotalAccounts != 2 || dash.ExpiredDevices != 1 {
		t.Fatalf("unexpected dashboard %+v", dash)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/views/status-report", nil))
	var lines []reportapp.StatusLine
	_ = json.NewDecoder(rec.Body).Decode(&lines)
	if len(lines) != 2 || lines[0].AccountID != "a2" {
		t.Fatalf("unexpected status report %+v", lines)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/views/unknown", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestExports(t *testing.T) {
	handler, recorder := newTestHandler(t, stubSource{list: sample()})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reports/status.pdf", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("unexpected pdf response %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("expected pdf body")
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "reporte_cuentas_") {
		t.Fatalf("unexpected disposition %q", rec.Header().Get("Content-Disposition"))
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reports/status.xlsx", nil))
	if rec.Code != http.StatusOK || rec.Body.Len() == 0 {
		t.Fatalf("unexpected xlsx response %d", rec.Code)
	}
	if recorder.count != 2 {
		t.Fatalf("expected 2 audit entries, got %d", recorder.count)
	}
}

func TestReminders(t *testing.T) {
	handler, _ := newTestHandler(t, stubSource{list: sample()})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reminders", nil))
	var list []reminders.Reminder
	_ = json.NewDecoder(rec.Body).Decode(&list)
	if len(list) != 1 || list[0].Alias != "Casa" || !strings.HasPrefix(list[0].MailtoURL, "mailto:x@y.com?") {
		t.Fatalf("unexpected reminders %+v", list)
	}
}

func TestSourceFailureIsUnavailable(t *testing.T) {
	handler, _ := newTestHandler(t, stubSource{err: errors.New("connection refused")})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/views/portfolio", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
