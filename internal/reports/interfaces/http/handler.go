package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"decoder-ledger/internal/audit"
	"decoder-ledger/internal/auth"
	"decoder-ledger/internal/observability/metrics"
	"decoder-ledger/internal/reminders"
	reportapp "decoder-ledger/internal/reports/application"
	"decoder-ledger/internal/reports/interfaces"
)

const (
	viewsPath     = "/api/v1/views/"
	reportsPath   = "/api/v1/reports/"
	remindersPath = "/api/v1/reminders"
)

// Handler serves the derived views, report exports and reminder links.
type Handler struct {
	service     *reportapp.Service
	reminders   *reminders.Service
	auditLogger audit.Logger
	logger      *zap.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *reportapp.Service, reminderService *reminders.Service, auditLogger audit.Logger, logger *zap.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("reports handler: nil service")
	}
	if reminderService == nil {
		return nil, errors.New("reports handler: nil reminders")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, reminders: reminderService, auditLogger: auditLogger, logger: logger}, nil
}

// ServeHTTP handles /api/v1/views/*, /api/v1/reports/* and /api/v1/reminders.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch {
	case strings.HasPrefix(r.URL.Path, viewsPath):
		h.handleView(w, r, strings.TrimPrefix(r.URL.Path, viewsPath))
	case strings.HasPrefix(r.URL.Path, reportsPath):
		h.handleExport(w, r, strings.TrimPrefix(r.URL.Path, reportsPath))
	case r.URL.Path == remindersPath:
		h.handleReminders(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleView(w http.ResponseWriter, r *http.Request, name string) {
	var (
		payload any
		err     error
	)
	switch name {
	case "dashboard":
		payload, err = h.service.Dashboard(r.Context())
	case "cards":
		payload, err = h.service.Cards(r.Context())
	case "portfolio":
		payload, err = h.service.Portfolio(r.Context())
	case "status-report":
		payload, err = h.service.StatusReport(r.Context())
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, name string) {
	var format, contentType string
	switch name {
	case "status.pdf":
		format, contentType = "pdf", "application/pdf"
	case "status.xlsx":
		format, contentType = "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}

	start := time.Now()
	lines, err := h.service.StatusReport(r.Context())
	if err != nil {
		metrics.ObserveExport("status_report", format, metrics.ResultError, time.Since(start))
		h.respondServiceError(w, err)
		return
	}
	generated := time.Now().In(h.service.Today().Location())
	var data []byte
	if format == "pdf" {
		data, err = interfaces.BuildStatusReportPDF(lines, generated)
	} else {
		data, err = interfaces.BuildStatusReportXLSX(lines, generated)
	}
	if err != nil {
		metrics.ObserveExport("status_report", format, metrics.ResultError, time.Since(start))
		h.logger.Error("status report export failed", zap.String("format", format), zap.Error(err))
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	metrics.ObserveExport("status_report", format, metrics.ResultSuccess, time.Since(start))
	h.logAudit(r, "report.export", format, len(lines))

	filename := "reporte_cuentas_" + generated.Format("2006-01-02") + "." + format
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_, _ = w.Write(data)
}

func (h *Handler) handleReminders(w http.ResponseWriter, r *http.Request) {
	list, err := h.reminders.Expiring(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	h.logger.Warn("report source unavailable", zap.Error(err))
	http.Error(w, "store unavailable", http.StatusServiceUnavailable)
}

func (h *Handler) logAudit(r *http.Request, action, format string, lines int) {
	if h.auditLogger == nil {
		return
	}
	meta, _ := json.Marshal(map[string]any{"format": format, "lines": lines})
	if err := h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "status_report",
		Metadata:     meta,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	}); err != nil {
		h.logger.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}
