package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	accounts "decoder-ledger/internal/accounts/domain"
	"decoder-ledger/internal/audit"
	"decoder-ledger/internal/auth"
	"decoder-ledger/internal/checkrequest"
)

const (
	checkRequestPath = "/api/v1/check-requests/pdf"
	exchangeRatePath = "/api/v1/exchange-rate"
)

// Handler serves the check-request form and the current exchange rate.
type Handler struct {
	service     *checkrequest.Service
	rates       checkrequest.RateSource
	auditLogger audit.Logger
	logger      *zap.Logger
}

// NewHandler constructs a handler. rates may be nil when no feed is configured.
func NewHandler(service *checkrequest.Service, rates checkrequest.RateSource, auditLogger audit.Logger, logger *zap.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("check request handler: nil service")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, rates: rates, auditLogger: auditLogger, logger: logger}, nil
}

// ServeHTTP handles /api/v1/check-requests/pdf and /api/v1/exchange-rate.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case checkRequestPath:
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleGenerate(w, r)
	case exchangeRatePath:
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleRate(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var input checkrequest.Input
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	doc, err := h.service.Generate(r.Context(), input)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.logAudit(r, doc.Summary)

	filename := "solicitud_cheque_" + time.Now().Format("2006-01-02") + ".pdf"
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("X-Check-Request-Total", doc.Summary.Total.StringFixed(2))
	_, _ = w.Write(doc.PDF)
}

func (h *Handler) handleRate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if h.rates == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{"known": false})
		return
	}
	rate, err := h.rates.Rate(r.Context())
	if err != nil || !rate.Known {
		h.logger.Warn("exchange rate unavailable", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(rate)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, accounts.ErrAccountNotFound):
		http.Error(w, "account not found", http.StatusNotFound)
	case errors.Is(err, checkrequest.ErrRateUnavailable):
		http.Error(w, "exchange rate unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, checkrequest.ErrInvalidAmount),
		errors.Is(err, checkrequest.ErrMissingAccount),
		errors.Is(err, checkrequest.ErrEmptyRequest),
		errors.Is(err, checkrequest.ErrUnknownCurrency):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("check request failed", zap.Error(err))
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
	}
}

func (h *Handler) logAudit(r *http.Request, summary checkrequest.Summary) {
	if h.auditLogger == nil {
		return
	}
	meta, _ := json.Marshal(map[string]any{
		"currency": summary.Currency,
		"lines":    len(summary.Lines),
		"total":    summary.Total.StringFixed(2),
	})
	if err := h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       "check_request.generate",
		ResourceType: "check_request",
		Metadata:     meta,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	}); err != nil {
		h.logger.Warn("audit log failed", zap.Error(err))
	}
}
